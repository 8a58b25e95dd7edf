package conversation

// Phase is the discriminated state of a conversation. It gates which kind of
// input is accepted.
type Phase int

const (
	PhaseGreetingAndFirstQuestion Phase = iota
	PhaseAssessmentInProgress
	PhaseAssessmentJustCompleted
	PhaseAwaitingBreathingChoice
	PhaseFreeChat
)

func (p Phase) String() string {
	switch p {
	case PhaseGreetingAndFirstQuestion:
		return "greeting_and_first_question"
	case PhaseAssessmentInProgress:
		return "assessment_in_progress"
	case PhaseAssessmentJustCompleted:
		return "assessment_just_completed"
	case PhaseAwaitingBreathingChoice:
		return "awaiting_breathing_choice"
	case PhaseFreeChat:
		return "free_chat"
	default:
		return "unknown"
	}
}

// Input is the kind of user input a conversation accepts right now.
type Input int

const (
	InputNone Input = iota
	InputRating
	InputChoice
	InputText
)

func (i Input) String() string {
	switch i {
	case InputRating:
		return "rating"
	case InputChoice:
		return "choice"
	case InputText:
		return "text"
	default:
		return "none"
	}
}

// Choice answers the breathing-exercise offer.
type Choice string

const (
	ChoiceYes Choice = "yes"
	ChoiceNo  Choice = "no"
)
