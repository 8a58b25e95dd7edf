package bot

import (
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/xaenox/moodlift-bot/internal/breathing"
	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/mood"
)

// Callback actions carried in inline button data as "action:value".
const (
	actionRate    = "rate"
	actionBreathe = "breathe"
	actionTimer   = "timer"
	actionLang    = "lang"

	timerToggle = "toggle"
	timerReset  = "reset"
	timerClose  = "close"
)

type callback struct {
	Action string
	Value  string
}

func (c callback) String() string {
	return c.Action + ":" + c.Value
}

func parseCallback(data string) (callback, error) {
	action, value, ok := strings.Cut(data, ":")
	if !ok || action == "" || value == "" {
		return callback{}, fmt.Errorf("malformed callback data %q", data)
	}
	switch action {
	case actionRate:
		n, err := strconv.Atoi(value)
		if err != nil || n < mood.MinAnswer || n > mood.MaxAnswer {
			return callback{}, fmt.Errorf("bad rating in callback data %q", data)
		}
	case actionBreathe:
		if value != "yes" && value != "no" {
			return callback{}, fmt.Errorf("bad choice in callback data %q", data)
		}
	case actionTimer:
		switch value {
		case timerToggle, timerReset, timerClose:
		default:
			return callback{}, fmt.Errorf("bad timer action in callback data %q", data)
		}
	case actionLang:
	default:
		return callback{}, fmt.Errorf("unknown callback action %q", action)
	}
	return callback{Action: action, Value: value}, nil
}

func ratingKeyboard(b *content.Bundle) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, mood.MaxAnswer)
	for n := mood.MinAnswer; n <= mood.MaxAnswer; n++ {
		label := fmt.Sprintf("%d · %s", n, b.RatingLabels[n-1])
		data := callback{Action: actionRate, Value: strconv.Itoa(n)}.String()
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func choiceKeyboard(b *content.Bundle) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(b.YesLabel, callback{Action: actionBreathe, Value: "yes"}.String()),
		tgbotapi.NewInlineKeyboardButtonData(b.NoLabel, callback{Action: actionBreathe, Value: "no"}.String()),
	))
}

func languageKeyboard(t *content.Table) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	for _, lang := range t.Languages() {
		b := t.MustBundle(lang)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.NativeName, callback{Action: actionLang, Value: string(lang)}.String()))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func timerKeyboard(b *content.Bundle, s breathing.Snapshot) tgbotapi.InlineKeyboardMarkup {
	if s.Finished {
		return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Breathing.Continue, callback{Action: actionTimer, Value: timerClose}.String()),
		))
	}

	toggle := b.Breathing.Start
	if s.Running {
		toggle = b.Breathing.Pause
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(toggle, callback{Action: actionTimer, Value: timerToggle}.String()),
			tgbotapi.NewInlineKeyboardButtonData(b.Breathing.Reset, callback{Action: actionTimer, Value: timerReset}.String()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Breathing.Close, callback{Action: actionTimer, Value: timerClose}.String()),
		),
	)
}

// removeKeyboard clears the inline buttons of an answered message.
func removeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}

// renderBreathing formats the timer card as MarkdownV2.
func renderBreathing(b *content.Bundle, s breathing.Snapshot) string {
	bt := b.Breathing

	var sb strings.Builder
	sb.WriteString("*" + escapeMarkdown(bt.Title) + "* " + escapeMarkdown(bt.Subtitle) + "\n\n")

	if s.Finished {
		sb.WriteString("*" + escapeMarkdown(bt.GreatJob) + "*\n")
		if s.Quote != "" {
			sb.WriteString("_" + escapeMarkdown(s.Quote) + "_")
		}
		return sb.String()
	}

	sb.WriteString("*" + escapeMarkdown(bt.Phases[s.CyclePhaseIndex]) + "*  ")
	sb.WriteString(strconv.Itoa(s.CycleSecondsRemaining) + "\n\n")
	remaining := fmt.Sprintf("%s: %s", bt.TotalRemaining, formatClock(s.TotalSecondsRemaining))
	sb.WriteString(escapeMarkdown(remaining))
	return sb.String()
}

func formatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func formatStats(b *content.Bundle, sessions, completed int, average float64) string {
	return fmt.Sprintf(b.Bot.Stats, sessions, completed, strconv.FormatFloat(average, 'f', 1, 64))
}

func parseLanguage(s string) models.Language {
	return models.Language(strings.ToLower(strings.TrimSpace(s)))
}

// escapeMarkdown escapes special characters for MarkdownV2
func escapeMarkdown(text string) string {
	specialChars := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	escaped := text
	for _, char := range specialChars {
		escaped = strings.ReplaceAll(escaped, char, "\\"+char)
	}
	return escaped
}
