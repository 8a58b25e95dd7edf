// Package content holds the localized strings of every conversation the
// bot can run. Locales live in embedded YAML files, one per language, and
// must all define the same keys.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/mood"
)

//go:embed locales/*.yaml
var locales embed.FS

var (
	ErrUnknownLanguage = errors.New("unknown language")
	ErrInvalidLocale   = errors.New("invalid locale")
)

// CategoryText is the localized name and insight of a mood category.
type CategoryText struct {
	Label   string `yaml:"label"`
	Insight string `yaml:"insight"`
}

// BreathingText holds the strings of the breathing exercise card.
type BreathingText struct {
	Title          string   `yaml:"title"`
	Subtitle       string   `yaml:"subtitle"`
	Phases         []string `yaml:"phases"`
	TotalRemaining string   `yaml:"total_remaining"`
	Start          string   `yaml:"start"`
	Pause          string   `yaml:"pause"`
	Reset          string   `yaml:"reset"`
	Close          string   `yaml:"close"`
	GreatJob       string   `yaml:"great_job"`
	Continue       string   `yaml:"continue"`
	Quotes         []string `yaml:"quotes"`
}

// BotText holds the strings of the chat commands.
type BotText struct {
	Help             string `yaml:"help"`
	ChooseLanguage   string `yaml:"choose_language"`
	TTSOn            string `yaml:"tts_on"`
	TTSOff           string `yaml:"tts_off"`
	TTSUnavailable   string `yaml:"tts_unavailable"`
	VoiceUnavailable string `yaml:"voice_unavailable"`
	Heard            string `yaml:"heard"`
	NotNow           string `yaml:"not_now"`
	Stats            string `yaml:"stats"`
	Unknown          string `yaml:"unknown"`
}

// Bundle is every user-facing string for one language.
type Bundle struct {
	Language models.Language `yaml:"-"`

	Name       string `yaml:"name"`
	NativeName string `yaml:"native_name"`
	SpeechTag  string `yaml:"speech_tag"`
	Title      string `yaml:"title"`
	Disclaimer string `yaml:"disclaimer"`

	Greeting     string                  `yaml:"greeting"`
	Questions    []string                `yaml:"questions"`
	RatingLabels []string                `yaml:"rating_labels"`
	RatingHint   string                  `yaml:"rating_hint"`
	Categories   map[string]CategoryText `yaml:"categories"`

	MoodSummary         string `yaml:"mood_summary"`
	TalkInvitation      string `yaml:"talk_invitation"`
	BreathingInvitation string `yaml:"breathing_invitation"`

	YesLabel    string   `yaml:"yes_label"`
	NoLabel     string   `yaml:"no_label"`
	YesReply    string   `yaml:"yes_reply"`
	NoReply     string   `yaml:"no_reply"`
	YesWords    []string `yaml:"yes_words"`
	NoWords     []string `yaml:"no_words"`
	Reassurance string   `yaml:"reassurance"`

	Replies           []string `yaml:"replies"`
	ReplyInstructions string   `yaml:"reply_instructions"`

	Thinking            string   `yaml:"thinking"`
	Placeholder         string   `yaml:"placeholder"`
	GratitudePrompt     string   `yaml:"gratitude_prompt"`
	SafetyNotice        string   `yaml:"safety_notice"`
	CrisisKeywords      []string `yaml:"crisis_keywords"`
	RecordingError      string   `yaml:"recording_error"`
	TranscriptionFailed string   `yaml:"transcription_failed"`
	ReplyFailed         string   `yaml:"reply_failed"`
	Busy                string   `yaml:"busy"`

	Breathing BreathingText `yaml:"breathing"`
	Bot       BotText       `yaml:"bot"`
}

// CategoryLabel implements mood.Labels.
func (b *Bundle) CategoryLabel(c mood.Category) string {
	return b.Categories[c.Key()].Label
}

// Insight implements mood.Labels.
func (b *Bundle) Insight(c mood.Category) string {
	return b.Categories[c.Key()].Insight
}

// RatingText renders a rating the way the user's answer is echoed, for
// example "Agree (4/5)". The caller must pass a rating in range.
func (b *Bundle) RatingText(rating int) string {
	return fmt.Sprintf("%s (%d/%d)", b.RatingLabels[rating-1], rating, mood.MaxAnswer)
}

// Completion composes the single message sent once the assessment ends.
func (b *Bundle) Completion(a mood.Analysis) string {
	summary := fmt.Sprintf(b.MoodSummary, strconv.FormatFloat(a.Rating, 'f', 1, 64), a.Label)
	parts := []string{summary}
	parts = append(parts, a.Insights...)
	parts = append(parts, b.TalkInvitation, b.BreathingInvitation)
	return strings.Join(parts, "\n\n")
}

// MatchChoice reports whether text is a localized yes or no. ok is false
// when the text is neither.
func (b *Bundle) MatchChoice(text string) (yes bool, ok bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimRight(normalized, ".!?। ")
	for _, w := range b.YesWords {
		if normalized == strings.ToLower(w) {
			return true, true
		}
	}
	for _, w := range b.NoWords {
		if normalized == strings.ToLower(w) {
			return false, true
		}
	}
	return false, false
}

// MentionsCrisis reports whether text contains one of the crisis keywords.
func (b *Bundle) MentionsCrisis(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range b.CrisisKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Table maps languages to their bundles.
type Table struct {
	bundles  map[models.Language]*Bundle
	order    []models.Language
	fallback models.Language
}

// Load reads the embedded locales.
func Load() (*Table, error) {
	sub, err := fs.Sub(locales, "locales")
	if err != nil {
		return nil, err
	}
	return LoadFS(sub)
}

// LoadFS reads every *.yaml file at the root of fsys. The file name without
// extension is the language code.
func LoadFS(fsys fs.FS) (*Table, error) {
	names, err := fs.Glob(fsys, "*.yaml")
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no locale files", ErrInvalidLocale)
	}
	sort.Strings(names)

	t := &Table{bundles: make(map[models.Language]*Bundle, len(names))}

	var (
		refKeys []string
		refLang models.Language
	)
	for _, name := range names {
		lang := models.Language(strings.TrimSuffix(path.Base(name), ".yaml"))
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read locale %s: %w", name, err)
		}

		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse locale %s: %w", name, err)
		}
		keys := flattenKeys("", tree)
		if refKeys == nil {
			refKeys, refLang = keys, lang
		} else if err := compareKeys(refLang, refKeys, lang, keys); err != nil {
			return nil, err
		}

		b := &Bundle{}
		if err := yaml.Unmarshal(raw, b); err != nil {
			return nil, fmt.Errorf("decode locale %s: %w", name, err)
		}
		b.Language = lang
		if err := b.validate(); err != nil {
			return nil, err
		}

		t.bundles[lang] = b
		t.order = append(t.order, lang)
	}

	t.fallback = t.order[0]
	if _, ok := t.bundles[models.English]; ok {
		t.fallback = models.English
	}
	return t, nil
}

// Bundle returns the bundle for lang.
func (t *Table) Bundle(lang models.Language) (*Bundle, error) {
	b, ok := t.bundles[lang]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	return b, nil
}

// MustBundle returns the bundle for lang, or the default bundle when lang is
// unknown.
func (t *Table) MustBundle(lang models.Language) *Bundle {
	if b, ok := t.bundles[lang]; ok {
		return b
	}
	return t.bundles[t.fallback]
}

// Supports reports whether lang has a bundle.
func (t *Table) Supports(lang models.Language) bool {
	_, ok := t.bundles[lang]
	return ok
}

// Languages returns the supported languages in a stable order.
func (t *Table) Languages() []models.Language {
	out := make([]models.Language, len(t.order))
	copy(out, t.order)
	return out
}

// Default is the language used when none has been chosen.
func (t *Table) Default() models.Language {
	return t.fallback
}

func (b *Bundle) validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s: %s", ErrInvalidLocale, b.Language, fmt.Sprintf(format, args...))
	}

	if len(b.Questions) != mood.QuestionCount {
		return fail("want %d questions, got %d", mood.QuestionCount, len(b.Questions))
	}
	if len(b.RatingLabels) != mood.MaxAnswer {
		return fail("want %d rating labels, got %d", mood.MaxAnswer, len(b.RatingLabels))
	}
	for _, c := range mood.Categories {
		text, ok := b.Categories[c.Key()]
		if !ok || text.Label == "" || text.Insight == "" {
			return fail("category %q is incomplete", c.Key())
		}
	}
	if len(b.Breathing.Phases) != 4 {
		return fail("want 4 breathing phases, got %d", len(b.Breathing.Phases))
	}
	if len(b.Replies) == 0 {
		return fail("reply pool is empty")
	}
	if len(b.Breathing.Quotes) == 0 {
		return fail("quote pool is empty")
	}
	if strings.Count(b.MoodSummary, "%s") != 2 {
		return fail("mood_summary needs two %%s verbs")
	}
	if strings.Count(b.Bot.Stats, "%") != 3 || strings.Count(b.Bot.Heard, "%s") != 1 {
		return fail("bot.stats needs three verbs and bot.heard one")
	}
	if b.Greeting == "" || b.Reassurance == "" || b.YesReply == "" || b.NoReply == "" {
		return fail("conversation strings are missing")
	}
	return nil
}

func flattenKeys(prefix string, tree map[string]any) []string {
	var keys []string
	for k, v := range tree {
		full := k
		if prefix != "" {
			full = prefix + "." + k
		}
		keys = append(keys, full)
		if child, ok := v.(map[string]any); ok {
			keys = append(keys, flattenKeys(full, child)...)
		}
	}
	sort.Strings(keys)
	return keys
}

func compareKeys(refLang models.Language, ref []string, lang models.Language, keys []string) error {
	refSet := make(map[string]struct{}, len(ref))
	for _, k := range ref {
		refSet[k] = struct{}{}
	}
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}

	var missing, extra []string
	for _, k := range ref {
		if _, ok := keySet[k]; !ok {
			missing = append(missing, k)
		}
	}
	for _, k := range keys {
		if _, ok := refSet[k]; !ok {
			extra = append(extra, k)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s keys differ from %s (missing %v, extra %v)",
		ErrInvalidLocale, lang, refLang, missing, extra)
}
