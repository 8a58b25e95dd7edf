package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/moodlift-bot/internal/breathing"
	"github.com/xaenox/moodlift-bot/internal/content"
	"github.com/xaenox/moodlift-bot/internal/models"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data    string
		want    callback
		wantErr bool
	}{
		{data: "rate:1", want: callback{Action: actionRate, Value: "1"}},
		{data: "rate:5", want: callback{Action: actionRate, Value: "5"}},
		{data: "rate:0", wantErr: true},
		{data: "rate:six", wantErr: true},
		{data: "breathe:yes", want: callback{Action: actionBreathe, Value: "yes"}},
		{data: "breathe:maybe", wantErr: true},
		{data: "timer:toggle", want: callback{Action: actionTimer, Value: timerToggle}},
		{data: "timer:explode", wantErr: true},
		{data: "lang:hi", want: callback{Action: actionLang, Value: "hi"}},
		{data: "lang:", wantErr: true},
		{data: "nonsense", wantErr: true},
		{data: "note:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := parseCallback(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.data, got.String())
		})
	}
}

func TestEscapeMarkdown(t *testing.T) {
	assert.Equal(t, `\(60 seconds\)`, escapeMarkdown("(60 seconds)"))
	assert.Equal(t, `Great job\! 🎉`, escapeMarkdown("Great job! 🎉"))
	assert.Equal(t, `a\\b\_c`, escapeMarkdown(`a\b_c`))
}

func TestRenderBreathing(t *testing.T) {
	table, err := content.Load()
	require.NoError(t, err)
	en := table.MustBundle(models.English)

	running := breathing.Snapshot{
		Language:              models.English,
		Open:                  true,
		Running:               true,
		TotalSecondsRemaining: 53,
		CyclePhaseIndex:       1,
		CycleSecondsRemaining: 3,
	}
	text := renderBreathing(en, running)
	assert.Contains(t, text, `*Box Breathing* \(60 seconds\)`)
	assert.Contains(t, text, "*Hold*  3")
	assert.Contains(t, text, "Total time remaining: 0:53")

	kb := timerKeyboard(en, running)
	require.Len(t, kb.InlineKeyboard, 2)
	assert.Equal(t, en.Breathing.Pause, kb.InlineKeyboard[0][0].Text)
	assert.Equal(t, "timer:reset", *kb.InlineKeyboard[0][1].CallbackData)
	assert.Equal(t, "timer:close", *kb.InlineKeyboard[1][0].CallbackData)

	finished := breathing.Snapshot{
		Language: models.English,
		Open:     true,
		Finished: true,
		Quote:    "Progress, not perfection.",
	}
	text = renderBreathing(en, finished)
	assert.Contains(t, text, `*Great job\! 🎉*`)
	assert.Contains(t, text, `_Progress, not perfection\._`)

	kb = timerKeyboard(en, finished)
	require.Len(t, kb.InlineKeyboard, 1)
	assert.Equal(t, en.Breathing.Continue, kb.InlineKeyboard[0][0].Text)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "1:00", formatClock(60))
	assert.Equal(t, "0:09", formatClock(9))
	assert.Equal(t, "0:00", formatClock(0))
}

func TestRatingKeyboardHindi(t *testing.T) {
	table, err := content.Load()
	require.NoError(t, err)
	hi := table.MustBundle(models.Hindi)

	kb := ratingKeyboard(hi)
	require.Len(t, kb.InlineKeyboard, 5)
	assert.Contains(t, kb.InlineKeyboard[2][0].Text, hi.RatingLabels[2])
	assert.Equal(t, "rate:3", *kb.InlineKeyboard[2][0].CallbackData)
}
