package content

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xaenox/moodlift-bot/internal/models"
	"github.com/xaenox/moodlift-bot/internal/mood"
)

func TestLoadEmbedded(t *testing.T) {
	tbl, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []models.Language{models.English, models.Hindi}, tbl.Languages())
	assert.Equal(t, models.English, tbl.Default())

	en, err := tbl.Bundle(models.English)
	require.NoError(t, err)
	assert.Len(t, en.Questions, mood.QuestionCount)
	assert.Equal(t, "I feel energetic and motivated", en.Questions[0])
	assert.Equal(t, "en-US", en.SpeechTag)

	hi, err := tbl.Bundle(models.Hindi)
	require.NoError(t, err)
	assert.Equal(t, "hi-IN", hi.SpeechTag)
	assert.Equal(t, "पूरी तरह सहमत", hi.RatingLabels[4])

	_, err = tbl.Bundle("fr")
	require.ErrorIs(t, err, ErrUnknownLanguage)
	assert.Same(t, en, tbl.MustBundle("fr"))
}

func TestRatingText(t *testing.T) {
	tbl, err := Load()
	require.NoError(t, err)

	en := tbl.MustBundle(models.English)
	assert.Equal(t, "Strongly Disagree (1/5)", en.RatingText(1))
	assert.Equal(t, "Agree (4/5)", en.RatingText(4))
}

func TestCompletion(t *testing.T) {
	tbl, err := Load()
	require.NoError(t, err)
	en := tbl.MustBundle(models.English)

	analysis, err := mood.Score([]int{3, 3, 3, 3, 3}, en)
	require.NoError(t, err)

	text := en.Completion(analysis)
	assert.Contains(t, text, "6.0/10 - Good")
	assert.Contains(t, text, "You're managing well")
	assert.Contains(t, text, en.TalkInvitation)
	assert.Contains(t, text, en.BreathingInvitation)
}

func TestMatchChoice(t *testing.T) {
	tbl, err := Load()
	require.NoError(t, err)

	tests := []struct {
		lang    models.Language
		text    string
		wantYes bool
		wantOK  bool
	}{
		{models.English, "Yes", true, true},
		{models.English, " yes! ", true, true},
		{models.English, "no.", false, true},
		{models.English, "maybe", false, false},
		{models.Hindi, "हां", true, true},
		{models.Hindi, "नहीं।", false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang)+"/"+tt.text, func(t *testing.T) {
			yes, ok := tbl.MustBundle(tt.lang).MatchChoice(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantYes, yes)
		})
	}
}

func TestMentionsCrisis(t *testing.T) {
	tbl, err := Load()
	require.NoError(t, err)
	en := tbl.MustBundle(models.English)

	assert.True(t, en.MentionsCrisis("Sometimes I want to die"))
	assert.False(t, en.MentionsCrisis("I had a long day at work"))
}

func TestLoadFSRejectsMismatchedKeys(t *testing.T) {
	en, err := os.ReadFile("locales/en.yaml")
	require.NoError(t, err)

	fsys := fstest.MapFS{
		"en.yaml": {Data: en},
		"xx.yaml": {Data: append(append([]byte{}, en...), []byte("\nextra_key: surprise\n")...)},
	}

	_, err = LoadFS(fsys)
	require.ErrorIs(t, err, ErrInvalidLocale)
	assert.Contains(t, err.Error(), "extra_key")
}

func TestLoadFSRejectsShortQuestionList(t *testing.T) {
	fsys := fstest.MapFS{
		"en.yaml": {Data: []byte("greeting: hi\nquestions: [one, two]\n")},
	}

	_, err := LoadFS(fsys)
	require.ErrorIs(t, err, ErrInvalidLocale)
}
