package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestQuestionOptions(t *testing.T) {
	var q Question
	require.NoError(t, q.SetOptions([]string{"Paris", "London", "Berlin"}))
	assert.Equal(t, []string{"Paris", "London", "Berlin"}, q.OptionList())

	require.NoError(t, q.SetOptions([]string{}))
	assert.Empty(t, q.OptionList())
}

func TestQuestionOptionListMalformed(t *testing.T) {
	q := Question{Options: datatypes.JSON(`not json`)}
	assert.Equal(t, []string{}, q.OptionList())

	q.Options = datatypes.JSON(`{"an":"object"}`)
	assert.Equal(t, []string{}, q.OptionList())
}

func TestScoreAnswerMap(t *testing.T) {
	var s Score
	require.NoError(t, s.SetAnswers(map[string]any{"1": "0", "2": true}))

	answers := s.AnswerMap()
	assert.Equal(t, "0", answers["1"])
	assert.Equal(t, true, answers["2"])

	s.Answers = datatypes.JSON(`garbage`)
	assert.Empty(t, s.AnswerMap())
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Computer Science", "computer-science"},
		{"  Trims  Spaces  ", "trims-spaces"},
		{"C++ & Go!", "c-go"},
		{"Already-Slugged", "already-slugged"},
		{"123 Numbers", "123-numbers"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in))
	}
}
