package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dialer-cli/internal/model"
)

func TestMapAnswer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "Yes"},
		{"2", "No"},
		{" 1 ", "Yes"},
		{"3", "3"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MapAnswer(tt.in), "input %q", tt.in)
	}
}

func TestAnswerStatement(t *testing.T) {
	tests := []struct {
		name     string
		question string
		answer   string
		want     string
	}{
		{
			name:     "have you affirmative",
			question: "Have you visited a dentist in the last 6 months?",
			answer:   "1",
			want:     "The customer has visited a dentist in the last 6 months",
		},
		{
			name:     "do you affirmative",
			question: "Do you currently have dental insurance?",
			answer:   "1",
			want:     "The customer does currently have dental insurance",
		},
		{
			name:     "would you like affirmative",
			question: "Would you like to be connected with a dental care specialist now?",
			answer:   "1",
			want:     "The customer would like to be connected with a dental care specialist now",
		},
		{
			name:     "negative falls back to pair form",
			question: "Do you currently have dental insurance?",
			answer:   "2",
			want:     "Do you currently have dental insurance: No",
		},
		{
			name:     "unrecognized question form",
			question: "press any digit to continue",
			answer:   "5",
			want:     "Press any digit to continue: 5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, answerStatement(tt.question, tt.answer))
		})
	}
}

func TestBuildAnswerContext(t *testing.T) {
	responses := []model.ResponseRecord{
		{Question: "Have you visited a dentist in the last 6 months?", Answer: "1"},
		{Question: "Do you currently have dental insurance?", Answer: "2"},
	}

	got := BuildAnswerContext(responses)

	assert.Equal(t,
		"The customer has provided the following information: "+
			"The customer has visited a dentist in the last 6 months. "+
			"Do you currently have dental insurance: No.",
		got)
}

func TestBuildAnswerContextEmpty(t *testing.T) {
	assert.Empty(t, BuildAnswerContext(nil))
}
