// Package pipeline turns a completed call into its ledger rows:
// recording retrieval, transcription, summarization, and the final
// summary append.
package pipeline

import (
	"strings"
	"unicode"

	"github.com/sells-group/dialer-cli/internal/model"
)

// AnswerContextPrefix opens the prose context built from a caller's
// keypad answers.
const AnswerContextPrefix = "The customer has provided the following information: "

// MapAnswer converts a keypad digit to its literal meaning. Digits
// outside the yes/no convention pass through unchanged.
func MapAnswer(digits string) string {
	switch strings.TrimSpace(digits) {
	case "1":
		return "Yes"
	case "2":
		return "No"
	default:
		return strings.TrimSpace(digits)
	}
}

// answerStatement renders one question/answer pair as a declarative
// sentence fragment, without a trailing period. Affirmative answers to
// the common question forms become natural statements; everything else
// falls back to "Question: Answer".
func answerStatement(question, answer string) string {
	q := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(question), "?"))
	a := MapAnswer(answer)
	yes := strings.EqualFold(a, "yes")

	switch {
	case yes && hasFoldPrefix(q, "Have you "):
		return "The customer has " + strings.ToLower(q[len("Have you "):])
	case yes && hasFoldPrefix(q, "Do you "):
		return "The customer does " + strings.ToLower(q[len("Do you "):])
	case yes && hasFoldPrefix(q, "Would you like "):
		rest := strings.ToLower(q[len("Would you like "):])
		rest = strings.TrimPrefix(rest, "to ")
		return "The customer would like to " + rest
	default:
		return capitalize(q) + ": " + a
	}
}

// BuildAnswerContext joins a caller's responses into the prose context
// fed to the summarization model. An empty response set yields "".
func BuildAnswerContext(responses []model.ResponseRecord) string {
	if len(responses) == 0 {
		return ""
	}

	statements := make([]string, 0, len(responses))
	for _, r := range responses {
		statements = append(statements, answerStatement(r.Question, r.Answer))
	}
	return AnswerContextPrefix + strings.Join(statements, ". ") + "."
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

func capitalize(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
