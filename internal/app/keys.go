package app

import (
	"fmt"
	"strings"
)

const (
	fieldQuestionText  = "question_text"
	fieldCorrectAnswer = "correct_answer"

	boardCorrect        = "correct"
	boardFastest        = "fastest"
	boardCorrectFastest = "correct_fastest"
)

func questionKey(quizID, questionID string) string {
	return fmt.Sprintf("quiz:%s:question:%s", quizID, questionID)
}

func windowKey(userID, quizID, questionID string) string {
	return fmt.Sprintf("user:%s:quiz:%s:question_time:%s", userID, quizID, questionID)
}

func answeredKey(userID, quizID string) string {
	return fmt.Sprintf("user:%s:quiz:%s:answered", userID, quizID)
}

func votesKey(quizID, questionID string) string {
	return fmt.Sprintf("quiz:%s:votes:%s", quizID, questionID)
}

func votesPattern(quizID string) string {
	return fmt.Sprintf("quiz:%s:votes:*", escapeGlob(quizID))
}

func responseTimeKey(quizID, questionID, userID string) string {
	return fmt.Sprintf("quiz:%s:response_time:%s:%s", quizID, questionID, userID)
}

func responseTimePattern(quizID string) string {
	return fmt.Sprintf("quiz:%s:response_time:*", escapeGlob(quizID))
}

func rankingKey(quizID, board string) string {
	return fmt.Sprintf("quiz:%s:rankings:%s", quizID, board)
}

// lastSegment returns the part of key after its final ':'.
func lastSegment(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// escapeGlob makes s match itself literally inside a key pattern.
func escapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]{}\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
