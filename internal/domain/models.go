package domain

// Question is a quiz question and its correct answer. Immutable once created.
type Question struct {
	QuizID        string `json:"quiz_id"`
	QuestionID    string `json:"question_id"`
	Text          string `json:"question_text"`
	CorrectAnswer string `json:"correct_answer"`
}

// CreateResult reports whether a create call wrote a new question.
type CreateResult int

const (
	Created CreateResult = iota + 1
	AlreadyExists
)

func (r CreateResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// OpenedWindow is returned when a user starts a question.
type OpenedWindow struct {
	Question  Question `json:"question"`
	StartTime int64    `json:"start_time"`
}

// AnswerSubmission models a single answer sent by a user. At is the submission time
// in unix seconds.
type AnswerSubmission struct {
	UserID     string
	QuizID     string
	QuestionID string
	Answer     string
	At         int64
}

// AnswerReceipt summarizes an accepted submission.
type AnswerReceipt struct {
	ElapsedSeconds int64 `json:"response_time"`
	Correct        bool  `json:"correct"`
}

// LeaderboardEntry is one (user, score) pair of a ranking structure.
type LeaderboardEntry struct {
	UserID string  `json:"user_id"`
	Score  float64 `json:"score"`
}

// QuestionVotes is the answer -> count tally of a single question.
type QuestionVotes struct {
	QuestionID string           `json:"question_id"`
	Votes      map[string]int64 `json:"votes"`
}

// Max returns the highest single answer count.
func (q QuestionVotes) Max() int64 {
	var max int64
	for _, n := range q.Votes {
		if n > max {
			max = n
		}
	}
	return max
}

// Total returns the sum of all answer counts.
func (q QuestionVotes) Total() int64 {
	var total int64
	for _, n := range q.Votes {
		total += n
	}
	return total
}

// RankingSnapshot is a non-transactional read of every ranking structure of a quiz.
// Leaderboards are in ascending score order.
type RankingSnapshot struct {
	QuizID                 string                      `json:"quiz_id"`
	VotesByQuestion        map[string]map[string]int64 `json:"votes_by_question"`
	MeanResponseTime       float64                     `json:"mean_response_time"`
	Fastest                []LeaderboardEntry          `json:"fastest_leaderboard"`
	Correct                []LeaderboardEntry          `json:"correct_leaderboard"`
	CorrectFastest         []LeaderboardEntry          `json:"correct_fastest_leaderboard"`
	MostCorrectQuestions   []QuestionVotes             `json:"most_correct_questions"`
	MostAbstainedQuestions []QuestionVotes             `json:"most_abstained_questions"`
}
