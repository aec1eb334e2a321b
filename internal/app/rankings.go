package app

import (
	"context"
	"sort"
	"strconv"

	"quiz-engine/internal/domain"
)

// RankingAggregator assembles the ranking structures of a quiz into a snapshot.
// It never writes and takes no locks, so a snapshot may mix before/after states of
// submissions that commit while it runs.
type RankingAggregator struct {
	store Store
}

func NewRankingAggregator(store Store) *RankingAggregator {
	return &RankingAggregator{store: store}
}

// Report builds the ranking snapshot of a quiz.
func (a *RankingAggregator) Report(ctx context.Context, quizID string) (domain.RankingSnapshot, error) {
	votes, err := a.votes(ctx, quizID)
	if err != nil {
		return domain.RankingSnapshot{}, err
	}
	mean, err := a.meanResponseTime(ctx, quizID)
	if err != nil {
		return domain.RankingSnapshot{}, err
	}

	snapshot := domain.RankingSnapshot{
		QuizID:           quizID,
		VotesByQuestion:  make(map[string]map[string]int64, len(votes)),
		MeanResponseTime: mean,
	}
	for _, v := range votes {
		snapshot.VotesByQuestion[v.QuestionID] = v.Votes
	}

	if snapshot.Fastest, err = a.leaderboard(ctx, quizID, boardFastest); err != nil {
		return domain.RankingSnapshot{}, err
	}
	if snapshot.Correct, err = a.leaderboard(ctx, quizID, boardCorrect); err != nil {
		return domain.RankingSnapshot{}, err
	}
	if snapshot.CorrectFastest, err = a.leaderboard(ctx, quizID, boardCorrectFastest); err != nil {
		return domain.RankingSnapshot{}, err
	}

	snapshot.MostCorrectQuestions = sortQuestions(votes, func(a, b domain.QuestionVotes) bool {
		return a.Max() > b.Max()
	})
	snapshot.MostAbstainedQuestions = sortQuestions(votes, func(a, b domain.QuestionVotes) bool {
		return a.Total() < b.Total()
	})
	return snapshot, nil
}

func (a *RankingAggregator) votes(ctx context.Context, quizID string) ([]domain.QuestionVotes, error) {
	keys, err := a.store.ListKeys(ctx, votesPattern(quizID))
	if err != nil {
		return nil, storeErr("list vote tallies", err)
	}

	out := make([]domain.QuestionVotes, 0, len(keys))
	for _, key := range keys {
		fields, err := a.store.GetFields(ctx, key)
		if err != nil {
			return nil, storeErr("read vote tally", err)
		}
		if len(fields) == 0 {
			continue
		}
		tally := make(map[string]int64, len(fields))
		for answer, raw := range fields {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			tally[answer] = n
		}
		out = append(out, domain.QuestionVotes{QuestionID: lastSegment(key), Votes: tally})
	}
	return out, nil
}

// meanResponseTime averages every response time sample of the quiz across all
// questions. Zero samples yield 0.
func (a *RankingAggregator) meanResponseTime(ctx context.Context, quizID string) (float64, error) {
	keys, err := a.store.ListKeys(ctx, responseTimePattern(quizID))
	if err != nil {
		return 0, storeErr("list response times", err)
	}

	var sum, count int64
	for _, key := range keys {
		raw, ok, err := a.store.Get(ctx, key)
		if err != nil {
			return 0, storeErr("read response time", err)
		}
		if !ok {
			// expired between scan and read
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		sum += v
		count++
	}
	if count < 1 {
		count = 1
	}
	return float64(sum) / float64(count), nil
}

func (a *RankingAggregator) leaderboard(ctx context.Context, quizID, board string) ([]domain.LeaderboardEntry, error) {
	members, err := a.store.SortedSetRangeWithScores(ctx, rankingKey(quizID, board), 0, -1)
	if err != nil {
		return nil, storeErr("read "+board+" leaderboard", err)
	}
	entries := make([]domain.LeaderboardEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, domain.LeaderboardEntry{UserID: m.Member, Score: m.Score})
	}
	return entries, nil
}

// sortQuestions returns a sorted copy; ties are broken by question id.
func sortQuestions(votes []domain.QuestionVotes, less func(a, b domain.QuestionVotes) bool) []domain.QuestionVotes {
	out := make([]domain.QuestionVotes, len(votes))
	copy(out, votes)
	sort.SliceStable(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}
