package app

import (
	"sort"
	"strings"

	"trivia-service/internal/domain"
)

// DefaultLeaderboardLimit caps how many ranked entries a leaderboard shows.
const DefaultLeaderboardLimit = 50

const (
	viewerLabel      = "You"
	unknownUserLabel = "Unknown User"
)

// DisplayNameResolver maps a user id to its display name (usually an email address).
type DisplayNameResolver func(userID string) (string, bool)

// BuildLeaderboard reduces the full result history to each user's best result, ranks the users
// and labels them for viewerID. It is pure: the input slice is not modified.
func BuildLeaderboard(results []domain.Result, viewerID string, resolve DisplayNameResolver, limit int) domain.Leaderboard {
	return assembleLeaderboard(len(results), countPlayers(results), RankBest(results, limit), viewerID, resolve)
}

// RankBest keeps the first result per user after ordering by (score desc, played_at desc) and
// returns the survivors in the same order, truncated to limit.
func RankBest(results []domain.Result, limit int) []domain.Result {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}

	ordered := make([]domain.Result, len(results))
	copy(ordered, results)
	sortResults(ordered)

	seen := make(map[string]struct{}, len(ordered))
	best := make([]domain.Result, 0, len(ordered))
	for _, r := range ordered {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		best = append(best, r)
	}

	sortResults(best)
	if len(best) > limit {
		best = best[:limit]
	}
	return best
}

// sortResults orders by score desc, then most recent first. Result id breaks exact ties so the
// outcome does not depend on fetch order.
func sortResults(results []domain.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.PlayedAt.Equal(b.PlayedAt) {
			return a.PlayedAt.After(b.PlayedAt)
		}
		return a.ID < b.ID
	})
}

func assembleLeaderboard(total, players int, ranked []domain.Result, viewerID string, resolve DisplayNameResolver) domain.Leaderboard {
	lb := domain.Leaderboard{
		Entries:      make([]domain.LeaderboardEntry, 0, len(ranked)),
		TotalResults: total,
		Players:      players,
	}
	for i, r := range ranked {
		rank := i + 1
		isViewer := viewerID != "" && r.UserID == viewerID
		lb.Entries = append(lb.Entries, domain.LeaderboardEntry{
			Rank:           rank,
			ResultID:       r.ID,
			UserID:         r.UserID,
			DisplayName:    displayLabel(r.UserID, isViewer, resolve),
			IsViewer:       isViewer,
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			CorrectAnswers: r.CorrectAnswers,
			WrongAnswers:   r.WrongAnswers,
			PlayedAt:       r.PlayedAt,
		})
		if isViewer {
			lb.UserRank = &rank
		}
	}
	return lb
}

func displayLabel(userID string, isViewer bool, resolve DisplayNameResolver) string {
	if isViewer {
		return viewerLabel
	}
	if resolve == nil {
		return unknownUserLabel
	}
	name, ok := resolve(userID)
	if !ok {
		return unknownUserLabel
	}
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	if strings.TrimSpace(name) == "" {
		return unknownUserLabel
	}
	return name
}

func countPlayers(results []domain.Result) int {
	users := make(map[string]struct{})
	for _, r := range results {
		users[r.UserID] = struct{}{}
	}
	return len(users)
}

// rankedUserIDs lists the user ids of ranked results in order.
func rankedUserIDs(ranked []domain.Result) []string {
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.UserID
	}
	return ids
}

// ComputeStats summarises the results belonging to userID. Historic records without
// correct/wrong counts contribute zero to those totals.
func ComputeStats(results []domain.Result, userID string) domain.UserStats {
	stats := domain.UserStats{UserID: userID}
	sum := 0
	for _, r := range results {
		if r.UserID != userID {
			continue
		}
		if stats.GamesPlayed == 0 || r.Score > stats.BestScore {
			stats.BestScore = r.Score
		}
		stats.GamesPlayed++
		sum += r.Score
		stats.TotalCorrect += r.CorrectAnswers
		stats.TotalWrong += r.WrongAnswers
	}
	stats.TotalAnswered = stats.TotalCorrect + stats.TotalWrong
	if stats.GamesPlayed > 0 {
		stats.AverageScore = float64(sum) / float64(stats.GamesPlayed)
	}
	return stats
}
