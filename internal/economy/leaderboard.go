package economy

import (
	"context"
	"fmt"

	"github.com/tiker-app/tiker/internal/models"
)

// LeaderboardRow is one public leaderboard entry.
type LeaderboardRow struct {
	AccountID         uint64             `json:"account_id"`
	Username          string             `json:"username"`
	Tier              models.AccountTier `json:"tier"`
	TokenBalance      int64              `json:"token_balance"`
	ValidatedPatterns int64              `json:"validated_patterns"`
}

// Leaderboard returns the top accounts by token balance with their validated
// pattern counts. Disabled accounts are excluded.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []LeaderboardRow
	errList := s.db.WithContext(ctx).Raw(`
		SELECT a.id AS account_id,
		       a.username AS username,
		       a.tier AS tier,
		       a.token_balance AS token_balance,
		       COALESCE(p.validated, 0) AS validated_patterns
		FROM accounts a
		LEFT JOIN (
			SELECT author_account_id, COUNT(*) AS validated
			FROM patterns
			WHERE status = ?
			GROUP BY author_account_id
		) p ON p.author_account_id = a.id
		WHERE a.disabled = ?
		ORDER BY a.token_balance DESC, a.id ASC
		LIMIT ?`, models.PatternStatusValidated, false, limit).
		Scan(&rows).Error
	if errList != nil {
		return nil, fmt.Errorf("economy: leaderboard: %w", errList)
	}
	return rows, nil
}
