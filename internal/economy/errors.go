package economy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tiker-app/tiker/internal/models"
)

// Sentinel errors for economy rule failures.
var (
	// ErrInvalidAmount rejects zero-amount ledger entries.
	ErrInvalidAmount = errors.New("economy: ledger amount must be non-zero")
	// ErrDuplicateSlug rejects a submission whose slug already exists.
	ErrDuplicateSlug = errors.New("economy: pattern slug already exists")
	// ErrSelfVouchForbidden rejects an account vouching for itself.
	ErrSelfVouchForbidden = errors.New("economy: self vouch forbidden")
	// ErrConflict marks a concurrent resolution already applied; well-behaved
	// retries treat it as an idempotent no-op.
	ErrConflict = errors.New("economy: already resolved")
	// ErrNotFound marks a missing entity.
	ErrNotFound = errors.New("economy: not found")
)

// ValidationError reports malformed input; the caller can retry with
// corrected fields.
type ValidationError struct {
	Missing []string // Names of missing required fields.
	Reason  string   // Additional context when fields are present but invalid.
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("economy: missing required fields: %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("economy: invalid input: %s", e.Reason)
}

// InsufficientTrustError reports a capability gate failure with the required
// and actual tiers, never a bare denial.
type InsufficientTrustError struct {
	Action              Action
	RequiredAgentTier   models.AgentTier   // Zero when the action has no agent requirement.
	ActualAgentTier     models.AgentTier   // Zero when no agent was involved.
	RequiredAccountTier models.AccountTier // Zero when the action has no account requirement.
	ActualAccountTier   models.AccountTier
}

// Error implements the error interface.
func (e *InsufficientTrustError) Error() string {
	return fmt.Sprintf("economy: insufficient trust for %s (agent %s < %s, account %s < %s)",
		e.Action,
		e.ActualAgentTier, e.RequiredAgentTier,
		e.ActualAccountTier, e.RequiredAccountTier,
	)
}

// InsufficientTokensError reports a debit that would overdraw the account.
type InsufficientTokensError struct {
	Required int64
	Balance  int64
}

// Error implements the error interface.
func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("economy: insufficient tokens (required %d, balance %d)", e.Required, e.Balance)
}

// RateLimitedError reports an exhausted submission quota with retry context.
type RateLimitedError struct {
	Remaining int
	ResetsAt  time.Time
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("economy: rate limited (remaining %d, resets %s)", e.Remaining, e.ResetsAt.Format(time.RFC3339))
}
