package economy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	internaldb "github.com/tiker-app/tiker/internal/db"
	"github.com/tiker-app/tiker/internal/models"
	"gorm.io/gorm"
)

// Import milestone payouts. Each fires at most once per pattern.
const (
	milestone100Count  = 100
	milestone100Reward = 50

	milestone1000Count  = 1000
	milestone1000Reward = 200
)

const maxSlugLen = 200

// Slugify derives a URL-safe slug from a title: lowercase, runs of
// non-alphanumerics collapse to a single hyphen, trimmed, capped at 200
// characters.
func Slugify(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	pendingHyphen := false
	for _, r := range strings.ToLower(title) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			pendingHyphen = b.Len() > 0
			continue
		}
		if pendingHyphen {
			b.WriteByte('-')
			pendingHyphen = false
		}
		b.WriteRune(r)
	}
	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	return slug
}

// SubmitInput carries a pattern submission.
type SubmitInput struct {
	Title          string
	Category       models.PatternCategory
	Problem        string
	Solution       string
	Implementation string

	Account *models.Account
	Agent   *models.Agent // Nil for web submissions.

	// ViaAPIKey marks agent submissions, which pay the token fee. Web
	// submissions spend only the daily quota.
	ViaAPIKey bool
}

// Submit runs the full submission pipeline: field validation, capability
// check, daily quota reservation, then a transaction covering slug
// uniqueness, the token fee, and pattern creation. The quota reservation is
// committed only after the transaction succeeds and released on any failure,
// so a rejected submission never burns a daily slot.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Pattern, error) {
	if errValidate := validateSubmit(in); errValidate != nil {
		return nil, errValidate
	}
	if errCan := Can(in.Account, in.Agent, ActionSubmitPattern); errCan != nil {
		return nil, errCan
	}

	reservation, errReserve := s.quota.CheckAndReserve(ctx, in.Account.ID)
	if errReserve != nil {
		return nil, errReserve
	}
	if !reservation.Allowed {
		return nil, &RateLimitedError{Remaining: reservation.Remaining, ResetsAt: reservation.ResetsAt}
	}

	genesis, errGenesis := s.IsGenesisMode(ctx)
	if errGenesis != nil {
		s.releaseQuota(ctx, in.Account.ID)
		return nil, errGenesis
	}

	pol := s.policy()
	pattern := &models.Pattern{
		Slug:            Slugify(in.Title),
		Title:           in.Title,
		Category:        in.Category,
		Problem:         in.Problem,
		Solution:        in.Solution,
		Implementation:  in.Implementation,
		Status:          models.PatternStatusPending,
		AuthorAccountID: in.Account.ID,
	}
	if in.Agent != nil {
		pattern.AuthorAgentID = &in.Agent.ID
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if errCount := tx.Model(&models.Pattern{}).
			Where("slug = ?", pattern.Slug).
			Count(&existing).Error; errCount != nil {
			return fmt.Errorf("economy: check slug: %w", errCount)
		}
		if existing > 0 {
			return ErrDuplicateSlug
		}

		if in.ViaAPIKey && pol.SubmitCost > 0 {
			fee := &models.LedgerEntry{
				AccountID:   in.Account.ID,
				AgentID:     pattern.AuthorAgentID,
				Amount:      -pol.SubmitCost,
				Type:        models.EntryPatternSubmit,
				RefType:     "pattern",
				Description: fmt.Sprintf("submission fee for %q", pattern.Slug),
			}
			if errDebit := s.debitChecked(tx, fee); errDebit != nil {
				return errDebit
			}
		}

		if genesis {
			// No reviewer pool yet: validate immediately with the
			// multiplied author payout.
			now := s.now()
			pattern.Status = models.PatternStatusValidated
			pattern.ValidatedAt = &now
		}
		if errCreate := tx.Create(pattern).Error; errCreate != nil {
			if isUniqueViolation(errCreate) {
				// A rival submission with the same title won the race
				// between the slug check and the insert.
				return ErrDuplicateSlug
			}
			return fmt.Errorf("economy: create pattern: %w", errCreate)
		}

		if genesis {
			reward := pol.ValidateReward * pol.GenesisMultiplier
			errPay := s.credit(tx, &models.LedgerEntry{
				AccountID:   in.Account.ID,
				AgentID:     pattern.AuthorAgentID,
				Amount:      reward,
				Type:        models.EntryPatternValidated,
				RefType:     "pattern",
				RefID:       pattern.ID,
				Description: fmt.Sprintf("genesis validation of %q", pattern.Slug),
			})
			if errPay != nil {
				return errPay
			}
			return s.promoteGoldIfEligible(tx, in.Account.ID)
		}
		return nil
	})
	if errTx != nil {
		s.releaseQuota(ctx, in.Account.ID)
		return nil, errTx
	}

	if errCommit := s.quota.Commit(ctx, in.Account.ID); errCommit != nil {
		log.WithError(errCommit).WithField("account_id", in.Account.ID).
			Warn("submission quota commit failed")
	}
	return pattern, nil
}

func (s *Service) releaseQuota(ctx context.Context, accountID uint64) {
	if errRelease := s.quota.Release(ctx, accountID); errRelease != nil {
		log.WithError(errRelease).WithField("account_id", accountID).
			Warn("submission quota release failed")
	}
}

func validateSubmit(in SubmitInput) error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if in.Category == "" {
		missing = append(missing, "category")
	}
	if strings.TrimSpace(in.Problem) == "" {
		missing = append(missing, "problem")
	}
	if strings.TrimSpace(in.Solution) == "" {
		missing = append(missing, "solution")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	if !in.Category.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown category %q", in.Category)}
	}
	if in.Account == nil {
		return &ValidationError{Reason: "submission has no account"}
	}
	if Slugify(in.Title) == "" {
		return &ValidationError{Reason: "title yields an empty slug"}
	}
	return nil
}

// AssessmentInput carries one reviewer's five-dimension scores.
type AssessmentInput struct {
	PatternID uint64
	Reviewer  *models.Account
	Agent     *models.Agent // Nil for web reviews.

	Clarity     int
	Correctness int
	Reusability int
	Safety      int
	Depth       int
}

func (in AssessmentInput) scores() [5]int {
	return [5]int{in.Clarity, in.Correctness, in.Reusability, in.Safety, in.Depth}
}

// assessmentsToResolve is the review count that settles a pending pattern.
const assessmentsToResolve = 3

// AddAssessment records a peer review and pays the review reward. The third
// assessment resolves the pattern: mean of means at or above the approval
// threshold validates it and pays the author, below rejects it. Authors may
// not review their own patterns and each reviewer scores a pattern once.
func (s *Service) AddAssessment(ctx context.Context, in AssessmentInput) (*models.Assessment, error) {
	for _, score := range in.scores() {
		if score < 1 || score > 10 {
			return nil, &ValidationError{Reason: "scores must be between 1 and 10"}
		}
	}
	if errCan := Can(in.Reviewer, in.Agent, ActionReviewPattern); errCan != nil {
		return nil, errCan
	}

	pol := s.policy()
	sum := 0
	for _, score := range in.scores() {
		sum += score
	}
	assessment := &models.Assessment{
		PatternID:         in.PatternID,
		ReviewerAccountID: in.Reviewer.ID,
		Clarity:           in.Clarity,
		Correctness:       in.Correctness,
		Reusability:       in.Reusability,
		Safety:            in.Safety,
		Depth:             in.Depth,
		Mean:              float64(sum) / 5,
	}
	if in.Agent != nil {
		assessment.ReviewerAgentID = &in.Agent.ID
	}

	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pattern models.Pattern
		if errFind := tx.First(&pattern, in.PatternID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load pattern: %w", errFind)
		}
		if pattern.Status != models.PatternStatusPending {
			return ErrConflict
		}
		if pattern.AuthorAccountID == in.Reviewer.ID {
			return &ValidationError{Reason: "authors cannot review their own patterns"}
		}

		if errCreate := tx.Create(assessment).Error; errCreate != nil {
			if isUniqueViolation(errCreate) {
				return ErrConflict
			}
			return fmt.Errorf("economy: create assessment: %w", errCreate)
		}

		errReward := s.credit(tx, &models.LedgerEntry{
			AccountID:   in.Reviewer.ID,
			AgentID:     assessment.ReviewerAgentID,
			Amount:      pol.ReviewReward,
			Type:        models.EntryReviewReward,
			RefType:     "assessment",
			RefID:       assessment.ID,
			Description: fmt.Sprintf("review of %q", pattern.Slug),
		})
		if errReward != nil {
			return errReward
		}

		var all []models.Assessment
		if errList := tx.Where("pattern_id = ?", in.PatternID).
			Find(&all).Error; errList != nil {
			return fmt.Errorf("economy: list assessments: %w", errList)
		}
		if len(all) < assessmentsToResolve {
			return nil
		}
		return s.resolvePattern(tx, &pattern, all)
	})
	if errTx != nil {
		return nil, errTx
	}
	return assessment, nil
}

// resolvePattern settles a pending pattern from its collected assessments.
// The status update is conditional on the pattern still being pending, so a
// concurrent resolution wins exactly once.
func (s *Service) resolvePattern(tx *gorm.DB, pattern *models.Pattern, all []models.Assessment) error {
	pol := s.policy()
	total := 0.0
	for _, a := range all {
		total += a.Mean
	}
	score := total / float64(len(all))

	approved := score >= pol.ApprovalThreshold
	now := s.now()
	updates := map[string]any{
		"score":      score,
		"status":     models.PatternStatusRejected,
		"updated_at": now,
	}
	if approved {
		updates["status"] = models.PatternStatusValidated
		updates["validated_at"] = now
	}

	res := tx.Model(&models.Pattern{}).
		Where("id = ? AND status = ?", pattern.ID, models.PatternStatusPending).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("economy: resolve pattern: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	if !approved {
		return nil
	}

	errPay := s.credit(tx, &models.LedgerEntry{
		AccountID:   pattern.AuthorAccountID,
		AgentID:     pattern.AuthorAgentID,
		Amount:      pol.ValidateReward,
		Type:        models.EntryPatternValidated,
		RefType:     "pattern",
		RefID:       pattern.ID,
		Description: fmt.Sprintf("validation of %q", pattern.Slug),
	})
	if errPay != nil {
		return errPay
	}
	return s.promoteGoldIfEligible(tx, pattern.AuthorAccountID)
}

// RecordImport bumps a validated pattern's usage counter and pays the author
// milestone bonuses at 100 and 1000 imports. The milestone flags are claimed
// with conditional updates, so concurrent imports pay each bonus once.
func (s *Service) RecordImport(ctx context.Context, patternID uint64) (int64, error) {
	var count int64
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Pattern{}).
			Where("id = ? AND status = ?", patternID, models.PatternStatusValidated).
			Updates(map[string]any{
				"import_count": gorm.Expr("import_count + 1"),
				"updated_at":   s.now(),
			})
		if res.Error != nil {
			return fmt.Errorf("economy: record import: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var pattern models.Pattern
			if errFind := tx.First(&pattern, patternID).Error; errFind != nil {
				if errors.Is(errFind, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return fmt.Errorf("economy: load pattern: %w", errFind)
			}
			return ErrConflict
		}

		var pattern models.Pattern
		if errFind := tx.First(&pattern, patternID).Error; errFind != nil {
			return fmt.Errorf("economy: reload pattern: %w", errFind)
		}
		count = pattern.ImportCount

		if pattern.ImportCount >= milestone100Count && !pattern.Milestone100Paid {
			if errPay := s.payMilestone(tx, &pattern, "milestone100_paid", milestone100Count, milestone100Reward); errPay != nil {
				return errPay
			}
		}
		if pattern.ImportCount >= milestone1000Count && !pattern.Milestone1000Paid {
			if errPay := s.payMilestone(tx, &pattern, "milestone1000_paid", milestone1000Count, milestone1000Reward); errPay != nil {
				return errPay
			}
		}
		return nil
	})
	if errTx != nil {
		return 0, errTx
	}
	return count, nil
}

// payMilestone claims the named milestone flag and credits the author. The
// claim is a conditional flag flip; losing the race means another import
// already paid this milestone.
func (s *Service) payMilestone(tx *gorm.DB, pattern *models.Pattern, flagColumn string, milestone int64, reward int64) error {
	res := tx.Model(&models.Pattern{}).
		Where("id = ? AND "+flagColumn+" = ?", pattern.ID, false).
		Update(flagColumn, true)
	if res.Error != nil {
		return fmt.Errorf("economy: claim milestone: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}
	return s.credit(tx, &models.LedgerEntry{
		AccountID:   pattern.AuthorAccountID,
		AgentID:     pattern.AuthorAgentID,
		Amount:      reward,
		Type:        models.EntryImportMilestone,
		RefType:     "pattern",
		RefID:       pattern.ID,
		Description: fmt.Sprintf("%d imports of %q", milestone, pattern.Slug),
	})
}

// Deprecate retires a validated pattern and debits the author the
// deprecation penalty. The penalty applies even when it drives the balance
// negative.
func (s *Service) Deprecate(ctx context.Context, patternID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pattern models.Pattern
		if errFind := tx.First(&pattern, patternID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load pattern: %w", errFind)
		}

		res := tx.Model(&models.Pattern{}).
			Where("id = ? AND status = ?", patternID, models.PatternStatusValidated).
			Updates(map[string]any{
				"status":     models.PatternStatusDeprecated,
				"updated_at": s.now(),
			})
		if res.Error != nil {
			return fmt.Errorf("economy: deprecate pattern: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		pol := s.policy()
		return s.penalize(tx, &models.LedgerEntry{
			AccountID:   pattern.AuthorAccountID,
			AgentID:     pattern.AuthorAgentID,
			Amount:      -pol.DeprecatePenalty,
			Type:        models.EntryPatternDeprecated,
			RefType:     "pattern",
			RefID:       pattern.ID,
			Description: fmt.Sprintf("deprecation of %q", pattern.Slug),
		})
	})
}

// MarkBadAssessment penalizes a reviewer for a flagged assessment at three
// times the review reward. The penalty timestamp is claimed conditionally,
// so repeated flags charge once.
func (s *Service) MarkBadAssessment(ctx context.Context, assessmentID uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var assessment models.Assessment
		if errFind := tx.First(&assessment, assessmentID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load assessment: %w", errFind)
		}

		res := tx.Model(&models.Assessment{}).
			Where("id = ? AND penalized_at IS NULL", assessmentID).
			Update("penalized_at", s.now())
		if res.Error != nil {
			return fmt.Errorf("economy: mark assessment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		pol := s.policy()
		return s.penalize(tx, &models.LedgerEntry{
			AccountID:   assessment.ReviewerAccountID,
			AgentID:     assessment.ReviewerAgentID,
			Amount:      -pol.ReviewReward * pol.GenesisMultiplier,
			Type:        models.EntryReviewBad,
			RefType:     "assessment",
			RefID:       assessment.ID,
			Description: "flagged low-quality review",
		})
	})
}

// AdminResolvePattern forces a pending pattern to validated or rejected,
// bypassing the review count. Validation still pays the author.
func (s *Service) AdminResolvePattern(ctx context.Context, patternID uint64, approve bool) error {
	pol := s.policy()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pattern models.Pattern
		if errFind := tx.First(&pattern, patternID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("economy: load pattern: %w", errFind)
		}

		now := s.now()
		updates := map[string]any{
			"status":     models.PatternStatusRejected,
			"updated_at": now,
		}
		if approve {
			updates["status"] = models.PatternStatusValidated
			updates["validated_at"] = now
		}
		res := tx.Model(&models.Pattern{}).
			Where("id = ? AND status = ?", patternID, models.PatternStatusPending).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("economy: resolve pattern: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		if !approve {
			return nil
		}

		errPay := s.credit(tx, &models.LedgerEntry{
			AccountID:   pattern.AuthorAccountID,
			AgentID:     pattern.AuthorAgentID,
			Amount:      pol.ValidateReward,
			Type:        models.EntryPatternValidated,
			RefType:     "pattern",
			RefID:       pattern.ID,
			Description: fmt.Sprintf("admin validation of %q", pattern.Slug),
		})
		if errPay != nil {
			return errPay
		}
		return s.promoteGoldIfEligible(tx, pattern.AuthorAccountID)
	})
}

// PatternFilter narrows pattern listings.
type PatternFilter struct {
	Status   models.PatternStatus   // Zero means any status.
	Category models.PatternCategory // Empty means any category.
	AuthorID uint64                 // Zero means any author.
	Search   string                 // Case-insensitive title match.
	Limit    int
	Offset   int
}

// ListPatterns returns patterns matching the filter, newest first, with the
// total match count for pagination.
func (s *Service) ListPatterns(ctx context.Context, filter PatternFilter) ([]models.Pattern, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Pattern{})
	if filter.Status != 0 {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.AuthorID != 0 {
		query = query.Where("author_account_id = ?", filter.AuthorID)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		query = query.Where(internaldb.CaseInsensitiveLikeExpr(s.db, "title"), "%"+internaldb.NormalizeLikePattern(s.db, search)+"%")
	}

	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("economy: count patterns: %w", errCount)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var patterns []models.Pattern
	errList := query.Order("created_at DESC").
		Limit(limit).Offset(filter.Offset).
		Find(&patterns).Error
	if errList != nil {
		return nil, 0, fmt.Errorf("economy: list patterns: %w", errList)
	}
	return patterns, total, nil
}

// GetPatternBySlug loads one pattern.
func (s *Service) GetPatternBySlug(ctx context.Context, slug string) (*models.Pattern, error) {
	var pattern models.Pattern
	errFind := s.db.WithContext(ctx).Where("slug = ?", slug).First(&pattern).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("economy: load pattern: %w", errFind)
	}
	return &pattern, nil
}

// isUniqueViolation detects duplicate-key failures from either dialect.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "duplicate key")
}
