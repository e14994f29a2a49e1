package economy

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tiker-app/tiker/internal/models"
	"gorm.io/gorm"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Circuit Breaker for LLM Calls", "circuit-breaker-for-llm-calls"},
		{"  Already--Hyphenated  ", "already-hyphenated"},
		{"UPPER case 123", "upper-case-123"},
		{"!!!", ""},
		{"trailing punctuation!", "trailing-punctuation"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func submitInput(account *models.Account, agent *models.Agent, title string, viaAPIKey bool) SubmitInput {
	return SubmitInput{
		Title:     title,
		Category:  models.CategorySecurity,
		Problem:   "agents retry failing upstreams forever",
		Solution:  "trip a breaker after consecutive failures",
		Account:   account,
		Agent:     agent,
		ViaAPIKey: viaAPIKey,
	}
}

func TestSubmitViaAPIKeyDebitsFee(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	owner := createAccount(t, conn, "alice", models.AccountTierSilver, 100)
	agent := createAgent(t, conn, "helper", models.AgentTierGeneral, owner.ID)

	pattern, errSubmit := service.Submit(context.Background(), submitInput(owner, agent, "Breaker Pattern", true))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	if pattern.Status != models.PatternStatusPending {
		t.Fatalf("status = %v, want pending", pattern.Status)
	}
	if got := accountBalance(t, conn, owner.ID); got != 95 {
		t.Fatalf("balance after fee = %d, want 95", got)
	}
}

func TestSubmitWebSkipsFee(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	owner := createAccount(t, conn, "alice", models.AccountTierSilver, 100)

	if _, errSubmit := service.Submit(context.Background(), submitInput(owner, nil, "Web Pattern", false)); errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	if got := accountBalance(t, conn, owner.ID); got != 100 {
		t.Fatalf("balance after web submit = %d, want 100", got)
	}
}

func TestSubmitUnclaimedAgentForbiddenWithoutDebit(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	owner := createAccount(t, conn, "alice", models.AccountTierSilver, 100)
	agent := createAgent(t, conn, "stray", models.AgentTierUnclaimed, 0)

	_, errSubmit := service.Submit(context.Background(), submitInput(owner, agent, "Stray Pattern", true))
	var trust *InsufficientTrustError
	if !errors.As(errSubmit, &trust) {
		t.Fatalf("submit = %v, want InsufficientTrustError", errSubmit)
	}
	if got := accountBalance(t, conn, owner.ID); got != 100 {
		t.Fatalf("balance after refused submit = %d, want 100", got)
	}

	// The refused submission must not burn a daily slot either.
	status, errStatus := service.Quota().Status(context.Background(), owner.ID)
	if errStatus != nil {
		t.Fatalf("quota status: %v", errStatus)
	}
	if status.Remaining != 3 {
		t.Fatalf("remaining quota = %d, want 3", status.Remaining)
	}
}

func TestSubmitDuplicateSlugReleasesQuota(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	owner := createAccount(t, conn, "alice", models.AccountTierSilver, 100)

	if _, errFirst := service.Submit(context.Background(), submitInput(owner, nil, "Same Title", false)); errFirst != nil {
		t.Fatalf("first submit: %v", errFirst)
	}
	if _, errSecond := service.Submit(context.Background(), submitInput(owner, nil, "Same Title", false)); !errors.Is(errSecond, ErrDuplicateSlug) {
		t.Fatalf("second submit = %v, want ErrDuplicateSlug", errSecond)
	}

	status, errStatus := service.Quota().Status(context.Background(), owner.ID)
	if errStatus != nil {
		t.Fatalf("quota status: %v", errStatus)
	}
	if status.Remaining != 2 {
		t.Fatalf("remaining quota = %d, want 2 (duplicate released its slot)", status.Remaining)
	}
}

func TestSubmitDuplicateSlugRaceMapsConflict(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	owner := createAccount(t, conn, "alice", models.AccountTierSilver, 100)

	// Insert a rival row with the same slug after the pre-check has passed
	// but before the insert runs, the way a concurrent submission would.
	raced := false
	errRegister := conn.Callback().Create().Before("gorm:create").Register("rival_slug_insert", func(tx *gorm.DB) {
		if raced || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "patterns" {
			return
		}
		raced = true
		rival := &models.Pattern{
			Slug:            "contested-title",
			Title:           "Contested Title",
			Category:        models.CategorySecurity,
			Status:          models.PatternStatusPending,
			AuthorAccountID: owner.ID,
		}
		if errRival := tx.Session(&gorm.Session{NewDB: true}).Create(rival).Error; errRival != nil {
			t.Errorf("insert rival: %v", errRival)
		}
	})
	if errRegister != nil {
		t.Fatalf("register callback: %v", errRegister)
	}
	t.Cleanup(func() {
		if errRemove := conn.Callback().Create().Remove("rival_slug_insert"); errRemove != nil {
			t.Errorf("remove callback: %v", errRemove)
		}
	})

	_, errSubmit := service.Submit(context.Background(), submitInput(owner, nil, "Contested Title", false))
	if !errors.Is(errSubmit, ErrDuplicateSlug) {
		t.Fatalf("submit = %v, want ErrDuplicateSlug", errSubmit)
	}
	if !raced {
		t.Fatalf("rival insert never fired")
	}
}

func TestSubmitDailyQuotaExhausted(t *testing.T) {
	disableGenesis(t)
	service, conn, clock := newTestService(t)
	owner := createAccount(t, conn, "alice", models.AccountTierSilver, 100)

	for i := 0; i < 3; i++ {
		title := fmt.Sprintf("Pattern Number %d", i)
		if _, errSubmit := service.Submit(context.Background(), submitInput(owner, nil, title, false)); errSubmit != nil {
			t.Fatalf("submit %d: %v", i, errSubmit)
		}
	}

	_, errFourth := service.Submit(context.Background(), submitInput(owner, nil, "One Too Many", false))
	var limited *RateLimitedError
	if !errors.As(errFourth, &limited) {
		t.Fatalf("fourth submit = %v, want RateLimitedError", errFourth)
	}
	if limited.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", limited.Remaining)
	}

	// A new day resets the window.
	clock.Advance(24 * time.Hour)
	if _, errNextDay := service.Submit(context.Background(), submitInput(owner, nil, "Fresh Day", false)); errNextDay != nil {
		t.Fatalf("next-day submit: %v", errNextDay)
	}
}

func TestSubmitGenesisAutoValidates(t *testing.T) {
	service, conn, _ := newTestService(t)
	owner := createAccount(t, conn, "alice", models.AccountTierSilver, 0)

	pattern, errSubmit := service.Submit(context.Background(), submitInput(owner, nil, "Genesis Pattern", false))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	if pattern.Status != models.PatternStatusValidated {
		t.Fatalf("status = %v, want validated in genesis mode", pattern.Status)
	}
	if pattern.ValidatedAt == nil {
		t.Fatalf("validated_at not set")
	}
	// 25 base reward times the genesis multiplier of 3.
	if got := accountBalance(t, conn, owner.ID); got != 75 {
		t.Fatalf("balance after genesis validation = %d, want 75", got)
	}
}

func assessmentInput(pattern *models.Pattern, reviewer *models.Account, score int) AssessmentInput {
	return AssessmentInput{
		PatternID:   pattern.ID,
		Reviewer:    reviewer,
		Clarity:     score,
		Correctness: score,
		Reusability: score,
		Safety:      score,
		Depth:       score,
	}
}

func TestAssessmentFlowValidates(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)
	pattern, errSubmit := service.Submit(context.Background(), submitInput(author, nil, "Review Me", false))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	for i := 0; i < 3; i++ {
		reviewer := createAccount(t, conn, fmt.Sprintf("reviewer%d", i), models.AccountTierSilver, 0)
		if _, errAssess := service.AddAssessment(context.Background(), assessmentInput(pattern, reviewer, 8)); errAssess != nil {
			t.Fatalf("assessment %d: %v", i, errAssess)
		}
	}

	var resolved models.Pattern
	if errFind := conn.First(&resolved, pattern.ID).Error; errFind != nil {
		t.Fatalf("reload pattern: %v", errFind)
	}
	if resolved.Status != models.PatternStatusValidated {
		t.Fatalf("status = %v, want validated (mean 8 >= 7)", resolved.Status)
	}
	if resolved.Score != 8 {
		t.Fatalf("score = %v, want 8", resolved.Score)
	}
	if got := accountBalance(t, conn, author.ID); got != 25 {
		t.Fatalf("author balance = %d, want 25", got)
	}
	// Each reviewer earned the review reward.
	var first models.Account
	if errFind := conn.Where("username = ?", "reviewer0").First(&first).Error; errFind != nil {
		t.Fatalf("load reviewer: %v", errFind)
	}
	if first.TokenBalance != 5 {
		t.Fatalf("reviewer balance = %d, want 5", first.TokenBalance)
	}
}

func TestAssessmentFlowRejectsBelowThreshold(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)
	pattern, errSubmit := service.Submit(context.Background(), submitInput(author, nil, "Weak Pattern", false))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	for i := 0; i < 3; i++ {
		reviewer := createAccount(t, conn, fmt.Sprintf("reviewer%d", i), models.AccountTierSilver, 0)
		if _, errAssess := service.AddAssessment(context.Background(), assessmentInput(pattern, reviewer, 5)); errAssess != nil {
			t.Fatalf("assessment %d: %v", i, errAssess)
		}
	}

	var resolved models.Pattern
	if errFind := conn.First(&resolved, pattern.ID).Error; errFind != nil {
		t.Fatalf("reload pattern: %v", errFind)
	}
	if resolved.Status != models.PatternStatusRejected {
		t.Fatalf("status = %v, want rejected (mean 5 < 7)", resolved.Status)
	}
	if got := accountBalance(t, conn, author.ID); got != 0 {
		t.Fatalf("author balance = %d, want 0 for rejected pattern", got)
	}
}

func TestAssessmentAuthorAndDuplicateRules(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)
	reviewer := createAccount(t, conn, "reviewer", models.AccountTierSilver, 0)
	bronze := createAccount(t, conn, "bronze", models.AccountTierBronze, 0)
	pattern, errSubmit := service.Submit(context.Background(), submitInput(author, nil, "Guarded Pattern", false))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	var validation *ValidationError
	if _, errSelf := service.AddAssessment(context.Background(), assessmentInput(pattern, author, 8)); !errors.As(errSelf, &validation) {
		t.Fatalf("self review = %v, want ValidationError", errSelf)
	}

	var trust *InsufficientTrustError
	if _, errBronze := service.AddAssessment(context.Background(), assessmentInput(pattern, bronze, 8)); !errors.As(errBronze, &trust) {
		t.Fatalf("bronze review = %v, want InsufficientTrustError", errBronze)
	}

	if _, errFirst := service.AddAssessment(context.Background(), assessmentInput(pattern, reviewer, 8)); errFirst != nil {
		t.Fatalf("first review: %v", errFirst)
	}
	if _, errDup := service.AddAssessment(context.Background(), assessmentInput(pattern, reviewer, 9)); !errors.Is(errDup, ErrConflict) {
		t.Fatalf("duplicate review = %v, want ErrConflict", errDup)
	}

	if _, errBadScore := service.AddAssessment(context.Background(), assessmentInput(pattern, reviewer, 11)); !errors.As(errBadScore, &validation) {
		t.Fatalf("out-of-range score = %v, want ValidationError", errBadScore)
	}
}

func TestRecordImportMilestones(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)

	pattern := &models.Pattern{
		Slug:            "popular-pattern",
		Title:           "Popular Pattern",
		Category:        models.CategorySkills,
		Status:          models.PatternStatusValidated,
		AuthorAccountID: author.ID,
		ImportCount:     99,
	}
	if errCreate := conn.Create(pattern).Error; errCreate != nil {
		t.Fatalf("create pattern: %v", errCreate)
	}

	count, errImport := service.RecordImport(context.Background(), pattern.ID)
	if errImport != nil {
		t.Fatalf("import: %v", errImport)
	}
	if count != 100 {
		t.Fatalf("import count = %d, want 100", count)
	}
	if got := accountBalance(t, conn, author.ID); got != 50 {
		t.Fatalf("author balance after 100th import = %d, want 50", got)
	}

	// The next import must not pay the milestone again.
	if _, errAgain := service.RecordImport(context.Background(), pattern.ID); errAgain != nil {
		t.Fatalf("import again: %v", errAgain)
	}
	if got := accountBalance(t, conn, author.ID); got != 50 {
		t.Fatalf("author balance after 101st import = %d, want 50", got)
	}
}

func TestRecordImportRequiresValidated(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)
	pattern, errSubmit := service.Submit(context.Background(), submitInput(author, nil, "Pending Pattern", false))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	if _, errImport := service.RecordImport(context.Background(), pattern.ID); !errors.Is(errImport, ErrConflict) {
		t.Fatalf("import pending = %v, want ErrConflict", errImport)
	}
}

func TestDeprecatePenalizesAuthor(t *testing.T) {
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 20)

	pattern := &models.Pattern{
		Slug:            "old-pattern",
		Title:           "Old Pattern",
		Category:        models.CategoryMemory,
		Status:          models.PatternStatusValidated,
		AuthorAccountID: author.ID,
	}
	if errCreate := conn.Create(pattern).Error; errCreate != nil {
		t.Fatalf("create pattern: %v", errCreate)
	}

	if errDeprecate := service.Deprecate(context.Background(), pattern.ID); errDeprecate != nil {
		t.Fatalf("deprecate: %v", errDeprecate)
	}
	if got := accountBalance(t, conn, author.ID); got != 10 {
		t.Fatalf("author balance = %d, want 10 after deprecation penalty", got)
	}

	if errAgain := service.Deprecate(context.Background(), pattern.ID); !errors.Is(errAgain, ErrConflict) {
		t.Fatalf("second deprecate = %v, want ErrConflict", errAgain)
	}
	if got := accountBalance(t, conn, author.ID); got != 10 {
		t.Fatalf("author balance after repeat = %d, want 10", got)
	}
}

func TestMarkBadAssessmentChargesTripleOnce(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)
	reviewer := createAccount(t, conn, "reviewer", models.AccountTierSilver, 0)
	pattern, errSubmit := service.Submit(context.Background(), submitInput(author, nil, "Flagged Pattern", false))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}
	assessment, errAssess := service.AddAssessment(context.Background(), assessmentInput(pattern, reviewer, 9))
	if errAssess != nil {
		t.Fatalf("assessment: %v", errAssess)
	}
	// Review reward of 5 was paid on acceptance.
	if got := accountBalance(t, conn, reviewer.ID); got != 5 {
		t.Fatalf("reviewer balance = %d, want 5", got)
	}

	if errMark := service.MarkBadAssessment(context.Background(), assessment.ID); errMark != nil {
		t.Fatalf("mark bad: %v", errMark)
	}
	// Penalty is three times the reward: 5 - 15 = -10.
	if got := accountBalance(t, conn, reviewer.ID); got != -10 {
		t.Fatalf("reviewer balance after penalty = %d, want -10", got)
	}

	if errAgain := service.MarkBadAssessment(context.Background(), assessment.ID); !errors.Is(errAgain, ErrConflict) {
		t.Fatalf("second mark = %v, want ErrConflict", errAgain)
	}
	if got := accountBalance(t, conn, reviewer.ID); got != -10 {
		t.Fatalf("reviewer balance after repeat = %d, want -10", got)
	}
}

func TestAdminResolvePattern(t *testing.T) {
	disableGenesis(t)
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)
	pattern, errSubmit := service.Submit(context.Background(), submitInput(author, nil, "Admin Pattern", false))
	if errSubmit != nil {
		t.Fatalf("submit: %v", errSubmit)
	}

	if errResolve := service.AdminResolvePattern(context.Background(), pattern.ID, true); errResolve != nil {
		t.Fatalf("admin resolve: %v", errResolve)
	}
	if got := accountBalance(t, conn, author.ID); got != 25 {
		t.Fatalf("author balance = %d, want 25", got)
	}
	if errAgain := service.AdminResolvePattern(context.Background(), pattern.ID, false); !errors.Is(errAgain, ErrConflict) {
		t.Fatalf("re-resolve = %v, want ErrConflict", errAgain)
	}
}

func TestListPatternsFilters(t *testing.T) {
	service, conn, _ := newTestService(t)
	author := createAccount(t, conn, "author", models.AccountTierSilver, 0)

	seed := []struct {
		slug     string
		category models.PatternCategory
		status   models.PatternStatus
	}{
		{"alpha-breaker", models.CategorySecurity, models.PatternStatusValidated},
		{"beta-memory", models.CategoryMemory, models.PatternStatusValidated},
		{"gamma-pending", models.CategorySecurity, models.PatternStatusPending},
	}
	for _, row := range seed {
		pattern := &models.Pattern{
			Slug:            row.slug,
			Title:           row.slug,
			Category:        row.category,
			Status:          row.status,
			AuthorAccountID: author.ID,
		}
		if errCreate := conn.Create(pattern).Error; errCreate != nil {
			t.Fatalf("seed %s: %v", row.slug, errCreate)
		}
	}

	patterns, total, errList := service.ListPatterns(context.Background(), PatternFilter{
		Status:   models.PatternStatusValidated,
		Category: models.CategorySecurity,
	})
	if errList != nil {
		t.Fatalf("list: %v", errList)
	}
	if total != 1 || len(patterns) != 1 || patterns[0].Slug != "alpha-breaker" {
		t.Fatalf("filtered list = %d rows (total %d), want alpha-breaker only", len(patterns), total)
	}

	_, total, errSearch := service.ListPatterns(context.Background(), PatternFilter{Search: "BREAKER"})
	if errSearch != nil {
		t.Fatalf("search: %v", errSearch)
	}
	if total != 1 {
		t.Fatalf("search total = %d, want 1 (case-insensitive)", total)
	}
}
