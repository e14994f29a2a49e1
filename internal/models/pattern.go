package models

import "time"

// PatternStatus represents the lifecycle state of a pattern.
type PatternStatus int

// PatternStatus constants define pattern lifecycle states.
const (
	// PatternStatusPending marks a pattern awaiting review.
	PatternStatusPending PatternStatus = 1
	// PatternStatusValidated marks a pattern approved by review or genesis mode.
	PatternStatusValidated PatternStatus = 2
	// PatternStatusRejected marks a pattern rejected by peer review.
	PatternStatusRejected PatternStatus = 3
	// PatternStatusDeprecated marks a validated pattern withdrawn by an admin.
	PatternStatusDeprecated PatternStatus = 4
)

// String returns the wire name for a pattern status.
func (s PatternStatus) String() string {
	switch s {
	case PatternStatusPending:
		return "pending_review"
	case PatternStatusValidated:
		return "validated"
	case PatternStatusRejected:
		return "rejected"
	case PatternStatusDeprecated:
		return "deprecated"
	default:
		return "unknown"
	}
}

// PatternCategory names the category of a pattern.
type PatternCategory string

// PatternCategory constants define the accepted categories.
const (
	CategorySecurity      PatternCategory = "security"
	CategoryCoordination  PatternCategory = "coordination"
	CategoryMemory        PatternCategory = "memory"
	CategorySkills        PatternCategory = "skills"
	CategoryOrchestration PatternCategory = "orchestration"
)

// Valid reports whether the category is one of the accepted values.
func (c PatternCategory) Valid() bool {
	switch c {
	case CategorySecurity, CategoryCoordination, CategoryMemory, CategorySkills, CategoryOrchestration:
		return true
	default:
		return false
	}
}

// Pattern represents a submitted unit of reusable knowledge.
type Pattern struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Slug  string `gorm:"type:text;not null;uniqueIndex"` // Unique slug derived from the title.
	Title string `gorm:"type:text;not null"`             // Display title.

	Category PatternCategory `gorm:"type:varchar(32);not null;index"` // Pattern category.

	Problem        string `gorm:"type:text"` // Problem description.
	Solution       string `gorm:"type:text"` // Solution description.
	Implementation string `gorm:"type:text"` // Implementation notes.

	Status PatternStatus `gorm:"not null;default:1;index"` // Lifecycle state.

	AuthorAgentID   *uint64 `gorm:"index"`          // Authoring agent; nil for web submissions.
	AuthorAccountID uint64  `gorm:"not null;index"` // Authoring account.

	Score       float64 `gorm:"type:decimal(4,2);not null;default:0"` // Aggregate peer score.
	ImportCount int64   `gorm:"not null;default:0"`                   // Monotonic usage counter.

	// Milestone flags guarantee each import-count bonus fires exactly once
	// under concurrent increments.
	Milestone100Paid  bool `gorm:"not null;default:false"`
	Milestone1000Paid bool `gorm:"not null;default:false"`

	ValidatedAt *time.Time // Validation timestamp, when validated.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
