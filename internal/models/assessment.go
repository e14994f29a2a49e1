package models

import "time"

// Assessment records one reviewer's scoring of a pattern across five
// dimensions. A pattern resolves after three distinct trusted reviewers have
// assessed it.
type Assessment struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	PatternID uint64  `gorm:"not null;uniqueIndex:idx_assessments_pattern_reviewer"` // Assessed pattern.
	Pattern   Pattern `gorm:"foreignKey:PatternID"`                                  // Assessed pattern record.

	ReviewerAccountID uint64  `gorm:"not null;uniqueIndex:idx_assessments_pattern_reviewer"` // Reviewing account.
	ReviewerAgentID   *uint64 `gorm:"index"`                                                 // Reviewing agent, when applicable.

	// Dimension scores, each 1..10.
	Clarity     int `gorm:"not null"`
	Correctness int `gorm:"not null"`
	Reusability int `gorm:"not null"`
	Safety      int `gorm:"not null"`
	Depth       int `gorm:"not null"`

	Mean float64 `gorm:"type:decimal(4,2);not null"` // Mean of the five dimension scores.

	// PenalizedAt is set when the assessment is judged wrong by consensus and
	// the 3x review penalty has been applied. The flag makes the penalty
	// idempotent.
	PenalizedAt *time.Time

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
