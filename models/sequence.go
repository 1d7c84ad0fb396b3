package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailSequence tracks one user's progress through a named drip sequence.
// At most one row exists per (user, sequence name); rows are never deleted,
// completion is the terminal state.
type EmailSequence struct {
	gorm.Model
	UserID       uint   `gorm:"not null;uniqueIndex:idx_user_sequence" json:"user_id"`
	SequenceName string `gorm:"not null;uniqueIndex:idx_user_sequence" json:"sequence_name"`

	CurrentStep     int        `gorm:"default:0;not null" json:"current_step"`
	Completed       bool       `gorm:"default:false;not null" json:"completed"`
	LastEmailSentAt *time.Time `json:"last_email_sent_at,omitempty"`

	// Relations
	Profile Profile `gorm:"foreignKey:UserID" json:"-"`
}
