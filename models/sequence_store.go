package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// SequenceStore is the gorm-backed persistence layer used by the drip
// sequencer. There is deliberately no transaction around the runner's
// read-then-update; overlapping runs are not expected under a daily cron.
type SequenceStore struct {
	DB *gorm.DB
}

func NewSequenceStore(db *gorm.DB) *SequenceStore {
	return &SequenceStore{DB: db}
}

// ActiveEnrollments returns all non-completed enrollments with their
// profiles preloaded.
func (s *SequenceStore) ActiveEnrollments(ctx context.Context) ([]EmailSequence, error) {
	var enrollments []EmailSequence
	err := s.DB.WithContext(ctx).
		Preload("Profile").
		Where("completed = ?", false).
		Find(&enrollments).Error
	return enrollments, err
}

// Advance moves an enrollment to the given step. A non-nil sentAt also
// stamps the dispatch timestamp; the upgrade-skip path passes nil so the
// at-most-one-per-day check is not consumed by a skipped step.
func (s *SequenceStore) Advance(ctx context.Context, enrollmentID uint, step int, completed bool, sentAt *time.Time) error {
	updates := map[string]interface{}{
		"current_step": step,
		"completed":    completed,
	}
	if sentAt != nil {
		updates["last_email_sent_at"] = *sentAt
	}
	return s.DB.WithContext(ctx).
		Model(&EmailSequence{}).
		Where("id = ?", enrollmentID).
		Updates(updates).Error
}

// ProfilesWithoutSequence returns profiles created at or after the given
// time that have no enrollment row for the named sequence.
func (s *SequenceStore) ProfilesWithoutSequence(ctx context.Context, sequenceName string, since time.Time) ([]Profile, error) {
	var profiles []Profile
	err := s.DB.WithContext(ctx).
		Where("created_at >= ?", since).
		Where("id NOT IN (?)",
			s.DB.Model(&EmailSequence{}).
				Select("user_id").
				Where("sequence_name = ?", sequenceName),
		).
		Find(&profiles).Error
	return profiles, err
}

// CreateEnrollment inserts an enrollment at step 0 for the user.
func (s *SequenceStore) CreateEnrollment(ctx context.Context, userID uint, sequenceName string) (*EmailSequence, error) {
	enrollment := &EmailSequence{
		UserID:       userID,
		SequenceName: sequenceName,
	}
	if err := s.DB.WithContext(ctx).Create(enrollment).Error; err != nil {
		return nil, err
	}
	return enrollment, nil
}
