package models

import "gorm.io/gorm"

// WorkoutSession records a generated warm-up or completed training session.
type WorkoutSession struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	SessionType        string `gorm:"not null" json:"session_type"` // warmup, conditioning, recovery
	DurationMinutes    int    `json:"duration_minutes"`
	ExercisesCompleted JSON   `gorm:"type:jsonb" json:"exercises_completed,omitempty"`
}

// InjuryAssessment stores one run of the AI risk quiz.
type InjuryAssessment struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Answers         JSON   `gorm:"type:jsonb" json:"answers"`
	RiskScore       int    `json:"risk_score"`
	RiskLevel       string `json:"risk_level"` // low, moderate, high
	RiskAreas       JSON   `gorm:"type:jsonb" json:"risk_areas,omitempty"`
	Recommendations JSON   `gorm:"type:jsonb" json:"recommendations,omitempty"`
}

// AIConversation holds a coaching chat thread as an append-only message list.
type AIConversation struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Messages JSON   `gorm:"type:jsonb" json:"messages"`
	Context  string `gorm:"default:'general'" json:"context"`
}
