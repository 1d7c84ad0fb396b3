package models

import "gorm.io/gorm"

// Exercise is one entry in the injury-prevention exercise library.
type Exercise struct {
	gorm.Model

	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Title       string `gorm:"not null" json:"title"`
	Description string `json:"description"`
	Category    string `gorm:"not null;index" json:"category"` // warmup, stretching, strength, recovery, mobility
	Difficulty  string `json:"difficulty"`                     // beginner, intermediate, advanced

	TargetAreas     JSON   `gorm:"type:jsonb" json:"target_areas,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	Reps            string `json:"reps,omitempty"`
	VideoURL        string `json:"video_url,omitempty"`
	ImageURL        string `json:"image_url,omitempty"`
	Instructions    JSON   `gorm:"type:jsonb" json:"instructions,omitempty"`
	Benefits        JSON   `gorm:"type:jsonb" json:"benefits,omitempty"`

	IsPremium bool `gorm:"default:false" json:"is_premium"`
	SortOrder int  `gorm:"default:0" json:"sort_order"`
}
