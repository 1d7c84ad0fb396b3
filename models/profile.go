package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Subscription tiers
const (
	TierFree  = "free"
	TierPro   = "pro"
	TierElite = "elite"
)

// JSON stores arbitrary JSON documents in a jsonb column.
type JSON json.RawMessage

func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = JSON(v)
	default:
		return fmt.Errorf("unsupported type for JSON column: %T", value)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}

// Profile represents a player account. Identity itself (passwords, OAuth)
// is owned by the hosted auth platform; we only mirror the profile row.
type Profile struct {
	gorm.Model

	Email     string  `gorm:"uniqueIndex;not null" json:"email"`
	FullName  string  `json:"full_name"`
	AvatarURL *string `json:"avatar_url,omitempty"`

	SubscriptionTier string `gorm:"default:'free';not null" json:"subscription_tier"` // free, pro, elite

	StripeCustomerID     *string `gorm:"uniqueIndex" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string `json:"stripe_subscription_id,omitempty"`

	// Latest risk assessment summary; shape owned by the AI layer
	InjuryProfile JSON `gorm:"type:jsonb" json:"injury_profile,omitempty"`
	Preferences   JSON `gorm:"type:jsonb" json:"preferences,omitempty"`

	// Relations
	Subscriptions  []Subscription  `gorm:"foreignKey:UserID" json:"subscriptions,omitempty"`
	EmailSequences []EmailSequence `gorm:"foreignKey:UserID" json:"email_sequences,omitempty"`
}

// IsPaid reports whether the profile is on a paying tier.
func (p *Profile) IsPaid() bool {
	return p.SubscriptionTier != TierFree
}

// Subscription mirrors the Stripe subscription state for a profile.
// The lifecycle is owned by Stripe; rows are written only from webhooks.
type Subscription struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	StripeSubscriptionID string     `gorm:"uniqueIndex;not null" json:"stripe_subscription_id"`
	Status               string     `gorm:"not null" json:"status"` // active, canceled, past_due, trialing, incomplete
	Tier                 string     `gorm:"not null" json:"tier"`   // pro, elite
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
}
