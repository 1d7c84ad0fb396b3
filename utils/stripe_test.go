package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"padelfit/config"
	"padelfit/models"
)

func TestTierForStatus(t *testing.T) {
	assert.Equal(t, models.TierPro, TierForStatus("active", models.TierPro))
	assert.Equal(t, models.TierElite, TierForStatus("trialing", models.TierElite))
	assert.Equal(t, models.TierFree, TierForStatus("canceled", models.TierPro))
	assert.Equal(t, models.TierFree, TierForStatus("past_due", models.TierElite))
	assert.Equal(t, models.TierFree, TierForStatus("unpaid", models.TierPro))
}

func TestPlanPriceID(t *testing.T) {
	orig := config.AppConfig
	t.Cleanup(func() { config.AppConfig = orig })
	config.AppConfig = config.Config{
		StripeProPriceID:   "price_pro_123",
		StripeElitePriceID: "price_elite_456",
	}

	pro, err := PlanPriceID(models.TierPro)
	require.NoError(t, err)
	assert.Equal(t, "price_pro_123", pro)

	elite, err := PlanPriceID(models.TierElite)
	require.NoError(t, err)
	assert.Equal(t, "price_elite_456", elite)

	_, err = PlanPriceID(models.TierFree)
	require.Error(t, err)
}
