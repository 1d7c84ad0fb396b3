package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/subscription"
	"gorm.io/gorm"

	"padelfit/config"
	"padelfit/middleware"
	"padelfit/models"
	"padelfit/utils"
)

// BillingController handles subscription checkout and the Stripe webhook.
// The subscription lifecycle itself is owned by Stripe; this code only
// mirrors state changes delivered via signed webhook events.
type BillingController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewBillingController(db *gorm.DB, logger *log.Logger) *BillingController {
	return &BillingController{DB: db, Logger: logger}
}

type CheckoutRequestBody struct {
	Plan string `json:"plan" validate:"required,oneof=pro elite"`
}

// CreateCheckout starts a Stripe subscription checkout session.
func (bc *BillingController) CreateCheckout(c *fiber.Ctx) error {
	profile := middleware.ProfileFromContext(c)

	var req CheckoutRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid plan selected",
		})
	}

	returnURL := config.AppConfig.AppURL + "/dashboard"
	session, err := utils.CreateCheckoutSession(profile, req.Plan, returnURL)
	if err != nil {
		utils.LogError(err, "checkout", map[string]interface{}{
			"user_id": profile.ID,
			"plan":    req.Plan,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create checkout session",
		})
	}

	return c.JSON(fiber.Map{"url": session.URL})
}

// CreatePortal starts a Stripe billing-portal session for subscription
// management.
func (bc *BillingController) CreatePortal(c *fiber.Ctx) error {
	profile := middleware.ProfileFromContext(c)

	if profile.StripeCustomerID == nil || *profile.StripeCustomerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No billing account found",
		})
	}

	session, err := utils.CreatePortalSession(*profile.StripeCustomerID, config.AppConfig.AppURL+"/dashboard")
	if err != nil {
		utils.LogError(err, "billing_portal", map[string]interface{}{"user_id": profile.ID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create portal session",
		})
	}

	return c.JSON(fiber.Map{"url": session.URL})
}

// HandleStripeWebhook processes signed subscription lifecycle events.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing checkout session",
			})
		}
		if session.Mode == stripe.CheckoutSessionModeSubscription && session.Subscription != nil {
			sub, err := subscription.Get(session.Subscription.ID, nil)
			if err != nil {
				utils.LogError(err, "stripe_webhook", map[string]interface{}{
					"subscription_id": session.Subscription.ID,
				})
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to load subscription",
				})
			}
			if err := bc.applySubscriptionChange(sub); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Webhook handler failed",
				})
			}
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing subscription",
			})
		}
		if err := bc.applySubscriptionChange(&sub); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Webhook handler failed",
			})
		}

	case "invoice.payment_succeeded":
		bc.Logger.Printf("Payment succeeded for event %s", event.ID)

	case "invoice.payment_failed":
		bc.Logger.Printf("Payment failed for event %s", event.ID)

	default:
		bc.Logger.Printf("Unhandled event type: %s", event.Type)
	}

	return c.JSON(fiber.Map{"received": true})
}

// applySubscriptionChange upserts the subscription mirror row and maps the
// Stripe status onto the profile tier.
func (bc *BillingController) applySubscriptionChange(sub *stripe.Subscription) error {
	if sub.Customer == nil {
		bc.Logger.Printf("Subscription %s has no customer", sub.ID)
		return nil
	}

	var profile models.Profile
	if err := bc.DB.Where("stripe_customer_id = ?", sub.Customer.ID).First(&profile).Error; err != nil {
		bc.Logger.Printf("No profile found for customer %s: %v", sub.Customer.ID, err)
		return nil
	}

	tier := tierFromSubscription(sub)
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()

	record := models.Subscription{
		UserID:               profile.ID,
		StripeSubscriptionID: sub.ID,
		Status:               string(sub.Status),
		Tier:                 tier,
		CurrentPeriodEnd:     &periodEnd,
	}
	err := bc.DB.
		Where(models.Subscription{StripeSubscriptionID: sub.ID}).
		Assign(map[string]interface{}{
			"user_id":            record.UserID,
			"status":             record.Status,
			"tier":               record.Tier,
			"current_period_end": record.CurrentPeriodEnd,
		}).
		FirstOrCreate(&models.Subscription{}).Error
	if err != nil {
		utils.LogError(err, "subscription_upsert", map[string]interface{}{
			"subscription_id": sub.ID,
		})
		return err
	}

	newTier := utils.TierForStatus(string(sub.Status), tier)
	if err := bc.DB.Model(&profile).Updates(map[string]interface{}{
		"subscription_tier":      newTier,
		"stripe_subscription_id": sub.ID,
	}).Error; err != nil {
		utils.LogError(err, "profile_tier_update", map[string]interface{}{
			"user_id": profile.ID,
		})
		return err
	}

	bc.Logger.Printf("Subscription %s for user %d is %s (tier %s)", sub.ID, profile.ID, sub.Status, newTier)
	return nil
}

// tierFromSubscription resolves the purchased tier from the subscription's
// price, falling back to pro.
func tierFromSubscription(sub *stripe.Subscription) string {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			switch item.Price.ID {
			case config.AppConfig.StripeElitePriceID:
				return models.TierElite
			case config.AppConfig.StripeProPriceID:
				return models.TierPro
			}
		}
	}
	return models.TierPro
}
