package utils

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/webhook"

	"padelfit/config"
	"padelfit/models"
)

// InitStripe sets the global Stripe API key from config.
func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// PlanPriceID maps a paid tier to its configured Stripe price id.
func PlanPriceID(tier string) (string, error) {
	switch tier {
	case models.TierPro:
		return config.AppConfig.StripeProPriceID, nil
	case models.TierElite:
		return config.AppConfig.StripeElitePriceID, nil
	default:
		return "", fmt.Errorf("no price configured for plan %q", tier)
	}
}

// TierForStatus maps a Stripe subscription status to the profile tier it
// grants. Anything that is not active falls back to free.
func TierForStatus(status, tier string) string {
	if status == string(stripe.SubscriptionStatusActive) || status == string(stripe.SubscriptionStatusTrialing) {
		return tier
	}
	return models.TierFree
}

// ConstructStripeEvent securely constructs and verifies a Stripe webhook
// event from a fiber request.
func ConstructStripeEvent(c *fiber.Ctx) (stripe.Event, error) {
	payload := c.Body()

	signature := c.Get("Stripe-Signature")
	if signature == "" {
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Missing Stripe-Signature header")
	}

	// Tolerance covers clock drift between Stripe and this host
	event, err := webhook.ConstructEventWithTolerance(
		payload,
		signature,
		config.AppConfig.StripeWebhookSecret,
		5*time.Minute,
	)
	if err != nil {
		LogError(err, "stripe_webhook_signature", map[string]interface{}{
			"signature_present": signature != "",
		})
		return stripe.Event{}, fiber.NewError(fiber.StatusBadRequest, "Invalid webhook signature")
	}

	return event, nil
}

// GetOrCreateStripeCustomer returns the profile's Stripe customer id,
// creating the customer and persisting the id on first use.
func GetOrCreateStripeCustomer(profile *models.Profile) (string, error) {
	if profile.StripeCustomerID != nil && *profile.StripeCustomerID != "" {
		return *profile.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(profile.Email),
	}
	params.AddMetadata("user_id", fmt.Sprintf("%d", profile.ID))

	cust, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe customer: %w", err)
	}

	if err := config.DB.Model(profile).Update("stripe_customer_id", cust.ID).Error; err != nil {
		return "", fmt.Errorf("failed to persist Stripe customer id: %w", err)
	}
	profile.StripeCustomerID = &cust.ID
	return cust.ID, nil
}

// CreateCheckoutSession starts a subscription checkout for the given plan.
func CreateCheckoutSession(profile *models.Profile, plan, returnURL string) (*stripe.CheckoutSession, error) {
	priceID, err := PlanPriceID(plan)
	if err != nil {
		return nil, err
	}
	if priceID == "" {
		return nil, fmt.Errorf("price id for plan %q is not configured", plan)
	}

	customerID, err := GetOrCreateStripeCustomer(profile)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(returnURL + "?success=true&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(returnURL + "?canceled=true"),
	}
	params.AddMetadata("user_id", fmt.Sprintf("%d", profile.ID))
	params.AddMetadata("plan", plan)

	return checkoutsession.New(params)
}

// CreatePortalSession starts a Stripe billing-portal session for the
// profile's customer.
func CreatePortalSession(customerID, returnURL string) (*stripe.BillingPortalSession, error) {
	return session.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
}
