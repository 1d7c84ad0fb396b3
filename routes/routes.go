package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	"padelfit/config"
	controller "padelfit/controllers"
	"padelfit/middleware"
	"padelfit/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Initialize Stripe
	utils.InitStripe()

	coach := utils.NewCoachClient(config.AppConfig.OpenAIAPIKey, config.AppConfig.OpenAIModel)

	aiController := controller.NewAIController(db, coach, log.New(os.Stdout, "AI: ", log.LstdFlags))
	billingController := controller.NewBillingController(db, log.New(os.Stdout, "BILLING: ", log.LstdFlags))
	exerciseController := controller.NewExerciseController(db, log.New(os.Stdout, "EXERCISE: ", log.LstdFlags))
	profileController := controller.NewProfileController(db, log.New(os.Stdout, "PROFILE: ", log.LstdFlags))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Stripe webhook stays outside auth; it is authenticated by signature
	app.Post("/webhooks/stripe", billingController.HandleStripeWebhook)

	api := app.Group("/api", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// AI proxy routes; warmup, assessment and tip work anonymously
	ai := api.Group("/ai")
	ai.Post("/warmup", middleware.OptionalAuth(), middleware.AIRateLimiter(), aiController.GenerateWarmup)
	ai.Post("/injury-assessment", middleware.OptionalAuth(), middleware.AIRateLimiter(), aiController.AssessInjuryRisk)
	ai.Get("/tip", middleware.OptionalAuth(), middleware.AIRateLimiter(), aiController.DailyTip)
	ai.Post("/chat", middleware.Protected(), aiController.Chat)

	// Billing routes (protected)
	billing := api.Group("/billing", middleware.Protected())
	billing.Post("/checkout", billingController.CreateCheckout)
	billing.Post("/portal", billingController.CreatePortal)

	// Exercise library; premium gating happens per exercise
	exercises := api.Group("/exercises", middleware.OptionalAuth())
	exercises.Get("/", exerciseController.ListExercises)
	exercises.Get("/:slug", exerciseController.GetExercise)

	// Profile routes
	me := api.Group("/me", middleware.Protected())
	me.Get("/", profileController.GetMe)
	me.Put("/", profileController.UpdateMe)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})

	log.Println("API routes initialized successfully")
}
