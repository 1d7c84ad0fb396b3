package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"padelfit/middleware"
	"padelfit/models"
)

// ExerciseController serves the exercise library. Premium entries are
// listed for everyone but only readable on a paying tier.
type ExerciseController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewExerciseController(db *gorm.DB, logger *log.Logger) *ExerciseController {
	return &ExerciseController{DB: db, Logger: logger}
}

// ListExercises returns the library, optionally filtered by category.
func (ec *ExerciseController) ListExercises(c *fiber.Ctx) error {
	query := ec.DB.Order("sort_order asc, title asc")
	if category := c.Query("category"); category != "" {
		query = query.Where("category = ?", category)
	}

	var exercises []models.Exercise
	if err := query.Find(&exercises).Error; err != nil {
		ec.Logger.Printf("Failed to list exercises: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load exercises",
		})
	}

	return c.JSON(fiber.Map{
		"exercises": exercises,
		"count":     len(exercises),
	})
}

// GetExercise returns one exercise by slug, gating premium content.
func (ec *ExerciseController) GetExercise(c *fiber.Ctx) error {
	slug := c.Params("slug")

	var exercise models.Exercise
	if err := ec.DB.Where("slug = ?", slug).First(&exercise).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Exercise not found",
			})
		}
		ec.Logger.Printf("Failed to load exercise %s: %v", slug, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load exercise",
		})
	}

	if exercise.IsPremium {
		profile := middleware.ProfileFromContext(c)
		if profile == nil || !profile.IsPaid() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Upgrade to Pro to access this exercise",
			})
		}
	}

	return c.JSON(exercise)
}
