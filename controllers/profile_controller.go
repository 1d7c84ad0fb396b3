package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"padelfit/middleware"
	"padelfit/models"
	"padelfit/utils"
)

type ProfileController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewProfileController(db *gorm.DB, logger *log.Logger) *ProfileController {
	return &ProfileController{DB: db, Logger: logger}
}

// GetMe returns the caller's profile with simple activity stats.
func (pc *ProfileController) GetMe(c *fiber.Ctx) error {
	profile := middleware.ProfileFromContext(c)

	var sessionCount int64
	weekAgo := time.Now().AddDate(0, 0, -7)
	if err := pc.DB.Model(&models.WorkoutSession{}).
		Where("user_id = ? AND created_at >= ?", profile.ID, weekAgo).
		Count(&sessionCount).Error; err != nil {
		pc.Logger.Printf("Failed to count sessions for user %d: %v", profile.ID, err)
	}

	return c.JSON(fiber.Map{
		"profile":            profile,
		"sessions_this_week": sessionCount,
	})
}

type UpdateProfileBody struct {
	FullName    *string      `json:"full_name" validate:"omitempty,min=1,max=120"`
	AvatarURL   *string      `json:"avatar_url"`
	Preferences *models.JSON `json:"preferences"`
}

// UpdateMe updates the caller's mutable profile fields.
func (pc *ProfileController) UpdateMe(c *fiber.Ctx) error {
	profile := middleware.ProfileFromContext(c)

	var req UpdateProfileBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		updates["full_name"] = *req.FullName
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if req.Preferences != nil {
		updates["preferences"] = *req.Preferences
	}
	if len(updates) == 0 {
		return c.JSON(fiber.Map{"profile": profile})
	}

	if err := pc.DB.Model(profile).Updates(updates).Error; err != nil {
		pc.Logger.Printf("Failed to update profile %d: %v", profile.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update profile",
		})
	}

	return c.JSON(fiber.Map{"profile": profile})
}
