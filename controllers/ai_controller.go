package controller

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"padelfit/middleware"
	"padelfit/models"
	"padelfit/utils"
)

// AIController exposes the thin proxy endpoints in front of the hosted
// chat-completions API. All intelligence is delegated; this layer formats
// requests, parses responses and persists results for logged-in users.
type AIController struct {
	DB     *gorm.DB
	Coach  *utils.CoachClient
	Logger *log.Logger
}

func NewAIController(db *gorm.DB, coach *utils.CoachClient, logger *log.Logger) *AIController {
	return &AIController{DB: db, Coach: coach, Logger: logger}
}

type WarmupRequestBody struct {
	Duration    int      `json:"duration" validate:"omitempty,min=5,max=30"`
	Intensity   string   `json:"intensity" validate:"omitempty,oneof=light moderate intense"`
	TargetAreas []string `json:"target_areas"`
}

// GenerateWarmup builds a personalized warm-up routine. Works anonymously;
// records a workout session when the caller is logged in.
func (ac *AIController) GenerateWarmup(c *fiber.Ctx) error {
	req := WarmupRequestBody{Duration: 10, Intensity: "moderate"}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Duration == 0 {
		req.Duration = 10
	}
	if req.Intensity == "" {
		req.Intensity = "moderate"
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	profile := middleware.ProfileFromContext(c)
	injuryHistory := injuryHistoryFromProfile(profile)

	routine, err := ac.Coach.GenerateWarmupRoutine(c.Context(), utils.WarmupRequest{
		InjuryHistory: injuryHistory,
		TargetAreas:   req.TargetAreas,
		Duration:      req.Duration,
		Intensity:     req.Intensity,
	})
	if err != nil {
		utils.LogError(err, "warmup_generation", map[string]interface{}{"duration": req.Duration})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate warmup routine",
		})
	}

	if profile != nil {
		phases, _ := json.Marshal(routine.Phases)
		session := models.WorkoutSession{
			UserID:             profile.ID,
			SessionType:        "warmup",
			DurationMinutes:    req.Duration,
			ExercisesCompleted: models.JSON(phases),
		}
		if err := ac.DB.Create(&session).Error; err != nil {
			ac.Logger.Printf("Failed to record workout session for user %d: %v", profile.ID, err)
		}
	}

	return c.JSON(routine)
}

type AssessmentRequestBody struct {
	Answers map[string]string `json:"answers" validate:"required,min=1"`
}

// AssessInjuryRisk runs the risk quiz through the model. Anonymous callers
// get the assessment; logged-in callers also get it persisted and their
// injury profile updated.
func (ac *AIController) AssessInjuryRisk(c *fiber.Ctx) error {
	var req AssessmentRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Answers) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Quiz answers are required",
		})
	}

	assessment, err := ac.Coach.AssessInjuryRisk(c.Context(), req.Answers)
	if err != nil {
		utils.LogError(err, "injury_assessment", nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to assess injury risk",
		})
	}

	if profile := middleware.ProfileFromContext(c); profile != nil {
		answers, _ := json.Marshal(req.Answers)
		riskAreas, _ := json.Marshal(assessment.RiskAreas)
		recommendations, _ := json.Marshal(assessment.Recommendations)

		record := models.InjuryAssessment{
			UserID:          profile.ID,
			Answers:         models.JSON(answers),
			RiskScore:       assessment.RiskScore,
			RiskLevel:       assessment.OverallRisk,
			RiskAreas:       models.JSON(riskAreas),
			Recommendations: models.JSON(recommendations),
		}
		if err := ac.DB.Create(&record).Error; err != nil {
			ac.Logger.Printf("Failed to save assessment for user %d: %v", profile.ID, err)
		}

		areas := make([]string, 0, len(assessment.RiskAreas))
		for _, a := range assessment.RiskAreas {
			areas = append(areas, a.Area)
		}
		injuryProfile, _ := json.Marshal(map[string]interface{}{
			"lastAssessment": time.Now().UTC().Format(time.RFC3339),
			"riskScore":      assessment.RiskScore,
			"riskLevel":      assessment.OverallRisk,
			"riskAreas":      areas,
		})
		if err := ac.DB.Model(profile).Update("injury_profile", models.JSON(injuryProfile)).Error; err != nil {
			ac.Logger.Printf("Failed to update injury profile for user %d: %v", profile.ID, err)
		}
	}

	return c.JSON(assessment)
}

type ChatRequestBody struct {
	Messages       []utils.ChatMessage `json:"messages" validate:"required,min=1"`
	ConversationID *uint               `json:"conversation_id"`
}

// Chat continues a coaching conversation. Requires auth and a paying tier.
func (ac *AIController) Chat(c *fiber.Ctx) error {
	profile := middleware.ProfileFromContext(c)

	if !profile.IsPaid() {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Upgrade to Pro or Elite for AI coaching chat",
		})
	}

	var req ChatRequestBody
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Messages) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Messages are required",
		})
	}

	response, err := ac.Coach.ChatWithCoach(c.Context(), req.Messages, utils.ChatContext{
		InjuryHistory:    injuryHistoryFromProfile(profile),
		SubscriptionTier: profile.SubscriptionTier,
	})
	if err != nil {
		utils.LogError(err, "coach_chat", map[string]interface{}{"user_id": profile.ID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process chat message",
		})
	}

	thread := append(req.Messages, utils.ChatMessage{Role: "assistant", Content: response})
	messages, _ := json.Marshal(thread)

	conversationID := req.ConversationID
	if conversationID != nil {
		err = ac.DB.Model(&models.AIConversation{}).
			Where("id = ? AND user_id = ?", *conversationID, profile.ID).
			Update("messages", models.JSON(messages)).Error
	} else {
		conversation := models.AIConversation{
			UserID:   profile.ID,
			Messages: models.JSON(messages),
			Context:  "general",
		}
		err = ac.DB.Create(&conversation).Error
		if err == nil {
			conversationID = &conversation.ID
		}
	}
	if err != nil {
		ac.Logger.Printf("Failed to save conversation for user %d: %v", profile.ID, err)
	}

	return c.JSON(fiber.Map{
		"response":        response,
		"conversation_id": conversationID,
	})
}

// DailyTip returns one injury-prevention tip. No persistence.
func (ac *AIController) DailyTip(c *fiber.Ctx) error {
	tip, err := ac.Coach.GenerateInjuryTip(c.Context())
	if err != nil {
		utils.LogError(err, "injury_tip", nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate tip",
		})
	}
	return c.JSON(tip)
}

func injuryHistoryFromProfile(profile *models.Profile) []string {
	if profile == nil || len(profile.InjuryProfile) == 0 {
		return nil
	}
	var injuryProfile struct {
		RiskAreas []string `json:"riskAreas"`
	}
	if err := json.Unmarshal(profile.InjuryProfile, &injuryProfile); err != nil {
		return nil
	}
	return injuryProfile.RiskAreas
}
