package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

const (
	openaiBaseURL      = "https://api.openai.com/v1/chat/completions"
	openaiMaxRetries   = 3
	openaiInitialDelay = 1 * time.Second
)

// CoachClient proxies prompts to the hosted chat-completions API. All
// coaching intelligence lives on the other side of this client; we only
// format prompts and parse the model's JSON.
type CoachClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

func NewCoachClient(apiKey, model string) *CoachClient {
	return &CoachClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: openaiBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []ChatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
}

type openaiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// WarmupRequest are the caller-supplied parameters for a warm-up routine.
type WarmupRequest struct {
	InjuryHistory []string
	TargetAreas   []string
	Duration      int    // minutes
	Intensity     string // light, moderate, intense
}

// WarmupRoutine is the structured routine returned by the model.
type WarmupRoutine struct {
	Title         string `json:"title"`
	TotalDuration int    `json:"totalDuration"`
	Intensity     string `json:"intensity"`
	Phases        []struct {
		Name      string `json:"name"`
		Duration  int    `json:"duration"`
		Exercises []struct {
			Name         string `json:"name"`
			Duration     string `json:"duration"`
			Instructions string `json:"instructions"`
			TargetArea   string `json:"targetArea"`
			Benefit      string `json:"benefit"`
		} `json:"exercises"`
	} `json:"phases"`
	Tips []string `json:"tips"`
}

// RiskAssessment is the structured output of the injury risk quiz.
type RiskAssessment struct {
	OverallRisk string `json:"overallRisk"` // low, moderate, high
	RiskScore   int    `json:"riskScore"`   // 1-100
	RiskAreas   []struct {
		Area        string `json:"area"`
		Risk        string `json:"risk"`
		Explanation string `json:"explanation"`
	} `json:"riskAreas"`
	Recommendations []struct {
		Priority    int      `json:"priority"`
		Title       string   `json:"title"`
		Description string   `json:"description"`
		Exercises   []string `json:"exercises"`
	} `json:"recommendations"`
	Summary string `json:"summary"`
}

// InjuryTip is a single actionable prevention tip.
type InjuryTip struct {
	Tip         string `json:"tip"`
	Category    string `json:"category"`
	TargetArea  string `json:"targetArea"`
	QuickAction string `json:"quickAction"`
}

// GenerateWarmupRoutine asks the model for a structured warm-up routine.
func (c *CoachClient) GenerateWarmupRoutine(ctx context.Context, req WarmupRequest) (*WarmupRoutine, error) {
	var sb strings.Builder
	sb.WriteString("You are an expert sports physiotherapist specializing in padel injury prevention.\n\n")
	sb.WriteString("Generate a personalized warm-up routine for a padel player with the following parameters:\n")
	fmt.Fprintf(&sb, "- Duration: %d minutes\n", req.Duration)
	fmt.Fprintf(&sb, "- Intensity: %s\n", req.Intensity)
	if len(req.InjuryHistory) > 0 {
		fmt.Fprintf(&sb, "- Previous injuries to be mindful of: %s\n", strings.Join(req.InjuryHistory, ", "))
	}
	if len(req.TargetAreas) > 0 {
		fmt.Fprintf(&sb, "- Target areas to focus on: %s\n", strings.Join(req.TargetAreas, ", "))
	}
	sb.WriteString(`
Create a structured warm-up routine with:
1. Dynamic stretches (40% of time)
2. Mobility exercises (30% of time)
3. Sport-specific activation (30% of time)

For each exercise, include:
- Exercise name
- Duration or reps
- Brief instructions
- Target muscle group
- Injury prevention benefit

Return as JSON with this structure:
{"title": "string", "totalDuration": number, "intensity": "string", "phases": [{"name": "string", "duration": number, "exercises": [{"name": "string", "duration": "string", "instructions": "string", "targetArea": "string", "benefit": "string"}]}], "tips": ["string"]}`)

	var routine WarmupRoutine
	if err := c.completeJSON(ctx, []ChatMessage{{Role: "user", Content: sb.String()}}, 0.7, &routine); err != nil {
		return nil, err
	}
	return &routine, nil
}

// AssessInjuryRisk analyses quiz answers into a risk assessment.
func (c *CoachClient) AssessInjuryRisk(ctx context.Context, answers map[string]string) (*RiskAssessment, error) {
	answersJSON, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal answers: %w", err)
	}

	prompt := fmt.Sprintf(`You are an expert sports physiotherapist analyzing injury risk for a padel player.

Based on these quiz answers, assess their injury risk and provide recommendations:

%s

Provide:
1. Overall risk level (low, moderate, high)
2. Specific risk areas ranked by concern
3. Top 3 personalized recommendations
4. Suggested exercises to address weaknesses

Return as JSON:
{"overallRisk": "low|moderate|high", "riskScore": number, "riskAreas": [{"area": "string", "risk": "low|moderate|high", "explanation": "string"}], "recommendations": [{"priority": number, "title": "string", "description": "string", "exercises": ["string"]}], "summary": "string"}`, string(answersJSON))

	var assessment RiskAssessment
	if err := c.completeJSON(ctx, []ChatMessage{{Role: "user", Content: prompt}}, 0.5, &assessment); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// GenerateInjuryTip returns one actionable prevention tip.
func (c *CoachClient) GenerateInjuryTip(ctx context.Context) (*InjuryTip, error) {
	prompt := `You are an expert sports physiotherapist specializing in padel injury prevention.

Generate a helpful, actionable injury prevention tip for padel players.

The tip should be:
- Specific and actionable
- Based on common padel injuries (shoulder, elbow, knee, back, wrist)
- Easy to implement
- Backed by sports science

Return as JSON:
{"tip": "string", "category": "string", "targetArea": "string", "quickAction": "string"}`

	var tip InjuryTip
	if err := c.completeJSON(ctx, []ChatMessage{{Role: "user", Content: prompt}}, 0.9, &tip); err != nil {
		return nil, err
	}
	return &tip, nil
}

// ChatContext is the profile context injected into the coach system prompt.
type ChatContext struct {
	InjuryHistory    []string
	SubscriptionTier string
}

// ChatWithCoach continues a coaching conversation and returns the
// assistant's reply text.
func (c *CoachClient) ChatWithCoach(ctx context.Context, messages []ChatMessage, userCtx ChatContext) (string, error) {
	var sb strings.Builder
	sb.WriteString(`You are PadelFit AI Coach, an expert sports physiotherapist and padel coach specializing in injury prevention.

Your role is to:
- Help players prevent injuries through proper warm-up, technique, and recovery
- Provide personalized advice based on their injury history
- Explain exercises and stretches clearly
- Answer questions about padel-specific injuries
- Recommend when to see a professional for serious concerns

Guidelines:
- Be friendly but professional
- Keep responses concise (2-4 paragraphs max)
- Include specific, actionable advice
- Recommend exercises when appropriate
- Always prioritize safety over performance`)
	if len(userCtx.InjuryHistory) > 0 {
		fmt.Fprintf(&sb, "\n\nUser's injury history: %s", strings.Join(userCtx.InjuryHistory, ", "))
	}
	if userCtx.SubscriptionTier != "" {
		fmt.Fprintf(&sb, "\nUser's subscription: %s", userCtx.SubscriptionTier)
	}

	all := append([]ChatMessage{{Role: "system", Content: sb.String()}}, messages...)
	resp, err := c.complete(ctx, chatRequest{
		Model:       c.model,
		Messages:    all,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return "", err
	}
	return resp, nil
}

func (c *CoachClient) completeJSON(ctx context.Context, messages []ChatMessage, temperature float64, out interface{}) error {
	req := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		ResponseFormat: &struct {
			Type string `json:"type"`
		}{Type: "json_object"},
	}
	content, err := c.complete(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode model JSON: %w", err)
	}
	return nil
}

func (c *CoachClient) complete(ctx context.Context, req chatRequest) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("OPENAI_API_KEY not set")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry with exponential backoff on rate limits and server errors
	var lastErr error
	for attempt := 0; attempt < openaiMaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(math.Pow(2, float64(attempt))) * openaiInitialDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			var apiErr openaiError
			if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
				lastErr = fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
			} else {
				lastErr = fmt.Errorf("OpenAI API error (%d): %s", resp.StatusCode, string(respBody))
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				continue
			}
			return "", lastErr
		}

		var chatResp chatResponse
		if err := json.Unmarshal(respBody, &chatResp); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if len(chatResp.Choices) == 0 {
			return "", fmt.Errorf("no choices returned")
		}
		return chatResp.Choices[0].Message.Content, nil
	}

	return "", lastErr
}
