package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoach(t *testing.T, handler http.HandlerFunc) *CoachClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	coach := NewCoachClient("test-key", "gpt-4o-mini")
	coach.baseURL = server.URL
	return coach
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestGenerateInjuryTipParsesModelJSON(t *testing.T) {
	coach := newTestCoach(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		chatReply(t, w, `{"tip":"Warm up your shoulders","category":"warmup","targetArea":"shoulder","quickAction":"Arm circles for 60s"}`)
	})

	tip, err := coach.GenerateInjuryTip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Warm up your shoulders", tip.Tip)
	assert.Equal(t, "shoulder", tip.TargetArea)
}

func TestGenerateWarmupRoutineBuildsPrompt(t *testing.T) {
	coach := newTestCoach(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Contains(t, req.Messages[0].Content, "Duration: 15 minutes")
		assert.Contains(t, req.Messages[0].Content, "tennis elbow")

		chatReply(t, w, `{"title":"Pre-match warm-up","totalDuration":15,"intensity":"moderate","phases":[{"name":"Dynamic stretches","duration":6,"exercises":[{"name":"Arm swings","duration":"60s","instructions":"Swing both arms","targetArea":"shoulder","benefit":"mobility"}]}],"tips":["Stay hydrated"]}`)
	})

	routine, err := coach.GenerateWarmupRoutine(context.Background(), WarmupRequest{
		InjuryHistory: []string{"tennis elbow"},
		Duration:      15,
		Intensity:     "moderate",
	})
	require.NoError(t, err)
	assert.Equal(t, "Pre-match warm-up", routine.Title)
	require.Len(t, routine.Phases, 1)
	assert.Equal(t, "Arm swings", routine.Phases[0].Exercises[0].Name)
}

func TestChatWithCoachInjectsContext(t *testing.T) {
	coach := newTestCoach(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.GreaterOrEqual(t, len(req.Messages), 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "knee strain")
		assert.Nil(t, req.ResponseFormat)

		chatReply(t, w, "Ice the knee after matches and strengthen your quads.")
	})

	reply, err := coach.ChatWithCoach(context.Background(),
		[]ChatMessage{{Role: "user", Content: "My knee hurts after long matches"}},
		ChatContext{InjuryHistory: []string{"knee strain"}, SubscriptionTier: "pro"},
	)
	require.NoError(t, err)
	assert.Contains(t, reply, "quads")
}

func TestCoachRetriesOnServerError(t *testing.T) {
	attempts := 0
	coach := newTestCoach(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		chatReply(t, w, `{"tip":"t","category":"c","targetArea":"a","quickAction":"q"}`)
	})

	tip, err := coach.GenerateInjuryTip(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "t", tip.Tip)
}

func TestCoachDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	coach := newTestCoach(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]string{"message": "invalid model", "type": "invalid_request_error"},
		})
	})

	_, err := coach.GenerateInjuryTip(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
	assert.Equal(t, 1, attempts)
}

func TestCoachRejectsMalformedModelJSON(t *testing.T) {
	coach := newTestCoach(t, func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "sorry, I cannot produce JSON today")
	})

	_, err := coach.GenerateInjuryTip(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode model JSON")
}

func TestCoachRequiresAPIKey(t *testing.T) {
	coach := NewCoachClient("", "gpt-4o-mini")
	_, err := coach.GenerateInjuryTip(context.Background())
	require.Error(t, err)
}
