package http_test

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/shift-lab/argus/pkg/controller/http"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/repository/memory"
	"github.com/shift-lab/argus/pkg/usecase"
)

// computeSlackSignature computes the Slack signature for testing
func computeSlackSignature(signingSecret, timestamp, body string) string {
	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	h := hmac.New(sha256.New, []byte(signingSecret))
	h.Write([]byte(baseString))
	return "v0=" + hex.EncodeToString(h.Sum(nil))
}

func newWebhookTestEnv(t *testing.T, opts ...usecase.Option) (*usecase.UseCases, *model.TenantRegistry, *memory.Memory) {
	t.Helper()

	tenants := model.NewTenantRegistry()
	tenants.Register(&model.Tenant{
		ID:                  "acme",
		Timezone:            "UTC",
		ConfidenceThreshold: model.DefaultConfidenceThreshold,
		LongBreakHours:      model.DefaultLongBreakHours,
		NoCheckoutHours:     model.DefaultNoCheckoutHours,
		LateBufferMinutes:   model.DefaultLateBufferMinutes,
		BreakMultiplier:     model.DefaultBreakMultiplier,
		RetentionDays:       model.DefaultRetentionDays,
		AnalysisWindowDays:  model.DefaultAnalysisWindowDays,
		MinSampleDays:       model.DefaultMinSampleDays,
		Channels: map[string]model.ChannelRule{
			"C123": {Purpose: model.ChannelPurposeAttendance},
		},
	})

	repo := memory.New()
	uc := usecase.New(repo, tenants, opts...)
	return uc, tenants, repo
}

func TestVerifySlackSignature(t *testing.T) {
	signingSecret := "test-signing-secret"
	body := []byte(`{"type":"url_verification","challenge":"test"}`)

	t.Run("valid signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, string(body))

		gt.NoError(t, httpctrl.VerifySlackSignature(signingSecret, timestamp, signature, body))
	})

	t.Run("invalid signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)

		err := httpctrl.VerifySlackSignature(signingSecret, timestamp, "v0=invalid_signature", body)
		gt.Error(t, err)
	})

	t.Run("missing timestamp", func(t *testing.T) {
		signature := computeSlackSignature(signingSecret, "123456", string(body))

		err := httpctrl.VerifySlackSignature(signingSecret, "", signature, body)
		gt.Error(t, err)
	})

	t.Run("missing signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)

		err := httpctrl.VerifySlackSignature(signingSecret, timestamp, "", body)
		gt.Error(t, err)
	})

	t.Run("timestamp too old", func(t *testing.T) {
		oldTimestamp := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
		signature := computeSlackSignature(signingSecret, oldTimestamp, string(body))

		err := httpctrl.VerifySlackSignature(signingSecret, oldTimestamp, signature, body)
		gt.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature("wrong-secret", timestamp, string(body))

		err := httpctrl.VerifySlackSignature(signingSecret, timestamp, signature, body)
		gt.Error(t, err)
	})
}

func TestSlackSignatureMiddleware(t *testing.T) {
	signingSecret := "test-signing-secret"
	body := []byte(`{"type":"url_verification","challenge":"test"}`)

	t.Run("calls next handler when signature is valid", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, string(body))

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", signature)

		rec := httptest.NewRecorder()

		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
			w.WriteHeader(http.StatusOK)
		})

		httpctrl.SlackSignatureMiddleware(signingSecret)(next).ServeHTTP(rec, req)

		gt.Bool(t, nextCalled).True()
		gt.Value(t, rec.Code).Equal(http.StatusOK)
	})

	t.Run("rejects invalid signature", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", "v0=invalid")

		rec := httptest.NewRecorder()

		nextCalled := false
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			nextCalled = true
		})

		httpctrl.SlackSignatureMiddleware(signingSecret)(next).ServeHTTP(rec, req)

		gt.Bool(t, nextCalled).False()
		gt.Value(t, rec.Code).Equal(http.StatusUnauthorized)
	})

	t.Run("restores request body for next handler", func(t *testing.T) {
		timestamp := strconv.FormatInt(time.Now().Unix(), 10)
		signature := computeSlackSignature(signingSecret, timestamp, string(body))

		req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
		req.Header.Set("X-Slack-Request-Timestamp", timestamp)
		req.Header.Set("X-Slack-Signature", signature)

		rec := httptest.NewRecorder()

		var receivedBody []byte
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			gt.NoError(t, err)
			receivedBody = data
			w.WriteHeader(http.StatusOK)
		})

		httpctrl.SlackSignatureMiddleware(signingSecret)(next).ServeHTTP(rec, req)

		gt.Value(t, string(receivedBody)).Equal(string(body))
	})
}

func TestSlackWebhookHandler_URLVerification(t *testing.T) {
	signingSecret := "test-signing-secret"
	uc, tenants, _ := newWebhookTestEnv(t)
	handler := httpctrl.NewSlackWebhookHandler(uc, tenants)

	challenge := "test-challenge-token"
	body, err := json.Marshal(map[string]any{
		"type":      "url_verification",
		"challenge": challenge,
	})
	gt.NoError(t, err).Required()

	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := computeSlackSignature(signingSecret, timestamp, string(body))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", signature)

	rec := httptest.NewRecorder()

	middlewareHandler := httpctrl.SlackSignatureMiddleware(signingSecret)(http.HandlerFunc(handler.ServeHTTP))
	middlewareHandler.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.Value(t, rec.Body.String()).Equal(challenge)
}

func TestSlackWebhookHandler_MessageEvent(t *testing.T) {
	signingSecret := "test-signing-secret"
	uc, tenants, _ := newWebhookTestEnv(t)
	handler := httpctrl.NewSlackWebhookHandler(uc, tenants)

	ts := fmt.Sprintf("%d.000100", time.Now().Unix())
	body, err := json.Marshal(map[string]any{
		"token":      "test-token",
		"team_id":    "T123",
		"api_app_id": "A123",
		"type":       "event_callback",
		"event": map[string]any{
			"type":         "message",
			"user":         "U123",
			"text":         "Available",
			"ts":           ts,
			"channel":      "C123",
			"event_ts":     ts,
			"channel_type": "channel",
		},
	})
	gt.NoError(t, err).Required()

	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := computeSlackSignature(signingSecret, timestamp, string(body))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", signature)

	rec := httptest.NewRecorder()

	middlewareHandler := httpctrl.SlackSignatureMiddleware(signingSecret)(http.HandlerFunc(handler.ServeHTTP))
	middlewareHandler.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusOK)

	// Allow async processing to complete
	time.Sleep(100 * time.Millisecond)

	status, err := uc.GetUserStatus(req.Context(), "acme", "U123")
	gt.NoError(t, err).Required()
	gt.Value(t, status.Status).Equal(types.StatusActive)
}

func TestSlackWebhookHandler_IgnoresBotMessage(t *testing.T) {
	signingSecret := "test-signing-secret"
	uc, tenants, _ := newWebhookTestEnv(t)
	handler := httpctrl.NewSlackWebhookHandler(uc, tenants)

	ts := fmt.Sprintf("%d.000200", time.Now().Unix())
	body, err := json.Marshal(map[string]any{
		"token":   "test-token",
		"team_id": "T123",
		"type":    "event_callback",
		"event": map[string]any{
			"type":    "message",
			"user":    "U123",
			"bot_id":  "B999",
			"text":    "Available",
			"ts":      ts,
			"channel": "C123",
		},
	})
	gt.NoError(t, err).Required()

	req := httptest.NewRequest(http.MethodPost, "/hooks/slack/event", bytes.NewReader(body))
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	signature := computeSlackSignature(signingSecret, timestamp, string(body))

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", signature)

	rec := httptest.NewRecorder()

	middlewareHandler := httpctrl.SlackSignatureMiddleware(signingSecret)(http.HandlerFunc(handler.ServeHTTP))
	middlewareHandler.ServeHTTP(rec, req)

	gt.Value(t, rec.Code).Equal(http.StatusOK)

	time.Sleep(100 * time.Millisecond)

	_, err = uc.GetUserStatus(req.Context(), "acme", "U123")
	gt.Error(t, err)
}

func TestParseSlackTimestamp(t *testing.T) {
	parsed, err := httpctrl.ParseSlackTimestamp("1234567890.123456")
	gt.NoError(t, err).Required()
	gt.Value(t, parsed.Unix()).Equal(int64(1234567890))

	_, err = httpctrl.ParseSlackTimestamp("not-a-ts")
	gt.Error(t, err)
}
