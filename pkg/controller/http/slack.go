package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/usecase"
	"github.com/shift-lab/argus/pkg/utils/async"
	"github.com/shift-lab/argus/pkg/utils/errutil"
	"github.com/shift-lab/argus/pkg/utils/logging"
	"github.com/slack-go/slack/slackevents"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const slackBodyKey contextKey = "slack_body"

// verifySlackSignature verifies the Slack request signature
// This is a pure function that can be used independently for testing
func verifySlackSignature(signingSecret, timestamp, signature string, body []byte) error {
	if timestamp == "" {
		return goerr.New("missing timestamp")
	}

	if signature == "" {
		return goerr.New("missing signature")
	}

	// Check timestamp to prevent replay attacks (within 5 minutes)
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return goerr.Wrap(err, "invalid timestamp")
	}

	now := time.Now().Unix()
	if now-ts > 60*5 {
		return goerr.New("timestamp too old", goerr.V("timestamp", timestamp), goerr.V("now", now))
	}

	// Compute expected signature
	baseString := fmt.Sprintf("v0:%s:%s", timestamp, body)
	mac := hmac.New(sha256.New, []byte(signingSecret))
	if _, err := mac.Write([]byte(baseString)); err != nil {
		return goerr.Wrap(err, "failed to compute HMAC")
	}
	expectedSignature := "v0=" + hex.EncodeToString(mac.Sum(nil))

	// Compare signatures
	if !hmac.Equal([]byte(expectedSignature), []byte(signature)) {
		return goerr.New("signature mismatch")
	}

	return nil
}

// SlackSignatureMiddleware creates a middleware that verifies Slack request signatures
func SlackSignatureMiddleware(signingSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			// Read body
			body, err := io.ReadAll(r.Body)
			if err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
				return
			}
			defer func() {
				if err := r.Body.Close(); err != nil {
					logger := logging.From(ctx)
					logger.Error("failed to close request body", "error", err)
				}
			}()

			// Get headers
			timestamp := r.Header.Get("X-Slack-Request-Timestamp")
			signature := r.Header.Get("X-Slack-Signature")

			// Verify signature
			if err := verifySlackSignature(signingSecret, timestamp, signature, body); err != nil {
				errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "slack signature verification failed"), http.StatusUnauthorized)
				return
			}

			// Store body in context for later use and restore it to the request
			ctx = context.WithValue(ctx, slackBodyKey, body)
			r.Body = io.NopCloser(bytes.NewBuffer(body))

			// Call next handler
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SlackWebhookHandler handles Slack Events API webhook requests. Channel
// messages are mapped to a tenant through the registry and handed to the
// ingest pipeline.
type SlackWebhookHandler struct {
	uc      *usecase.UseCases
	tenants *model.TenantRegistry
}

// NewSlackWebhookHandler creates a new Slack webhook handler
func NewSlackWebhookHandler(uc *usecase.UseCases, tenants *model.TenantRegistry) *SlackWebhookHandler {
	return &SlackWebhookHandler{
		uc:      uc,
		tenants: tenants,
	}
}

// ServeHTTP handles Slack webhook requests
func (h *SlackWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Read body (already verified by middleware)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}

	// Parse event
	eventsAPIEvent, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse slack event"), http.StatusBadRequest)
		return
	}

	// Handle different event types
	switch eventsAPIEvent.Type {
	case slackevents.URLVerification:
		// URL Verification challenge
		var cr *slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &cr); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to unmarshal challenge"), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(cr.Challenge)); err != nil {
			logger := logging.From(ctx)
			logger.Error("failed to write challenge response", "error", err)
		}
		return

	case slackevents.CallbackEvent:
		// Return 200 immediately to satisfy Slack's 3-second timeout requirement
		w.WriteHeader(http.StatusOK)

		// Process event asynchronously
		async.Dispatch(ctx, func(ctx context.Context) error {
			return h.handleCallback(ctx, &eventsAPIEvent)
		})

	default:
		// Unknown event type, log and return 200
		logger := logging.From(ctx)
		logger.Warn("unknown slack event type", "type", eventsAPIEvent.Type)
		w.WriteHeader(http.StatusOK)
	}
}

func (h *SlackWebhookHandler) handleCallback(ctx context.Context, event *slackevents.EventsAPIEvent) error {
	msgEvent, ok := event.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		logging.From(ctx).Debug("ignoring non-message event",
			"type", event.InnerEvent.Type,
		)
		return nil
	}

	// Only plain channel messages; edits, deletions and bot posts are
	// not attendance signals.
	if msgEvent.SubType != "" || msgEvent.BotID != "" {
		return nil
	}

	tenant, rule, ok := h.tenants.FindByChannel(msgEvent.Channel)
	if !ok {
		logging.From(ctx).Debug("ignoring message from unmapped channel",
			"channel_id", msgEvent.Channel,
		)
		return nil
	}

	sentAt, err := parseSlackTimestamp(msgEvent.TimeStamp)
	if err != nil {
		return goerr.Wrap(err, "invalid message timestamp",
			goerr.V("ts", msgEvent.TimeStamp))
	}

	msg := model.ChatMessage{
		TenantID:       tenant.ID,
		MessageID:      msgEvent.TimeStamp,
		ChannelID:      msgEvent.Channel,
		ChannelPurpose: rule.Purpose,
		AuthorID:       msgEvent.User,
		Text:           msgEvent.Text,
		Timestamp:      sentAt,
	}

	if _, err := h.uc.Ingest(ctx, msg); err != nil {
		return goerr.Wrap(err, "failed to ingest slack message")
	}

	return nil
}

// parseSlackTimestamp converts a Slack "seconds.fraction" timestamp
// string into a time.Time.
func parseSlackTimestamp(ts string) (time.Time, error) {
	v, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to parse slack timestamp")
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(), nil
}
