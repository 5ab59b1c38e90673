package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	httpctrl "github.com/shift-lab/argus/pkg/controller/http"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/usecase"
)

func ingestMessage(t *testing.T, uc *usecase.UseCases, messageID, text string, at time.Time) *model.AttendanceEvent {
	t.Helper()

	ev, err := uc.Ingest(context.Background(), model.ChatMessage{
		TenantID:       "acme",
		MessageID:      messageID,
		ChannelID:      "C123",
		ChannelPurpose: model.ChannelPurposeAttendance,
		AuthorID:       "U123",
		AuthorName:     "Riley",
		Text:           text,
		Timestamp:      at,
	})
	gt.NoError(t, err).Required()
	gt.Value(t, ev).NotNil()
	return ev
}

func TestUserStatusEndpoint(t *testing.T) {
	at := time.Date(2026, 8, 28, 9, 54, 0, 0, time.UTC)
	uc, tenants, _ := newWebhookTestEnv(t, usecase.WithClock(func() time.Time { return at.Add(time.Hour) }))
	server := httpctrl.New(uc, tenants)

	ingestMessage(t, uc, "m1", "Available", at)

	t.Run("known user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/users/U123/status", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusOK)

		var resp struct {
			UserID string `json:"user_id"`
			Status string `json:"status"`
			Today  struct {
				CheckinAt *time.Time `json:"checkin_at"`
			} `json:"today"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.UserID).Equal("U123")
		gt.Value(t, resp.Status).Equal("ACTIVE")
		gt.Value(t, resp.Today.CheckinAt).NotNil()
	})

	t.Run("unknown user returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/users/UNOBODY/status", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})
}

func TestTeamStatusEndpoint(t *testing.T) {
	uc, tenants, _ := newWebhookTestEnv(t)
	server := httpctrl.New(uc, tenants)

	at := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	ingestMessage(t, uc, "m1", "Available", at)

	t.Run("lists members with counts", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/status", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusOK)

		var resp struct {
			TenantID string           `json:"tenant_id"`
			Members  []map[string]any `json:"members"`
			Counts   map[string]int   `json:"counts"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.TenantID).Equal("acme")
		gt.Array(t, resp.Members).Length(1)
		gt.Value(t, resp.Counts["ACTIVE"]).Equal(1)
	})

	t.Run("unknown tenant returns 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/nope/status", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})
}

func TestHistoryEndpoint(t *testing.T) {
	uc, tenants, _ := newWebhookTestEnv(t)
	server := httpctrl.New(uc, tenants)

	day := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	ingestMessage(t, uc, "m1", "Available", day.Add(9*time.Hour))
	ingestMessage(t, uc, "m2", "brb - lunch", day.Add(12*time.Hour))
	ingestMessage(t, uc, "m3", "back", day.Add(13*time.Hour))

	t.Run("explicit range", func(t *testing.T) {
		url := fmt.Sprintf("/api/v1/tenants/acme/users/U123/events?from=%s&to=%s",
			day.Format(time.RFC3339),
			day.Add(24*time.Hour).Format(time.RFC3339),
		)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusOK)

		var resp struct {
			Events []struct {
				Kind      string    `json:"kind"`
				EventTime time.Time `json:"event_time"`
			} `json:"events"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Array(t, resp.Events).Length(3)
		gt.Value(t, resp.Events[0].Kind).Equal("CHECKIN")
		gt.Value(t, resp.Events[1].Kind).Equal("BREAK_START")
		gt.Value(t, resp.Events[2].Kind).Equal("BREAK_END")
	})

	t.Run("inverted range returns 400", func(t *testing.T) {
		url := fmt.Sprintf("/api/v1/tenants/acme/users/U123/events?from=%s&to=%s",
			day.Add(24*time.Hour).Format(time.RFC3339),
			day.Format(time.RFC3339),
		)
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("malformed timestamp returns 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/users/U123/events?from=yesterday", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})
}

func TestPatternEndpoint(t *testing.T) {
	uc, tenants, _ := newWebhookTestEnv(t)
	server := httpctrl.New(uc, tenants)

	t.Run("no pattern yet", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/users/U123/pattern", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusOK)

		var resp struct {
			Pattern *json.RawMessage `json:"pattern"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.Pattern).Nil()
	})

	t.Run("computed pattern", func(t *testing.T) {
		base := time.Now().UTC().AddDate(0, 0, -7).Truncate(24 * time.Hour)
		for i := 0; i < 3; i++ {
			day := base.AddDate(0, 0, i)
			ingestMessage(t, uc, fmt.Sprintf("ci-%d", i), "Available", day.Add(9*time.Hour))
			ingestMessage(t, uc, fmt.Sprintf("co-%d", i), "Signing Out", day.Add(17*time.Hour))
		}
		gt.NoError(t, uc.AnalyzePatterns(context.Background(), "acme")).Required()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants/acme/users/U123/pattern", nil)
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusOK)

		var resp struct {
			Pattern *struct {
				SampleDays int    `json:"sample_days"`
				AvgCheckin string `json:"avg_checkin"`
			} `json:"pattern"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.Pattern).NotNil()
		gt.Value(t, resp.Pattern.SampleDays).Equal(3)
		gt.Value(t, resp.Pattern.AvgCheckin).Equal("09:00")
	})
}

func TestCorrectionEndpoint(t *testing.T) {
	uc, tenants, _ := newWebhookTestEnv(t)
	server := httpctrl.New(uc, tenants)

	at := time.Date(2026, 8, 28, 13, 0, 0, 0, time.UTC)
	ingestMessage(t, uc, "m1", "Available", at.Add(-4*time.Hour))
	ev := ingestMessage(t, uc, "m2", "brb", at)

	t.Run("supersedes the event", func(t *testing.T) {
		body, err := json.Marshal(map[string]string{
			"event_id":       string(ev.ID),
			"corrected_kind": "CHECKOUT",
		})
		gt.NoError(t, err).Required()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/acme/corrections", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusOK)

		var resp struct {
			Event struct {
				Kind   string `json:"kind"`
				Source string `json:"source"`
			} `json:"event"`
			Status struct {
				Status string `json:"status"`
			} `json:"status"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp)).Required()
		gt.Value(t, resp.Event.Kind).Equal("CHECKOUT")
		gt.Value(t, resp.Event.Source).Equal("manual")
		gt.Value(t, resp.Status.Status).Equal("OFFLINE")
	})

	t.Run("second correction of same event conflicts", func(t *testing.T) {
		body, err := json.Marshal(map[string]string{
			"event_id":       string(ev.ID),
			"corrected_kind": "BREAK_END",
		})
		gt.NoError(t, err).Required()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/acme/corrections", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusConflict)
	})

	t.Run("unknown event returns 404", func(t *testing.T) {
		body, err := json.Marshal(map[string]string{
			"event_id":       "no-such-event",
			"corrected_kind": "CHECKOUT",
		})
		gt.NoError(t, err).Required()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/acme/corrections", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusNotFound)
	})

	t.Run("invalid kind returns 400", func(t *testing.T) {
		body, err := json.Marshal(map[string]string{
			"event_id":       string(ev.ID),
			"corrected_kind": "SIESTA",
		})
		gt.NoError(t, err).Required()

		req := httptest.NewRequest(http.MethodPost, "/api/v1/tenants/acme/corrections", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, req)

		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})
}
