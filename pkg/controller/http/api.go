package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/usecase"
	"github.com/shift-lab/argus/pkg/utils/errutil"
	"github.com/shift-lab/argus/pkg/utils/safe"
)

const defaultHistoryWindow = 24 * time.Hour

type todayResponse struct {
	CheckinAt         *time.Time `json:"checkin_at,omitempty"`
	BreakCount        int        `json:"break_count"`
	TotalBreakMinutes int        `json:"total_break_minutes"`
}

type statusResponse struct {
	UserID           string        `json:"user_id"`
	DisplayName      string        `json:"display_name,omitempty"`
	Status           string        `json:"status"`
	Since            time.Time     `json:"since"`
	LastCheckinAt    *time.Time    `json:"last_checkin_at,omitempty"`
	LastCheckoutAt   *time.Time    `json:"last_checkout_at,omitempty"`
	LastBreakStartAt *time.Time    `json:"last_break_start_at,omitempty"`
	BreakReason      string        `json:"break_reason,omitempty"`
	ExpectedReturnAt *time.Time    `json:"expected_return_at,omitempty"`
	Today            todayResponse `json:"today"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

type eventResponse struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"user_id"`
	UserName              string     `json:"user_name,omitempty"`
	Kind                  string     `json:"kind"`
	Confidence            float64    `json:"confidence"`
	Source                string     `json:"source"`
	EventTime             time.Time  `json:"event_time"`
	ExpectedReturnAt      *time.Time `json:"expected_return_at,omitempty"`
	ActualDurationMinutes *int       `json:"actual_duration_minutes,omitempty"`
	Reason                string     `json:"reason,omitempty"`
	ReasonCategory        string     `json:"reason_category,omitempty"`
	Urgency               string     `json:"urgency,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
	ChannelID             string     `json:"channel_id"`
	MessageID             string     `json:"message_id"`
	SupersededBy          string     `json:"superseded_by,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

type anomalyResponse struct {
	Kind             string    `json:"kind"`
	UserID           string    `json:"user_id"`
	Since            time.Time `json:"since"`
	DetectedAt       time.Time `json:"detected_at"`
	ObservedMinutes  int       `json:"observed_minutes"`
	ThresholdMinutes int       `json:"threshold_minutes"`
}

type dayStatsResponse struct {
	Days         int     `json:"days"`
	AvgCheckin   string  `json:"avg_checkin"`
	AvgCheckout  string  `json:"avg_checkout"`
	AvgWorkHours float64 `json:"avg_work_hours"`
	AvgBreaks    float64 `json:"avg_breaks"`
}

type reasonCountResponse struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type patternResponse struct {
	PeriodStart               time.Time                   `json:"period_start"`
	PeriodEnd                 time.Time                   `json:"period_end"`
	SampleDays                int                         `json:"sample_days"`
	InsufficientData          bool                        `json:"insufficient_data"`
	AvgCheckin                string                      `json:"avg_checkin"`
	AvgCheckout               string                      `json:"avg_checkout"`
	AvgWorkHours              float64                     `json:"avg_work_hours"`
	AvgBreaksPerDay           float64                     `json:"avg_breaks_per_day"`
	AvgBreakMinutes           float64                     `json:"avg_break_minutes"`
	Weekly                    map[string]dayStatsResponse `json:"weekly"`
	CommonBreakReasons        []reasonCountResponse       `json:"common_break_reasons"`
	LateCheckinThreshold      string                      `json:"late_checkin_threshold"`
	LongBreakThresholdMinutes int                         `json:"long_break_threshold_minutes"`
	ComputedAt                time.Time                   `json:"computed_at"`
}

func toStatusResponse(s *model.UserStatus) statusResponse {
	return statusResponse{
		UserID:           s.UserID,
		DisplayName:      s.DisplayName,
		Status:           string(s.Status.Normalize()),
		Since:            s.Since,
		LastCheckinAt:    s.LastCheckinAt,
		LastCheckoutAt:   s.LastCheckoutAt,
		LastBreakStartAt: s.LastBreakStartAt,
		BreakReason:      s.BreakReason,
		ExpectedReturnAt: s.ExpectedReturnAt,
		Today: todayResponse{
			CheckinAt:         s.Today.CheckinAt,
			BreakCount:        s.Today.BreakCount,
			TotalBreakMinutes: s.Today.TotalBreakMinutes,
		},
		UpdatedAt: s.UpdatedAt,
	}
}

func toEventResponse(ev *model.AttendanceEvent) eventResponse {
	return eventResponse{
		ID:                    string(ev.ID),
		UserID:                ev.UserID,
		UserName:              ev.UserName,
		Kind:                  string(ev.Kind),
		Confidence:            ev.Confidence,
		Source:                string(ev.Source),
		EventTime:             ev.EventTime,
		ExpectedReturnAt:      ev.ExpectedReturnAt,
		ActualDurationMinutes: ev.ActualDurationMinutes,
		Reason:                ev.Reason,
		ReasonCategory:        string(ev.ReasonCategory),
		Urgency:               string(ev.Urgency),
		Notes:                 ev.Notes,
		ChannelID:             ev.ChannelID,
		MessageID:             ev.MessageID,
		SupersededBy:          string(ev.SupersededBy),
		CreatedAt:             ev.CreatedAt,
	}
}

func toAnomalyResponses(anomalies []model.Anomaly) []anomalyResponse {
	result := make([]anomalyResponse, len(anomalies))
	for i, a := range anomalies {
		result[i] = anomalyResponse{
			Kind:             string(a.Kind),
			UserID:           a.UserID,
			Since:            a.Since,
			DetectedAt:       a.DetectedAt,
			ObservedMinutes:  a.ObservedMinutes,
			ThresholdMinutes: a.ThresholdMinutes,
		}
	}
	return result
}

func toPatternResponse(p *model.UserPattern) *patternResponse {
	weekly := make(map[string]dayStatsResponse, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		stats := p.Weekly.Day(d)
		weekly[strings.ToLower(d.String())] = dayStatsResponse{
			Days:         stats.Days,
			AvgCheckin:   stats.AvgCheckin.String(),
			AvgCheckout:  stats.AvgCheckout.String(),
			AvgWorkHours: stats.AvgWorkHours,
			AvgBreaks:    stats.AvgBreaks,
		}
	}

	reasons := make([]reasonCountResponse, len(p.CommonBreakReasons))
	for i, rc := range p.CommonBreakReasons {
		reasons[i] = reasonCountResponse{
			Category: string(rc.Category),
			Count:    rc.Count,
		}
	}

	return &patternResponse{
		PeriodStart:               p.PeriodStart,
		PeriodEnd:                 p.PeriodEnd,
		SampleDays:                p.SampleDays,
		InsufficientData:          p.InsufficientData,
		AvgCheckin:                p.AvgCheckin.String(),
		AvgCheckout:               p.AvgCheckout.String(),
		AvgWorkHours:              p.AvgWorkHours,
		AvgBreaksPerDay:           p.AvgBreaksPerDay,
		AvgBreakMinutes:           p.AvgBreakMinutes,
		Weekly:                    weekly,
		CommonBreakReasons:        reasons,
		LateCheckinThreshold:      p.LateCheckinThreshold.String(),
		LongBreakThresholdMinutes: p.LongBreakThresholdMinutes,
		ComputedAt:                p.ComputedAt,
	}
}

// teamStatusHandler serves the live status of every tenant member
func teamStatusHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		TenantID string           `json:"tenant_id"`
		Members  []statusResponse `json:"members"`
		Counts   map[string]int   `json:"counts"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := chi.URLParam(r, "tenantID")

		team, err := uc.GetTeamStatus(ctx, tenantID)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, apiStatusCode(err))
			return
		}

		resp := response{
			TenantID: team.TenantID,
			Members:  make([]statusResponse, len(team.Members)),
			Counts:   make(map[string]int, len(team.Counts)),
		}
		for i, m := range team.Members {
			resp.Members[i] = toStatusResponse(m)
		}
		for st, n := range team.Counts {
			resp.Counts[string(st)] = n
		}

		writeJSON(w, r, resp)
	}
}

// userStatusHandler serves the live status of one user
func userStatusHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := chi.URLParam(r, "tenantID")
		userID := chi.URLParam(r, "userID")

		status, err := uc.GetUserStatus(ctx, tenantID, userID)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, apiStatusCode(err))
			return
		}

		writeJSON(w, r, toStatusResponse(status))
	}
}

// historyHandler serves a user's events within a time range. The range
// defaults to the trailing 24 hours.
func historyHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		Events []eventResponse `json:"events"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := chi.URLParam(r, "tenantID")
		userID := chi.URLParam(r, "userID")

		from, to, err := timeRange(r, defaultHistoryWindow)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		events, err := uc.GetHistory(ctx, tenantID, userID, from, to)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, apiStatusCode(err))
			return
		}

		resp := response{Events: make([]eventResponse, len(events))}
		for i, ev := range events {
			resp.Events[i] = toEventResponse(ev)
		}

		writeJSON(w, r, resp)
	}
}

// patternHandler serves a user's latest behavior pattern together with
// the anomalies found in the requested window. The window defaults to
// the trailing 30 days.
func patternHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		Pattern     *patternResponse  `json:"pattern"`
		Occurrences []anomalyResponse `json:"occurrences"`
		Open        []anomalyResponse `json:"open"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := chi.URLParam(r, "tenantID")
		userID := chi.URLParam(r, "userID")

		from, to, err := timeRange(r, 30*24*time.Hour)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, http.StatusBadRequest)
			return
		}

		report, err := uc.GetPatternReport(ctx, tenantID, userID, from, to)
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, apiStatusCode(err))
			return
		}

		resp := response{
			Occurrences: toAnomalyResponses(report.Occurrences),
			Open:        toAnomalyResponses(report.Open),
		}
		if report.Pattern != nil {
			resp.Pattern = toPatternResponse(report.Pattern)
		}

		writeJSON(w, r, resp)
	}
}

// correctionHandler supersedes a stored event with a manual one
func correctionHandler(uc *usecase.UseCases) http.HandlerFunc {
	type request struct {
		EventID         string `json:"event_id"`
		CorrectedKind   string `json:"corrected_kind"`
		CorrectedReason string `json:"corrected_reason"`
	}
	type response struct {
		Event  eventResponse  `json:"event"`
		Status statusResponse `json:"status"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tenantID := chi.URLParam(r, "tenantID")

		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to decode correction request"), http.StatusBadRequest)
			return
		}
		if req.EventID == "" {
			errutil.HandleHTTP(ctx, w, goerr.New("event_id is required"), http.StatusBadRequest)
			return
		}

		kind := types.EventKind(strings.ToUpper(req.CorrectedKind))
		if !kind.IsValid() {
			errutil.HandleHTTP(ctx, w, goerr.New("invalid corrected_kind",
				goerr.V("corrected_kind", req.CorrectedKind)), http.StatusBadRequest)
			return
		}

		event, status, err := uc.Correct(ctx, tenantID, usecase.Correction{
			EventID: model.EventID(req.EventID),
			Kind:    kind,
			Reason:  req.CorrectedReason,
		})
		if err != nil {
			errutil.HandleHTTP(ctx, w, err, apiStatusCode(err))
			return
		}

		writeJSON(w, r, response{
			Event:  toEventResponse(event),
			Status: toStatusResponse(status),
		})
	}
}

// timeRange reads the from/to query parameters as RFC 3339 timestamps,
// filling absent bounds from the default window ending now.
func timeRange(r *http.Request, window time.Duration) (time.Time, time.Time, error) {
	to := time.Now()
	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, goerr.Wrap(err, "invalid 'to' parameter", goerr.V("to", v))
		}
		to = parsed
	}

	from := to.Add(-window)
	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, goerr.Wrap(err, "invalid 'from' parameter", goerr.V("from", v))
		}
		from = parsed
	}

	if !to.After(from) {
		return time.Time{}, time.Time{}, goerr.New("'from' must precede 'to'",
			goerr.V("from", from), goerr.V("to", to))
	}

	return from, to, nil
}

// apiStatusCode maps domain errors to HTTP status codes
func apiStatusCode(err error) int {
	switch {
	case errors.Is(err, model.ErrTenantNotFound),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, usecase.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, usecase.ErrAlreadySuperseded):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to marshal response"), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	safe.Write(r.Context(), w, data)
}
