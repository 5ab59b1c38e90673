package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"github.com/shift-lab/argus/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// analyzeConcurrency caps parallel per-user analysis within a tenant
const analyzeConcurrency = 8

// AnalyzePatterns recomputes every user's pattern for the tenant over
// the trailing analysis window, then prunes events past retention. The
// analyzer reads whatever the store returns at call time; it tolerates
// concurrent real-time writes and never blocks them.
func (uc *UseCases) AnalyzePatterns(ctx context.Context, tenantID string) error {
	tenant, err := uc.tenants.Get(tenantID)
	if err != nil {
		return err
	}

	end, _ := dayWindow(tenant, uc.now())
	start := end.AddDate(0, 0, -tenant.AnalysisWindowDays)

	users, err := uc.repo.Event().ListUsers(ctx, tenantID, start, end)
	if err != nil {
		return goerr.Wrap(err, "failed to list users for analysis")
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(analyzeConcurrency)
	for _, userID := range users {
		eg.Go(func() error {
			pattern, err := uc.analyzeUser(egCtx, tenant, userID, start, end)
			if err != nil {
				return goerr.Wrap(err, "failed to analyze user", goerr.V("user_id", userID))
			}
			if err := uc.repo.Pattern().Put(egCtx, pattern); err != nil {
				return goerr.Wrap(err, "failed to store pattern", goerr.V("user_id", userID))
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	logging.From(ctx).Info("pattern analysis completed",
		"tenant_id", tenantID,
		"users", len(users),
		"period_start", start,
		"period_end", end,
	)

	return uc.pruneExpired(ctx, tenant)
}

func (uc *UseCases) pruneExpired(ctx context.Context, tenant *model.Tenant) error {
	cutoff := uc.now().AddDate(0, 0, -tenant.RetentionDays)
	pruned, err := uc.repo.Event().PruneBefore(ctx, tenant.ID, cutoff)
	if err != nil {
		return goerr.Wrap(err, "failed to prune expired events")
	}
	if pruned > 0 {
		logging.From(ctx).Info("expired events pruned",
			"tenant_id", tenant.ID,
			"count", pruned,
			"cutoff", cutoff,
		)
	}
	return nil
}

// daySample is one tenant-local day's worth of attendance facts
type daySample struct {
	weekday      time.Weekday
	checkin      model.ClockTime
	checkout     model.ClockTime
	hasCheckout  bool
	breakCount   int
	closedBreaks int
	breakMinutes int
	workHours    float64
	hasWorkHours bool
}

func (uc *UseCases) analyzeUser(ctx context.Context, tenant *model.Tenant, userID string, start, end time.Time) (*model.UserPattern, error) {
	events, err := uc.repo.Event().ListByUser(ctx, tenant.ID, userID, start, end)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list events for analysis")
	}

	pattern := &model.UserPattern{
		TenantID:    tenant.ID,
		UserID:      userID,
		PeriodStart: start,
		PeriodEnd:   end,
		ComputedAt:  uc.now().UTC(),
	}

	samples, reasons := collectSamples(tenant, events)
	pattern.SampleDays = len(samples)
	if pattern.SampleDays < tenant.MinSampleDays {
		// Too little data for meaningful thresholds
		pattern.InsufficientData = true
		return pattern, nil
	}

	summarize(pattern, samples)
	pattern.CommonBreakReasons = rankReasons(reasons)

	pattern.LateCheckinThreshold = pattern.AvgCheckin.AddClamped(tenant.LateBufferMinutes)
	pattern.LongBreakThresholdMinutes = longBreakThreshold(pattern.AvgBreakMinutes, tenant)

	return pattern, nil
}

// collectSamples buckets events into tenant-local days. A day counts as
// a sample only when it has a check-in. Break durations come from the
// back-annotated BREAK_START events.
func collectSamples(tenant *model.Tenant, events []*model.AttendanceEvent) ([]daySample, map[types.ReasonCategory]int) {
	type bucket struct {
		checkin  *model.AttendanceEvent
		checkout *model.AttendanceEvent
		breaks   int
		closed   int
		minutes  int
	}

	loc := tenant.Location()
	buckets := make(map[string]*bucket)
	var order []string
	reasons := make(map[types.ReasonCategory]int)

	for _, ev := range events {
		dayStart, _ := dayWindow(tenant, ev.EventTime)
		key := dayStart.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}

		switch ev.Kind {
		case types.EventCheckin:
			if b.checkin == nil {
				b.checkin = ev
			}
		case types.EventCheckout:
			b.checkout = ev
		case types.EventBreakStart:
			b.breaks++
			if ev.ActualDurationMinutes != nil {
				b.closed++
				b.minutes += *ev.ActualDurationMinutes
			}
			if ev.ReasonCategory.IsValid() {
				reasons[ev.ReasonCategory]++
			}
		}
	}

	var samples []daySample
	for _, key := range order {
		b := buckets[key]
		if b.checkin == nil {
			continue
		}

		local := b.checkin.EventTime.In(loc)
		s := daySample{
			weekday:      local.Weekday(),
			checkin:      model.ClockTimeOf(local),
			breakCount:   b.breaks,
			closedBreaks: b.closed,
			breakMinutes: b.minutes,
		}
		if b.checkout != nil {
			outLocal := b.checkout.EventTime.In(loc)
			s.checkout = model.ClockTimeOf(outLocal)
			s.hasCheckout = true

			worked := b.checkout.EventTime.Sub(b.checkin.EventTime).Minutes() - float64(b.minutes)
			if worked > 0 {
				s.workHours = worked / 60
				s.hasWorkHours = true
			}
		}
		samples = append(samples, s)
	}

	return samples, reasons
}

func summarize(pattern *model.UserPattern, samples []daySample) {
	var checkins, checkouts []model.ClockTime
	var workHours []float64
	totalBreaks := 0
	totalBreakMinutes := 0
	closedBreaks := 0

	byWeekday := make(map[time.Weekday][]daySample)

	for _, s := range samples {
		checkins = append(checkins, s.checkin)
		if s.hasCheckout {
			checkouts = append(checkouts, s.checkout)
		}
		if s.hasWorkHours {
			workHours = append(workHours, s.workHours)
		}
		totalBreaks += s.breakCount
		totalBreakMinutes += s.breakMinutes
		closedBreaks += s.closedBreaks
		byWeekday[s.weekday] = append(byWeekday[s.weekday], s)
	}

	pattern.AvgCheckin = circularMean(checkins)
	if len(checkouts) > 0 {
		pattern.AvgCheckout = circularMean(checkouts)
	}
	pattern.AvgWorkHours = mean(workHours)
	pattern.AvgBreaksPerDay = float64(totalBreaks) / float64(len(samples))
	if closedBreaks > 0 {
		pattern.AvgBreakMinutes = float64(totalBreakMinutes) / float64(closedBreaks)
	}

	for wd, days := range byWeekday {
		stats := pattern.Weekly.Day(wd)
		stats.Days = len(days)

		var ins, outs []model.ClockTime
		var hours []float64
		breaks := 0
		for _, s := range days {
			ins = append(ins, s.checkin)
			if s.hasCheckout {
				outs = append(outs, s.checkout)
			}
			if s.hasWorkHours {
				hours = append(hours, s.workHours)
			}
			breaks += s.breakCount
		}
		stats.AvgCheckin = circularMean(ins)
		if len(outs) > 0 {
			stats.AvgCheckout = circularMean(outs)
		}
		stats.AvgWorkHours = mean(hours)
		stats.AvgBreaks = float64(breaks) / float64(len(days))
	}
}

// circularMean averages times of day on the clock circle, so 23:30 and
// 00:30 average to 00:00 rather than noon.
func circularMean(times []model.ClockTime) model.ClockTime {
	if len(times) == 0 {
		return 0
	}

	var sinSum, cosSum float64
	for _, t := range times {
		angle := float64(t) / (24 * 60) * 2 * math.Pi
		sinSum += math.Sin(angle)
		cosSum += math.Cos(angle)
	}

	angle := math.Atan2(sinSum/float64(len(times)), cosSum/float64(len(times)))
	if angle < 0 {
		angle += 2 * math.Pi
	}

	minutes := int(math.Round(angle / (2 * math.Pi) * 24 * 60))
	return model.ClockTime(minutes % (24 * 60))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func rankReasons(counts map[types.ReasonCategory]int) []model.ReasonCount {
	result := make([]model.ReasonCount, 0, len(counts))
	for cat, n := range counts {
		result = append(result, model.ReasonCount{Category: cat, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Category < result[j].Category
	})
	return result
}

// longBreakThreshold derives the alert threshold from the user's own
// average, floored by the tenant's configured long-break hours so a
// user with short average breaks is not flagged on every coffee run.
func longBreakThreshold(avgBreakMinutes float64, tenant *model.Tenant) int {
	derived := int(math.Round(avgBreakMinutes * tenant.BreakMultiplier))
	floor := int(tenant.LongBreakHours * 60)
	if derived < floor {
		return floor
	}
	return derived
}
