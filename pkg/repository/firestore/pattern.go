package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"google.golang.org/api/iterator"
)

type dayStatsDocument struct {
	Days         int     `firestore:"days"`
	AvgCheckin   int     `firestore:"avg_checkin"`
	AvgCheckout  int     `firestore:"avg_checkout"`
	AvgWorkHours float64 `firestore:"avg_work_hours"`
	AvgBreaks    float64 `firestore:"avg_breaks"`
}

type reasonCountDocument struct {
	Category string `firestore:"category"`
	Count    int    `firestore:"count"`
}

type patternDocument struct {
	TenantID string `firestore:"tenant_id"`
	UserID   string `firestore:"user_id"`

	PeriodStart time.Time `firestore:"period_start"`
	PeriodEnd   time.Time `firestore:"period_end"`

	SampleDays       int  `firestore:"sample_days"`
	InsufficientData bool `firestore:"insufficient_data"`

	AvgCheckin      int     `firestore:"avg_checkin"`
	AvgCheckout     int     `firestore:"avg_checkout"`
	AvgWorkHours    float64 `firestore:"avg_work_hours"`
	AvgBreaksPerDay float64 `firestore:"avg_breaks_per_day"`
	AvgBreakMinutes float64 `firestore:"avg_break_minutes"`

	Weekly             map[string]*dayStatsDocument `firestore:"weekly"`
	CommonBreakReasons []*reasonCountDocument       `firestore:"common_break_reasons"`

	LateCheckinThreshold      int `firestore:"late_checkin_threshold"`
	LongBreakThresholdMinutes int `firestore:"long_break_threshold_minutes"`

	ComputedAt time.Time `firestore:"computed_at"`
}

var weekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

func toDayStatsDocument(s *model.DayStats) *dayStatsDocument {
	return &dayStatsDocument{
		Days:         s.Days,
		AvgCheckin:   int(s.AvgCheckin),
		AvgCheckout:  int(s.AvgCheckout),
		AvgWorkHours: s.AvgWorkHours,
		AvgBreaks:    s.AvgBreaks,
	}
}

func (d *dayStatsDocument) toModel() model.DayStats {
	return model.DayStats{
		Days:         d.Days,
		AvgCheckin:   model.ClockTime(d.AvgCheckin),
		AvgCheckout:  model.ClockTime(d.AvgCheckout),
		AvgWorkHours: d.AvgWorkHours,
		AvgBreaks:    d.AvgBreaks,
	}
}

func toPatternDocument(p *model.UserPattern) *patternDocument {
	weekly := make(map[string]*dayStatsDocument, len(weekdayOrder))
	for _, wd := range weekdayOrder {
		weekly[wd.String()] = toDayStatsDocument(p.Weekly.Day(wd))
	}

	reasons := make([]*reasonCountDocument, 0, len(p.CommonBreakReasons))
	for _, r := range p.CommonBreakReasons {
		reasons = append(reasons, &reasonCountDocument{
			Category: r.Category.String(),
			Count:    r.Count,
		})
	}

	return &patternDocument{
		TenantID:                  p.TenantID,
		UserID:                    p.UserID,
		PeriodStart:               p.PeriodStart,
		PeriodEnd:                 p.PeriodEnd,
		SampleDays:                p.SampleDays,
		InsufficientData:          p.InsufficientData,
		AvgCheckin:                int(p.AvgCheckin),
		AvgCheckout:               int(p.AvgCheckout),
		AvgWorkHours:              p.AvgWorkHours,
		AvgBreaksPerDay:           p.AvgBreaksPerDay,
		AvgBreakMinutes:           p.AvgBreakMinutes,
		Weekly:                    weekly,
		CommonBreakReasons:        reasons,
		LateCheckinThreshold:      int(p.LateCheckinThreshold),
		LongBreakThresholdMinutes: p.LongBreakThresholdMinutes,
		ComputedAt:                p.ComputedAt,
	}
}

func (d *patternDocument) toModel() *model.UserPattern {
	p := &model.UserPattern{
		TenantID:                  d.TenantID,
		UserID:                    d.UserID,
		PeriodStart:               d.PeriodStart,
		PeriodEnd:                 d.PeriodEnd,
		SampleDays:                d.SampleDays,
		InsufficientData:          d.InsufficientData,
		AvgCheckin:                model.ClockTime(d.AvgCheckin),
		AvgCheckout:               model.ClockTime(d.AvgCheckout),
		AvgWorkHours:              d.AvgWorkHours,
		AvgBreaksPerDay:           d.AvgBreaksPerDay,
		AvgBreakMinutes:           d.AvgBreakMinutes,
		LateCheckinThreshold:      model.ClockTime(d.LateCheckinThreshold),
		LongBreakThresholdMinutes: d.LongBreakThresholdMinutes,
		ComputedAt:                d.ComputedAt,
	}

	for _, wd := range weekdayOrder {
		if doc, ok := d.Weekly[wd.String()]; ok && doc != nil {
			*p.Weekly.Day(wd) = doc.toModel()
		}
	}

	for _, r := range d.CommonBreakReasons {
		p.CommonBreakReasons = append(p.CommonBreakReasons, model.ReasonCount{
			Category: types.ReasonCategory(r.Category),
			Count:    r.Count,
		})
	}

	return p
}

type patternRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newPatternRepository(client *firestore.Client) *patternRepository {
	return &patternRepository{client: client}
}

func (r *patternRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_attendance_patterns"
	}
	return "attendance_patterns"
}

// patternDocID keys one pattern per (tenant, user, period start date)
func patternDocID(tenantID, userID string, periodStart time.Time) string {
	return tenantID + "_" + userID + "_" + periodStart.UTC().Format("2006-01-02")
}

func (r *patternRepository) Put(ctx context.Context, p *model.UserPattern) error {
	docRef := r.client.Collection(r.collection()).Doc(patternDocID(p.TenantID, p.UserID, p.PeriodStart))
	if _, err := docRef.Set(ctx, toPatternDocument(p)); err != nil {
		return goerr.Wrap(err, "failed to put pattern", goerr.V("user_id", p.UserID))
	}
	return nil
}

func (r *patternRepository) Latest(ctx context.Context, tenantID, userID string) (*model.UserPattern, error) {
	query := r.client.Collection(r.collection()).
		Where("tenant_id", "==", tenantID).
		Where("user_id", "==", userID).
		OrderBy("period_start", firestore.Desc).
		Limit(1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(model.ErrNotFound, "pattern not found", goerr.V("user_id", userID))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query latest pattern", goerr.V("user_id", userID))
	}

	var doc patternDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode pattern")
	}
	return doc.toModel(), nil
}

func (r *patternRepository) ListLatest(ctx context.Context, tenantID string) ([]*model.UserPattern, error) {
	// Latest per user: scan the tenant's patterns ordered by user then
	// period descending, keeping the first row of each user.
	query := r.client.Collection(r.collection()).
		Where("tenant_id", "==", tenantID).
		OrderBy("user_id", firestore.Asc).
		OrderBy("period_start", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []*model.UserPattern
	lastUser := ""
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate patterns")
		}

		var doc patternDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode pattern")
		}
		if doc.UserID == lastUser {
			continue
		}
		lastUser = doc.UserID
		result = append(result, doc.toModel())
	}
	return result, nil
}
