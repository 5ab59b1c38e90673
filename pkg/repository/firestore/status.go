package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/shift-lab/argus/pkg/domain/model"
	"github.com/shift-lab/argus/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type statusDocument struct {
	TenantID    string `firestore:"tenant_id"`
	UserID      string `firestore:"user_id"`
	DisplayName string `firestore:"display_name"`

	Status   string    `firestore:"status"`
	Since    time.Time `firestore:"since"`
	DayStart time.Time `firestore:"day_start"`

	LastCheckinAt    *time.Time `firestore:"last_checkin_at"`
	LastCheckoutAt   *time.Time `firestore:"last_checkout_at"`
	LastBreakStartAt *time.Time `firestore:"last_break_start_at"`

	BreakReason      string     `firestore:"break_reason"`
	ExpectedReturnAt *time.Time `firestore:"expected_return_at"`

	TodayCheckinAt         *time.Time `firestore:"today_checkin_at"`
	TodayBreakCount        int        `firestore:"today_break_count"`
	TodayTotalBreakMinutes int        `firestore:"today_total_break_minutes"`

	UpdatedAt time.Time `firestore:"updated_at"`
}

func toStatusDocument(s *model.UserStatus) *statusDocument {
	return &statusDocument{
		TenantID:               s.TenantID,
		UserID:                 s.UserID,
		DisplayName:            s.DisplayName,
		Status:                 s.Status.String(),
		Since:                  s.Since,
		DayStart:               s.DayStart,
		LastCheckinAt:          s.LastCheckinAt,
		LastCheckoutAt:         s.LastCheckoutAt,
		LastBreakStartAt:       s.LastBreakStartAt,
		BreakReason:            s.BreakReason,
		ExpectedReturnAt:       s.ExpectedReturnAt,
		TodayCheckinAt:         s.Today.CheckinAt,
		TodayBreakCount:        s.Today.BreakCount,
		TodayTotalBreakMinutes: s.Today.TotalBreakMinutes,
		UpdatedAt:              s.UpdatedAt,
	}
}

func (d *statusDocument) toModel() *model.UserStatus {
	return &model.UserStatus{
		TenantID:         d.TenantID,
		UserID:           d.UserID,
		DisplayName:      d.DisplayName,
		Status:           types.Status(d.Status),
		Since:            d.Since,
		DayStart:         d.DayStart,
		LastCheckinAt:    d.LastCheckinAt,
		LastCheckoutAt:   d.LastCheckoutAt,
		LastBreakStartAt: d.LastBreakStartAt,
		BreakReason:      d.BreakReason,
		ExpectedReturnAt: d.ExpectedReturnAt,
		Today: model.TodayStats{
			CheckinAt:         d.TodayCheckinAt,
			BreakCount:        d.TodayBreakCount,
			TotalBreakMinutes: d.TodayTotalBreakMinutes,
		},
		UpdatedAt: d.UpdatedAt,
	}
}

type statusRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newStatusRepository(client *firestore.Client) *statusRepository {
	return &statusRepository{client: client}
}

func (r *statusRepository) collection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_user_statuses"
	}
	return "user_statuses"
}

func statusDocID(tenantID, userID string) string {
	return tenantID + "_" + userID
}

func (r *statusRepository) Get(ctx context.Context, tenantID, userID string) (*model.UserStatus, error) {
	docRef := r.client.Collection(r.collection()).Doc(statusDocID(tenantID, userID))
	snap, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "status not found", goerr.V("user_id", userID))
		}
		return nil, goerr.Wrap(err, "failed to get status", goerr.V("user_id", userID))
	}

	var doc statusDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, goerr.Wrap(err, "failed to decode status")
	}
	return doc.toModel(), nil
}

func (r *statusRepository) Put(ctx context.Context, s *model.UserStatus) error {
	docRef := r.client.Collection(r.collection()).Doc(statusDocID(s.TenantID, s.UserID))
	if _, err := docRef.Set(ctx, toStatusDocument(s)); err != nil {
		return goerr.Wrap(err, "failed to put status", goerr.V("user_id", s.UserID))
	}
	return nil
}

func (r *statusRepository) List(ctx context.Context, tenantID string) ([]*model.UserStatus, error) {
	query := r.client.Collection(r.collection()).
		Where("tenant_id", "==", tenantID).
		OrderBy("user_id", firestore.Asc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var result []*model.UserStatus
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate statuses")
		}

		var doc statusDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode status")
		}
		result = append(result, doc.toModel())
	}
	return result, nil
}
