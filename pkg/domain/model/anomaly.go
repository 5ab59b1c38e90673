package model

import (
	"time"

	"github.com/shift-lab/argus/pkg/domain/types"
)

// Anomaly describes a detected deviation from a user's historical
// behavior. It is a descriptor for the notification collaborator, not
// user-facing text.
type Anomaly struct {
	Kind     types.AnomalyKind
	TenantID string
	UserID   string

	// Since is when the anomalous condition began (break start, check-in
	// time, or session start depending on Kind)
	Since      time.Time
	DetectedAt time.Time

	// ObservedMinutes is the measured value, ThresholdMinutes the limit
	// it exceeded. For LATE_CHECKIN both are minutes since midnight.
	ObservedMinutes  int
	ThresholdMinutes int
}
