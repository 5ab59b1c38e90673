package types

// AnomalyKind identifies the condition that raised an anomaly
type AnomalyKind string

const (
	AnomalyLongBreak   AnomalyKind = "LONG_BREAK"
	AnomalyNoCheckout  AnomalyKind = "NO_CHECKOUT"
	AnomalyLateCheckin AnomalyKind = "LATE_CHECKIN"
)

// IsValid checks if the anomaly kind is valid
func (k AnomalyKind) IsValid() bool {
	switch k {
	case AnomalyLongBreak, AnomalyNoCheckout, AnomalyLateCheckin:
		return true
	default:
		return false
	}
}

// String returns the string representation of the anomaly kind
func (k AnomalyKind) String() string {
	return string(k)
}
