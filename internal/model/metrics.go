package model

// Outcome labels shared by metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeLocked   = "locked"
	OutcomeRejected = "rejected"
)

// MetricsRecorder receives domain events worth counting.
type MetricsRecorder interface {
	StageSubmitted(stage Stage, outcome string)
	LoginAttempt(outcome string)
	AccountLocked()
	CodeIssued(reason string)
	DeliveryFailed(channel string)
	ArchiveFailed()
}
