package model

import "time"

type AlertKind string

const (
	AlertInfo    AlertKind = "info"
	AlertWarning AlertKind = "warning"
	AlertSuccess AlertKind = "success"
)

// AlertReason identifies which condition raised an alert.
type AlertReason string

const (
	ReasonEstimatedTime    AlertReason = "estimated_time"
	ReasonLongSession      AlertReason = "long_session"
	ReasonContinuedSession AlertReason = "continued_session"
	ReasonMilestone        AlertReason = "milestone"
)

type Alert struct {
	Kind     AlertKind   `json:"kind"`
	Reason   AlertReason `json:"reason"`
	Message  string      `json:"message"`
	RaisedAt time.Time   `json:"raisedAt"`
}
