package model

// Status is the aggregated health of a session as shown to renderers
type Status string

const (
	StatusOK       Status = "ok"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error"
)

// Worse returns the more severe of two statuses
func (s Status) Worse(other Status) Status {
	if s.rank() >= other.rank() {
		return s
	}
	return other
}

func (s Status) rank() int {
	switch s {
	case StatusError:
		return 2
	case StatusDegraded:
		return 1
	default:
		return 0
	}
}
