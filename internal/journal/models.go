package journal

import "time"

// Status represents the lifecycle of a processed file.
type Status string

const (
	StatusPending    Status = "pending"
	StatusClaimed    Status = "claimed"
	StatusSubmitting Status = "submitting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusClaimed,
	StatusSubmitting,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// IsValid reports whether the status is a known lifecycle state.
func (s Status) IsValid() bool {
	_, ok := statusSet[s]
	return ok
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusClaimed, StatusFailed},
	StatusClaimed:    {StatusSubmitting, StatusFailed},
	StatusSubmitting: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WorkItem is the journal row for a single claimed file.
type WorkItem struct {
	ID           int64
	FileName     string
	SourcePath   string
	Status       Status
	Attempts     int
	ErrorKind    string
	ErrorMessage string
	FinalPath    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ShipmentRecord links a booked shipment to the file it came from.
type ShipmentRecord struct {
	ID             int64
	ItemID         int64
	OrderNo        string
	Carrier        string
	ShipmentID     string
	TrackingNumber string
	LabelPath      string
	CreatedAt      time.Time
}
