package notification

import "github.com/noah-isme/defense-allocation-api/internal/dto"

// Purpose tells the dispatcher which message family to render.
type Purpose string

const (
	PurposeSchedule Purpose = "schedule"
	PurposeGrade    Purpose = "grade"
)

// Channel names a delivery channel.
type Channel string

const (
	ChannelMessage Channel = "message"
	ChannelEmail   Channel = "email"
)

// Event is published once per defense after the owning transaction commits.
type Event struct {
	Purpose Purpose
	Defense dto.DefenseSummary
}

// Result reports the outcome of one channel delivery.
type Result struct {
	Channel Channel
	Sent    bool
	Skipped bool
	Queued  bool
	Err     error
}
