package probe

import "time"

// Outcome is the reachability state of a host.
type Outcome string

const (
	// Unknown is the state of a host before its first probe completes.
	Unknown     Outcome = "unknown"
	Reachable   Outcome = "reachable"
	Unreachable Outcome = "unreachable"
)

// Glyph returns the status circle shown in chat messages.
func (o Outcome) Glyph() string {
	switch o {
	case Reachable:
		return "🟢"
	case Unreachable:
		return "🔴"
	default:
		return "⚪"
	}
}

// Result is the outcome of a single probe plus diagnostic detail.
type Result struct {
	Host      int
	Address   string
	Outcome   Outcome
	RTT       time.Duration
	Error     string
	CheckedAt time.Time
}
