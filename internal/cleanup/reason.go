package cleanup

import (
	"fmt"
	"time"
)

// MarkReason captures why a duplicate was selected for removal.
type MarkReason struct {
	Rule        string    // marking rule that committed the duplicate
	Keeper      string    // member of the set that stays
	Detail      string    // rule specific explanation
	EvaluatedAt time.Time // when the rule ran
}

// HasReason returns true if a rule selected the duplicate.
func (r MarkReason) HasReason() bool {
	return r.Rule != ""
}

// ToLogString formats the reason for structured logging.
// Example: `by_stem: name starts with stem "img" (keeper=/photos/img.jpg)`
func (r MarkReason) ToLogString() string {
	if !r.HasReason() {
		return "unknown"
	}
	s := r.Rule
	if r.Detail != "" {
		s += ": " + r.Detail
	}
	if r.Keeper != "" {
		s += fmt.Sprintf(" (keeper=%s)", r.Keeper)
	}
	return s
}

// ToHumanReadable formats the reason for CLI output.
// Example: "Copy of /photos/img.jpg"
func (r MarkReason) ToHumanReadable() string {
	if r.Keeper == "" {
		return "Unknown reason"
	}
	if r.Detail == "" {
		return "Copy of " + r.Keeper
	}
	return fmt.Sprintf("Copy of %s, %s", r.Keeper, r.Detail)
}
