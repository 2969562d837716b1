package probe

import (
	"context"

	"github.com/statuskeep/statusd/internal/domain"
)

// Result is the unified outcome of a single probe attempt.
//
// LatencyMS and Code are nil unless a response actually arrived; Error is
// empty on success. A probe never returns a Go error: every failure mode is
// absorbed into the Status classification so one bad endpoint cannot abort
// a monitoring cycle.
type Result struct {
	Status    domain.Status
	LatencyMS *float64
	Code      *int
	Error     string
}

// Checker performs a single check against a target URL.
type Checker interface {
	Check(ctx context.Context, target string) Result
}
