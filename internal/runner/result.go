package runner

import (
	"time"

	"github.com/sznuper/agentprobe/internal/probe"
)

// Result captures the outcome of probing a single endpoint. Failures live in
// Outcome rather than being returned, so the caller always has something to
// display.
type Result struct {
	Endpoint string
	Address  string
	Kind     probe.Kind
	Outcome  probe.Outcome
	Slow     bool // healthy, but slower than the slow threshold
	Notified bool // an alert was handed to the notifier
	DryRun   bool
}

func (r Result) Healthy() bool { return r.Outcome.Healthy }

func (r Result) Elapsed() time.Duration { return r.Outcome.Elapsed }

// Healthy reports whether every result is healthy.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.Healthy() {
			return false
		}
	}
	return true
}

// ExitCode is the process exit status for a run: 0 when every endpoint is
// healthy, 1 otherwise.
func ExitCode(results []Result) int {
	if Healthy(results) {
		return 0
	}
	return 1
}

// Status is the overall verdict line for a run.
func Status(results []Result) string {
	if Healthy(results) {
		return "HEALTHY"
	}
	return "ISSUES DETECTED"
}
