//go:build live

package runner

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/sznuper/agentprobe/internal/config"
	"github.com/sznuper/agentprobe/internal/notify"
)

// TestLive probes the endpoints of a real config, one subtest per endpoint.
// Every endpoint is probed even when earlier ones fail. Alerts are only sent
// when AGENTPROBE_LIVE_NOTIFY is set.
//
//	AGENTPROBE_CONFIG=$PWD/config.yaml go test -tags live ./internal/runner -run TestLive -v
func TestLive(t *testing.T) {
	cfg, path, err := config.Resolve("")
	if err != nil {
		t.Skipf("no config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("invalid config %s:\n%v", path, err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	var opts []Option
	if os.Getenv("AGENTPROBE_LIVE_NOTIFY") == "" {
		opts = append(opts, WithNotifier(notify.Nop{}))
	}
	r := New(cfg, logger, opts...)

	for _, ep := range cfg.ProbeEndpoints() {
		t.Run(ep.Name, func(t *testing.T) {
			res := r.RunEndpoint(context.Background(), ep)
			if !res.Healthy() {
				t.Errorf("%s (%s): %s", ep.Name, res.Outcome.Class, res.Outcome.Diagnostic)
			}
			if res.Slow {
				t.Logf("%s answered in %s", ep.Name, res.Elapsed())
			}
		})
	}
}
