package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sznuper/agentprobe/internal/config"
	"github.com/sznuper/agentprobe/internal/notify"
	"github.com/sznuper/agentprobe/internal/probe"
)

// Runner probes the configured endpoints and alerts on failures.
type Runner struct {
	cfg      *config.Config
	logger   *slog.Logger
	dryRun   bool
	probers  map[probe.Kind]probe.Prober
	notifier notify.Notifier
}

type Option func(*Runner)

// WithDryRun makes the default notifier validate and log alerts instead of
// sending them.
func WithDryRun(dryRun bool) Option {
	return func(r *Runner) { r.dryRun = dryRun }
}

// WithNotifier replaces the notifier built from the config.
func WithNotifier(n notify.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithProber replaces the prober used for endpoints of the given kind.
func WithProber(kind probe.Kind, p probe.Prober) Option {
	return func(r *Runner) { r.probers[kind] = p }
}

// New creates a Runner for cfg. Probers and the notifier are built from the
// config unless overridden by opts.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logger,
		probers: make(map[probe.Kind]probe.Prober),
	}
	for _, opt := range opts {
		opt(r)
	}

	o := cfg.Options
	if _, ok := r.probers[probe.KindHTTP]; !ok {
		r.probers[probe.KindHTTP] = probe.NewHTTPProbe(o.HTTPTimeoutDuration(), logger)
	}
	if _, ok := r.probers[probe.KindStream]; !ok {
		sp := probe.NewStreamProbe(logger)
		sp.ConnectTimeout = o.ConnectTimeoutDuration()
		sp.ResponseTimeout = o.ResponseTimeoutDuration()
		sp.Grace = o.GraceDuration()
		sp.Payload = cfg.Probe
		if o.Marker != "" {
			sp.Marker = o.Marker
		}
		r.probers[probe.KindStream] = sp
	}
	if r.notifier == nil {
		r.notifier = notify.FromConfig(cfg, r.dryRun, logger)
	}
	return r
}

// FindEndpoint returns the endpoint with the given name.
func (r *Runner) FindEndpoint(name string) (probe.Endpoint, bool) {
	return r.cfg.FindEndpoint(name)
}

// RunAll probes every configured endpoint, sequentially or with bounded
// parallelism when options.parallel is set. Results are in config order.
func (r *Runner) RunAll(ctx context.Context) []Result {
	eps := r.cfg.ProbeEndpoints()
	results := make([]Result, len(eps))

	if !r.cfg.Options.Parallel {
		for i, ep := range eps {
			results[i] = r.RunEndpoint(ctx, ep)
		}
	} else {
		var g errgroup.Group
		if n := r.cfg.Options.Concurrency; n > 0 {
			g.SetLimit(n)
		}
		for i, ep := range eps {
			g.Go(func() error {
				results[i] = r.RunEndpoint(ctx, ep)
				return nil
			})
		}
		_ = g.Wait()
	}

	r.logger.Info("health check completed", "status", Status(results), "endpoints", len(results))
	return results
}

// RunEndpoint probes a single endpoint and, if it is unhealthy, sends one
// alert for it.
func (r *Runner) RunEndpoint(ctx context.Context, ep probe.Endpoint) Result {
	log := r.logger.With("endpoint", ep.Name)

	result := Result{
		Endpoint: ep.Name,
		Address:  ep.Address,
		Kind:     ep.Kind,
		DryRun:   r.dryRun,
	}

	prober, ok := r.probers[ep.Kind]
	if !ok {
		err := &probe.Error{Kind: probe.ErrConnectionFailure, Msg: fmt.Sprintf("no prober for endpoint kind %q", ep.Kind)}
		result.Outcome = probe.Outcome{
			Endpoint:   ep.Name,
			Kind:       ep.Kind,
			Diagnostic: err.Error(),
			Class:      err.Kind,
			Err:        err,
		}
		log.Error("cannot probe endpoint", "error", err)
		return result
	}

	log.Info("probing endpoint", "kind", ep.Kind, "address", ep.Address)
	out := prober.Probe(ctx, ep)
	result.Outcome = out

	if limit := r.cfg.Options.MaxResponseDuration(); out.Healthy && out.Elapsed > limit {
		err := &probe.Error{
			Kind: probe.ErrResponseTimeout,
			Msg:  fmt.Sprintf("response took %s, over the %s limit", out.Elapsed.Round(time.Millisecond), limit),
		}
		out.Healthy = false
		out.Class = err.Kind
		out.Err = err
		out.Diagnostic = err.Error()
		result.Outcome = out
	}

	if out.Healthy {
		if slow := r.cfg.Options.SlowThresholdDuration(); out.Elapsed > slow {
			result.Slow = true
			log.Warn("slow response", "elapsed", out.Elapsed, "threshold", slow)
		}
		log.Info("endpoint healthy", "elapsed", out.Elapsed)
		return result
	}

	log.Error("endpoint unhealthy", "class", out.Class, "reason", out.Diagnostic, "elapsed", out.Elapsed)
	if out.Response != "" {
		log.Debug("response before failure", "response", out.Response)
	}

	if ctx.Err() != nil {
		log.Warn("run interrupted, not sending alert")
		return result
	}
	r.notifier.Notify(ctx, notify.NewAlertContext(r.cfg.Hostname, ep, out))
	result.Notified = true
	return result
}
