// Package monitor polls Datajud for cases whose monitoring window has elapsed.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/starford/tribuna/internal/caseservice"
	"github.com/starford/tribuna/internal/models"
)

// DefaultSchedule runs a pass every fifteen minutes.
const DefaultSchedule = "*/15 * * * *"

// CaseSource lists the cases due for a check.
type CaseSource interface {
	DueCases(ctx context.Context, now time.Time) ([]models.Case, error)
}

// Refresher refreshes a single case.
type Refresher interface {
	Refresh(ctx context.Context, id string) (*caseservice.RefreshResult, error)
}

// Reporter is told about every completed pass. *sse.Broker satisfies it.
type Reporter interface {
	MonitorChecked(checked, failed int)
}

// Report summarises one pass.
type Report struct {
	Checked int
	Failed  int
	Added   int
}

// Monitor runs periodic refresh passes on a cron schedule.
type Monitor struct {
	cases       CaseSource
	refresher   Refresher
	reporter    Reporter
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
	passTimeout time.Duration

	cron    *cron.Cron
	running atomic.Bool
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithReporter sets the pass reporter.
func WithReporter(r Reporter) Option {
	return func(m *Monitor) { m.reporter = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithConcurrency bounds the number of simultaneous refreshes.
func WithConcurrency(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithPassTimeout bounds the duration of a scheduled pass.
func WithPassTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.passTimeout = d
		}
	}
}

// New creates a Monitor.
func New(cases CaseSource, refresher Refresher, opts ...Option) *Monitor {
	m := &Monitor{
		cases:       cases,
		refresher:   refresher,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
		concurrency: 4,
		passTimeout: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start registers the pass on schedule and starts the cron runner.
// Overlapping passes are skipped.
func (m *Monitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(schedule, m.tick); err != nil {
		return fmt.Errorf("monitor: schedule %q: %w", schedule, err)
	}
	m.cron = c
	c.Start()
	m.logger.Info("monitor started", slog.String("schedule", schedule), slog.Int("concurrency", m.concurrency))
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (m *Monitor) Stop() {
	if m.cron == nil {
		return
	}
	<-m.cron.Stop().Done()
	m.logger.Info("monitor stopped")
}

// Run starts the monitor and blocks until ctx is done.
func (m *Monitor) Run(ctx context.Context, schedule string) error {
	if err := m.Start(schedule); err != nil {
		return err
	}
	<-ctx.Done()
	m.Stop()
	return nil
}

func (m *Monitor) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), m.passTimeout)
	defer cancel()
	if _, err := m.RunOnce(ctx); err != nil {
		m.logger.Error("monitor pass failed", slog.String("error", err.Error()))
	}
}

// RunOnce refreshes every due case. Individual refresh failures are logged
// and counted; only listing the due cases can fail the pass.
func (m *Monitor) RunOnce(ctx context.Context) (Report, error) {
	if !m.running.CompareAndSwap(false, true) {
		return Report{}, errors.New("monitor: pass already running")
	}
	defer m.running.Store(false)

	due, err := m.cases.DueCases(ctx, m.now())
	if err != nil {
		return Report{}, fmt.Errorf("monitor: list due cases: %w", err)
	}

	var failed, added atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, c := range due {
		g.Go(func() error {
			res, err := m.refresher.Refresh(gCtx, c.ID)
			if err != nil {
				failed.Add(1)
				m.logger.Warn("monitor refresh failed",
					slog.String("case_id", c.ID),
					slog.String("number", c.Number),
					slog.String("error", err.Error()))
				return nil
			}
			added.Add(int64(res.Added))
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Checked: len(due), Failed: int(failed.Load()), Added: int(added.Load())}
	if rep.Checked > 0 {
		m.logger.Info("monitor pass complete",
			slog.Int("checked", rep.Checked),
			slog.Int("failed", rep.Failed),
			slog.Int("added", rep.Added))
	}
	if m.reporter != nil {
		m.reporter.MonitorChecked(rep.Checked, rep.Failed)
	}
	return rep, nil
}
