// Package caseservice coordinates case registration, Datajud refreshes and
// the movement feed.
package caseservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/starford/tribuna/internal/apperr"
	"github.com/starford/tribuna/internal/cnj"
	"github.com/starford/tribuna/internal/datajud"
	"github.com/starford/tribuna/internal/models"
	"github.com/starford/tribuna/internal/movement"
	"github.com/starford/tribuna/internal/store"
)

// Notifier receives movement changes. *sse.Broker satisfies it.
type Notifier interface {
	MovementsAdded(caseID string, added, unread int)
	MovementsRead(caseID string, marked int)
}

type nopNotifier struct{}

func (nopNotifier) MovementsAdded(string, int, int) {}
func (nopNotifier) MovementsRead(string, int)       {}

// CaseDetail is a case enriched for display.
type CaseDetail struct {
	models.Case
	Formatted string         `json:"formatted_number"`
	Tribunal  cnj.Descriptor `json:"tribunal"`
	Unread    int            `json:"unread"`
}

// RefreshResult describes one merge of upstream data into a case feed.
type RefreshResult struct {
	CaseID    string              `json:"case_id"`
	Added     int                 `json:"added"`
	Unread    int                 `json:"unread"`
	Unchanged bool                `json:"unchanged"`
	Movements []movement.Movement `json:"movements"`
}

// CreateCaseInput holds the fields needed to register a case.
type CreateCaseInput struct {
	Number     string
	Title      string
	Monitoring bool
	Frequency  models.Frequency
}

// Service coordinates the repository, tracker and Datajud fetcher.
type Service struct {
	repo     store.Repository
	tracker  *movement.Tracker
	fetcher  datajud.Fetcher
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	flights  singleflight.Group

	defaultFrequency models.Frequency
	refreshTimeout   time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithNotifier sets the movement event sink.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultFrequency sets the frequency used when monitoring is enabled
// without one.
func WithDefaultFrequency(f models.Frequency) Option {
	return func(s *Service) { s.defaultFrequency = f }
}

// WithRefreshTimeout bounds a shared refresh, which outlives the caller
// that started it.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// NewService creates a Service. fetcher may be nil when only imports are used.
func NewService(repo store.Repository, fetcher datajud.Fetcher, opts ...Option) *Service {
	s := &Service{
		repo:             repo,
		fetcher:          fetcher,
		notifier:         nopNotifier{},
		logger:           slog.Default(),
		now:              func() time.Time { return time.Now().UTC() },
		defaultFrequency: models.FrequencyDaily,
		refreshTimeout:   2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = movement.NewTracker(repo, movement.WithClock(s.now))
	return s
}

// CreateCase registers a case. The number must hold exactly 20 digits.
func (s *Service) CreateCase(ctx context.Context, in CreateCaseInput) (*CaseDetail, error) {
	number := cnj.Normalize(in.Number)
	if len(number) != cnj.Length {
		return nil, fmt.Errorf("case number %q must have %d digits: %w", in.Number, cnj.Length, apperr.ErrInvalidInput)
	}
	freq := in.Frequency
	if in.Monitoring && freq == "" {
		freq = s.defaultFrequency
	}
	c := models.Case{
		ID:        uuid.NewString(),
		Number:    number,
		Title:     strings.TrimSpace(in.Title),
		CreatedAt: s.now(),
		Monitor:   models.Monitoring{Enabled: in.Monitoring, Frequency: freq},
	}
	if err := s.repo.CreateCase(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("case registered", slog.String("case_id", c.ID), slog.String("number", number))
	return s.detail(c, 0), nil
}

// GetCase returns a case with its tribunal and unread count.
func (s *Service) GetCase(ctx context.Context, id string) (*CaseDetail, error) {
	c, err := s.repo.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	feed, err := s.tracker.Feed(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.detail(*c, feed.Unread), nil
}

// ListCases returns a page of cases.
func (s *Service) ListCases(ctx context.Context, limit, offset int) ([]CaseDetail, int, error) {
	cases, total, err := s.repo.ListCases(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.repo.UnreadCounts(ctx)
	if err != nil {
		return nil, 0, err
	}
	out := make([]CaseDetail, len(cases))
	for i, c := range cases {
		out[i] = *s.detail(c, unread[c.ID])
	}
	return out, total, nil
}

// Feed returns the movements of a case, newest first.
func (s *Service) Feed(ctx context.Context, id string) (movement.Summary, error) {
	if _, err := s.repo.GetCase(ctx, id); err != nil {
		return movement.Summary{}, err
	}
	return s.tracker.Feed(ctx, id)
}

// MarkRead acknowledges all movements of a case.
func (s *Service) MarkRead(ctx context.Context, id string) (int, error) {
	if _, err := s.repo.GetCase(ctx, id); err != nil {
		return 0, err
	}
	n, err := s.tracker.MarkRead(ctx, id)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifier.MovementsRead(id, n)
	}
	return n, nil
}

// SetMonitoring updates the polling settings of a case.
func (s *Service) SetMonitoring(ctx context.Context, id string, enabled bool, freq models.Frequency) (*CaseDetail, error) {
	if enabled && freq == "" {
		freq = s.defaultFrequency
	}
	if err := s.repo.SetMonitoring(ctx, id, enabled, freq); err != nil {
		return nil, err
	}
	return s.GetCase(ctx, id)
}

// Refresh fetches the case from Datajud and merges new movements.
// Concurrent refreshes of the same case share one upstream call; the shared
// call is not cancelled when one caller gives up. Each caller gets its own
// copy of the result.
func (s *Service) Refresh(ctx context.Context, id string) (*RefreshResult, error) {
	if s.fetcher == nil {
		return nil, fmt.Errorf("refresh: no datajud client configured: %w", apperr.ErrUpstream)
	}
	ch := s.flights.DoChan(id, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		c, err := s.repo.GetCase(fctx, id)
		if err != nil {
			return nil, err
		}
		p, err := s.fetcher.Lookup(fctx, c.Number)
		if err != nil {
			return nil, err
		}
		return s.apply(fctx, c, p)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*RefreshResult)
		res.Movements = slices.Clone(res.Movements)
		return &res, nil
	}
}

// Import merges a Datajud payload obtained out of band. The case is
// registered, unmonitored, when its number is unknown.
func (s *Service) Import(ctx context.Context, payload []byte) (*RefreshResult, error) {
	p, err := datajud.Decode(payload)
	if err != nil {
		return nil, err
	}
	c, err := s.repo.CaseByNumber(ctx, p.Number)
	if errors.Is(err, apperr.ErrNotFound) {
		// Another importer may win the insert; fall through to the lookup.
		if _, cerr := s.CreateCase(ctx, CreateCaseInput{Number: p.Number, Title: p.Class}); cerr != nil && !errors.Is(cerr, apperr.ErrAlreadyExists) {
			return nil, cerr
		}
		c, err = s.repo.CaseByNumber(ctx, p.Number)
	}
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, c, p)
}

// ImportForCase merges a payload into a known case. The payload must
// describe the same process.
func (s *Service) ImportForCase(ctx context.Context, id string, payload []byte) (*RefreshResult, error) {
	c, err := s.repo.GetCase(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := datajud.Decode(payload)
	if err != nil {
		return nil, err
	}
	if p.Number != c.Number {
		return nil, fmt.Errorf("payload is for %s, case is %s: %w", p.Number, c.Number, apperr.ErrConflict)
	}
	return s.apply(ctx, c, p)
}

// SearchMovements matches movement names and supplements.
func (s *Service) SearchMovements(ctx context.Context, query string, limit int) ([]movement.Movement, error) {
	return s.repo.SearchMovements(ctx, query, limit)
}

// apply merges p into c's feed and records the check.
func (s *Service) apply(ctx context.Context, c *models.Case, p *datajud.Process) (*RefreshResult, error) {
	now := s.now()
	res := &RefreshResult{CaseID: c.ID}

	if p.PayloadHash != "" && p.PayloadHash == c.Monitor.PayloadChecksum {
		feed, err := s.tracker.Feed(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		res.Unchanged = true
		res.Unread = feed.Unread
		res.Movements = feed.Movements
		if err := s.repo.RecordCheck(ctx, c.ID, now, len(feed.Movements), p.PayloadHash); err != nil {
			return nil, err
		}
		return res, nil
	}

	sum, err := s.tracker.Refresh(ctx, c.ID, p.Movements)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RecordCheck(ctx, c.ID, now, len(sum.Movements), p.PayloadHash); err != nil {
		return nil, err
	}
	res.Added = len(sum.Added)
	res.Unread = sum.Unread
	res.Movements = sum.Movements

	if res.Added > 0 {
		s.logger.Info("new movements",
			slog.String("case_id", c.ID),
			slog.Int("added", res.Added),
			slog.Int("unread", res.Unread))
		s.notifier.MovementsAdded(c.ID, res.Added, res.Unread)
	}
	return res, nil
}

func (s *Service) detail(c models.Case, unread int) *CaseDetail {
	return &CaseDetail{
		Case:      c,
		Formatted: cnj.Format(c.Number),
		Tribunal:  cnj.ResolveTribunal(c.Number),
		Unread:    unread,
	}
}
