// Package cycle drives the device through one wake cycle at a time:
// connect, locate, fetch, compare, render or skip, persist, sleep.
//
// The marker is written if and only if rendering succeeded, so after any
// failure the next cycle compares against the last content that is known
// to be on the panel.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AndreRenaud/eink_frame/change"
	"github.com/AndreRenaud/eink_frame/fetch"
	"github.com/AndreRenaud/eink_frame/marker"
	"github.com/AndreRenaud/eink_frame/network"
	"github.com/AndreRenaud/eink_frame/power"
	"github.com/AndreRenaud/eink_frame/report"
	"github.com/AndreRenaud/eink_frame/source"
)

// Renderer draws on the panel. render.Renderer satisfies it.
type Renderer interface {
	Render(data []byte) error
	ShowError(msg string) error
	Sleep() error
}

// Deps are the collaborators of a Controller. Connector and Reporter are
// optional.
type Deps struct {
	Connector network.Connector
	Locator   source.Locator
	Fetcher   fetch.Fetcher
	Strategy  change.Strategy
	Renderer  Renderer
	Store     marker.Store
	Sleeper   power.Sleeper
	Reporter  report.Reporter
	Logger    *slog.Logger
}

type Options struct {
	// SleepDuration between the end of one cycle and the next wake.
	SleepDuration time.Duration
	// Hold keeps the device awake for a moment after a new image.
	Hold time.Duration
	// ReportTimeout bounds publishing the cycle summary.
	ReportTimeout time.Duration
}

type Controller struct {
	deps     Deps
	opts     Options
	logger   *slog.Logger
	handlers map[State]func(context.Context, *Cycle) State
}

// Cycle is the working state of one wake cycle. It does not outlive the
// cycle; only the marker store does.
type Cycle struct {
	ID         string
	Stored     marker.State
	Ref        source.Ref
	Artifact   *fetch.Artifact
	Identifier string
	Bytes      int
	Outcome    Outcome
	Err        error
	Path       []State

	started time.Time
	logger  *slog.Logger
}

// Result is what RunOnce reports about a finished cycle.
type Result struct {
	ID         string
	Outcome    Outcome
	Identifier string
	Bytes      int
	Path       []State
	Err        error
	Duration   time.Duration
}

func New(deps Deps, opts Options) *Controller {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Reporter == nil {
		deps.Reporter = report.Discard{}
	}
	if deps.Sleeper == nil {
		deps.Sleeper = power.Timer{}
	}
	if opts.ReportTimeout <= 0 {
		opts.ReportTimeout = 5 * time.Second
	}
	c := &Controller{deps: deps, opts: opts, logger: deps.Logger}
	c.handlers = map[State]func(context.Context, *Cycle) State{
		Boot:             c.boot,
		Connecting:       c.connect,
		Locating:         c.locate,
		Fetching:         c.fetch,
		Comparing:        c.compare,
		Rendering:        c.render,
		PersistingMarker: c.persist,
		Sleeping:         c.sleep,
	}
	return c
}

// NewCycle starts the working state for a wake.
func (c *Controller) NewCycle() *Cycle {
	id := uuid.NewString()
	return &Cycle{
		ID:      id,
		started: time.Now(),
		logger:  c.logger.With("cycle", id),
	}
}

// Step runs the handler for st and returns the next state. Sleeping
// returns itself.
func (c *Controller) Step(ctx context.Context, cy *Cycle, st State) State {
	h, ok := c.handlers[st]
	if !ok {
		cy.Err = fmt.Errorf("cycle: no handler for %s", st)
		cy.Outcome = Failed
		return Sleeping
	}
	next := h(ctx, cy)
	if next != st {
		cy.logger.Debug("cycle: transition", "from", st, "to", next)
	}
	return next
}

// RunOnce performs a full wake cycle from Boot to Sleeping. It does not
// put the machine to sleep; Run does that.
func (c *Controller) RunOnce(ctx context.Context) Result {
	cy := c.NewCycle()
	defer func() { cy.Artifact.Release() }()

	st := Boot
	for {
		cy.Path = append(cy.Path, st)
		next := c.Step(ctx, cy, st)
		if st == Sleeping {
			break
		}
		st = next
	}
	return Result{
		ID:         cy.ID,
		Outcome:    cy.Outcome,
		Identifier: cy.Identifier,
		Bytes:      cy.Bytes,
		Path:       cy.Path,
		Err:        cy.Err,
		Duration:   time.Since(cy.started),
	}
}

// Run repeats wake cycles until ctx is done or the sleeper halts.
func (c *Controller) Run(ctx context.Context) error {
	for {
		c.RunOnce(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.deps.Sleeper.Sleep(ctx, c.opts.SleepDuration)
		switch {
		case err == nil:
		case errors.Is(err, power.ErrHalt):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			c.logger.Error("cycle: sleep failed, waiting in process instead", "error", err)
			if err := (power.Timer{}).Sleep(ctx, c.opts.SleepDuration); err != nil {
				return err
			}
		}
	}
}

// fail records an error detected in st and routes the cycle to Sleeping.
// A notice is painted only while no valid image is shown: once content is
// on the panel a full refresh just to report an error is not worth it.
func (c *Controller) fail(cy *Cycle, kind Kind, st State, err error) State {
	e := &Error{Kind: kind, State: st, Err: err}
	cy.Err = e
	cy.Outcome = Failed
	cy.Artifact.Release()
	cy.logger.Error("cycle: error", "kind", kind, "state", st, "error", err)

	if cy.Stored.Valid {
		cy.logger.Info("cycle: keeping previous image on display")
		return Sleeping
	}
	if err := c.deps.Renderer.ShowError(kind.notice()); err != nil {
		cy.logger.Error("cycle: error notice failed", "error", err)
	}
	return Sleeping
}

func (c *Controller) boot(ctx context.Context, cy *Cycle) State {
	stored, err := c.deps.Store.Load()
	if err != nil {
		cy.logger.Warn("cycle: marker unreadable, treating as cold boot", "error", err)
		stored = marker.State{}
	}
	cy.Stored = stored
	last := stored.Marker
	if last == "" {
		last = "none"
	}
	cy.logger.Info("cycle: wake",
		"last_image", last,
		"has_valid_image", stored.Valid,
		"strategy", c.deps.Strategy)
	return Connecting
}

func (c *Controller) connect(ctx context.Context, cy *Cycle) State {
	if c.deps.Connector != nil {
		if err := c.deps.Connector.Connect(ctx); err != nil {
			return c.fail(cy, ConnectivityError, Connecting, err)
		}
	}
	if s, ok := c.deps.Locator.(source.Static); ok {
		ref, err := s.Locate(ctx)
		if err != nil {
			return c.fail(cy, ResolutionError, Connecting, err)
		}
		cy.Ref = ref
		return Fetching
	}
	return Locating
}

func (c *Controller) locate(ctx context.Context, cy *Cycle) State {
	ref, err := c.deps.Locator.Locate(ctx)
	if err != nil {
		return c.fail(cy, ResolutionError, Locating, err)
	}
	cy.Ref = ref
	cy.logger.Info("cycle: latest artifact", "name", ref.Name)

	// A name is known before downloading; skip the transfer when it
	// already matches.
	if !c.deps.Strategy.NeedsContent() {
		cy.Identifier = c.deps.Strategy.Identify(ref.Name, nil)
		if !marker.Fits(cy.Identifier) {
			return c.fail(cy, ResolutionError, Locating,
				fmt.Errorf("%w: %q", marker.ErrTooLong, cy.Identifier))
		}
		if !change.Changed(cy.Stored, cy.Identifier) {
			cy.Outcome = Unchanged
			cy.logger.Info("cycle: image unchanged, keeping current display", "identifier", cy.Identifier)
			return Sleeping
		}
	}
	return Fetching
}

func (c *Controller) fetch(ctx context.Context, cy *Cycle) State {
	cy.logger.Info("cycle: downloading", "url", cy.Ref.URL)
	data, err := c.deps.Fetcher.Fetch(ctx, cy.Ref.URL)
	if err != nil {
		return c.fail(cy, TransferError, Fetching, err)
	}
	cy.Artifact = &fetch.Artifact{Name: cy.Ref.Name, URL: cy.Ref.URL, Data: data}
	cy.Bytes = len(data)
	cy.logger.Info("cycle: download complete", "bytes", cy.Bytes)
	return Comparing
}

func (c *Controller) compare(ctx context.Context, cy *Cycle) State {
	id := c.deps.Strategy.Identify(cy.Artifact.Name, cy.Artifact.Data)
	cy.Identifier = id
	cy.logger.Info("cycle: identified", "identifier", id)

	if !marker.Fits(id) {
		return c.fail(cy, ResolutionError, Comparing,
			fmt.Errorf("%w: %q", marker.ErrTooLong, id))
	}
	if !change.Changed(cy.Stored, id) {
		cy.Outcome = Unchanged
		cy.Artifact.Release()
		cy.logger.Info("cycle: image unchanged, keeping current display")
		return Sleeping
	}
	return Rendering
}

func (c *Controller) render(ctx context.Context, cy *Cycle) State {
	err := c.deps.Renderer.Render(cy.Artifact.Data)
	cy.Artifact.Release()
	if err != nil {
		return c.fail(cy, RenderError, Rendering, err)
	}
	cy.logger.Info("cycle: image displayed")
	return PersistingMarker
}

func (c *Controller) persist(ctx context.Context, cy *Cycle) State {
	cy.Outcome = Rendered
	next := marker.State{Marker: cy.Identifier, Valid: true}
	if err := c.deps.Store.Save(next); err != nil {
		// The image is up; the next cycle will just draw it again.
		cy.Err = &Error{Kind: MarkerError, State: PersistingMarker, Err: err}
		cy.logger.Error("cycle: marker not saved", "error", err)
		return Sleeping
	}
	cy.Stored = next
	cy.logger.Info("cycle: successfully updated", "marker", next.Marker)

	if c.opts.Hold > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.opts.Hold):
		}
	}
	return Sleeping
}

func (c *Controller) sleep(ctx context.Context, cy *Cycle) State {
	cy.Artifact.Release()
	if err := c.deps.Renderer.Sleep(); err != nil {
		cy.logger.Warn("cycle: panel sleep failed", "error", err)
	}

	s := report.Summary{
		Cycle:      cy.ID,
		Outcome:    string(cy.Outcome),
		Identifier: cy.Identifier,
		Bytes:      cy.Bytes,
		DurationMS: time.Since(cy.started).Milliseconds(),
		At:         time.Now().UTC(),
	}
	if cy.Err != nil {
		s.Error = cy.Err.Error()
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ReportTimeout)
	defer cancel()
	if err := c.deps.Reporter.Report(rctx, s); err != nil {
		cy.logger.Warn("cycle: report failed", "error", err)
	}

	cy.logger.Info("cycle: entering sleep",
		"outcome", cy.Outcome,
		"duration", c.opts.SleepDuration)
	return Sleeping
}
