// Package engine is the facade over the calendar subsystem: it owns the
// view window, the active scope, and the unified calendar snapshot, and
// exposes the operations the presentation layer calls.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"carecal/internal/availability"
	"carecal/internal/booking"
	"carecal/internal/calendar"
	"carecal/internal/careapi"
	"carecal/internal/events"
	"carecal/internal/metrics"
	"carecal/internal/model"
	"carecal/internal/timeblock"
	"carecal/internal/view"
)

// Client is the full collaborator surface the engine consumes.
// *careapi.Client satisfies it.
type Client interface {
	calendar.Fetcher
	booking.Mutator
	FetchVisitByID(ctx context.Context, visitID string) (*model.VisitRecord, error)
}

// Rules are optional facility booking constraints applied before
// submission. Zero values disable a rule.
type Rules struct {
	// MinAdvance is the minimum lead time before a slot's block starts.
	MinAdvance time.Duration
	// MaxAdvance is how far ahead a slot may be booked.
	MaxAdvance time.Duration
}

// Engine coordinates aggregation, availability, and booking over one
// logical user session. The calendar snapshot is replaced wholesale on
// every aggregation pass; results from a superseded window or scope are
// discarded on arrival (last-request-wins).
type Engine struct {
	client  Client
	agg     *calendar.Aggregator
	booking *booking.Manager
	bus     *events.Bus
	logger  *zerolog.Logger
	rules   Rules

	// now is swappable for tests.
	now func() time.Time

	mu         sync.Mutex
	window     view.Window
	scope      model.Scope
	readOnly   bool
	generation uint64
	snapshot   calendar.Result
}

// New builds an engine. The initial window is a week view at now.
func New(client Client, bus *events.Bus, logger *zerolog.Logger, rules Rules) *Engine {
	e := &Engine{
		client: client,
		agg:    calendar.New(client, logger),
		bus:    bus,
		logger: logger,
		rules:  rules,
		now:    time.Now,
	}
	e.booking = booking.NewManager(client, (*store)(e), logger)
	e.window = view.New(e.now(), view.ModeWeek)
	return e
}

// SetPagination overrides the visit pagination bounds.
func (e *Engine) SetPagination(pageSize, ceiling int) {
	if pageSize > 0 {
		e.agg.PageSize = pageSize
	}
	if ceiling > 0 {
		e.agg.PageCeiling = ceiling
	}
}

// SetWindow moves the view cursor and re-aggregates for the new window.
func (e *Engine) SetWindow(ctx context.Context, cursor time.Time, mode view.Mode) error {
	e.mu.Lock()
	e.window = view.New(cursor, mode)
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// Navigate shifts the window by one step ("prev", "next", "today") and
// re-aggregates.
func (e *Engine) Navigate(ctx context.Context, direction string) error {
	e.mu.Lock()
	switch direction {
	case "prev":
		e.window = e.window.Prev()
	case "next":
		e.window = e.window.Next()
	case "today":
		e.window = e.window.Today(e.now())
	default:
		e.mu.Unlock()
		return fmt.Errorf("unknown navigation %q", direction)
	}
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// SetMode switches between day and week view at the current cursor and
// re-aggregates.
func (e *Engine) SetMode(ctx context.Context, mode view.Mode) error {
	e.mu.Lock()
	e.window = e.window.WithMode(mode)
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// SetScope selects the resident whose calendar is active and
// re-aggregates. An empty id selects the unscoped view. readOnly marks
// a calendar the session may inspect but not book against.
func (e *Engine) SetScope(ctx context.Context, residentID string, readOnly bool) error {
	e.mu.Lock()
	e.scope = model.Scope{ResidentID: residentID}
	e.readOnly = readOnly
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// Window returns the current view window.
func (e *Engine) Window() view.Window {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.window
}

// Refresh runs a full aggregation pass for the current window and
// scope. A pass whose triggering request was superseded while it ran is
// discarded on arrival; the newer pass owns the snapshot.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	req := calendar.Request{
		Scope:       e.scope,
		WindowStart: e.window.Start(),
		WindowEnd:   e.window.End(),
	}
	e.mu.Unlock()

	res := e.agg.Aggregate(ctx, req)

	e.mu.Lock()
	if gen != e.generation {
		e.mu.Unlock()
		e.logger.Debug().
			Str("window_start", model.LocalDate(req.WindowStart)).
			Str("resident", req.Scope.ResidentID).
			Msg("stale aggregation discarded")
		return nil
	}
	e.snapshot = res
	e.mu.Unlock()

	e.bus.Publish(events.Event{Type: events.TypeCalendarUpdated, Payload: res.Request})
	if len(res.Warnings) > 0 {
		e.bus.Publish(events.Event{Type: events.TypeAggregationDegraded, Payload: res.Warnings})
	}
	return nil
}

// Calendar returns the current unified calendar with its source
// warnings. The returned slice is a copy; the snapshot itself is only
// ever replaced wholesale.
func (e *Engine) Calendar() ([]model.CalendarEvent, []calendar.SourceWarning) {
	e.mu.Lock()
	defer e.mu.Unlock()
	evs := make([]model.CalendarEvent, len(e.snapshot.Events))
	copy(evs, e.snapshot.Events)
	return evs, e.snapshot.Warnings
}

// Day returns the events on one calendar date.
func (e *Engine) Day(date string) []model.CalendarEvent {
	evs, _ := e.Calendar()
	return calendar.FilterByDate(evs, date)
}

// Availability resolves the eligibility state for one slot against the
// current snapshot and wall clock.
func (e *Engine) Availability(date string, block timeblock.Block) model.Availability {
	e.mu.Lock()
	in := availability.Input{
		Scope:    e.scope,
		Date:     date,
		Block:    block,
		Events:   e.snapshot.Events,
		Capacity: e.snapshot.Capacity,
		Roster:   e.snapshot.Roster,
		ReadOnly: e.readOnly,
		Now:      e.now(),
	}
	e.mu.Unlock()

	metrics.IncAvailabilityResolved()
	return availability.Resolve(in)
}

// CreateBooking books the slot for the currently scoped resident. The
// same availability resolution that drives the booking control gates
// the submission here.
func (e *Engine) CreateBooking(ctx context.Context, date string, block timeblock.Block, notes string) (*model.VisitRecord, *booking.Failure) {
	e.mu.Lock()
	residentID := e.scope.ResidentID
	e.mu.Unlock()

	gate := e.Availability(date, block)
	if f := e.checkAdvanceRules(date, block); f != nil {
		return nil, f
	}

	visit, fail := e.booking.Create(ctx, booking.CreateRequest{
		ResidentID: residentID,
		VisitDate:  date,
		TimeBlock:  block,
		Notes:      notes,
	}, gate)
	if fail != nil {
		if fail.Kind == booking.FailGeneric {
			// The server disagreed with the local gate; force the
			// availability view to catch up with server truth.
			if err := e.Refresh(ctx); err != nil {
				e.logger.Warn().Err(err).Msg("post-conflict refresh failed")
			}
		}
		return nil, fail
	}

	e.bus.Publish(events.Event{Type: events.TypeBookingCreated, Payload: visit})
	return visit, nil
}

// CancelBooking cancels a concrete visit and reconciles via full
// re-aggregation.
func (e *Engine) CancelBooking(ctx context.Context, visitID string) *booking.Failure {
	if fail := e.booking.Cancel(ctx, visitID); fail != nil {
		return fail
	}
	e.bus.Publish(events.Event{Type: events.TypeBookingCancelled, Payload: visitID})
	return nil
}

// VisitDetail hydrates one visit record on demand.
func (e *Engine) VisitDetail(ctx context.Context, visitID string) (*model.VisitRecord, error) {
	return e.client.FetchVisitByID(ctx, visitID)
}

// checkAdvanceRules applies the configured min/max advance constraints
// to the slot's block start.
func (e *Engine) checkAdvanceRules(date string, block timeblock.Block) *booking.Failure {
	if e.rules.MinAdvance <= 0 && e.rules.MaxAdvance <= 0 {
		return nil
	}
	day, err := time.ParseInLocation(model.DateLayout, date, e.now().Location())
	if err != nil {
		return &booking.Failure{Kind: booking.FailValidation, Fields: map[string]string{"visit_date": "invalid date"}, Err: err}
	}
	r, ok := timeblock.Get(block)
	if !ok {
		return &booking.Failure{Kind: booking.FailValidation, Fields: map[string]string{"time_block": "unknown block"}, Err: fmt.Errorf("unknown block %q", block)}
	}
	slotStart := day.Add(time.Duration(r.StartMinute) * time.Minute)
	now := e.now()

	if e.rules.MinAdvance > 0 && slotStart.Before(now.Add(e.rules.MinAdvance)) {
		return &booking.Failure{Kind: booking.FailGate, Err: fmt.Errorf("slot starts within the %s minimum advance window", e.rules.MinAdvance)}
	}
	if e.rules.MaxAdvance > 0 && slotStart.After(now.Add(e.rules.MaxAdvance)) {
		return &booking.Failure{Kind: booking.FailGate, Err: fmt.Errorf("slot is beyond the %s maximum advance window", e.rules.MaxAdvance)}
	}
	return nil
}

// store adapts the engine to booking.CalendarStore. Optimistic inserts
// and removals replace the snapshot's event slice wholesale.
type store Engine

func (s *store) InsertEvent(ev model.CalendarEvent) {
	e := (*Engine)(s)
	e.mu.Lock()
	defer e.mu.Unlock()
	merged := make([]model.CalendarEvent, 0, len(e.snapshot.Events)+1)
	merged = append(merged, e.snapshot.Events...)
	merged = append(merged, ev)
	e.snapshot.Events = calendar.Dedup(merged)
}

func (s *store) RemoveEvent(id string) {
	e := (*Engine)(s)
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.CalendarEvent, 0, len(e.snapshot.Events))
	for _, ev := range e.snapshot.Events {
		if ev.ID != id {
			out = append(out, ev)
		}
	}
	e.snapshot.Events = out
}

func (s *store) Refresh(ctx context.Context) error {
	return (*Engine)(s).Refresh(ctx)
}

var _ Client = (*careapi.Client)(nil)

// SetClock overrides the engine's clock. Test hook.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }
