// Package booking drives the visit create/cancel lifecycle: gate on
// availability, apply an optimistic local update, reconcile with the
// authoritative server response.
package booking

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"carecal/internal/careapi"
	"carecal/internal/metrics"
	"carecal/internal/model"
	"carecal/internal/timeblock"
)

// Mutator is the collaborator slice that performs booking mutations.
// *careapi.Client satisfies it.
type Mutator interface {
	CreateVisit(ctx context.Context, req careapi.CreateVisitRequest) (*model.VisitRecord, error)
	CancelVisit(ctx context.Context, visitID string) error
}

// CalendarStore is the holder of the unified calendar snapshot the
// manager applies optimistic updates to. The engine implements it; the
// snapshot is always replaced wholesale, never mutated concurrently.
type CalendarStore interface {
	InsertEvent(ev model.CalendarEvent)
	RemoveEvent(id string)
	// Refresh triggers a full re-aggregation to reconcile with server
	// truth.
	Refresh(ctx context.Context) error
}

// FailureKind discriminates booking mutation failures.
type FailureKind string

const (
	FailValidation FailureKind = "validation"
	FailCapacity   FailureKind = "capacity"
	FailNotFound   FailureKind = "not_found"
	FailInFlight   FailureKind = "in_flight"
	FailGate       FailureKind = "not_bookable"
	FailGeneric    FailureKind = "generic"
)

// Failure is the discriminated result of a failed mutation. The engine
// never swallows one; it always reaches the caller.
type Failure struct {
	Kind        FailureKind
	Fields      map[string]string      // populated for FailValidation
	Suggestions []model.SlotSuggestion // populated for FailCapacity
	Err         error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Kind) + ": " + f.Err.Error()
	}
	return string(f.Kind)
}

// CreateRequest is a booking attempt for one slot.
type CreateRequest struct {
	ResidentID string
	VisitDate  string // YYYY-MM-DD
	TimeBlock  timeblock.Block
	Notes      string
}

// Manager owns the booking state machine per visit:
// none -> pending-create -> {booked | create-failed};
// booked -> pending-cancel -> {none | cancel-failed}.
type Manager struct {
	mutator Mutator
	store   CalendarStore
	logger  *zerolog.Logger

	inflight inflightSet
}

// NewManager builds a manager over the mutator and calendar store.
func NewManager(mutator Mutator, store CalendarStore, logger *zerolog.Logger) *Manager {
	return &Manager{mutator: mutator, store: store, logger: logger}
}

// Create submits a booking for the slot. gate must come from the same
// availability resolution that drives the booking control; the manager
// refuses to submit when it reports non-bookable. On success the
// returned record is merged into the calendar; the pending optimistic
// event is visible (tagged unconfirmed) only while the call is in
// flight. The server stays the final arbiter: a rejection can arrive
// even when the local gate said bookable.
func (m *Manager) Create(ctx context.Context, req CreateRequest, gate model.Availability) (*model.VisitRecord, *Failure) {
	if !gate.Bookable() {
		return nil, &Failure{Kind: FailGate, Err: errors.New("slot is not bookable")}
	}

	slotKey := req.ResidentID + "|" + req.VisitDate + "|" + string(req.TimeBlock)
	if !m.inflight.acquire(slotKey) {
		return nil, &Failure{Kind: FailInFlight, Err: errors.New("a booking for this slot is already in flight")}
	}
	defer m.inflight.release(slotKey)

	pendingID := "visit:pending:" + uuid.NewString()
	m.store.InsertEvent(model.CalendarEvent{
		ID:         pendingID,
		Date:       req.VisitDate,
		TimeBlock:  req.TimeBlock,
		Kind:       model.KindVisit,
		ResidentID: req.ResidentID,
		Name:       timeblock.Label(req.TimeBlock),
		Note:       req.Notes,
		Confirmed:  false,
	})

	visit, err := m.mutator.CreateVisit(ctx, careapi.CreateVisitRequest{
		RequestID:  uuid.NewString(),
		ResidentID: req.ResidentID,
		VisitDate:  req.VisitDate,
		TimeBlock:  string(req.TimeBlock),
		Notes:      req.Notes,
	})
	if err != nil {
		// Roll back the pending event; local state stays untouched
		// beyond that.
		m.store.RemoveEvent(pendingID)
		f := classify(err)
		metrics.IncBookingFailed(string(f.Kind))
		m.logger.Warn().
			Str("resident", req.ResidentID).
			Str("date", req.VisitDate).
			Str("block", string(req.TimeBlock)).
			Str("kind", string(f.Kind)).
			Err(err).
			Msg("booking create failed")
		return nil, f
	}

	// Replace the pending event with the server-confirmed one.
	m.store.RemoveEvent(pendingID)
	m.store.InsertEvent(model.CalendarEvent{
		ID:         "visit:" + visit.VisitID,
		Date:       req.VisitDate,
		TimeBlock:  visit.TimeBlock,
		Kind:       model.KindVisit,
		ResidentID: visit.ResidentID,
		Name:       timeblock.Label(visit.TimeBlock),
		Note:       visit.Notes,
		Confirmed:  true,
	})

	m.logger.Info().
		Str("visit_id", visit.VisitID).
		Str("resident", visit.ResidentID).
		Str("date", req.VisitDate).
		Str("block", string(visit.TimeBlock)).
		Msg("booking created")
	return visit, nil
}

// Cancel cancels a concrete visit. On success the event is dropped
// locally and a full re-aggregation reconciles with server truth, since
// a freed slot can change other slots' availability in ways a local
// delta cannot infer. A duplicate cancel is rejected server-side and
// surfaced as non-fatal; the only client-side suppression is the
// in-flight guard.
func (m *Manager) Cancel(ctx context.Context, visitID string) *Failure {
	if !m.inflight.acquire("cancel|" + visitID) {
		return &Failure{Kind: FailInFlight, Err: errors.New("cancellation already in flight")}
	}
	defer m.inflight.release("cancel|" + visitID)

	if err := m.mutator.CancelVisit(ctx, visitID); err != nil {
		f := classify(err)
		metrics.IncBookingFailed(string(f.Kind))
		m.logger.Warn().Str("visit_id", visitID).Str("kind", string(f.Kind)).Err(err).Msg("booking cancel failed")
		return f
	}

	m.store.RemoveEvent("visit:" + visitID)
	if err := m.store.Refresh(ctx); err != nil {
		// The cancel itself succeeded; reconciliation catches up on the
		// next natural aggregation trigger.
		m.logger.Warn().Err(err).Msg("post-cancel refresh failed")
	}

	m.logger.Info().Str("visit_id", visitID).Msg("booking cancelled")
	return nil
}

func classify(err error) *Failure {
	var vErr *careapi.ValidationError
	if errors.As(err, &vErr) {
		return &Failure{Kind: FailValidation, Fields: vErr.Fields, Err: err}
	}
	var cErr *careapi.CapacityConflictError
	if errors.As(err, &cErr) {
		return &Failure{Kind: FailCapacity, Suggestions: cErr.Suggestions, Err: err}
	}
	if errors.Is(err, careapi.ErrNotFound) || errors.Is(err, careapi.ErrAlreadyCancelled) {
		return &Failure{Kind: FailNotFound, Err: err}
	}
	return &Failure{Kind: FailGeneric, Err: err}
}

// inflightSet guards against concurrent duplicate mutations per key.
type inflightSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func (s *inflightSet) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys == nil {
		s.keys = make(map[string]struct{})
	}
	if _, busy := s.keys[key]; busy {
		return false
	}
	s.keys[key] = struct{}{}
	return true
}

func (s *inflightSet) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
}
