// Package calendar merges the three event sources into one unified,
// de-duplicated calendar for a view window.
package calendar

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"carecal/internal/careapi"
	"carecal/internal/metrics"
	"carecal/internal/model"
	"carecal/internal/normalize"
	"carecal/internal/recurrence"
)

// Source names used in warnings and metrics.
const (
	SourceVisits    = "visits"
	SourceSchedules = "schedules"
	SourceEvents    = "facility_events"
	SourceRoster    = "residents"
	SourceCapacity  = "capacity"
)

const (
	defaultPageSize    = 100
	defaultPageCeiling = 10
)

// Fetcher is the slice of the collaborator API the aggregator needs.
// *careapi.Client satisfies it.
type Fetcher interface {
	FetchFamilyVisits(ctx context.Context, limit, offset int) (careapi.VisitsPage, error)
	FetchSchedules(ctx context.Context, residentID, startDate, endDate string) ([]model.ScheduleDefinition, error)
	FetchRoomEvents(ctx context.Context, roomID, startDate, endDate string) ([]model.FacilityEvent, error)
	FetchResidents(ctx context.Context) ([]model.Resident, error)
	FetchSlotCapacity(ctx context.Context, startDate, endDate string) ([]model.SlotCapacity, error)
}

// Request names the window and scope an aggregation is for. Results are
// only applied while the request that produced them is still current.
type Request struct {
	Scope       model.Scope
	WindowStart time.Time
	WindowEnd   time.Time
}

// SourceWarning reports one degraded source. Warnings never abort an
// aggregation.
type SourceWarning struct {
	Source string
	Err    error
}

// Result is a complete aggregation pass: the merged calendar plus the
// side data availability resolution needs.
type Result struct {
	Request  Request
	Events   []model.CalendarEvent
	Roster   []model.Resident
	Capacity []model.SlotCapacity
	Warnings []SourceWarning
}

// Aggregator fans out the source fetches, normalizes, and merges.
type Aggregator struct {
	fetcher  Fetcher
	expander recurrence.Expander
	logger   *zerolog.Logger

	// PageSize and PageCeiling bound visit pagination. The ceiling
	// bounds worst-case latency, not a business rule.
	PageSize    int
	PageCeiling int
}

// New creates an aggregator over the given fetcher.
func New(fetcher Fetcher, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{
		fetcher:     fetcher,
		logger:      logger,
		PageSize:    defaultPageSize,
		PageCeiling: defaultPageCeiling,
	}
}

// Aggregate runs one full pass for the request. The call as a whole
// always succeeds: each failed source degrades to an empty result and a
// warning. The fetches run concurrently with no ordering dependency.
func (a *Aggregator) Aggregate(ctx context.Context, req Request) Result {
	res := Result{Request: req}
	startDate := model.LocalDate(req.WindowStart)
	endDate := model.LocalDate(req.WindowEnd)

	// Roster first: it resolves the scoped resident's room for the
	// facility-event fetch and room numbers for care locations.
	roster, err := a.fetcher.FetchResidents(ctx)
	if err != nil {
		res.Warnings = append(res.Warnings, SourceWarning{Source: SourceRoster, Err: err})
	}
	res.Roster = roster

	roomID := ""
	if req.Scope.Specific() {
		for _, r := range roster {
			if r.ResidentID == req.Scope.ResidentID {
				roomID = r.RoomID
				break
			}
		}
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		visits    []model.VisitRecord
		schedules []model.ScheduleDefinition
		facility  []model.FacilityEvent
	)

	warn := func(source string, err error) {
		mu.Lock()
		res.Warnings = append(res.Warnings, SourceWarning{Source: source, Err: err})
		mu.Unlock()
	}

	wg.Add(3)
	go func() {
		defer wg.Done()
		v, err := a.fetchAllVisits(ctx)
		if err != nil {
			warn(SourceVisits, err)
			return
		}
		mu.Lock()
		visits = v
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		s, err := a.fetcher.FetchSchedules(ctx, req.Scope.ResidentID, startDate, endDate)
		if err != nil {
			warn(SourceSchedules, err)
			return
		}
		mu.Lock()
		schedules = s
		mu.Unlock()
	}()
	go func() {
		defer wg.Done()
		if roomID == "" {
			return
		}
		ev, err := a.fetcher.FetchRoomEvents(ctx, roomID, startDate, endDate)
		if err != nil {
			warn(SourceEvents, err)
			return
		}
		mu.Lock()
		facility = ev
		mu.Unlock()
	}()

	if slots, err := a.fetcher.FetchSlotCapacity(ctx, startDate, endDate); err != nil {
		warn(SourceCapacity, err)
	} else {
		res.Capacity = slots
	}

	wg.Wait()

	occurrences, err := a.expander.ExpandAll(schedules, req.WindowStart, req.WindowEnd)
	if err != nil {
		res.Warnings = append(res.Warnings, SourceWarning{Source: SourceSchedules, Err: err})
		occurrences = nil
	}

	rooms := rosterRoomLookup(roster)

	// Concatenation order is fixed: visits, then schedules, then
	// facility events, so a visit record wins over a same-id placeholder
	// from another source.
	merged := make([]model.CalendarEvent, 0, len(visits)+len(occurrences)+len(facility))
	merged = append(merged, normalize.Visits(visits)...)
	merged = append(merged, normalize.Occurrences(occurrences, rooms)...)
	merged = append(merged, normalize.FacilityEvents(facility)...)
	res.Events = Dedup(merged)

	for _, w := range res.Warnings {
		metrics.IncSourceFailure(w.Source)
		a.logger.Warn().Str("source", w.Source).Err(w.Err).Msg("aggregation source degraded")
	}
	if len(res.Warnings) > 0 {
		metrics.IncAggregation("degraded")
	} else {
		metrics.IncAggregation("ok")
	}
	a.logger.Info().
		Str("window_start", startDate).
		Str("window_end", endDate).
		Str("resident", req.Scope.ResidentID).
		Int("events", len(res.Events)).
		Int("warnings", len(res.Warnings)).
		Msg("aggregation complete")

	return res
}

// fetchAllVisits pages through the visit listing until a short page or
// the page ceiling, concatenating pages in server-returned order.
func (a *Aggregator) fetchAllVisits(ctx context.Context) ([]model.VisitRecord, error) {
	size := a.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	ceiling := a.PageCeiling
	if ceiling <= 0 {
		ceiling = defaultPageCeiling
	}

	var all []model.VisitRecord
	for page := 0; page < ceiling; page++ {
		p, err := a.fetcher.FetchFamilyVisits(ctx, size, page*size)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Visits...)
		if len(p.Visits) < size {
			break
		}
	}
	return all, nil
}

// Dedup collapses duplicate ids, keeping positional stability of the
// first occurrence while the later value wins.
func Dedup(events []model.CalendarEvent) []model.CalendarEvent {
	index := make(map[string]int, len(events))
	out := make([]model.CalendarEvent, 0, len(events))
	for _, ev := range events {
		if i, seen := index[ev.ID]; seen {
			out[i] = ev
			continue
		}
		index[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

// FilterByDate returns the events on one calendar day. Consumers match
// by exact date string; no sort order is assumed.
func FilterByDate(events []model.CalendarEvent, date string) []model.CalendarEvent {
	var out []model.CalendarEvent
	for _, ev := range events {
		if ev.Date == date {
			out = append(out, ev)
		}
	}
	return out
}

func rosterRoomLookup(roster []model.Resident) normalize.RoomLookup {
	if len(roster) == 0 {
		return nil
	}
	byID := make(map[string]model.Resident, len(roster))
	for _, r := range roster {
		byID[r.ResidentID] = r
	}
	return func(residentID string) (string, bool) {
		r, ok := byID[residentID]
		if !ok {
			return "", false
		}
		return r.RoomNumber, true
	}
}
