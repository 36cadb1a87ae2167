// Package api exposes the calendar engine to presentation-layer
// callers over a small JSON HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"carecal/internal/availability"
	"carecal/internal/booking"
	"carecal/internal/careapi"
	"carecal/internal/engine"
	"carecal/internal/model"
	"carecal/internal/timeblock"
	"carecal/internal/view"
)

// HealthChecker probes the collaborator backend for /healthz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wires HTTP routes onto the engine.
type Server struct {
	engine *engine.Engine
	health HealthChecker
	logger *zerolog.Logger
}

// NewServer builds the HTTP surface.
func NewServer(eng *engine.Engine, health HealthChecker, logger *zerolog.Logger) *Server {
	return &Server{engine: eng, health: health, logger: logger}
}

// Handler returns the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/calendar", s.handleCalendar)
	mux.HandleFunc("/api/availability", s.handleAvailability)
	mux.HandleFunc("/api/window", s.handleWindow)
	mux.HandleFunc("/api/visits", s.handleVisits)
	mux.HandleFunc("/api/visits/", s.handleVisitByID)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// calendarResponse carries the unified calendar plus non-fatal source
// warnings.
type calendarResponse struct {
	Events   []model.CalendarEvent `json:"events"`
	Warnings []string              `json:"warnings,omitempty"`
	Days     []string              `json:"days"`
}

// handleCalendar returns the current unified calendar.
// GET /api/calendar?date=YYYY-MM-DD (optional day filter)
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	eventsList, warnings := s.engine.Calendar()
	if date := r.URL.Query().Get("date"); date != "" {
		eventsList = s.engine.Day(date)
	}

	resp := calendarResponse{Events: eventsList}
	for _, warn := range warnings {
		resp.Warnings = append(resp.Warnings, warn.Source+": "+warn.Err.Error())
	}
	for _, d := range s.engine.Window().Days {
		resp.Days = append(resp.Days, d.Format(model.DateLayout))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAvailability resolves one slot.
// GET /api/availability?date=YYYY-MM-DD&block=morning
func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	date := r.URL.Query().Get("date")
	if !availability.DateComparable(date) {
		writeError(w, http.StatusBadRequest, "invalid date; expected YYYY-MM-DD")
		return
	}
	block, err := timeblock.Parse(r.URL.Query().Get("block"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	avail := s.engine.Availability(date, block)
	writeJSON(w, http.StatusOK, map[string]any{
		"availability": avail,
		"bookable":     avail.Bookable(),
	})
}

// windowRequest moves the view cursor.
type windowRequest struct {
	Cursor     string `json:"cursor,omitempty"` // YYYY-MM-DD
	Mode       string `json:"mode,omitempty"`   // day|week
	Navigate   string `json:"navigate,omitempty"`
	ResidentID string `json:"resident_id,omitempty"`
	ReadOnly   *bool  `json:"read_only,omitempty"`
}

// handleWindow sets the window, navigates, or switches scope.
// POST /api/window
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ctx := r.Context()
	switch {
	case req.Navigate != "":
		if err := s.engine.Navigate(ctx, req.Navigate); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	case req.Cursor != "":
		cursor, err := time.ParseInLocation(model.DateLayout, req.Cursor, time.Local)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cursor; expected YYYY-MM-DD")
			return
		}
		mode := view.Mode(req.Mode)
		if err := s.engine.SetWindow(ctx, cursor, mode); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case req.Mode != "":
		if err := s.engine.SetMode(ctx, view.Mode(req.Mode)); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	case req.ResidentID != "" || req.ReadOnly != nil:
		readOnly := req.ReadOnly != nil && *req.ReadOnly
		if err := s.engine.SetScope(ctx, req.ResidentID, readOnly); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "nothing to do")
		return
	}

	window := s.engine.Window()
	days := make([]string, 0, len(window.Days))
	for _, d := range window.Days {
		days = append(days, d.Format(model.DateLayout))
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": window.Mode, "days": days})
}

// createVisitRequest is the booking payload.
type createVisitRequest struct {
	VisitDate string `json:"visit_date"`
	TimeBlock string `json:"time_block"`
	Notes     string `json:"notes,omitempty"`
}

// bookingFailureResponse is the discriminated failure envelope.
type bookingFailureResponse struct {
	Kind        string                 `json:"kind"`
	Error       string                 `json:"error"`
	Fields      map[string]string      `json:"fields,omitempty"`
	Suggestions []model.SlotSuggestion `json:"suggestions,omitempty"`
}

// handleVisits creates a booking for the scoped resident.
// POST /api/visits
func (s *Server) handleVisits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createVisitRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !availability.DateComparable(req.VisitDate) {
		writeError(w, http.StatusBadRequest, "invalid visit_date; expected YYYY-MM-DD")
		return
	}
	block, err := timeblock.Parse(req.TimeBlock)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	visit, fail := s.engine.CreateBooking(r.Context(), req.VisitDate, block, req.Notes)
	if fail != nil {
		writeJSON(w, failureStatus(fail), failureBody(fail))
		return
	}
	writeJSON(w, http.StatusCreated, visit)
}

// handleVisitByID hydrates or cancels one visit.
// GET /api/visits/{id} | DELETE /api/visits/{id}
func (s *Server) handleVisitByID(w http.ResponseWriter, r *http.Request) {
	visitID := strings.TrimPrefix(r.URL.Path, "/api/visits/")
	if visitID == "" || strings.Contains(visitID, "/") {
		writeError(w, http.StatusBadRequest, "invalid path")
		return
	}

	switch r.Method {
	case http.MethodGet:
		visit, err := s.engine.VisitDetail(r.Context(), visitID)
		if err != nil {
			if errors.Is(err, careapi.ErrNotFound) {
				writeError(w, http.StatusNotFound, "visit not found")
				return
			}
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, visit)

	case http.MethodDelete:
		if fail := s.engine.CancelBooking(r.Context(), visitID); fail != nil {
			writeJSON(w, failureStatus(fail), failureBody(fail))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"cancelled": visitID})

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleHealth reports process and collaborator health.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := s.health.HealthCheck(ctx); err != nil {
			status["status"] = "degraded"
			status["backend"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func failureStatus(f *booking.Failure) int {
	switch f.Kind {
	case booking.FailValidation:
		return http.StatusUnprocessableEntity
	case booking.FailCapacity:
		return http.StatusConflict
	case booking.FailNotFound:
		return http.StatusNotFound
	case booking.FailInFlight, booking.FailGate:
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func failureBody(f *booking.Failure) bookingFailureResponse {
	return bookingFailureResponse{
		Kind:        string(f.Kind),
		Error:       f.Error(),
		Fields:      f.Fields,
		Suggestions: f.Suggestions,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
