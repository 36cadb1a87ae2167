package careapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carecal/internal/model"
	"carecal/internal/timeblock"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, "test-key", 5*time.Second, 0), srv
}

func TestFetchFamilyVisitsSendsPagingAndKey(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/visits", r.URL.Path)
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		_ = json.NewEncoder(w).Encode(VisitsPage{Visits: []model.VisitRecord{
			{VisitID: "v1", ResidentID: "res-1", VisitDate: "2024-03-11", TimeBlock: timeblock.Morning, Status: model.VisitScheduled},
		}})
	})
	defer srv.Close()

	page, err := client.FetchFamilyVisits(context.Background(), 25, 50)
	require.NoError(t, err)
	require.Len(t, page.Visits, 1)
	assert.Equal(t, "v1", page.Visits[0].VisitID)
}

func TestFetchSchedulesWindowParams(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2024-03-11", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2024-03-17", r.URL.Query().Get("end_date"))
		assert.Equal(t, "res-1", r.URL.Query().Get("resident_id"))
		_, _ = w.Write([]byte(`{"schedules":[{"schedule_id":"s1","title":"Physio"}]}`))
	})
	defer srv.Close()

	schedules, err := client.FetchSchedules(context.Background(), "res-1", "2024-03-11", "2024-03-17")
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "s1", schedules[0].ScheduleID)
}

func TestCreateVisitSuccess(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req CreateVisitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.RequestID)
		assert.Equal(t, "res-1", req.ResidentID)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(model.VisitRecord{
			VisitID: "v42", ResidentID: req.ResidentID,
			VisitDate: req.VisitDate, TimeBlock: timeblock.Block(req.TimeBlock),
			Status: model.VisitScheduled,
		})
	})
	defer srv.Close()

	visit, err := client.CreateVisit(context.Background(), CreateVisitRequest{
		RequestID: "r1", ResidentID: "res-1", VisitDate: "2024-03-11", TimeBlock: "afternoon",
	})
	require.NoError(t, err)
	assert.Equal(t, "v42", visit.VisitID)
}

func TestCreateVisitValidationError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"fields":{"visit_date":"must not be in the past"}}`))
	})
	defer srv.Close()

	_, err := client.CreateVisit(context.Background(), CreateVisitRequest{})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "must not be in the past", vErr.Fields["visit_date"])
}

func TestCreateVisitCapacityConflict(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"suggestions":[{"date":"2024-03-12","time_block":"morning","available_slots":2}]}`))
	})
	defer srv.Close()

	_, err := client.CreateVisit(context.Background(), CreateVisitRequest{})
	var cErr *CapacityConflictError
	require.ErrorAs(t, err, &cErr)
	require.Len(t, cErr.Suggestions, 1)
	assert.Equal(t, "2024-03-12", cErr.Suggestions[0].Date)
	assert.Equal(t, timeblock.Morning, cErr.Suggestions[0].TimeBlock)
}

func TestCancelVisitNotFound(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	err := client.CancelVisit(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestCancelVisitAlreadyCancelled(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"already cancelled"}`))
	})
	defer srv.Close()

	err := client.CancelVisit(context.Background(), "v1")
	assert.True(t, errors.Is(err, ErrAlreadyCancelled))
}

func TestCancelVisitSuccess(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/visits/v1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	defer srv.Close()

	assert.NoError(t, client.CancelVisit(context.Background(), "v1"))
}

func TestFetchVisitByID(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/visits/v7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(model.VisitRecord{VisitID: "v7", Status: model.VisitApproved, QRData: "qr-payload"})
	})
	defer srv.Close()

	visit, err := client.FetchVisitByID(context.Background(), "v7")
	require.NoError(t, err)
	assert.Equal(t, "v7", visit.VisitID)
	assert.Equal(t, "qr-payload", visit.QRData)
}

func TestGenericServerError(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})
	defer srv.Close()

	_, err := client.FetchResidents(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr))
}

func TestHealthCheck(t *testing.T) {
	client, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})
	defer srv.Close()

	assert.NoError(t, client.HealthCheck(context.Background()))
}
