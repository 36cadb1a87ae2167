// Package careapi is the HTTP client for the facility's collaborator
// APIs: visits, schedules, room events, residents, and slot capacity.
// All persistence lives behind these endpoints.
package careapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"carecal/internal/model"
)

// Client talks to the care-facility backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	redis    *redis.Client
	cacheTTL time.Duration

	// limiter bounds request rate during deep visit pagination.
	limiter *rate.Limiter
}

// NewClient constructs a client for baseURL. requestsPerSecond <= 0
// disables rate limiting.
func NewClient(baseURL, apiKey string, timeout time.Duration, requestsPerSecond float64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	if requestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), int(requestsPerSecond)+1)
	}
	return c
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// VisitsPage is one page of the paginated family-visit listing.
type VisitsPage struct {
	Visits []model.VisitRecord `json:"visits"`
}

// FetchFamilyVisits returns one page of family visits.
func (c *Client) FetchFamilyVisits(ctx context.Context, limit, offset int) (VisitsPage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return VisitsPage{}, err
		}
	}
	endpoint := fmt.Sprintf("%s/api/v1/visits?limit=%d&offset=%d", c.baseURL, limit, offset)
	var page VisitsPage
	if err := c.doGet(ctx, endpoint, &page); err != nil {
		return VisitsPage{}, fmt.Errorf("fetch visits: %w", err)
	}
	return page, nil
}

// FetchSchedules returns schedule definitions overlapping the window,
// optionally scoped to one resident. Dates are YYYY-MM-DD.
func (c *Client) FetchSchedules(ctx context.Context, residentID, startDate, endDate string) ([]model.ScheduleDefinition, error) {
	q := url.Values{}
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)
	if residentID != "" {
		q.Set("resident_id", residentID)
	}
	endpoint := fmt.Sprintf("%s/api/v1/schedules?%s", c.baseURL, q.Encode())

	var wrap struct {
		Schedules []model.ScheduleDefinition `json:"schedules"`
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, fmt.Errorf("fetch schedules: %w", err)
	}
	return wrap.Schedules, nil
}

// FetchRoomEvents returns facility events for a room within the window.
func (c *Client) FetchRoomEvents(ctx context.Context, roomID, startDate, endDate string) ([]model.FacilityEvent, error) {
	q := url.Values{}
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)
	endpoint := fmt.Sprintf("%s/api/v1/rooms/%s/events?%s", c.baseURL, url.PathEscape(roomID), q.Encode())
	cacheKey := fmt.Sprintf("events:%s:%s:%s", roomID, startDate, endDate)

	var wrap struct {
		Events []model.FacilityEvent `json:"events"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Events, nil
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, fmt.Errorf("fetch room events: %w", err)
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Events, nil
}

// FetchResidents returns the resident roster.
func (c *Client) FetchResidents(ctx context.Context) ([]model.Resident, error) {
	endpoint := fmt.Sprintf("%s/api/v1/residents", c.baseURL)
	cacheKey := "residents"

	var wrap struct {
		Residents []model.Resident `json:"residents"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Residents, nil
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, fmt.Errorf("fetch residents: %w", err)
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Residents, nil
}

// FetchSlotCapacity returns per-slot capacity records for the window.
func (c *Client) FetchSlotCapacity(ctx context.Context, startDate, endDate string) ([]model.SlotCapacity, error) {
	q := url.Values{}
	q.Set("start_date", startDate)
	q.Set("end_date", endDate)
	endpoint := fmt.Sprintf("%s/api/v1/capacity?%s", c.baseURL, q.Encode())
	cacheKey := fmt.Sprintf("capacity:%s:%s", startDate, endDate)

	var wrap struct {
		Slots []model.SlotCapacity `json:"slots"`
	}
	if c.readCache(ctx, cacheKey, &wrap) {
		return wrap.Slots, nil
	}
	if err := c.doGet(ctx, endpoint, &wrap); err != nil {
		return nil, fmt.Errorf("fetch capacity: %w", err)
	}
	c.writeCache(ctx, cacheKey, wrap)
	return wrap.Slots, nil
}

// FetchVisitByID hydrates a single visit for a detail view.
func (c *Client) FetchVisitByID(ctx context.Context, visitID string) (*model.VisitRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/visits/%s", c.baseURL, url.PathEscape(visitID))
	var visit model.VisitRecord
	if err := c.doGet(ctx, endpoint, &visit); err != nil {
		return nil, fmt.Errorf("fetch visit %s: %w", visitID, err)
	}
	return &visit, nil
}

// CreateVisitRequest is the booking mutation payload. RequestID is a
// client-generated idempotency key.
type CreateVisitRequest struct {
	RequestID  string `json:"request_id"`
	ResidentID string `json:"resident_id"`
	VisitDate  string `json:"visit_date"`
	TimeBlock  string `json:"time_block"`
	Notes      string `json:"notes,omitempty"`
}

// CreateVisit submits a booking. Failures come back as
// *ValidationError, *CapacityConflictError, or a generic error.
func (c *Client) CreateVisit(ctx context.Context, req CreateVisitRequest) (*model.VisitRecord, error) {
	endpoint := fmt.Sprintf("%s/api/v1/visits", c.baseURL)
	var visit model.VisitRecord
	if err := c.doPost(ctx, endpoint, req, &visit); err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}
	return &visit, nil
}

// CancelVisit cancels a booking. A missing or already-cancelled target
// comes back as ErrNotFound / ErrAlreadyCancelled.
func (c *Client) CancelVisit(ctx context.Context, visitID string) error {
	endpoint := fmt.Sprintf("%s/api/v1/visits/%s", c.baseURL, url.PathEscape(visitID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("cancel visit %s: %w", visitID, err)
	}
	return nil
}

// HealthCheck probes the backend.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/healthz", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, "carecal:"+key).Result()
	if err != nil {
		return false
	}
	return json.Unmarshal([]byte(val), out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, "carecal:"+key, data, c.cacheTTL).Err()
}

func (c *Client) doGet(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) doPost(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.addHeaders(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeFailure(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) addHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

// failureBody is the backend's error envelope.
type failureBody struct {
	Error       string                 `json:"error,omitempty"`
	Fields      map[string]string      `json:"fields,omitempty"`
	Suggestions []model.SlotSuggestion `json:"suggestions,omitempty"`
}

func decodeFailure(resp *http.Response) error {
	var body failureBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = json.Unmarshal(raw, &body)

	switch resp.StatusCode {
	case http.StatusUnprocessableEntity:
		return &ValidationError{Fields: body.Fields}
	case http.StatusConflict:
		if len(body.Suggestions) > 0 {
			return &CapacityConflictError{Suggestions: body.Suggestions}
		}
		return ErrAlreadyCancelled
	case http.StatusNotFound:
		return ErrNotFound
	}
	if body.Error != "" {
		return fmt.Errorf("http %d: %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("http %d", resp.StatusCode)
}
