// Package client provides an HTTP client for the HomeTrace REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/connection"
	"github.com/evcraddock/hometrace/internal/house"
	"github.com/evcraddock/hometrace/internal/suggestion"
	"github.com/evcraddock/hometrace/internal/tour"
	"github.com/evcraddock/hometrace/internal/visit"
)

// Client is an HTTP client for the HomeTrace API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is an error response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Details))
	for field, rule := range e.Details {
		parts = append(parts, field+": "+rule)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

// Me returns the user the API key belongs to.
func (c *Client) Me(ctx context.Context) (*auth.User, error) {
	var u auth.User
	if err := c.get(ctx, "/api/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// RequestCLILogin asks the server to mail a login link that ends with an
// API key.
func (c *Client) RequestCLILogin(ctx context.Context, email string) error {
	return c.send(ctx, http.MethodPost, "/cli/auth/login", map[string]string{"email": email}, nil)
}

// Dashboard is the response from GET /api/dashboard.
type Dashboard struct {
	UpcomingVisits     []*visit.Visit           `json:"upcoming_visits"`
	PendingSuggestions []*suggestion.Suggestion `json:"pending_suggestions"`
	ActiveTours        []*tour.Tour             `json:"active_tours"`
}

// Dashboard returns the caller's upcoming visits, pending suggestions and
// active tours.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	if err := c.get(ctx, "/api/dashboard", nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ManualHouse describes a house added without a listing lookup.
type ManualHouse struct {
	Address    string   `json:"address"`
	Manual     bool     `json:"manual"`
	RealtorURL string   `json:"realtor_url,omitempty"`
	Price      *int64   `json:"price,omitempty"`
	Bedrooms   *float64 `json:"bedrooms,omitempty"`
	Bathrooms  *float64 `json:"bathrooms,omitempty"`
	Sqft       *int64   `json:"sqft,omitempty"`
}

// AddHouse adds a house by address (server does the listing lookup).
func (c *Client) AddHouse(ctx context.Context, address string) (*house.House, error) {
	var h house.House
	if err := c.send(ctx, http.MethodPost, "/api/houses", map[string]string{"address": address}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// AddHouseManual adds a house from the given details.
func (c *Client) AddHouseManual(ctx context.Context, in ManualHouse) (*house.House, error) {
	in.Manual = true
	var h house.House
	if err := c.send(ctx, http.MethodPost, "/api/houses", in, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListHouses returns houses whose address contains search.
func (c *Client) ListHouses(ctx context.Context, search string) ([]*house.House, error) {
	q := url.Values{}
	if search != "" {
		q.Set("q", search)
	}
	var houses []*house.House
	if err := c.get(ctx, "/api/houses", q, &houses); err != nil {
		return nil, err
	}
	return houses, nil
}

// GetHouse returns one house with its raw listing.
func (c *Client) GetHouse(ctx context.Context, id int64) (*house.House, error) {
	var h house.House
	if err := c.get(ctx, fmt.Sprintf("/api/houses/%d", id), nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// RemoveHouse soft-deletes a house.
func (c *Client) RemoveHouse(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/houses/%d", id), nil, nil)
}

// Connect links a buyer to a realtor. realtorID may be 0 when the caller
// is the realtor.
func (c *Client) Connect(ctx context.Context, realtorID, buyerID int64) (*connection.Connection, error) {
	body := map[string]int64{"buyer_id": buyerID}
	if realtorID != 0 {
		body["realtor_id"] = realtorID
	}
	var conn connection.Connection
	if err := c.send(ctx, http.MethodPost, "/api/connections", body, &conn); err != nil {
		return nil, err
	}
	return &conn, nil
}

// ListConnections returns the caller's connections.
func (c *Client) ListConnections(ctx context.Context) ([]*connection.Connection, error) {
	var conns []*connection.Connection
	if err := c.get(ctx, "/api/connections", nil, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

// RemoveConnection removes a connection.
func (c *Client) RemoveConnection(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/connections/%d", id), nil, nil)
}

// ScheduleVisit schedules a visit for the calling buyer.
func (c *Client) ScheduleVisit(ctx context.Context, houseID int64, at time.Time, notes string) (*visit.Visit, error) {
	body := map[string]any{"house_id": houseID, "scheduled_at": at}
	if notes != "" {
		body["notes"] = notes
	}
	var v visit.Visit
	if err := c.send(ctx, http.MethodPost, "/api/visits", body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// VisitFilter narrows ListVisits.
type VisitFilter struct {
	Status   string
	HouseID  int64
	BuyerID  int64
	Upcoming bool
}

// ListVisits returns the visits the caller may see.
func (c *Client) ListVisits(ctx context.Context, f VisitFilter) ([]*visit.Visit, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.HouseID != 0 {
		q.Set("house_id", strconv.FormatInt(f.HouseID, 10))
	}
	if f.BuyerID != 0 {
		q.Set("buyer_id", strconv.FormatInt(f.BuyerID, 10))
	}
	if f.Upcoming {
		q.Set("upcoming", "true")
	}
	var visits []*visit.Visit
	if err := c.get(ctx, "/api/visits", q, &visits); err != nil {
		return nil, err
	}
	return visits, nil
}

// GetVisit returns one visit.
func (c *Client) GetVisit(ctx context.Context, id int64) (*visit.Visit, error) {
	var v visit.Visit
	if err := c.get(ctx, fmt.Sprintf("/api/visits/%d", id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// StartVisit moves a visit to IN_PROGRESS.
func (c *Client) StartVisit(ctx context.Context, id int64) (*visit.Visit, error) {
	return c.visitAction(ctx, id, "start", nil)
}

// CancelVisit moves a visit to CANCELLED.
func (c *Client) CancelVisit(ctx context.Context, id int64) (*visit.Visit, error) {
	return c.visitAction(ctx, id, "cancel", nil)
}

// Feedback is what a buyer records when completing a visit.
type Feedback struct {
	OverallImpression string `json:"overall_impression,omitempty"`
	WouldBuy          *bool  `json:"would_buy,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// CompleteVisit moves a visit to COMPLETED with the buyer's feedback.
func (c *Client) CompleteVisit(ctx context.Context, id int64, fb Feedback) (*visit.Visit, error) {
	return c.visitAction(ctx, id, "complete", fb)
}

func (c *Client) visitAction(ctx context.Context, id int64, action string, body any) (*visit.Visit, error) {
	var v visit.Visit
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/visits/%d/%s", id, action), body, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RemoveVisit soft-deletes a visit.
func (c *Client) RemoveVisit(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/visits/%d", id), nil, nil)
}

// SuggestRequest is the body of a new suggestion.
type SuggestRequest struct {
	BuyerID     int64     `json:"buyer_id"`
	HouseID     int64     `json:"house_id"`
	SuggestedAt time.Time `json:"suggested_at"`
	Message     string    `json:"message,omitempty"`
}

// Suggest proposes a visit time to a connected buyer.
func (c *Client) Suggest(ctx context.Context, req SuggestRequest) (*suggestion.Suggestion, error) {
	var sg suggestion.Suggestion
	if err := c.send(ctx, http.MethodPost, "/api/visits/suggestions", req, &sg); err != nil {
		return nil, err
	}
	return &sg, nil
}

// ListSuggestions returns the caller's suggestions by effective status.
func (c *Client) ListSuggestions(ctx context.Context, status string) ([]*suggestion.Suggestion, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var list []*suggestion.Suggestion
	if err := c.get(ctx, "/api/visits/suggestions", q, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetSuggestion returns one suggestion.
func (c *Client) GetSuggestion(ctx context.Context, id int64) (*suggestion.Suggestion, error) {
	var sg suggestion.Suggestion
	if err := c.get(ctx, fmt.Sprintf("/api/visits/suggestions/%d", id), nil, &sg); err != nil {
		return nil, err
	}
	return &sg, nil
}

// AcceptSuggestion accepts a suggestion and returns the visit it created.
func (c *Client) AcceptSuggestion(ctx context.Context, id int64) (*visit.Visit, error) {
	var v visit.Visit
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/visits/suggestions/%d/accept", id), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RejectSuggestion declines a suggestion. reason may be empty.
func (c *Client) RejectSuggestion(ctx context.Context, id int64, reason string) (*suggestion.Suggestion, error) {
	var body any
	if reason != "" {
		body = map[string]string{"reason": reason}
	}
	var sg suggestion.Suggestion
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/visits/suggestions/%d/reject", id), body, &sg); err != nil {
		return nil, err
	}
	return &sg, nil
}

// WithdrawSuggestion removes a suggestion the caller made.
func (c *Client) WithdrawSuggestion(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/visits/suggestions/%d", id), nil, nil)
}

// TourRequest is the body of a new tour.
type TourRequest struct {
	Name          string     `json:"name"`
	BuyerID       *int64     `json:"buyer_id,omitempty"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// CreateTour plans a tour.
func (c *Client) CreateTour(ctx context.Context, req TourRequest) (*tour.Tour, error) {
	var t tour.Tour
	if err := c.send(ctx, http.MethodPost, "/api/tours", req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTours returns the caller's tours.
func (c *Client) ListTours(ctx context.Context, status string) ([]*tour.Tour, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var tours []*tour.Tour
	if err := c.get(ctx, "/api/tours", q, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

// GetTour returns a tour with its stops.
func (c *Client) GetTour(ctx context.Context, id int64) (*tour.Tour, error) {
	var t tour.Tour
	if err := c.get(ctx, fmt.Sprintf("/api/tours/%d", id), nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTourStatus moves a tour to status.
func (c *Client) UpdateTourStatus(ctx context.Context, id int64, status string) (*tour.Tour, error) {
	var t tour.Tour
	if err := c.send(ctx, http.MethodPatch, fmt.Sprintf("/api/tours/%d", id), map[string]string{"status": status}, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// RemoveTour soft-deletes a tour.
func (c *Client) RemoveTour(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/tours/%d", id), nil, nil)
}

// StopRequest is the body of a new tour stop.
type StopRequest struct {
	HouseID       int64      `json:"house_id"`
	EstimatedTime *time.Time `json:"estimated_time,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// AddStop appends a house to a tour.
func (c *Client) AddStop(ctx context.Context, tourID int64, req StopRequest) (*tour.Stop, error) {
	var s tour.Stop
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/tours/%d/stops", tourID), req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// RemoveStop removes a stop from a tour.
func (c *Client) RemoveStop(ctx context.Context, tourID, stopID int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/tours/%d/stops?stopId=%d", tourID, stopID), nil, nil)
}

// LinkStop records the visit made at a stop.
func (c *Client) LinkStop(ctx context.Context, stopID, visitID int64) (*tour.Stop, error) {
	var s tour.Stop
	if err := c.send(ctx, http.MethodPost, fmt.Sprintf("/api/tours/stops/%d/visit", stopID), map[string]int64{"visit_id": visitID}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// get performs a GET request and decodes the response.
func (c *Client) get(ctx context.Context, path string, query url.Values, result any) error {
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.send(ctx, http.MethodGet, path, nil, result)
}

// send performs a request with an optional JSON body and decodes the
// response into result when it is non-nil.
func (c *Client) send(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, result)
}

// do executes an HTTP request with auth header and handles errors.
func (c *Client) do(req *http.Request, result any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			slog.Debug("closing response body", "err", cerr)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Code    string            `json:"code"`
				Message string            `json:"message"`
				Details map[string]string `json:"details"`
			} `json:"error"`
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			apiErr.Code = errResp.Error.Code
			apiErr.Message = errResp.Error.Message
			apiErr.Details = errResp.Error.Details
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
