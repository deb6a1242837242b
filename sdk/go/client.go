package villagehubsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Villagehub HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Booking represents the API booking model.
type Booking struct {
	ID          int64  `json:"booking_id"`
	CustomerID  *int64 `json:"customer_id,omitempty"`
	WorkerID    *int64 `json:"worker_id,omitempty"`
	ServiceDate string `json:"service_date"`
	Status      string `json:"status"`
	Address     string `json:"address"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`

	// Set on list responses only.
	WorkerName    *string `json:"worker_name,omitempty"`
	WorkerSkill   *string `json:"worker_skill,omitempty"`
	CustomerName  *string `json:"customer_name,omitempty"`
	CustomerPhone *string `json:"customer_phone,omitempty"`
	Reviewed      bool    `json:"reviewed"`
}

type Worker struct {
	ID           int64   `json:"worker_id"`
	Name         string  `json:"name"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Skill        string  `json:"skill,omitempty"`
	Experience   int     `json:"experience"`
	PricePerHour float64 `json:"price_per_hour"`
	Availability string  `json:"availability,omitempty"`
	Address      string  `json:"address,omitempty"`
	Rating       float64 `json:"rating"`
}

type Review struct {
	ID         int64  `json:"review_id"`
	BookingID  int64  `json:"booking_id"`
	CustomerID *int64 `json:"customer_id,omitempty"`
	WorkerID   *int64 `json:"worker_id,omitempty"`
	Rating     int    `json:"rating"`
	Text       string `json:"review_text"`
	CreatedAt  string `json:"created_at"`
}

type Message struct {
	ID         int64  `json:"message_id"`
	BookingID  int64  `json:"booking_id"`
	SenderID   int64  `json:"sender_id"`
	SenderRole string `json:"sender_role"`
	Text       string `json:"message_text"`
	Timestamp  string `json:"timestamp"`
}

// MessagePage is one poll of a chat; pass LastID back as the next after.
type MessagePage struct {
	Items  []Message `json:"items"`
	LastID int64     `json:"last_id"`
}

// Event represents an audit log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id"`
	ActorID    int64          `json:"actor_id"`
	ActorRole  string         `json:"actor_role,omitempty"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// Session is the result of a login.
type Session struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	ActorID   int64  `json:"actor_id"`
	Role      string `json:"role"`
}

// APIError wraps non-2xx responses. Code is the error envelope's code when
// the body carried one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, role, login, password string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{
		"role":     role,
		"login":    login,
		"password": password,
	}, &resp)
	if err == nil {
		c.BearerToken = resp.Token
	}
	return resp, err
}

// RegisterCustomer signs up a customer.
func (c *Client) RegisterCustomer(ctx context.Context, name, email, phone, password string) (int64, error) {
	var resp struct {
		ID int64 `json:"customer_id"`
	}
	err := c.do(ctx, http.MethodPost, "customers", map[string]any{
		"name": name, "email": email, "phone": phone, "password": password,
	}, &resp)
	return resp.ID, err
}

// RegisterWorker signs up a worker.
func (c *Client) RegisterWorker(ctx context.Context, w Worker, password string) (Worker, error) {
	var resp Worker
	err := c.do(ctx, http.MethodPost, "workers", map[string]any{
		"name":           w.Name,
		"email":          w.Email,
		"phone":          w.Phone,
		"skill":          w.Skill,
		"experience":     w.Experience,
		"price_per_hour": w.PricePerHour,
		"availability":   w.Availability,
		"address":        w.Address,
		"password":       password,
	}, &resp)
	return resp, err
}

// SearchWorkers lists workers whose name or skill contains keyword.
func (c *Client) SearchWorkers(ctx context.Context, keyword string) ([]Worker, error) {
	var resp struct {
		Items []Worker `json:"items"`
	}
	endpoint := "workers"
	if keyword != "" {
		endpoint += "?q=" + url.QueryEscape(keyword)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// CreateBooking requests a booking for the logged in customer.
func (c *Client) CreateBooking(ctx context.Context, workerID int64, serviceDate, address, notes string) (Booking, error) {
	var resp Booking
	err := c.do(ctx, http.MethodPost, "bookings", map[string]any{
		"worker_id":    workerID,
		"service_date": serviceDate,
		"address":      address,
		"notes":        notes,
	}, &resp)
	return resp, err
}

// GetBooking fetches one booking.
func (c *Client) GetBooking(ctx context.Context, id int64) (Booking, error) {
	var resp Booking
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("bookings/%d", id), nil, &resp)
	return resp, err
}

// MyBookings lists the caller's bookings, newest first.
func (c *Client) MyBookings(ctx context.Context) ([]Booking, error) {
	var resp struct {
		Items []Booking `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, "me/bookings", nil, &resp)
	return resp.Items, err
}

// Transition moves a booking to status.
func (c *Client) Transition(ctx context.Context, id int64, status string) (Booking, error) {
	var resp Booking
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("bookings/%d/transitions", id), map[string]any{"status": status}, &resp)
	return resp, err
}

// SubmitReview reviews a completed booking.
func (c *Client) SubmitReview(ctx context.Context, bookingID int64, rating int, text string) (Review, error) {
	var resp Review
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("bookings/%d/review", bookingID), map[string]any{
		"rating":      rating,
		"review_text": text,
	}, &resp)
	return resp, err
}

// ReviewEligibility returns none, eligible or reviewed.
func (c *Client) ReviewEligibility(ctx context.Context, bookingID int64) (string, error) {
	var resp struct {
		Eligibility string `json:"eligibility"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("bookings/%d/review-eligibility", bookingID), nil, &resp)
	return resp.Eligibility, err
}

// PostMessage sends a chat message as the logged in party.
func (c *Client) PostMessage(ctx context.Context, bookingID int64, text string) (Message, error) {
	var resp Message
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("bookings/%d/messages", bookingID), map[string]any{"message_text": text}, &resp)
	return resp, err
}

// Messages returns the chat after the given message id; 0 returns all.
func (c *Client) Messages(ctx context.Context, bookingID, after int64) (MessagePage, error) {
	var resp MessagePage
	endpoint := fmt.Sprintf("bookings/%d/messages", bookingID)
	if after > 0 {
		endpoint = fmt.Sprintf("%s?after=%d", endpoint, after)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// EventsPage returns a page of the admin audit log.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	endpoint := "admin/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	if cursor != "" {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint = fmt.Sprintf("%s%scursor=%s", endpoint, sep, url.QueryEscape(cursor))
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v0/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
