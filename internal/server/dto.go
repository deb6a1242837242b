package server

import (
	"encoding/json"

	"villagehub/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Role     domain.Role `json:"role" enum:"customer,worker,admin"`
	Login    string      `json:"login" doc:"email or phone for customers and workers, username for admins"`
	Password string      `json:"password"`
}

type RegisterCustomerRequest struct {
	Name     string `json:"name" minLength:"1"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	Password string `json:"password" minLength:"6"`
}

type RegisterWorkerRequest struct {
	Name         string  `json:"name" minLength:"1"`
	Email        string  `json:"email,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Skill        string  `json:"skill,omitempty"`
	Experience   int     `json:"experience,omitempty" minimum:"0"`
	PricePerHour float64 `json:"price_per_hour,omitempty" minimum:"0"`
	Availability string  `json:"availability,omitempty"`
	Address      string  `json:"address,omitempty"`
	Password     string  `json:"password" minLength:"6"`
}

type UpdateWorkerRequest struct {
	Name         *string  `json:"name,omitempty"`
	Phone        *string  `json:"phone,omitempty"`
	Skill        *string  `json:"skill,omitempty"`
	Experience   *int     `json:"experience,omitempty"`
	PricePerHour *float64 `json:"price_per_hour,omitempty"`
	Availability *string  `json:"availability,omitempty"`
	Address      *string  `json:"address,omitempty"`
}

type CreateBookingRequest struct {
	CustomerID  int64  `json:"customer_id,omitempty" doc:"defaults to the calling customer"`
	WorkerID    int64  `json:"worker_id"`
	ServiceDate string `json:"service_date"`
	Address     string `json:"address"`
	Notes       string `json:"notes,omitempty"`
}

type TransitionRequest struct {
	Status domain.Status `json:"status" enum:"requested,accepted,rejected,completed"`
}

type ForceTransitionRequest struct {
	Status domain.Status `json:"status" enum:"requested,accepted,rejected,completed"`
	Reason string        `json:"reason,omitempty"`
}

type SubmitReviewRequest struct {
	Rating     int    `json:"rating"`
	ReviewText string `json:"review_text"`
}

type PostMessageRequest struct {
	MessageText string `json:"message_text"`
}

// Response payloads

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt string      `json:"expires_at" format:"date-time"`
	ActorID   int64       `json:"actor_id"`
	Role      domain.Role `json:"role"`
}

type BookingList struct {
	Items []domain.BookingSummary `json:"items"`
}

type EligibilityResponse struct {
	BookingID   int64              `json:"booking_id"`
	Eligibility domain.Eligibility `json:"eligibility" enum:"none,eligible,reviewed"`
}

type MessageList struct {
	Items []domain.Message `json:"items"`
	// LastID is the cursor to pass as after= on the next poll.
	LastID int64 `json:"last_id"`
}

type WorkerList struct {
	Items []domain.Worker `json:"items"`
}

type CustomerList struct {
	Items []domain.Customer `json:"items"`
}

type ReviewList struct {
	Items []domain.Review `json:"items"`
}

type WorkerRatingResponse struct {
	WorkerID int64   `json:"worker_id"`
	Rating   float64 `json:"rating"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   int64          `json:"entity_id"`
	ActorID    int64          `json:"actor_id"`
	ActorRole  string         `json:"actor_role,omitempty"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		ActorID:    e.ActorID,
		ActorRole:  e.ActorRole,
		Payload:    decodeJSONMap(e.Payload),
	}
}

func decodeJSONMap(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func messageList(items []domain.Message, after int64) MessageList {
	res := MessageList{Items: items, LastID: after}
	for _, m := range items {
		if m.ID > res.LastID {
			res.LastID = m.ID
		}
	}
	return res
}
