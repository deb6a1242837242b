package domain

// Role identifies which kind of party an actor is.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleWorker   Role = "worker"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleWorker, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller. The core trusts it as given.
type Actor struct {
	ID   int64 `json:"actor_id"`
	Role Role  `json:"actor_role"`
}

type Customer struct {
	ID           int64  `db:"customer_id" json:"customer_id"`
	Name         string `db:"name" json:"name"`
	Email        string `db:"email" json:"email,omitempty"`
	Phone        string `db:"phone" json:"phone,omitempty"`
	Address      string `db:"address" json:"address,omitempty"`
	PasswordHash string `db:"password_hash" json:"-"`
	CreatedAt    string `db:"created_at" json:"created_at" format:"date-time"`
}

type Worker struct {
	ID           int64   `db:"worker_id" json:"worker_id"`
	Name         string  `db:"name" json:"name"`
	Email        string  `db:"email" json:"email,omitempty"`
	Phone        string  `db:"phone" json:"phone,omitempty"`
	Skill        string  `db:"skill" json:"skill,omitempty"`
	Experience   int     `db:"experience" json:"experience"`
	PricePerHour float64 `db:"price_per_hour" json:"price_per_hour"`
	Availability string  `db:"availability" json:"availability,omitempty"`
	Address      string  `db:"address" json:"address,omitempty"`
	Rating       float64 `db:"rating" json:"rating"`
	PasswordHash string  `db:"password_hash" json:"-"`
	CreatedAt    string  `db:"created_at" json:"created_at" format:"date-time"`
}

type Admin struct {
	ID           int64  `db:"admin_id" json:"admin_id"`
	Username     string `db:"username" json:"username"`
	PasswordHash string `db:"password_hash" json:"-"`
	CreatedAt    string `db:"created_at" json:"created_at" format:"date-time"`
}

type Booking struct {
	ID          int64  `db:"booking_id" json:"booking_id"`
	CustomerID  *int64 `db:"customer_id" json:"customer_id,omitempty"`
	WorkerID    *int64 `db:"worker_id" json:"worker_id,omitempty"`
	ServiceDate string `db:"service_date" json:"service_date"`
	Status      Status `db:"status" json:"status" enum:"requested,accepted,rejected,completed"`
	Address     string `db:"address" json:"address"`
	Notes       string `db:"notes" json:"notes,omitempty"`
	CreatedAt   string `db:"created_at" json:"created_at" format:"date-time"`
	UpdatedAt   string `db:"updated_at" json:"updated_at" format:"date-time"`
}

// IsCustomer reports whether id is the booking's (still present) customer.
func (b Booking) IsCustomer(id int64) bool {
	return b.CustomerID != nil && *b.CustomerID == id
}

// IsWorker reports whether id is the booking's (still present) worker.
func (b Booking) IsWorker(id int64) bool {
	return b.WorkerID != nil && *b.WorkerID == id
}

// BookingSummary is the dashboard projection of a booking: the booking plus
// display fields of the counterpart and whether it has been reviewed.
type BookingSummary struct {
	Booking
	WorkerName    *string `db:"worker_name" json:"worker_name,omitempty"`
	WorkerSkill   *string `db:"worker_skill" json:"worker_skill,omitempty"`
	CustomerName  *string `db:"customer_name" json:"customer_name,omitempty"`
	CustomerPhone *string `db:"customer_phone" json:"customer_phone,omitempty"`
	Reviewed      bool    `db:"reviewed" json:"reviewed"`
}

type Review struct {
	ID         int64  `db:"review_id" json:"review_id"`
	BookingID  int64  `db:"booking_id" json:"booking_id"`
	CustomerID *int64 `db:"customer_id" json:"customer_id,omitempty"`
	WorkerID   *int64 `db:"worker_id" json:"worker_id,omitempty"`
	Rating     int    `db:"rating" json:"rating" minimum:"1" maximum:"5"`
	Text       string `db:"review_text" json:"review_text"`
	CreatedAt  string `db:"created_at" json:"created_at" format:"date-time"`
}

type Message struct {
	ID         int64  `db:"message_id" json:"message_id"`
	BookingID  int64  `db:"booking_id" json:"booking_id"`
	SenderID   int64  `db:"sender_id" json:"sender_id"`
	SenderRole Role   `db:"sender_role" json:"sender_role" enum:"customer,worker"`
	Text       string `db:"message_text" json:"message_text"`
	Timestamp  string `db:"sent_at" json:"timestamp" format:"date-time"`
}

// Eligibility classifies a booking for the review UI.
type Eligibility string

const (
	EligibilityNone     Eligibility = "none"
	EligibilityEligible Eligibility = "eligible"
	EligibilityReviewed Eligibility = "reviewed"
)

type Event struct {
	ID         int64  `db:"id" json:"id"`
	TS         string `db:"ts" json:"ts" format:"date-time"`
	Type       string `db:"type" json:"type"`
	EntityKind string `db:"entity_kind" json:"entity_kind"`
	EntityID   int64  `db:"entity_id" json:"entity_id"`
	ActorID    int64  `db:"actor_id" json:"actor_id"`
	ActorRole  string `db:"actor_role" json:"actor_role"`
	Payload    string `db:"payload_json" json:"payload,omitempty"`
}

type Stats struct {
	Customers int            `json:"customers"`
	Workers   int            `json:"workers"`
	Bookings  int            `json:"bookings"`
	ByStatus  map[Status]int `json:"by_status"`
}
