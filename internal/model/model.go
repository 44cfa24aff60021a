package model

import "time"

type Role string

const (
	RoleParticipant Role = "participant"
	RoleAdmin       Role = "admin"
)

type PaymentStatus string

const (
	PaymentPending             PaymentStatus = "pending"
	PaymentVerificationPending PaymentStatus = "verification_pending"
	PaymentCompleted           PaymentStatus = "completed"
	PaymentFailed              PaymentStatus = "failed"
	// PaymentRefunded is reserved; nothing transitions into it yet.
	PaymentRefunded PaymentStatus = "refunded"
)

// ActivePaymentStatuses are the statuses that hold a time slot for conflict checks.
var ActivePaymentStatuses = []PaymentStatus{PaymentCompleted, PaymentPending, PaymentVerificationPending}

func (s PaymentStatus) Active() bool {
	for _, a := range ActivePaymentStatuses {
		if s == a {
			return true
		}
	}
	return false
}

type CancellationStatus string

const (
	CancellationNone      CancellationStatus = "active"
	CancellationCancelled CancellationStatus = "cancelled"
)

type PaymentRecordStatus string

const (
	PaymentRecordSubmitted PaymentRecordStatus = "submitted"
	PaymentRecordCaptured  PaymentRecordStatus = "captured"
	PaymentRecordFailed    PaymentRecordStatus = "failed"
)

const PaymentMethodBankTransfer = "bank_transfer"

type User struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	College      string    `db:"college" json:"college"`
	Role         Role      `db:"role" json:"role"`
	Code         string    `db:"code" json:"code"`
	Avatar       string    `db:"avatar" json:"avatar,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Snapshot copies the profile fields a registration keeps for a team member.
func (u *User) Snapshot() TeamMember {
	return TeamMember{
		Name:    u.Name,
		Email:   u.Email,
		Phone:   u.Phone,
		College: u.College,
	}
}

type TeamSize struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

func (t TeamSize) IsTeam() bool {
	return t.Max > 1
}

type Event struct {
	ID                     string    `db:"id" json:"id"`
	Name                   string    `db:"name" json:"name"`
	Date                   time.Time `db:"event_date" json:"date"`
	Time                   string    `db:"event_time" json:"time"`
	Venue                  string    `db:"venue" json:"venue"`
	RegistrationFee        int64     `db:"registration_fee" json:"registration_fee"`
	TeamSize               TeamSize  `db:"-" json:"team_size"`
	MaxParticipants        int       `db:"max_participants" json:"max_participants"`
	CurrentParticipants    int       `db:"current_participants" json:"current_participants"`
	OnlineRegistrationOpen bool      `db:"online_registration_open" json:"online_registration_open"`
	CreatedAt              time.Time `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time `db:"updated_at" json:"updated_at"`
}

// SameSlot reports whether both events share a calendar date and the exact display time.
// Durations are not considered: 10:00 and 10:30 never collide.
func (e *Event) SameSlot(other *Event) bool {
	ey, em, ed := e.Date.Date()
	oy, om, od := other.Date.Date()
	return ey == oy && em == om && ed == od && e.Time == other.Time
}

func (e *Event) Full() bool {
	return e.CurrentParticipants >= e.MaxParticipants
}

// TeamMember is a copy of a member's profile at registration time, not a reference to User.
type TeamMember struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	College string `json:"college"`
}

type Registration struct {
	ID                 string             `db:"id" json:"id"`
	UserID             string             `db:"user_id" json:"user_id"`
	EventID            string             `db:"event_id" json:"event_id"`
	TeamName           string             `db:"team_name" json:"team_name,omitempty"`
	TeamMembers        []TeamMember       `db:"team_members" json:"team_members"`
	Amount             int64              `db:"amount" json:"amount"`
	PaymentStatus      PaymentStatus      `db:"payment_status" json:"payment_status"`
	RegistrationNumber string             `db:"registration_number" json:"registration_number"`
	CancellationStatus CancellationStatus `db:"cancellation_status" json:"cancellation_status"`
	PaidAt             *time.Time         `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

func (r *Registration) Cancelled() bool {
	return r.CancellationStatus == CancellationCancelled
}

// HoldsSlot reports whether the registration blocks its time slot for the owner.
func (r *Registration) HoldsSlot() bool {
	return !r.Cancelled() && r.PaymentStatus.Active()
}

type Payment struct {
	ID              string              `db:"id" json:"id"`
	RegistrationID  string              `db:"registration_id" json:"registration_id"`
	UserID          string              `db:"user_id" json:"user_id"`
	EventID         string              `db:"event_id" json:"event_id"`
	Amount          int64               `db:"amount" json:"amount"`
	Method          string              `db:"method" json:"method"`
	UTRNumber       string              `db:"utr_number" json:"utr_number"`
	ScreenshotRef   string              `db:"screenshot_ref" json:"screenshot_ref"`
	Status          PaymentRecordStatus `db:"status" json:"status"`
	VerifiedBy      string              `db:"verified_by" json:"verified_by,omitempty"`
	RejectionReason string              `db:"rejection_reason" json:"rejection_reason,omitempty"`
	PaidAt          *time.Time          `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// ExportRow joins a registration with its owner and payment for the admin export.
type ExportRow struct {
	Registration Registration `json:"registration"`
	User         User         `json:"user"`
	Payment      *Payment     `json:"payment,omitempty"`
}
