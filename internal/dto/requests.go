package dto

import (
	"time"

	"festreg/internal/model"
)

type SignupRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,phone"`
	College  string `json:"college" validate:"max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type CreateEventRequest struct {
	Name                   string `json:"name" validate:"required,max=255"`
	Date                   string `json:"date" validate:"required,isodate"`
	Time                   string `json:"time" validate:"required,max=32"`
	Venue                  string `json:"venue" validate:"max=255"`
	RegistrationFee        int64  `json:"registration_fee" validate:"gte=0"`
	TeamMin                int    `json:"team_min" validate:"gte=1"`
	TeamMax                int    `json:"team_max" validate:"gte=1"`
	MaxParticipants        int    `json:"max_participants" validate:"gt=0"`
	OnlineRegistrationOpen *bool  `json:"online_registration_open"`
}

type SetRegistrationOpenRequest struct {
	Open *bool `json:"open" validate:"required"`
}

type TeamMemberInput struct {
	Name    string `json:"name" validate:"max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	College string `json:"college" validate:"max=255"`
}

type CreateRegistrationRequest struct {
	EventID     string            `json:"event_id" validate:"required,uuid"`
	TeamName    string            `json:"team_name" validate:"max=255"`
	TeamMembers []TeamMemberInput `json:"team_members" validate:"dive"`
}

type NewUserInput struct {
	Name    string `json:"name" validate:"required,min=2,max=255"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required,phone"`
	College string `json:"college" validate:"max=255"`
}

// AdminRegisterRequest is validated member by member, so nested structs are not dived here.
type AdminRegisterRequest struct {
	EventID     string            `json:"event_id"`
	NewUser     NewUserInput      `json:"new_user"`
	TeamName    string            `json:"team_name"`
	TeamMembers []TeamMemberInput `json:"team_members"`
}

type OfflinePaymentRequest struct {
	RegistrationID string `form:"registration_id" json:"registration_id" validate:"required,uuid"`
	UTRNumber      string `form:"utr_number" json:"utr_number" validate:"required,min=6,max=64"`
}

type RejectPaymentRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

type ConflictingEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
	Time string `json:"time"`
}

func NewConflictingEvent(e *model.Event) *ConflictingEvent {
	if e == nil {
		return nil
	}
	return &ConflictingEvent{
		ID:   e.ID,
		Name: e.Name,
		Date: e.Date.Format("2006-01-02"),
		Time: e.Time,
	}
}

type ConflictCheckResponse struct {
	HasConflict      bool              `json:"has_conflict"`
	ConflictingEvent *ConflictingEvent `json:"conflicting_event,omitempty"`
}

type EventInfoResponse struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	Date                   string         `json:"date"`
	Time                   string         `json:"time"`
	Venue                  string         `json:"venue"`
	RegistrationFee        int64          `json:"registration_fee"`
	TeamSize               model.TeamSize `json:"team_size"`
	MaxParticipants        int            `json:"max_participants"`
	CurrentParticipants    int            `json:"current_participants"`
	AvailableSeats         int            `json:"available_seats"`
	OnlineRegistrationOpen bool           `json:"online_registration_open"`
	CreatedAt              time.Time      `json:"created_at"`
	UpdatedAt              time.Time      `json:"updated_at"`
}

func NewEventInfo(e *model.Event) EventInfoResponse {
	available := e.MaxParticipants - e.CurrentParticipants
	if available < 0 {
		available = 0
	}
	return EventInfoResponse{
		ID:                     e.ID,
		Name:                   e.Name,
		Date:                   e.Date.Format("2006-01-02"),
		Time:                   e.Time,
		Venue:                  e.Venue,
		RegistrationFee:        e.RegistrationFee,
		TeamSize:               e.TeamSize,
		MaxParticipants:        e.MaxParticipants,
		CurrentParticipants:    e.CurrentParticipants,
		AvailableSeats:         available,
		OnlineRegistrationOpen: e.OnlineRegistrationOpen,
		CreatedAt:              e.CreatedAt,
		UpdatedAt:              e.UpdatedAt,
	}
}

type RegistrationDetails struct {
	Registration model.Registration `json:"registration"`
	Event        *EventInfoResponse `json:"event,omitempty"`
	Payment      *model.Payment     `json:"payment,omitempty"`
}

type AdminRegisterResponse struct {
	Registration        model.Registration   `json:"registration"`
	Leader              model.User           `json:"leader"`
	CreatedMembers      []model.User         `json:"created_members"`
	ExistingMembers     []model.User         `json:"existing_members"`
	MemberRegistrations []model.Registration `json:"member_registrations"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

type ExportResponse struct {
	Event EventInfoResponse `json:"event"`
	Rows  []model.ExportRow `json:"rows"`
}
