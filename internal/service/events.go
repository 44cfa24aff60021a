package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"festreg/internal/dto"
	"festreg/internal/model"
	"festreg/internal/repo"
)

const dateLayout = "2006-01-02"

func (s *Service) CreateEvent(ctx context.Context, req dto.CreateEventRequest) (*model.Event, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, validationError("Date must be formatted as YYYY-MM-DD")
	}
	if req.TeamMin < 1 || req.TeamMax < req.TeamMin {
		return nil, validationError("Team size bounds must satisfy 1 <= min <= max")
	}
	if req.MaxParticipants <= 0 {
		return nil, validationError("Maximum participants must be positive")
	}

	open := true
	if req.OnlineRegistrationOpen != nil {
		open = *req.OnlineRegistrationOpen
	}

	event := &model.Event{
		ID:                     uuid.NewString(),
		Name:                   strings.TrimSpace(req.Name),
		Date:                   date,
		Time:                   strings.TrimSpace(req.Time),
		Venue:                  strings.TrimSpace(req.Venue),
		RegistrationFee:        req.RegistrationFee,
		TeamSize:               model.TeamSize{Min: req.TeamMin, Max: req.TeamMax},
		MaxParticipants:        req.MaxParticipants,
		OnlineRegistrationOpen: open,
	}
	if err := s.repo.CreateEvent(ctx, event); err != nil {
		return nil, internalError(err)
	}

	s.log.Info().Str("event_id", event.ID).Str("name", event.Name).Msg("event created")
	return event, nil
}

func (s *Service) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.repo.GetAllEvents(ctx)
	if err != nil {
		return nil, internalError(err)
	}
	return events, nil
}

func (s *Service) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.loadEvent(ctx, s.repo, id)
}

// SetRegistrationOpen opens or closes online registration. Admin onboarding ignores the flag.
func (s *Service) SetRegistrationOpen(ctx context.Context, id string, open bool) (*model.Event, error) {
	if err := s.repo.SetRegistrationOpen(ctx, id, open); err != nil {
		if errors.Is(err, repo.ErrEventNotFound) {
			return nil, errEventNotFound()
		}
		return nil, internalError(err)
	}
	s.log.Info().Str("event_id", id).Bool("open", open).Msg("online registration toggled")
	return s.loadEvent(ctx, s.repo, id)
}
