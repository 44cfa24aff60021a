package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"festreg/internal/dto"
	"festreg/internal/metrics"
	"festreg/internal/model"
	"festreg/internal/notify"
	"festreg/internal/repo"
)

const (
	originSelf  = "self"
	originAdmin = "admin"
)

// Register creates a registration of the user, as team leader, for an event.
func (s *Service) Register(ctx context.Context, userID string, req dto.CreateRegistrationRequest) (*model.Registration, error) {
	reg, event, err := s.register(ctx, userID, req)
	if err != nil {
		metrics.RegistrationsRejected.WithLabelValues(CodeOf(err)).Inc()
		return nil, err
	}
	metrics.RegistrationsCreated.WithLabelValues(originSelf).Inc()

	s.log.Info().
		Str("registration_id", reg.ID).
		Str("registration_number", reg.RegistrationNumber).
		Str("user_id", userID).
		Str("event_id", event.ID).
		Str("payment_status", string(reg.PaymentStatus)).
		Msg("registration created")

	leader := reg.TeamMembers[0]
	tmpl := notify.TemplateRegistrationConfirmed
	if reg.PaymentStatus == model.PaymentPending {
		tmpl = notify.TemplateRegistrationPending
	}
	s.notify(leader.Email, tmpl, registrationData(reg, event))
	return reg, nil
}

func (s *Service) register(ctx context.Context, userID string, req dto.CreateRegistrationRequest) (*model.Registration, *model.Event, error) {
	user, err := s.loadUser(ctx, s.repo, userID)
	if err != nil {
		return nil, nil, err
	}
	event, err := s.loadEvent(ctx, s.repo, req.EventID)
	if err != nil {
		return nil, nil, err
	}

	if !event.OnlineRegistrationOpen {
		return nil, nil, errRegistrationClosed()
	}
	if event.Full() {
		return nil, nil, errEventFull()
	}

	_, err = s.repo.GetRegistrationByUserEvent(ctx, user.ID, event.ID)
	switch {
	case err == nil:
		return nil, nil, errDuplicateRegistration()
	case !errors.Is(err, repo.ErrNotFound):
		return nil, nil, internalError(err)
	}

	conflict, err := s.conflicts.FindConflict(ctx, s.repo, user.ID, event)
	if err != nil {
		return nil, nil, internalError(err)
	}
	if conflict != nil {
		return nil, nil, scheduleConflict(conflict)
	}

	team, err := s.teams.Validate(ctx, s.repo, user, event, req.TeamMembers)
	if err != nil {
		return nil, nil, err
	}

	reg := &model.Registration{
		ID:                 uuid.NewString(),
		UserID:             user.ID,
		EventID:            event.ID,
		TeamName:           req.TeamName,
		TeamMembers:        team,
		Amount:             event.RegistrationFee,
		PaymentStatus:      model.PaymentPending,
		CancellationStatus: model.CancellationNone,
	}
	if event.RegistrationFee == 0 {
		now := s.now()
		reg.PaymentStatus = model.PaymentCompleted
		reg.PaidAt = &now
	}

	// Rows are written registration first, then event, the same order
	// Cancel and Reject lock them in.
	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		if err := s.insertRegistration(ctx, tx, reg); err != nil {
			return err
		}
		return s.capacity.Increment(ctx, tx, event.ID)
	})
	if err != nil {
		return nil, nil, asEngineError(err)
	}
	return reg, event, nil
}

// insertRegistration assigns the next registration number and persists reg.
// The (user, event) unique constraint is the authoritative duplicate guard.
func (s *Service) insertRegistration(ctx context.Context, st repo.Store, reg *model.Registration) error {
	seq, err := st.NextRegistrationSeq(ctx)
	if err != nil {
		return internalError(err)
	}
	reg.RegistrationNumber = s.registrationNumber(seq)

	if err := st.InsertRegistration(ctx, reg); err != nil {
		if errors.Is(err, repo.ErrDuplicateRegistration) {
			return errDuplicateRegistration()
		}
		return internalError(err)
	}
	return nil
}

func (s *Service) registrationNumber(seq int64) string {
	return fmt.Sprintf("%s-%04d", s.regPrefix, seq)
}

// Cancel marks the caller's registration cancelled and releases its place.
func (s *Service) Cancel(ctx context.Context, userID, registrationID string) (*model.Registration, error) {
	var cancelled *model.Registration
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		reg, err := tx.LockRegistration(ctx, registrationID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errRegistrationNotFound()
			}
			return internalError(err)
		}
		if reg.UserID != userID {
			return notAuthorized("You can only cancel your own registrations")
		}
		if reg.Cancelled() {
			return errAlreadyCancelled()
		}

		// Only the write that flips the status releases the place.
		if err := tx.CancelRegistration(ctx, reg.ID); err != nil {
			if !errors.Is(err, repo.ErrNotFound) {
				return internalError(err)
			}
			if _, err := tx.GetRegistrationByID(ctx, reg.ID); errors.Is(err, repo.ErrNotFound) {
				return errRegistrationNotFound()
			}
			return errAlreadyCancelled()
		}
		if err := s.capacity.Decrement(ctx, tx, reg.EventID); err != nil {
			return err
		}

		cancelled, err = tx.GetRegistrationByID(ctx, reg.ID)
		if err != nil {
			return internalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}

	metrics.RegistrationsCancelled.Inc()
	s.log.Info().
		Str("registration_id", cancelled.ID).
		Str("user_id", userID).
		Str("event_id", cancelled.EventID).
		Msg("registration cancelled")
	return cancelled, nil
}

// MyRegistrations lists the user's registrations with their event and payment.
func (s *Service) MyRegistrations(ctx context.Context, userID string) ([]dto.RegistrationDetails, error) {
	regs, err := s.repo.GetRegistrationsByUser(ctx, userID)
	if err != nil {
		return nil, internalError(err)
	}

	events := map[string]*model.Event{}
	out := make([]dto.RegistrationDetails, 0, len(regs))
	for _, reg := range regs {
		item := dto.RegistrationDetails{Registration: reg}

		event, ok := events[reg.EventID]
		if !ok {
			event, err = s.repo.GetEventByID(ctx, reg.EventID)
			if err != nil && !errors.Is(err, repo.ErrEventNotFound) {
				return nil, internalError(err)
			}
			events[reg.EventID] = event
		}
		if event != nil {
			info := dto.NewEventInfo(event)
			item.Event = &info
		}

		payment, err := s.repo.GetPaymentByRegistrationID(ctx, reg.ID)
		switch {
		case err == nil:
			item.Payment = payment
		case !errors.Is(err, repo.ErrNotFound):
			return nil, internalError(err)
		}
		out = append(out, item)
	}
	return out, nil
}

// CheckConflict reports whether registering for the event would collide with
// one of the user's active registrations.
func (s *Service) CheckConflict(ctx context.Context, userID, eventID string) (*dto.ConflictCheckResponse, error) {
	event, err := s.loadEvent(ctx, s.repo, eventID)
	if err != nil {
		return nil, err
	}
	conflict, err := s.conflicts.FindConflict(ctx, s.repo, userID, event)
	if err != nil {
		return nil, internalError(err)
	}
	return &dto.ConflictCheckResponse{
		HasConflict:      conflict != nil,
		ConflictingEvent: dto.NewConflictingEvent(conflict),
	}, nil
}

func registrationData(reg *model.Registration, event *model.Event) map[string]string {
	return map[string]string{
		"event_name":          event.Name,
		"event_date":          event.Date.Format("2006-01-02"),
		"event_time":          event.Time,
		"venue":               event.Venue,
		"registration_number": reg.RegistrationNumber,
		"amount":              strconv.FormatInt(reg.Amount, 10),
		"team_name":           reg.TeamName,
	}
}
