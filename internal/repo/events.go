package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"festreg/internal/model"
)

const eventColumns = `id, name, event_date, event_time, venue, registration_fee, team_min, team_max,
	max_participants, current_participants, online_registration_open, created_at, updated_at`

func scanEvent(row scanner) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(
		&e.ID, &e.Name, &e.Date, &e.Time, &e.Venue, &e.RegistrationFee,
		&e.TeamSize.Min, &e.TeamSize.Max, &e.MaxParticipants, &e.CurrentParticipants,
		&e.OnlineRegistrationOpen, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *store) CreateEvent(ctx context.Context, e *model.Event) error {
	query := `
		INSERT INTO events (id, name, event_date, event_time, venue, registration_fee,
		                    team_min, team_max, max_participants, current_participants, online_registration_open)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at
	`
	err := s.q.QueryRowContext(ctx, query,
		e.ID, e.Name, e.Date, e.Time, e.Venue, e.RegistrationFee,
		e.TeamSize.Min, e.TeamSize.Max, e.MaxParticipants, e.CurrentParticipants, e.OnlineRegistrationOpen,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (s *store) GetEventByID(ctx context.Context, id string) (*model.Event, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		return nil, notFound(err, ErrEventNotFound)
	}
	return e, nil
}

func (s *store) GetAllEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date, event_time, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *store) SetRegistrationOpen(ctx context.Context, eventID string, open bool) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE events SET online_registration_open = $1, updated_at = NOW() WHERE id = $2
	`, open, eventID)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (s *store) IncrementParticipants(ctx context.Context, eventID string) (int, error) {
	var current int
	err := s.q.QueryRowContext(ctx, `
		UPDATE events
		SET current_participants = current_participants + 1, updated_at = NOW()
		WHERE id = $1 AND current_participants < max_participants
		RETURNING current_participants
	`, eventID).Scan(&current)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to increment participants: %w", err)
	}
	if _, err := s.GetEventByID(ctx, eventID); err != nil {
		return 0, err
	}
	return 0, ErrEventFull
}

func (s *store) DecrementParticipants(ctx context.Context, eventID string) (int, error) {
	var current int
	err := s.q.QueryRowContext(ctx, `
		UPDATE events
		SET current_participants = GREATEST(current_participants - 1, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING current_participants
	`, eventID).Scan(&current)
	if err != nil {
		return 0, notFound(err, ErrEventNotFound)
	}
	return current, nil
}
