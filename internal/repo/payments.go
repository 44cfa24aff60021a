package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"festreg/internal/model"
)

const paymentColumns = `id, registration_id, user_id, event_id, amount, method, utr_number, screenshot_ref,
	status, verified_by, rejection_reason, paid_at, created_at, updated_at`

func scanPayment(row scanner) (*model.Payment, error) {
	var (
		p      model.Payment
		paidAt sql.NullTime
	)
	if err := row.Scan(
		&p.ID, &p.RegistrationID, &p.UserID, &p.EventID, &p.Amount, &p.Method, &p.UTRNumber, &p.ScreenshotRef,
		&p.Status, &p.VerifiedBy, &p.RejectionReason, &paidAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		t := paidAt.Time
		p.PaidAt = &t
	}
	return &p, nil
}

func (s *store) InsertPayment(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (id, registration_id, user_id, event_id, amount, method, utr_number,
		                      screenshot_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := s.q.QueryRowContext(ctx, query,
		p.ID, p.RegistrationID, p.UserID, p.EventID, p.Amount, p.Method, p.UTRNumber, p.ScreenshotRef, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if terr := translateUnique(err); terr != err {
			return terr
		}
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *store) UpdatePayment(ctx context.Context, p *model.Payment, from model.PaymentRecordStatus) error {
	err := s.q.QueryRowContext(ctx, `
		UPDATE payments
		SET utr_number = $1, screenshot_ref = $2, status = $3, verified_by = $4,
		    rejection_reason = $5, paid_at = $6, amount = $7, updated_at = NOW()
		WHERE id = $8 AND status = $9
		RETURNING updated_at
	`, p.UTRNumber, p.ScreenshotRef, p.Status, p.VerifiedBy, p.RejectionReason, p.PaidAt, p.Amount, p.ID, from,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s.missingOrStale(ctx, `SELECT EXISTS (SELECT 1 FROM payments WHERE id = $1)`, p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

// missingOrStale tells a vanished row from one whose state moved on.
func (s *store) missingOrStale(ctx context.Context, existsQuery, id string) error {
	var exists bool
	if err := s.q.QueryRowContext(ctx, existsQuery, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check row: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrStaleState
}

func (s *store) GetPaymentByID(ctx context.Context, id string) (*model.Payment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return p, nil
}

func (s *store) LockPayment(ctx context.Context, id string) (*model.Payment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return p, nil
}

func (s *store) GetPaymentByRegistrationID(ctx context.Context, registrationID string) (*model.Payment, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE registration_id = $1`, registrationID)
	p, err := scanPayment(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return p, nil
}

func (s *store) GetPaymentsByStatus(ctx context.Context, status model.PaymentRecordStatus) ([]model.Payment, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE status = $1 ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
