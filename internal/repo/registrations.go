package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"festreg/internal/model"
)

const registrationColumns = `id, user_id, event_id, team_name, team_members, amount, payment_status,
	registration_number, cancellation_status, paid_at, created_at, updated_at`

func scanRegistration(row scanner) (*model.Registration, error) {
	var (
		reg     model.Registration
		members []byte
		paidAt  sql.NullTime
	)
	if err := row.Scan(
		&reg.ID, &reg.UserID, &reg.EventID, &reg.TeamName, &members, &reg.Amount, &reg.PaymentStatus,
		&reg.RegistrationNumber, &reg.CancellationStatus, &paidAt, &reg.CreatedAt, &reg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(members, &reg.TeamMembers); err != nil {
		return nil, fmt.Errorf("failed to decode team members: %w", err)
	}
	if paidAt.Valid {
		t := paidAt.Time
		reg.PaidAt = &t
	}
	return &reg, nil
}

func (s *store) NextRegistrationSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.q.QueryRowContext(ctx, `SELECT nextval('registration_number_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("failed to allocate registration number: %w", err)
	}
	return seq, nil
}

func (s *store) InsertRegistration(ctx context.Context, reg *model.Registration) error {
	members, err := json.Marshal(reg.TeamMembers)
	if err != nil {
		return fmt.Errorf("failed to encode team members: %w", err)
	}

	query := `
		INSERT INTO registrations (id, user_id, event_id, team_name, team_members, amount, payment_status,
		                           registration_number, cancellation_status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`
	err = s.q.QueryRowContext(ctx, query,
		reg.ID, reg.UserID, reg.EventID, reg.TeamName, members, reg.Amount, reg.PaymentStatus,
		reg.RegistrationNumber, reg.CancellationStatus, reg.PaidAt,
	).Scan(&reg.CreatedAt, &reg.UpdatedAt)
	if err != nil {
		if terr := translateUnique(err); terr != err {
			return terr
		}
		return fmt.Errorf("failed to create registration: %w", err)
	}
	return nil
}

func (s *store) GetRegistrationByID(ctx context.Context, id string) (*model.Registration, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return reg, nil
}

func (s *store) LockRegistration(ctx context.Context, id string) (*model.Registration, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1 FOR UPDATE`, id)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return reg, nil
}

func (s *store) GetRegistrationByUserEvent(ctx context.Context, userID, eventID string) (*model.Registration, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 AND event_id = $2
	`, userID, eventID)
	reg, err := scanRegistration(row)
	if err != nil {
		return nil, notFound(err, ErrNotFound)
	}
	return reg, nil
}

func (s *store) GetRegistrationsByUser(ctx context.Context, userID string) ([]model.Registration, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

func (s *store) UpdateRegistrationPayment(ctx context.Context, id string, status model.PaymentStatus, paidAt *time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE registrations SET payment_status = $1, paid_at = COALESCE($2::timestamptz, paid_at), updated_at = NOW()
		WHERE id = $3
	`, status, paidAt, id)
	if err != nil {
		return fmt.Errorf("failed to update registration payment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) CancelRegistration(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE registrations SET cancellation_status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND cancellation_status <> 'cancelled'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel registration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *store) DeleteRegistration(ctx context.Context, id string) (model.CancellationStatus, error) {
	var status model.CancellationStatus
	err := s.q.QueryRowContext(ctx, `DELETE FROM registrations WHERE id = $1 RETURNING cancellation_status`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to delete registration: %w", err)
	}
	return status, nil
}

func (s *store) GetExportRows(ctx context.Context, eventID string) ([]model.ExportRow, error) {
	query := `
		SELECT r.id, r.user_id, r.event_id, r.team_name, r.team_members, r.amount, r.payment_status,
		       r.registration_number, r.cancellation_status, r.paid_at, r.created_at, r.updated_at,
		       u.id, u.name, u.email, u.phone, u.college, u.role, u.code, u.avatar, u.password_hash,
		       u.created_at, u.updated_at,
		       p.id, p.method, p.utr_number, p.screenshot_ref, p.status, p.verified_by,
		       p.rejection_reason, p.paid_at, p.created_at, p.updated_at
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN payments p ON p.registration_id = r.id
		WHERE r.event_id = $1
		ORDER BY r.created_at ASC
	`
	rows, err := s.q.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get export rows: %w", err)
	}
	defer rows.Close()

	var out []model.ExportRow
	for rows.Next() {
		var (
			row       model.ExportRow
			members   []byte
			regPaidAt sql.NullTime
			pID       sql.NullString
			pMethod   sql.NullString
			pUTR      sql.NullString
			pShot     sql.NullString
			pStatus   sql.NullString
			pVerifier sql.NullString
			pReason   sql.NullString
			pPaidAt   sql.NullTime
			pCreated  sql.NullTime
			pUpdated  sql.NullTime
		)
		reg := &row.Registration
		u := &row.User
		if err := rows.Scan(
			&reg.ID, &reg.UserID, &reg.EventID, &reg.TeamName, &members, &reg.Amount, &reg.PaymentStatus,
			&reg.RegistrationNumber, &reg.CancellationStatus, &regPaidAt, &reg.CreatedAt, &reg.UpdatedAt,
			&u.ID, &u.Name, &u.Email, &u.Phone, &u.College, &u.Role, &u.Code, &u.Avatar, &u.PasswordHash,
			&u.CreatedAt, &u.UpdatedAt,
			&pID, &pMethod, &pUTR, &pShot, &pStatus, &pVerifier, &pReason, &pPaidAt, &pCreated, &pUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan export row: %w", err)
		}
		if err := json.Unmarshal(members, &reg.TeamMembers); err != nil {
			return nil, fmt.Errorf("failed to decode team members: %w", err)
		}
		if regPaidAt.Valid {
			t := regPaidAt.Time
			reg.PaidAt = &t
		}
		if pID.Valid {
			p := &model.Payment{
				ID:              pID.String,
				RegistrationID:  reg.ID,
				UserID:          reg.UserID,
				EventID:         reg.EventID,
				Amount:          reg.Amount,
				Method:          pMethod.String,
				UTRNumber:       pUTR.String,
				ScreenshotRef:   pShot.String,
				Status:          model.PaymentRecordStatus(pStatus.String),
				VerifiedBy:      pVerifier.String,
				RejectionReason: pReason.String,
				CreatedAt:       pCreated.Time,
				UpdatedAt:       pUpdated.Time,
			}
			if pPaidAt.Valid {
				t := pPaidAt.Time
				p.PaidAt = &t
			}
			row.Payment = p
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
