package repo

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// translateUnique maps a unique-constraint violation to the matching sentinel.
// Errors from other constraints are returned untouched.
func translateUnique(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return err
	}
	switch pqErr.Constraint {
	case "users_email_key", "users_phone_key":
		return ErrDuplicateUser
	case "users_code_key":
		return ErrDuplicateCode
	case "registrations_user_event_key":
		return ErrDuplicateRegistration
	case "payments_registration_key":
		return ErrDuplicatePayment
	default:
		return err
	}
}

func notFound(err error, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
