package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"festreg/internal/dto"
	"festreg/internal/metrics"
	"festreg/internal/model"
	"festreg/internal/notify"
	"festreg/internal/repo"
)

const submitAttempts = 2

// SubmitProof records bank-transfer proof for the caller's registration and moves
// it to verification_pending. Resubmitting before an admin decision overwrites
// the earlier proof.
func (s *Service) SubmitProof(ctx context.Context, userID string, req dto.OfflinePaymentRequest, screenshotRef string) (*model.Payment, error) {
	utr := strings.TrimSpace(req.UTRNumber)
	if utr == "" {
		return nil, validationError("Transaction reference (UTR) is required")
	}

	var (
		payment *model.Payment
		err     error
	)
	// Two first submissions racing for the same registration meet on the unique
	// payment constraint; the loser retries as an update.
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		payment, err = s.submitProof(ctx, userID, req.RegistrationID, utr, screenshotRef)
		if !errors.Is(err, repo.ErrDuplicatePayment) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, repo.ErrDuplicatePayment) {
			return nil, conflictError(CodePaymentAlreadyProcessed, "Payment proof is being processed, try again")
		}
		return nil, asEngineError(err)
	}

	s.log.Info().
		Str("payment_id", payment.ID).
		Str("registration_id", payment.RegistrationID).
		Str("user_id", userID).
		Msg("payment proof submitted")
	return payment, nil
}

func (s *Service) submitProof(ctx context.Context, userID, registrationID, utr, screenshotRef string) (*model.Payment, error) {
	var payment *model.Payment
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		reg, err := tx.LockRegistration(ctx, registrationID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errRegistrationNotFound()
			}
			return internalError(err)
		}
		if reg.UserID != userID {
			return notAuthorized("You can only pay for your own registrations")
		}
		if reg.PaymentStatus == model.PaymentCompleted {
			return errAlreadyPaid()
		}
		if reg.Cancelled() {
			return errAlreadyCancelled()
		}

		existing, err := tx.GetPaymentByRegistrationID(ctx, reg.ID)
		switch {
		case err == nil:
			if existing.Status != model.PaymentRecordSubmitted {
				return conflictError(CodePaymentAlreadyProcessed, "Payment has already been reviewed")
			}
			existing.UTRNumber = utr
			if screenshotRef != "" {
				existing.ScreenshotRef = screenshotRef
			}
			existing.Amount = reg.Amount
			if err := tx.UpdatePayment(ctx, existing, model.PaymentRecordSubmitted); err != nil {
				return s.decidedPayment(ctx, tx, existing.ID, err)
			}
			payment = existing
		case errors.Is(err, repo.ErrNotFound):
			payment = &model.Payment{
				ID:             uuid.NewString(),
				RegistrationID: reg.ID,
				UserID:         reg.UserID,
				EventID:        reg.EventID,
				Amount:         reg.Amount,
				Method:         model.PaymentMethodBankTransfer,
				UTRNumber:      utr,
				ScreenshotRef:  screenshotRef,
				Status:         model.PaymentRecordSubmitted,
			}
			if err := tx.InsertPayment(ctx, payment); err != nil {
				if errors.Is(err, repo.ErrDuplicatePayment) {
					return err
				}
				return internalError(err)
			}
		default:
			return internalError(err)
		}

		if err := tx.UpdateRegistrationPayment(ctx, reg.ID, model.PaymentVerificationPending, nil); err != nil {
			return internalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// Approve captures a submitted payment and completes its registration.
// A payment can be approved once; later calls report ALREADY_PAID.
func (s *Service) Approve(ctx context.Context, adminID, paymentID string) (*model.Payment, error) {
	var (
		payment *model.Payment
		reg     *model.Registration
	)
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		var err error
		payment, reg, err = s.reviewablePayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}

		now := s.now()
		payment.Status = model.PaymentRecordCaptured
		payment.VerifiedBy = adminID
		payment.PaidAt = &now
		if err := tx.UpdatePayment(ctx, payment, model.PaymentRecordSubmitted); err != nil {
			return s.decidedPayment(ctx, tx, paymentID, err)
		}
		if err := tx.UpdateRegistrationPayment(ctx, reg.ID, model.PaymentCompleted, &now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errRegistrationNotFound()
			}
			return internalError(err)
		}
		reg.PaymentStatus = model.PaymentCompleted
		reg.PaidAt = &now
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}

	metrics.PaymentDecisions.WithLabelValues("approved").Inc()
	s.log.Info().
		Str("payment_id", payment.ID).
		Str("registration_id", reg.ID).
		Str("verified_by", adminID).
		Msg("payment approved")

	s.notifyPaymentDecision(ctx, payment, notify.TemplatePaymentApproved, map[string]string{
		"registration_number": reg.RegistrationNumber,
	})
	return payment, nil
}

// Reject fails a submitted payment, deletes its registration and frees the place.
// The payment record is kept for audit.
func (s *Service) Reject(ctx context.Context, adminID, paymentID, reason string) (*model.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("Rejection reason is required")
	}

	var payment *model.Payment
	var regNumber string
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		var (
			reg *model.Registration
			err error
		)
		payment, reg, err = s.reviewablePayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		regNumber = reg.RegistrationNumber

		payment.Status = model.PaymentRecordFailed
		payment.VerifiedBy = adminID
		payment.RejectionReason = reason
		if err := tx.UpdatePayment(ctx, payment, model.PaymentRecordSubmitted); err != nil {
			return s.decidedPayment(ctx, tx, paymentID, err)
		}
		// The state at delete time decides the decrement: a registration
		// cancelled after it was read has already given its place back.
		state, err := tx.DeleteRegistration(ctx, reg.ID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errRegistrationNotFound()
			}
			return internalError(err)
		}
		if state != model.CancellationCancelled {
			if err := s.capacity.Decrement(ctx, tx, reg.EventID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, asEngineError(err)
	}

	metrics.PaymentDecisions.WithLabelValues("rejected").Inc()
	s.log.Info().
		Str("payment_id", payment.ID).
		Str("registration_id", payment.RegistrationID).
		Str("verified_by", adminID).
		Str("reason", reason).
		Msg("payment rejected, registration removed")

	s.notifyPaymentDecision(ctx, payment, notify.TemplatePaymentRejected, map[string]string{
		"registration_number": regNumber,
		"reason":              reason,
	})
	return payment, nil
}

// PendingPayments lists submitted proofs awaiting review, oldest first.
func (s *Service) PendingPayments(ctx context.Context) ([]model.Payment, error) {
	payments, err := s.repo.GetPaymentsByStatus(ctx, model.PaymentRecordSubmitted)
	if err != nil {
		return nil, internalError(err)
	}
	return payments, nil
}

// reviewablePayment locks a submitted payment and its registration, in that
// row order: registration first, then payment.
func (s *Service) reviewablePayment(ctx context.Context, st repo.Store, paymentID string) (*model.Payment, *model.Registration, error) {
	unlocked, err := st.GetPaymentByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, errPaymentNotFound()
		}
		return nil, nil, internalError(err)
	}
	reg, regErr := st.LockRegistration(ctx, unlocked.RegistrationID)
	if regErr != nil && !errors.Is(regErr, repo.ErrNotFound) {
		return nil, nil, internalError(regErr)
	}

	payment, err := st.LockPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, internalError(err)
	}
	if err := paymentDecision(payment.Status); err != nil {
		return nil, nil, err
	}
	if regErr != nil {
		return nil, nil, errRegistrationNotFound()
	}
	return payment, reg, nil
}

// decidedPayment explains a failed conditional payment write: the payment was
// reviewed between our read and our write.
func (s *Service) decidedPayment(ctx context.Context, st repo.Store, paymentID string, writeErr error) error {
	if !errors.Is(writeErr, repo.ErrStaleState) {
		if errors.Is(writeErr, repo.ErrNotFound) {
			return errPaymentNotFound()
		}
		return internalError(writeErr)
	}
	current, err := st.GetPaymentByID(ctx, paymentID)
	if err != nil {
		return internalError(err)
	}
	if err := paymentDecision(current.Status); err != nil {
		return err
	}
	return conflictError(CodePaymentAlreadyProcessed, "Payment changed while it was being reviewed, try again")
}

// paymentDecision reports the error for a payment that is no longer reviewable.
func paymentDecision(status model.PaymentRecordStatus) error {
	switch status {
	case model.PaymentRecordCaptured:
		return errAlreadyPaid()
	case model.PaymentRecordFailed:
		return conflictError(CodePaymentAlreadyProcessed, "Payment has already been rejected")
	}
	return nil
}

// notifyPaymentDecision looks up the recipient and event, then dispatches.
// Lookup failures are logged; the decision itself has already been committed.
func (s *Service) notifyPaymentDecision(ctx context.Context, payment *model.Payment, tmpl notify.Template, data map[string]string) {
	user, err := s.repo.GetUserByID(ctx, payment.UserID)
	if err != nil {
		s.log.Warn().Err(err).Str("payment_id", payment.ID).Msg("cannot resolve payment owner for notification")
		return
	}
	data["name"] = user.Name
	data["amount"] = strconv.FormatInt(payment.Amount, 10)
	data["utr_number"] = payment.UTRNumber
	if event, err := s.repo.GetEventByID(ctx, payment.EventID); err == nil {
		data["event_name"] = event.Name
	}
	s.notify(user.Email, tmpl, data)
}
