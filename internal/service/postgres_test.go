package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"festreg/internal/model"
	"festreg/internal/notify"
	"festreg/internal/repo"
	"festreg/internal/repo/repotest"
)

func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.NewPostgres(t)
	log := zerolog.Nop()
	rec := &recordingNotifier{}
	return &fixture{
		svc:      NewService(db, &log, rec, Options{PasswordCost: bcrypt.MinCost}),
		db:       db,
		notifier: rec,
	}
}

// together starts every fn at the same moment and returns their errors in order.
func together(fns ...func() error) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, len(fns))
	)
	for i, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn()
		}()
	}
	close(start)
	wg.Wait()
	return errs
}

func engineCode(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

func TestPostgres_ConcurrentReview(t *testing.T) {
	t.Parallel()
	f := newPostgresFixture(t)
	ctx := context.Background()
	const rounds = 8

	t.Run("approve against reject", func(t *testing.T) {
		e := f.event(t, "Hackathon", withFee(100))
		holder := f.user(t, "holder")
		f.register(t, holder, e)

		for i := 0; i < rounds; i++ {
			u := f.user(t, fmt.Sprintf("approve-reject-%d", i))
			reg := f.register(t, u, e)
			p := f.submit(t, u, reg, "UTR-AR")
			before := f.participants(t, e)

			errs := together(
				func() error { _, err := f.svc.Approve(ctx, "admin-1", p.ID); return err },
				func() error { _, err := f.svc.Reject(ctx, "admin-2", p.ID, "UTR not found"); return err },
			)
			approveErr, rejectErr := errs[0], errs[1]
			require.True(t, (approveErr == nil) != (rejectErr == nil), "exactly one decision wins: %v / %v", approveErr, rejectErr)

			stored, err := f.db.GetPaymentByID(ctx, p.ID)
			require.NoError(t, err)
			if approveErr == nil {
				assert.Equal(t, CodeAlreadyPaid, engineCode(rejectErr))
				assert.Equal(t, model.PaymentRecordCaptured, stored.Status)
				assert.Equal(t, model.PaymentCompleted, f.registration(t, reg.ID).PaymentStatus)
				assert.Equal(t, before, f.participants(t, e))
			} else {
				assert.Equal(t, CodePaymentAlreadyProcessed, engineCode(approveErr))
				assert.Equal(t, model.PaymentRecordFailed, stored.Status)
				_, err := f.db.GetRegistrationByID(ctx, reg.ID)
				require.ErrorIs(t, err, repo.ErrNotFound)
				assert.Equal(t, before-1, f.participants(t, e))
			}
		}
	})

	t.Run("two approvals", func(t *testing.T) {
		e := f.event(t, "Robotics", withFee(100), withSlot("2026-03-03", "10:00"))
		sentBefore := len(f.notifier.byTemplate(notify.TemplatePaymentApproved))

		for i := 0; i < rounds; i++ {
			u := f.user(t, fmt.Sprintf("double-approve-%d", i))
			reg := f.register(t, u, e)
			p := f.submit(t, u, reg, "UTR-AA")

			errs := together(
				func() error { _, err := f.svc.Approve(ctx, "admin-1", p.ID); return err },
				func() error { _, err := f.svc.Approve(ctx, "admin-2", p.ID); return err },
			)
			var won, lost int
			for _, err := range errs {
				if err == nil {
					won++
					continue
				}
				assert.Equal(t, CodeAlreadyPaid, engineCode(err))
				lost++
			}
			assert.Equal(t, 1, won)
			assert.Equal(t, 1, lost)
		}
		sent := len(f.notifier.byTemplate(notify.TemplatePaymentApproved)) - sentBefore
		assert.Equal(t, rounds, sent, "one approval notice per payment")
	})

	t.Run("cancel against reject", func(t *testing.T) {
		e := f.event(t, "Dance", withFee(100), withSlot("2026-03-04", "10:00"))
		holder := f.user(t, "dance-holder")
		f.register(t, holder, e)

		for i := 0; i < rounds; i++ {
			u := f.user(t, fmt.Sprintf("cancel-reject-%d", i))
			reg := f.register(t, u, e)
			p := f.submit(t, u, reg, "UTR-CR")

			errs := together(
				func() error { _, err := f.svc.Cancel(ctx, u.ID, reg.ID); return err },
				func() error { _, err := f.svc.Reject(ctx, "admin-1", p.ID, "UTR not found"); return err },
			)
			require.NoError(t, errs[1], "reject is not blocked by a cancel")
			if errs[0] != nil {
				assert.Equal(t, CodeRegistrationNotFound, engineCode(errs[0]))
			}
			assert.Equal(t, 1, f.participants(t, e), "the place is given back exactly once")
		}
	})
}
