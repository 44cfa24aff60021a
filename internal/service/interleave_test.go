package service

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"festreg/internal/model"
	"festreg/internal/notify"
	"festreg/internal/repo"
)

// statementRepo runs a transaction straight against the live store: every
// statement is atomic, nothing is serialised or rolled back. A hook runs a
// competing operation to completion right before the named write, which is a
// schedule READ COMMITTED allows when rows are read without locks.
type statementRepo struct {
	*repo.Memory

	mu    sync.Mutex
	hooks map[string]func()
}

func (r *statementRepo) before(write string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[write] = fn
}

func (r *statementRepo) fire(write string) {
	r.mu.Lock()
	fn := r.hooks[write]
	delete(r.hooks, write)
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *statementRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, s repo.Store) error) error {
	return fn(ctx, &hookedStore{Store: r.Memory, r: r})
}

type hookedStore struct {
	repo.Store
	r *statementRepo
}

func (s *hookedStore) UpdatePayment(ctx context.Context, p *model.Payment, from model.PaymentRecordStatus) error {
	s.r.fire("UpdatePayment")
	return s.Store.UpdatePayment(ctx, p, from)
}

func (s *hookedStore) DeleteRegistration(ctx context.Context, id string) (model.CancellationStatus, error) {
	s.r.fire("DeleteRegistration")
	return s.Store.DeleteRegistration(ctx, id)
}

func (s *hookedStore) CancelRegistration(ctx context.Context, id string) error {
	s.r.fire("CancelRegistration")
	return s.Store.CancelRegistration(ctx, id)
}

func newStatementFixture(t *testing.T) (*fixture, *statementRepo) {
	t.Helper()
	log := zerolog.Nop()
	mem := repo.NewMemory()
	sr := &statementRepo{Memory: mem, hooks: map[string]func(){}}
	rec := &recordingNotifier{}
	return &fixture{
		svc:      NewService(sr, &log, rec, Options{PasswordCost: bcrypt.MinCost}),
		db:       sr,
		mem:      mem,
		notifier: rec,
	}, sr
}

// reviewSetup registers alice and bob for a paid event and submits alice's proof.
func reviewSetup(t *testing.T, f *fixture) (*model.Event, *model.User, *model.Registration, *model.Payment) {
	t.Helper()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	e := f.event(t, "Hackathon", withFee(100))
	reg := f.register(t, alice, e)
	f.register(t, bob, e)
	p := f.submit(t, alice, reg, "UTR1000")
	require.Equal(t, 2, f.participants(t, e))
	return e, alice, reg, p
}

func TestReview_InterleavedWrites(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("cancel lands before reject deletes", func(t *testing.T) {
		t.Parallel()
		f, sr := newStatementFixture(t)
		e, alice, reg, p := reviewSetup(t, f)

		sr.before("DeleteRegistration", func() {
			_, err := f.svc.Cancel(ctx, alice.ID, reg.ID)
			require.NoError(t, err)
		})
		_, err := f.svc.Reject(ctx, "admin-1", p.ID, "UTR not found")
		require.NoError(t, err)

		assert.Equal(t, 1, f.participants(t, e), "the place is released once and bob keeps a place")
	})

	t.Run("reject lands before cancel writes", func(t *testing.T) {
		t.Parallel()
		f, sr := newStatementFixture(t)
		e, alice, reg, p := reviewSetup(t, f)

		sr.before("CancelRegistration", func() {
			_, err := f.svc.Reject(ctx, "admin-1", p.ID, "UTR not found")
			require.NoError(t, err)
		})
		_, err := f.svc.Cancel(ctx, alice.ID, reg.ID)
		requireCode(t, err, CodeRegistrationNotFound)

		assert.Equal(t, 1, f.participants(t, e))
	})

	t.Run("two approvals capture once", func(t *testing.T) {
		t.Parallel()
		f, sr := newStatementFixture(t)
		_, _, reg, p := reviewSetup(t, f)

		sr.before("UpdatePayment", func() {
			_, err := f.svc.Approve(ctx, "admin-2", p.ID)
			require.NoError(t, err)
		})
		_, err := f.svc.Approve(ctx, "admin-1", p.ID)
		requireCode(t, err, CodeAlreadyPaid)

		stored, err := f.mem.GetPaymentByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "admin-2", stored.VerifiedBy, "the first decision stands")
		assert.Equal(t, model.PaymentCompleted, f.registration(t, reg.ID).PaymentStatus)
		assert.Len(t, f.notifier.byTemplate(notify.TemplatePaymentApproved), 1)
	})

	t.Run("approval lands before reject", func(t *testing.T) {
		t.Parallel()
		f, sr := newStatementFixture(t)
		e, _, reg, p := reviewSetup(t, f)

		sr.before("UpdatePayment", func() {
			_, err := f.svc.Approve(ctx, "admin-2", p.ID)
			require.NoError(t, err)
		})
		_, err := f.svc.Reject(ctx, "admin-1", p.ID, "UTR not found")
		requireCode(t, err, CodeAlreadyPaid)

		assert.Equal(t, model.PaymentCompleted, f.registration(t, reg.ID).PaymentStatus, "a completed registration is never deleted")
		assert.Equal(t, 2, f.participants(t, e))
		assert.Empty(t, f.notifier.byTemplate(notify.TemplatePaymentRejected))
	})

	t.Run("reject lands before approval", func(t *testing.T) {
		t.Parallel()
		f, sr := newStatementFixture(t)
		e, _, reg, p := reviewSetup(t, f)

		sr.before("UpdatePayment", func() {
			_, err := f.svc.Reject(ctx, "admin-2", p.ID, "UTR not found")
			require.NoError(t, err)
		})
		_, err := f.svc.Approve(ctx, "admin-1", p.ID)
		requireCode(t, err, CodePaymentAlreadyProcessed)

		_, err = f.mem.GetRegistrationByID(ctx, reg.ID)
		require.ErrorIs(t, err, repo.ErrNotFound)
		assert.Equal(t, 1, f.participants(t, e))
		assert.Empty(t, f.notifier.byTemplate(notify.TemplatePaymentApproved))
	})
}
