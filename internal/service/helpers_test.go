package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"festreg/internal/dto"
	"festreg/internal/model"
	"festreg/internal/notify"
	"festreg/internal/repo"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Dispatch(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) byTemplate(tmpl notify.Template) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Notification
	for _, n := range r.sent {
		if n.Template == tmpl {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	db       repo.Repository
	mem      *repo.Memory
	notifier *recordingNotifier
	phones   atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, Options{})
}

func newFixtureWith(t *testing.T, opts Options) *fixture {
	t.Helper()
	log := zerolog.Nop()
	mem := repo.NewMemory()
	rec := &recordingNotifier{}
	opts.PasswordCost = bcrypt.MinCost
	return &fixture{
		svc:      NewService(mem, &log, rec, opts),
		db:       mem,
		mem:      mem,
		notifier: rec,
	}
}

func (f *fixture) nextPhone() string {
	return fmt.Sprintf("+9190000%05d", f.phones.Add(1))
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := f.svc.Signup(context.Background(), dto.SignupRequest{
		Name:     name,
		Email:    name + "@fest.example",
		Phone:    f.nextPhone(),
		College:  "City College",
		Password: "password123",
	})
	require.NoError(t, err)
	return u
}

type eventOption func(e *model.Event)

func withFee(fee int64) eventOption {
	return func(e *model.Event) { e.RegistrationFee = fee }
}

func withCapacity(max int) eventOption {
	return func(e *model.Event) { e.MaxParticipants = max }
}

func withTeam(min, max int) eventOption {
	return func(e *model.Event) { e.TeamSize = model.TeamSize{Min: min, Max: max} }
}

func withSlot(date, tm string) eventOption {
	return func(e *model.Event) {
		d, _ := time.Parse(dateLayout, date)
		e.Date = d
		e.Time = tm
	}
}

func withParticipants(n int) eventOption {
	return func(e *model.Event) { e.CurrentParticipants = n }
}

func closed() eventOption {
	return func(e *model.Event) { e.OnlineRegistrationOpen = false }
}

func (f *fixture) event(t *testing.T, name string, opts ...eventOption) *model.Event {
	t.Helper()
	e := &model.Event{
		ID:                     uuid.NewString(),
		Name:                   name,
		Date:                   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Time:                   "10:00",
		Venue:                  "Main Hall",
		TeamSize:               model.TeamSize{Min: 1, Max: 1},
		MaxParticipants:        100,
		OnlineRegistrationOpen: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	require.NoError(t, f.db.CreateEvent(context.Background(), e))
	return e
}

func (f *fixture) register(t *testing.T, u *model.User, e *model.Event, members ...dto.TeamMemberInput) *model.Registration {
	t.Helper()
	reg, err := f.svc.Register(context.Background(), u.ID, dto.CreateRegistrationRequest{EventID: e.ID, TeamMembers: members})
	require.NoError(t, err)
	return reg
}

func (f *fixture) participants(t *testing.T, e *model.Event) int {
	t.Helper()
	got, err := f.db.GetEventByID(context.Background(), e.ID)
	require.NoError(t, err)
	return got.CurrentParticipants
}

func memberOf(u *model.User) dto.TeamMemberInput {
	return dto.TeamMemberInput{Name: u.Name, Email: u.Email, Phone: u.Phone, College: u.College}
}

func requireCode(t *testing.T, err error, code string) *Error {
	t.Helper()
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, code, se.Code, "message: %s", se.Message)
	return se
}
