package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festreg/internal/dto"
	"festreg/internal/model"
	"festreg/internal/notify"
)

func TestRegister_FreeEventCompletesImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")
	e := f.event(t, "Quiz")

	reg := f.register(t, alice, e)

	assert.Equal(t, model.PaymentCompleted, reg.PaymentStatus)
	assert.Equal(t, int64(0), reg.Amount)
	assert.NotNil(t, reg.PaidAt)
	assert.Equal(t, "FEST-0001", reg.RegistrationNumber)
	assert.Equal(t, model.CancellationNone, reg.CancellationStatus)
	require.Len(t, reg.TeamMembers, 1)
	assert.Equal(t, alice.Snapshot(), reg.TeamMembers[0])
	assert.Equal(t, 1, f.participants(t, e))
	assert.Len(t, f.notifier.byTemplate(notify.TemplateRegistrationConfirmed), 1)
}

func TestRegister_PaidEventIsPending(t *testing.T) {
	t.Parallel()
	f := newFixtureWith(t, Options{RegistrationPrefix: "FEST26"})
	alice := f.user(t, "alice")
	e := f.event(t, "Hackathon", withFee(500))

	reg := f.register(t, alice, e)

	assert.Equal(t, model.PaymentPending, reg.PaymentStatus)
	assert.Equal(t, int64(500), reg.Amount)
	assert.Nil(t, reg.PaidAt)
	assert.Equal(t, "FEST26-0001", reg.RegistrationNumber)

	sent := f.notifier.byTemplate(notify.TemplateRegistrationPending)
	require.Len(t, sent, 1)
	assert.Equal(t, alice.Email, sent[0].To)
	assert.Equal(t, "500", sent[0].Data["amount"])
}

func TestRegister_NumbersIncrease(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e := f.event(t, "Quiz")

	for i := 1; i <= 3; i++ {
		reg := f.register(t, f.user(t, fmt.Sprintf("user%d", i)), e)
		assert.Equal(t, fmt.Sprintf("FEST-%04d", i), reg.RegistrationNumber)
	}
}

func TestRegister_Preconditions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(t *testing.T, f *fixture, u *model.User) string
		wantCode string
	}{
		{
			name: "closed registration",
			setup: func(t *testing.T, f *fixture, _ *model.User) string {
				return f.event(t, "Closed", closed()).ID
			},
			wantCode: CodeRegistrationClosed,
		},
		{
			name: "closed wins over full",
			setup: func(t *testing.T, f *fixture, _ *model.User) string {
				return f.event(t, "ClosedFull", closed(), withCapacity(1), withParticipants(1)).ID
			},
			wantCode: CodeRegistrationClosed,
		},
		{
			name: "event full",
			setup: func(t *testing.T, f *fixture, _ *model.User) string {
				e := f.event(t, "Full", withCapacity(1))
				f.register(t, f.user(t, "other"), e)
				return e.ID
			},
			wantCode: CodeEventFull,
		},
		{
			name: "duplicate registration",
			setup: func(t *testing.T, f *fixture, u *model.User) string {
				e := f.event(t, "Twice")
				f.register(t, u, e)
				return e.ID
			},
			wantCode: CodeDuplicateRegistration,
		},
		{
			name: "unknown event",
			setup: func(*testing.T, *fixture, *model.User) string {
				return "00000000-0000-0000-0000-000000000000"
			},
			wantCode: CodeEventNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			u := f.user(t, "alice")
			eventID := tt.setup(t, f, u)

			_, err := f.svc.Register(context.Background(), u.ID, dto.CreateRegistrationRequest{EventID: eventID})
			requireCode(t, err, tt.wantCode)
		})
	}
}

func TestRegister_ConcurrentLastSlot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	e := f.event(t, "Solo", withCapacity(1))

	const n = 16
	users := make([]*model.User, n)
	for i := range users {
		users[i] = f.user(t, fmt.Sprintf("racer%d", i))
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		codes     = map[string]int{}
	)
	start := make(chan struct{})
	for _, u := range users {
		wg.Add(1)
		go func(u *model.User) {
			defer wg.Done()
			<-start
			_, err := f.svc.Register(context.Background(), u.ID, dto.CreateRegistrationRequest{EventID: e.ID})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			codes[CodeOf(err)]++
		}(u)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, map[string]int{CodeEventFull: n - 1}, codes)
	assert.Equal(t, 1, f.participants(t, e))
}

func TestRegister_ConcurrentDuplicate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")
	e := f.event(t, "Quiz", withCapacity(50))

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		dups int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Register(context.Background(), alice.ID, dto.CreateRegistrationRequest{EventID: e.ID})
			mu.Lock()
			defer mu.Unlock()
			switch CodeOf(err) {
			case CodeDuplicateRegistration:
				dups++
			default:
				if err == nil {
					ok++
				}
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dups)
	assert.Equal(t, 1, f.participants(t, e))

	regs, err := f.mem.GetRegistrationsByUser(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestRegister_ScheduleConflictAndCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")
	a := f.event(t, "Event A", withSlot("2026-03-02", "10:00"))
	b := f.event(t, "Event B", withSlot("2026-03-02", "10:00"))

	regA := f.register(t, alice, a)

	_, err := f.svc.Register(context.Background(), alice.ID, dto.CreateRegistrationRequest{EventID: b.ID})
	se := requireCode(t, err, CodeScheduleConflict)
	require.NotNil(t, se.ConflictingEvent)
	assert.Equal(t, a.ID, se.ConflictingEvent.ID)
	assert.Equal(t, "Event A", se.ConflictingEvent.Name)
	assert.Equal(t, KindConflict, se.Kind)

	check, err := f.svc.CheckConflict(context.Background(), alice.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, check.HasConflict)
	assert.Equal(t, "Event A", check.ConflictingEvent.Name)
	assert.Equal(t, "2026-03-02", check.ConflictingEvent.Date)
	assert.Equal(t, "10:00", check.ConflictingEvent.Time)

	_, err = f.svc.Cancel(context.Background(), alice.ID, regA.ID)
	require.NoError(t, err)

	f.register(t, alice, b)
}

func TestRegister_DifferentTimeStringsNeverConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")
	a := f.event(t, "Morning", withSlot("2026-03-02", "10:00"))
	b := f.event(t, "Half past", withSlot("2026-03-02", "10:30"))
	c := f.event(t, "Next day", withSlot("2026-03-03", "10:00"))

	f.register(t, alice, a)
	f.register(t, alice, b)
	f.register(t, alice, c)

	check, err := f.svc.CheckConflict(context.Background(), alice.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, check.HasConflict, "the candidate event itself is ignored")
	assert.Nil(t, check.ConflictingEvent)
}

func TestRegister_TeamScenario(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	leader := f.user(t, "leader")
	bob := f.user(t, "bob")
	e := f.event(t, "Relay", withTeam(2, 4))

	register := func(members ...dto.TeamMemberInput) (*model.Registration, error) {
		return f.svc.Register(context.Background(), leader.ID, dto.CreateRegistrationRequest{
			EventID:     e.ID,
			TeamName:    "Fast Four",
			TeamMembers: members,
		})
	}

	_, err := register()
	requireCode(t, err, CodeTeamSizeInvalid)

	_, err = register(dto.TeamMemberInput{Name: "Ghost", Email: "ghost@fest.example", Phone: "+919999999999"})
	requireCode(t, err, CodeMemberNotRegistered)

	wrongPhone := memberOf(bob)
	wrongPhone.Phone = "+910000000000"
	_, err = register(wrongPhone)
	requireCode(t, err, CodeMemberPhoneMismatch)

	caseInsensitive := memberOf(bob)
	caseInsensitive.Email = "BOB@Fest.Example"
	reg, err := register(caseInsensitive)
	require.NoError(t, err)
	require.Len(t, reg.TeamMembers, 2)
	assert.Equal(t, leader.Email, reg.TeamMembers[0].Email)
	assert.Equal(t, bob.Email, reg.TeamMembers[1].Email)
	assert.Equal(t, "Fast Four", reg.TeamName)
	assert.Equal(t, 1, f.participants(t, e), "a team takes one place")
}

func TestRegister_TeamValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		team     model.TeamSize
		members  func(f *fixture, t *testing.T, leader *model.User) []dto.TeamMemberInput
		wantCode string
	}{
		{
			name: "individual event rejects members",
			team: model.TeamSize{Min: 1, Max: 1},
			members: func(f *fixture, t *testing.T, _ *model.User) []dto.TeamMemberInput {
				return []dto.TeamMemberInput{memberOf(f.user(t, "extra"))}
			},
			wantCode: CodeTeamSizeInvalid,
		},
		{
			name: "too many members",
			team: model.TeamSize{Min: 1, Max: 2},
			members: func(f *fixture, t *testing.T, _ *model.User) []dto.TeamMemberInput {
				return []dto.TeamMemberInput{memberOf(f.user(t, "m1")), memberOf(f.user(t, "m2"))}
			},
			wantCode: CodeTeamSizeInvalid,
		},
		{
			name: "leader listed as member",
			team: model.TeamSize{Min: 2, Max: 3},
			members: func(_ *fixture, _ *testing.T, leader *model.User) []dto.TeamMemberInput {
				return []dto.TeamMemberInput{memberOf(leader)}
			},
			wantCode: CodeDuplicateTeamMember,
		},
		{
			name: "member listed twice",
			team: model.TeamSize{Min: 2, Max: 4},
			members: func(f *fixture, t *testing.T, _ *model.User) []dto.TeamMemberInput {
				m := memberOf(f.user(t, "twin"))
				return []dto.TeamMemberInput{m, m}
			},
			wantCode: CodeDuplicateTeamMember,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			leader := f.user(t, "leader")
			e := f.event(t, "Team", withTeam(tt.team.Min, tt.team.Max))

			_, err := f.svc.Register(context.Background(), leader.ID, dto.CreateRegistrationRequest{
				EventID:     e.ID,
				TeamMembers: tt.members(f, t, leader),
			})
			requireCode(t, err, tt.wantCode)
			assert.Equal(t, 0, f.participants(t, e))
		})
	}
}

func TestCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")
	mallory := f.user(t, "mallory")
	e := f.event(t, "Quiz")
	reg := f.register(t, alice, e)

	_, err := f.svc.Cancel(context.Background(), mallory.ID, reg.ID)
	se := requireCode(t, err, CodeNotAuthorized)
	assert.Equal(t, KindAuthorization, se.Kind)

	cancelled, err := f.svc.Cancel(context.Background(), alice.ID, reg.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.Cancelled())
	assert.Equal(t, 0, f.participants(t, e))

	_, err = f.svc.Cancel(context.Background(), alice.ID, reg.ID)
	requireCode(t, err, CodeAlreadyCancelled)
	assert.Equal(t, 0, f.participants(t, e), "counter never goes below zero")

	_, err = f.svc.Cancel(context.Background(), alice.ID, "missing")
	requireCode(t, err, CodeRegistrationNotFound)

	// A cancelled registration still occupies the (user, event) pair.
	_, err = f.svc.Register(context.Background(), alice.ID, dto.CreateRegistrationRequest{EventID: e.ID})
	requireCode(t, err, CodeDuplicateRegistration)
}

func TestMyRegistrations(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")
	free := f.event(t, "Free", withSlot("2026-03-02", "09:00"))
	paid := f.event(t, "Paid", withFee(200), withSlot("2026-03-02", "11:00"))

	f.register(t, alice, free)
	regPaid := f.register(t, alice, paid)
	_, err := f.svc.SubmitProof(context.Background(), alice.ID, dto.OfflinePaymentRequest{
		RegistrationID: regPaid.ID,
		UTRNumber:      "UTR123456",
	}, "")
	require.NoError(t, err)

	items, err := f.svc.MyRegistrations(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)

	byEvent := map[string]dto.RegistrationDetails{}
	for _, it := range items {
		require.NotNil(t, it.Event)
		byEvent[it.Event.Name] = it
	}
	assert.Nil(t, byEvent["Free"].Payment)
	require.NotNil(t, byEvent["Paid"].Payment)
	assert.Equal(t, "UTR123456", byEvent["Paid"].Payment.UTRNumber)
	assert.Equal(t, model.PaymentVerificationPending, byEvent["Paid"].Registration.PaymentStatus)
}
