package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"festreg/internal/dto"
	"festreg/internal/model"
)

func TestSignup(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	u, err := f.svc.Signup(context.Background(), dto.SignupRequest{
		Name:     "  Alice  ",
		Email:    " Alice@Fest.Example ",
		Phone:    "+919812345678",
		College:  "City College",
		Password: "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Name)
	assert.Equal(t, "alice@fest.example", u.Email)
	assert.Equal(t, model.RoleParticipant, u.Role)
	assert.Regexp(t, `^FST[A-Z2-9]{6}$`, u.Code)
	assert.NotEqual(t, "correct horse", u.PasswordHash)

	tests := []struct {
		name  string
		email string
		phone string
	}{
		{name: "same email", email: "alice@fest.example", phone: "+919800000001"},
		{name: "same email other case", email: "ALICE@fest.example", phone: "+919800000002"},
		{name: "same phone", email: "other@fest.example", phone: "+919812345678"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Signup(context.Background(), dto.SignupRequest{
				Name: "Dup", Email: tt.email, Phone: tt.phone, Password: "password123",
			})
			requireCode(t, err, CodeDuplicateUser)
		})
	}
}

func TestCreateAdmin(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	admin, err := f.svc.CreateAdmin(context.Background(), dto.SignupRequest{
		Name: "Root", Email: "root@fest.example", Phone: "+919800000099", Password: "password123",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.user(t, "alice")

	u, err := f.svc.Authenticate(context.Background(), "ALICE@fest.example", "password123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = f.svc.Authenticate(context.Background(), alice.Email, "wrong-password")
	requireCode(t, err, CodeNotAuthorized)

	_, err = f.svc.Authenticate(context.Background(), "nobody@fest.example", "password123")
	requireCode(t, err, CodeNotAuthorized)

	_, err = f.svc.GetUser(context.Background(), "missing")
	requireCode(t, err, CodeUserNotFound)
}

func TestEvents(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	invalid := []struct {
		name string
		req  dto.CreateEventRequest
	}{
		{name: "bad date", req: dto.CreateEventRequest{Name: "X", Date: "02/03/2026", Time: "10:00", TeamMin: 1, TeamMax: 1, MaxParticipants: 5}},
		{name: "min above max", req: dto.CreateEventRequest{Name: "X", Date: "2026-03-02", Time: "10:00", TeamMin: 3, TeamMax: 2, MaxParticipants: 5}},
		{name: "no capacity", req: dto.CreateEventRequest{Name: "X", Date: "2026-03-02", Time: "10:00", TeamMin: 1, TeamMax: 1}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateEvent(context.Background(), tt.req)
			requireCode(t, err, CodeValidation)
		})
	}

	e, err := f.svc.CreateEvent(context.Background(), dto.CreateEventRequest{
		Name: "Robotics", Date: "2026-03-04", Time: "15:00", Venue: "Lab 2",
		RegistrationFee: 150, TeamMin: 2, TeamMax: 4, MaxParticipants: 20,
	})
	require.NoError(t, err)
	assert.True(t, e.OnlineRegistrationOpen, "registration opens by default")
	assert.Equal(t, model.TeamSize{Min: 2, Max: 4}, e.TeamSize)

	closedEvent, err := f.svc.SetRegistrationOpen(context.Background(), e.ID, false)
	require.NoError(t, err)
	assert.False(t, closedEvent.OnlineRegistrationOpen)

	_, err = f.svc.SetRegistrationOpen(context.Background(), "missing", true)
	requireCode(t, err, CodeEventNotFound)

	events, err := f.svc.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Robotics", events[0].Name)

	_, err = f.svc.GetEvent(context.Background(), "missing")
	se := requireCode(t, err, CodeEventNotFound)
	assert.Equal(t, KindNotFound, se.Kind)
}
