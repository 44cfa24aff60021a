package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"festreg/internal/auth"
	"festreg/internal/dto"
	"festreg/internal/metrics"
	"festreg/internal/model"
	"festreg/internal/notify"
	"festreg/internal/repo"
	"festreg/pkg/validator"
)

const (
	roleMainUser = "Main User"
	roleEvent    = "Event"
	roleTeam     = "Team"

	onboardingAttempts = 3
)

func memberRole(i int) string {
	return fmt.Sprintf("Team Member %d", i+1)
}

// onboardingMember is one person of an admin registration after validation.
// existing is nil when the commit phase has to create the account.
type onboardingMember struct {
	role     string
	name     string
	email    string
	phone    string
	college  string
	existing *model.User
	password string
	hash     string
}

type onboardingPlan struct {
	event   *model.Event
	leader  onboardingMember
	members []onboardingMember
}

// AdminRegister creates a new leader account and a team registration for it in one step.
// Every problem in the request is reported together; nothing is written unless the whole
// request is valid.
func (s *Service) AdminRegister(ctx context.Context, adminID string, req dto.AdminRegisterRequest) (*dto.AdminRegisterResponse, error) {
	plan, err := s.planOnboarding(ctx, req)
	if err != nil {
		metrics.RegistrationsRejected.WithLabelValues(CodeOf(err)).Inc()
		return nil, err
	}

	var resp *dto.AdminRegisterResponse
	for attempt := 1; attempt <= onboardingAttempts; attempt++ {
		resp, err = s.commitOnboarding(ctx, plan, req.TeamName)
		if !errors.Is(err, repo.ErrDuplicateCode) {
			break
		}
		s.log.Warn().Int("attempt", attempt).Msg("user code taken concurrently, retrying admin registration")
	}
	if err != nil {
		metrics.RegistrationsRejected.WithLabelValues(CodeOf(err)).Inc()
		return nil, asEngineError(err)
	}

	metrics.RegistrationsCreated.WithLabelValues(originAdmin).Add(float64(1 + len(resp.MemberRegistrations)))
	s.log.Info().
		Str("admin_id", adminID).
		Str("registration_id", resp.Registration.ID).
		Str("registration_number", resp.Registration.RegistrationNumber).
		Str("leader_id", resp.Leader.ID).
		Int("created_members", len(resp.CreatedMembers)).
		Int("existing_members", len(resp.ExistingMembers)).
		Msg("admin registration completed")

	s.notifyOnboarding(plan, resp)
	return resp, nil
}

// planOnboarding is the validate phase. It only reads from the store.
func (s *Service) planOnboarding(ctx context.Context, req dto.AdminRegisterRequest) (*onboardingPlan, error) {
	var violations []Violation
	add := func(role, field, code, msg string) {
		violations = append(violations, Violation{Role: role, Field: field, Code: code, Message: msg})
	}

	for _, fe := range validator.ValidateAll(ctx, req.NewUser) {
		add(roleMainUser, fe.Field, CodeValidation, fe.Message)
	}
	for i, m := range req.TeamMembers {
		for _, fe := range validator.ValidateAll(ctx, m) {
			add(memberRole(i), fe.Field, CodeValidation, fe.Message)
		}
	}

	plan := &onboardingPlan{
		leader: onboardingMember{
			role:    roleMainUser,
			name:    strings.TrimSpace(req.NewUser.Name),
			email:   normalizeEmail(req.NewUser.Email),
			phone:   normalizePhone(req.NewUser.Phone),
			college: strings.TrimSpace(req.NewUser.College),
		},
	}
	for i, m := range req.TeamMembers {
		plan.members = append(plan.members, onboardingMember{
			role:    memberRole(i),
			name:    strings.TrimSpace(m.Name),
			email:   normalizeEmail(m.Email),
			phone:   normalizePhone(m.Phone),
			college: strings.TrimSpace(m.College),
		})
	}

	event, err := s.repo.GetEventByID(ctx, strings.TrimSpace(req.EventID))
	switch {
	case err == nil:
		plan.event = event
		if event.Full() {
			add(roleEvent, "event_id", CodeEventFull, "This event has no remaining places")
		}
		if terr := checkTeamSize(event.TeamSize, len(req.TeamMembers)); terr != nil {
			add(roleTeam, "team_members", terr.Code, terr.Message)
		}
	case errors.Is(err, repo.ErrEventNotFound):
		add(roleEvent, "event_id", CodeEventNotFound, "Event not found")
	default:
		return nil, internalError(err)
	}

	// Collisions inside the submission itself.
	emails := map[string]string{}
	phones := map[string]string{}
	for _, p := range append([]onboardingMember{plan.leader}, plan.members...) {
		if p.email != "" {
			if first, ok := emails[p.email]; ok {
				add(p.role, "email", CodeDuplicateTeamMember, fmt.Sprintf("E-mail %s is already used by %s in this request", p.email, first))
			} else {
				emails[p.email] = p.role
			}
		}
		if p.phone != "" {
			if first, ok := phones[p.phone]; ok {
				add(p.role, "phone", CodeDuplicateTeamMember, fmt.Sprintf("Phone %s is already used by %s in this request", p.phone, first))
			} else {
				phones[p.phone] = p.role
			}
		}
	}

	// The leader must be a new account.
	if plan.leader.email != "" {
		if _, err := s.repo.GetUserByEmail(ctx, plan.leader.email); err == nil {
			add(roleMainUser, "email", CodeDuplicateUser, fmt.Sprintf("An account with e-mail %s already exists", plan.leader.email))
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, internalError(err)
		}
	}
	if plan.leader.phone != "" {
		if _, err := s.repo.GetUserByPhone(ctx, plan.leader.phone); err == nil {
			add(roleMainUser, "phone", CodeDuplicateUser, fmt.Sprintf("An account with phone %s already exists", plan.leader.phone))
		} else if !errors.Is(err, repo.ErrNotFound) {
			return nil, internalError(err)
		}
	}

	for i := range plan.members {
		m := &plan.members[i]
		if m.email == "" {
			continue
		}
		account, err := s.repo.GetUserByEmail(ctx, m.email)
		switch {
		case err == nil:
			if normalizePhone(account.Phone) != m.phone {
				add(m.role, "phone", CodeMemberPhoneMismatch, fmt.Sprintf("Phone does not match the existing account for %s", m.email))
			}
			m.existing = account
		case errors.Is(err, repo.ErrNotFound):
			if m.phone == "" {
				continue
			}
			if _, err := s.repo.GetUserByPhone(ctx, m.phone); err == nil {
				add(m.role, "phone", CodeDuplicateUser, fmt.Sprintf("Phone %s belongs to another account", m.phone))
			} else if !errors.Is(err, repo.ErrNotFound) {
				return nil, internalError(err)
			}
		default:
			return nil, internalError(err)
		}
	}

	if len(violations) > 0 {
		return nil, &Error{
			Kind:         KindValidation,
			Code:         CodeValidation,
			Message:      fmt.Sprintf("Admin registration has %d problem(s)", len(violations)),
			Violations:   violations,
			Instructions: onboardingInstructions(violations),
		}
	}

	// Credentials are prepared before the commit phase so hashing never runs inside a transaction.
	if err := s.prepareCredentials(&plan.leader); err != nil {
		return nil, internalError(err)
	}
	for i := range plan.members {
		if plan.members[i].existing == nil {
			if err := s.prepareCredentials(&plan.members[i]); err != nil {
				return nil, internalError(err)
			}
		}
	}
	return plan, nil
}

func (s *Service) prepareCredentials(m *onboardingMember) error {
	password, err := auth.TemporaryPassword()
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	m.password, m.hash = password, hash
	return nil
}

// commitOnboarding is the write phase. It returns repo.ErrDuplicateCode unwrapped
// so the caller can retry with fresh codes.
func (s *Service) commitOnboarding(ctx context.Context, plan *onboardingPlan, teamName string) (*dto.AdminRegisterResponse, error) {
	resp := &dto.AdminRegisterResponse{
		CreatedMembers:      []model.User{},
		ExistingMembers:     []model.User{},
		MemberRegistrations: []model.Registration{},
	}

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repo.Store) error {
		leader, err := s.createAccount(ctx, tx, &plan.leader)
		if err != nil {
			return err
		}
		resp.Leader = *leader

		accounts := make([]*model.User, 0, len(plan.members))
		team := []model.TeamMember{leader.Snapshot()}
		for i := range plan.members {
			m := &plan.members[i]
			account := m.existing
			if account == nil {
				account, err = s.createAccount(ctx, tx, m)
				if err != nil {
					return err
				}
				resp.CreatedMembers = append(resp.CreatedMembers, *account)
			} else {
				resp.ExistingMembers = append(resp.ExistingMembers, *account)
			}
			accounts = append(accounts, account)
			team = append(team, account.Snapshot())
		}

		now := s.now()
		reg := &model.Registration{
			ID:                 uuid.NewString(),
			UserID:             leader.ID,
			EventID:            plan.event.ID,
			TeamName:           teamName,
			TeamMembers:        team,
			Amount:             plan.event.RegistrationFee,
			PaymentStatus:      model.PaymentCompleted,
			CancellationStatus: model.CancellationNone,
			PaidAt:             &now,
		}
		if err := s.insertRegistration(ctx, tx, reg); err != nil {
			return err
		}
		resp.Registration = *reg

		for _, account := range accounts {
			if account.ID == leader.ID {
				continue
			}
			_, err := tx.GetRegistrationByUserEvent(ctx, account.ID, plan.event.ID)
			if err == nil {
				continue
			}
			if !errors.Is(err, repo.ErrNotFound) {
				return internalError(err)
			}
			memberReg := &model.Registration{
				ID:                 uuid.NewString(),
				UserID:             account.ID,
				EventID:            plan.event.ID,
				TeamName:           teamName,
				TeamMembers:        team,
				Amount:             0,
				PaymentStatus:      model.PaymentCompleted,
				CancellationStatus: model.CancellationNone,
				PaidAt:             &now,
			}
			if err := s.insertRegistration(ctx, tx, memberReg); err != nil {
				return err
			}
			resp.MemberRegistrations = append(resp.MemberRegistrations, *memberReg)
		}
		// The one place is taken last so event rows are locked after registration rows.
		return s.capacity.Increment(ctx, tx, plan.event.ID)
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) createAccount(ctx context.Context, tx repo.Store, m *onboardingMember) (*model.User, error) {
	code, err := s.codes.Generate(ctx, tx)
	if err != nil {
		return nil, internalError(err)
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Name:         m.name,
		Email:        m.email,
		Phone:        m.phone,
		College:      m.college,
		Role:         model.RoleParticipant,
		Code:         code,
		PasswordHash: m.hash,
	}
	if err := tx.CreateUser(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicateCode):
			return nil, err
		case errors.Is(err, repo.ErrDuplicateUser):
			e := conflictError(CodeDuplicateUser, fmt.Sprintf("%s: an account with this e-mail or phone was created meanwhile", m.role))
			e.Violations = []Violation{{Role: m.role, Code: CodeDuplicateUser, Message: e.Message}}
			return nil, e
		default:
			return nil, internalError(err)
		}
	}
	return u, nil
}

func (s *Service) notifyOnboarding(plan *onboardingPlan, resp *dto.AdminRegisterResponse) {
	data := registrationData(&resp.Registration, plan.event)

	credentials := func(u model.User, password string) {
		d := copyData(data)
		d["name"] = u.Name
		d["email"] = u.Email
		d["code"] = u.Code
		d["password"] = password
		s.notify(u.Email, notify.TemplateAccountCreated, d)
	}

	credentials(resp.Leader, plan.leader.password)

	passwords := map[string]string{}
	for _, m := range plan.members {
		if m.existing == nil {
			passwords[m.email] = m.password
		}
	}
	for _, u := range resp.CreatedMembers {
		credentials(u, passwords[normalizeEmail(u.Email)])
	}
	for _, u := range resp.ExistingMembers {
		d := copyData(data)
		d["name"] = u.Name
		d["leader_name"] = resp.Leader.Name
		s.notify(u.Email, notify.TemplateTeamRegistration, d)
	}
}

func copyData(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src)+4)
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

var instructionByCode = map[string]string{
	CodeValidation:          "Fill in every required field in the expected format.",
	CodeDuplicateTeamMember: "Each person may appear only once. Use a different e-mail and phone for every member.",
	CodeMemberPhoneMismatch: "For members who already have an account, enter the phone number saved on that account.",
	CodeTeamSizeInvalid:     "Adjust the number of team members to the event's team size.",
	CodeEventNotFound:       "Choose an existing event.",
	CodeEventFull:           "Choose an event that still has free places.",
}

const (
	instructionLeaderExists = "The main user must be a new participant. Existing users can only be added as team members."
	instructionPhoneTaken   = "A new member's phone number already belongs to another account. Check the member's e-mail."
)

func onboardingInstructions(violations []Violation) []string {
	var out []string
	seen := map[string]bool{}
	push := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, v := range violations {
		if v.Code == CodeDuplicateUser {
			if v.Role == roleMainUser {
				push(instructionLeaderExists)
			} else {
				push(instructionPhoneTaken)
			}
			continue
		}
		push(instructionByCode[v.Code])
	}
	return out
}
