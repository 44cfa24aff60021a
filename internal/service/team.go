package service

import (
	"context"
	"errors"
	"fmt"

	"festreg/internal/dto"
	"festreg/internal/model"
	"festreg/internal/repo"
)

// TeamValidator checks the additional members of a team registration and
// builds the team snapshot. The leader is always member #1 and is never looked up.
type TeamValidator struct{}

func NewTeamValidator() *TeamValidator {
	return &TeamValidator{}
}

func (v *TeamValidator) Validate(
	ctx context.Context,
	st repo.Store,
	leader *model.User,
	event *model.Event,
	members []dto.TeamMemberInput,
) ([]model.TeamMember, error) {
	if err := checkTeamSize(event.TeamSize, len(members)); err != nil {
		return nil, err
	}

	seen := map[string]bool{normalizeEmail(leader.Email): true}
	for i, m := range members {
		email := normalizeEmail(m.Email)
		if seen[email] {
			e := validationError(fmt.Sprintf("Team member %d (%s) is listed more than once", i+1, m.Email))
			e.Code = CodeDuplicateTeamMember
			return nil, e
		}
		seen[email] = true
	}

	team := make([]model.TeamMember, 0, len(members)+1)
	team = append(team, leader.Snapshot())

	for i, m := range members {
		account, err := st.GetUserByEmail(ctx, normalizeEmail(m.Email))
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, conflictError(CodeMemberNotRegistered, fmt.Sprintf(
					"Team member %d (%s) is not registered. Ask them to sign up first", i+1, m.Email,
				))
			}
			return nil, internalError(err)
		}
		if normalizePhone(account.Phone) != normalizePhone(m.Phone) {
			return nil, conflictError(CodeMemberPhoneMismatch, fmt.Sprintf(
				"Phone number for team member %d (%s) does not match their account", i+1, m.Email,
			))
		}
		team = append(team, account.Snapshot())
	}
	return team, nil
}

// checkTeamSize counts the leader plus additional members against the event bounds.
// Individual events accept no additional members.
func checkTeamSize(size model.TeamSize, additional int) *Error {
	total := 1 + additional
	if !size.IsTeam() {
		if additional > 0 {
			return conflictError(CodeTeamSizeInvalid, "This is an individual event; team members are not allowed")
		}
		return nil
	}
	if total < size.Min || total > size.Max {
		return conflictError(CodeTeamSizeInvalid, fmt.Sprintf(
			"Team must have between %d and %d members including the leader, got %d", size.Min, size.Max, total,
		))
	}
	return nil
}
