package service

import (
	"context"
	"errors"
	"fmt"

	"festreg/internal/model"
	"festreg/internal/repo"
)

// ConflictChecker finds a registration of the user that occupies the same
// slot as a candidate event.
//
// Two events share a slot only when their date and display time string are
// equal. Overlapping durations with different start strings are not a conflict.
type ConflictChecker struct{}

func NewConflictChecker() *ConflictChecker {
	return &ConflictChecker{}
}

// FindConflict returns the first conflicting event, or nil.
func (c *ConflictChecker) FindConflict(ctx context.Context, st repo.Store, userID string, candidate *model.Event) (*model.Event, error) {
	regs, err := st.GetRegistrationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load registrations: %w", err)
	}

	for _, reg := range regs {
		if reg.EventID == candidate.ID || !reg.HoldsSlot() {
			continue
		}
		event, err := st.GetEventByID(ctx, reg.EventID)
		if err != nil {
			if errors.Is(err, repo.ErrEventNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load event %s: %w", reg.EventID, err)
		}
		if event.SameSlot(candidate) {
			return event, nil
		}
	}
	return nil, nil
}

func scheduleConflict(event *model.Event) *Error {
	e := conflictError(CodeScheduleConflict, fmt.Sprintf(
		"You are already registered for %q on %s at %s",
		event.Name, event.Date.Format("2006-01-02"), event.Time,
	))
	e.ConflictingEvent = event
	return e
}
