package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"festreg/internal/repo"
)

// CapacityManager owns changes to an event's participant counter. Both
// directions are single conditional store updates, so concurrent requests for
// the last place cannot overbook the event.
type CapacityManager struct {
	log *zerolog.Logger
}

func NewCapacityManager(log *zerolog.Logger) *CapacityManager {
	return &CapacityManager{log: log}
}

// Increment takes one place. It fails with EVENT_FULL when none is left.
func (c *CapacityManager) Increment(ctx context.Context, st repo.Store, eventID string) error {
	current, err := st.IncrementParticipants(ctx, eventID)
	switch {
	case errors.Is(err, repo.ErrEventFull):
		return errEventFull()
	case errors.Is(err, repo.ErrEventNotFound):
		return errEventNotFound()
	case err != nil:
		return internalError(err)
	}
	c.log.Debug().Str("event_id", eventID).Int("current_participants", current).Msg("place reserved")
	return nil
}

// Decrement releases one place, floored at zero.
func (c *CapacityManager) Decrement(ctx context.Context, st repo.Store, eventID string) error {
	current, err := st.DecrementParticipants(ctx, eventID)
	switch {
	case errors.Is(err, repo.ErrEventNotFound):
		return errEventNotFound()
	case err != nil:
		return internalError(err)
	}
	c.log.Debug().Str("event_id", eventID).Int("current_participants", current).Msg("place released")
	return nil
}
