package handlers

import (
	"github.com/wb-go/wbf/ginext"

	"festreg/internal/dto"
)

func (h *Handler) CreateEvent(c *ginext.Context) {
	var req dto.CreateEventRequest
	if !h.bind(c, &req) {
		return
	}
	event, err := h.svc.CreateEvent(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, dto.NewEventInfo(event))
}

func (h *Handler) ListEvents(c *ginext.Context) {
	events, err := h.svc.ListEvents(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	resp := make([]dto.EventInfoResponse, 0, len(events))
	for i := range events {
		resp = append(resp, dto.NewEventInfo(&events[i]))
	}
	dto.SuccessResponse(c, resp)
}

func (h *Handler) GetEvent(c *ginext.Context) {
	event, err := h.svc.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, dto.NewEventInfo(event))
}

func (h *Handler) SetRegistrationOpen(c *ginext.Context) {
	var req dto.SetRegistrationOpenRequest
	if !h.bind(c, &req) {
		return
	}
	event, err := h.svc.SetRegistrationOpen(c.Request.Context(), c.Param("id"), *req.Open)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, dto.NewEventInfo(event))
}
