package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/wb-go/wbf/ginext"

	"festreg/internal/auth"
	"festreg/internal/dto"
	"festreg/internal/service"
)

func (h *Handler) Register(c *ginext.Context) {
	var req dto.CreateRegistrationRequest
	if !h.bind(c, &req) {
		return
	}
	reg, err := h.svc.Register(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, reg)
}

func (h *Handler) MyRegistrations(c *ginext.Context) {
	regs, err := h.svc.MyRegistrations(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, regs)
}

func (h *Handler) CheckConflict(c *ginext.Context) {
	resp, err := h.svc.CheckConflict(c.Request.Context(), auth.UserID(c), c.Param("eventId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, resp)
}

func (h *Handler) Cancel(c *ginext.Context) {
	reg, err := h.svc.Cancel(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, reg)
}

// AdminRegister is validated inside the engine so every violation is reported at once.
func (h *Handler) AdminRegister(c *ginext.Context) {
	var req dto.AdminRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(c, dto.FieldIncorrect, "Invalid JSON format")
		return
	}
	resp, err := h.svc.AdminRegister(c.Request.Context(), auth.UserID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, resp)
}

func (h *Handler) Export(c *ginext.Context) {
	event, rows, err := h.svc.ExportEvent(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		var buf bytes.Buffer
		if err := service.WriteCSV(&buf, rows); err != nil {
			h.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "registrations-"+event.ID+".csv"))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}

	dto.SuccessResponse(c, dto.ExportResponse{Event: dto.NewEventInfo(event), Rows: rows})
}

func (h *Handler) ExportToSheets(c *ginext.Context) {
	n, err := h.svc.PushExportToSheets(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, map[string]int{"rows": n})
}
