package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"festreg/internal/auth"
	"festreg/internal/dto"
	"festreg/internal/service"
	"festreg/pkg/validator"
)

// FileStore keeps uploaded payment screenshots.
type FileStore interface {
	StoreFile(ctx context.Context, data []byte) (string, error)
}

type Handler struct {
	svc    *service.Service
	files  FileStore
	tokens *auth.Tokens
	log    *zerolog.Logger
}

func New(svc *service.Service, files FileStore, tokens *auth.Tokens, log *zerolog.Logger) *Handler {
	return &Handler{svc: svc, files: files, tokens: tokens, log: log}
}

func statusOf(kind service.Kind) int {
	switch kind {
	case service.KindValidation, service.KindConflict:
		return http.StatusBadRequest
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders an engine error. Internal errors are logged and replaced
// with a generic message.
func (h *Handler) writeError(c *ginext.Context, err error) {
	var se *service.Error
	if !errors.As(err, &se) || se.Kind == service.KindInternal {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		dto.InternalServerError(c)
		return
	}

	body := &dto.Error{
		Code:             se.Code,
		Desc:             se.Message,
		ConflictingEvent: dto.NewConflictingEvent(se.ConflictingEvent),
		Instructions:     se.Instructions,
	}
	if len(se.Violations) > 0 {
		body.Errors = se.Violations
	}
	dto.ErrorResponse(c, statusOf(se.Kind), body)
}

// bind decodes a JSON body and runs struct validation. It writes the error
// response itself and reports whether the handler should continue.
func (h *Handler) bind(c *ginext.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.log.Debug().Err(err).Msg("failed to parse request body")
		dto.BadResponseError(c, dto.FieldIncorrect, "Invalid JSON format")
		return false
	}
	if verr := validator.Validate(c, req); verr != nil {
		dto.BadResponseError(c, service.CodeValidation, verr.Error())
		return false
	}
	return true
}

func (h *Handler) Health(c *ginext.Context) {
	if err := h.svc.Ready(c.Request.Context()); err != nil {
		h.log.Warn().Err(err).Msg("health check failed")
		dto.ErrorResponse(c, http.StatusServiceUnavailable, &dto.Error{Code: dto.ServiceUnavailable, Desc: "storage unavailable"})
		return
	}
	dto.SuccessResponse(c, map[string]string{"status": "up"})
}
