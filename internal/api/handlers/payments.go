package handlers

import (
	"errors"
	"io"

	"github.com/wb-go/wbf/ginext"

	"festreg/internal/auth"
	"festreg/internal/dto"
	"festreg/internal/service"
	"festreg/internal/storage"
	"festreg/pkg/validator"
)

// SubmitOffline accepts a multipart form with registration_id, utr_number and an
// optional screenshot file.
func (h *Handler) SubmitOffline(c *ginext.Context) {
	var req dto.OfflinePaymentRequest
	if err := c.ShouldBind(&req); err != nil {
		dto.BadResponseError(c, dto.FieldIncorrect, "Invalid form data")
		return
	}
	if verr := validator.Validate(c, req); verr != nil {
		dto.BadResponseError(c, service.CodeValidation, verr.Error())
		return
	}

	var ref string
	if fh, err := c.FormFile("screenshot"); err == nil && h.files != nil {
		if fh.Size > storage.MaxFileSize {
			dto.BadResponseError(c, service.CodeValidation, "Screenshot exceeds 5 MB")
			return
		}
		f, err := fh.Open()
		if err != nil {
			dto.FieldBadFormatError(c, "screenshot")
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, storage.MaxFileSize+1))
		_ = f.Close()
		if err != nil {
			dto.FieldBadFormatError(c, "screenshot")
			return
		}
		ref, err = h.files.StoreFile(c.Request.Context(), data)
		switch {
		case errors.Is(err, storage.ErrTooLarge):
			dto.BadResponseError(c, service.CodeValidation, "Screenshot exceeds 5 MB")
			return
		case errors.Is(err, storage.ErrUnsupportedType):
			dto.BadResponseError(c, service.CodeValidation, "Screenshot must be a PNG, JPEG, WebP image or a PDF")
			return
		case err != nil:
			// Proof is still recorded without the screenshot.
			h.log.Warn().Err(err).Str("registration_id", req.RegistrationID).Msg("failed to store payment screenshot")
			ref = ""
		}
	}

	payment, err := h.svc.SubmitProof(c.Request.Context(), auth.UserID(c), req, ref)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, payment)
}

func (h *Handler) Approve(c *ginext.Context) {
	payment, err := h.svc.Approve(c.Request.Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, payment)
}

func (h *Handler) Reject(c *ginext.Context) {
	var req dto.RejectPaymentRequest
	if !h.bind(c, &req) {
		return
	}
	payment, err := h.svc.Reject(c.Request.Context(), auth.UserID(c), c.Param("id"), req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, payment)
}

func (h *Handler) PendingPayments(c *ginext.Context) {
	payments, err := h.svc.PendingPayments(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, payments)
}
