package handlers

import (
	"github.com/wb-go/wbf/ginext"

	"festreg/internal/auth"
	"festreg/internal/dto"
)

func (h *Handler) Signup(c *ginext.Context) {
	var req dto.SignupRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.svc.Signup(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessCreatedResponse(c, user)
}

func (h *Handler) Login(c *ginext.Context) {
	var req dto.LoginRequest
	if !h.bind(c, &req) {
		return
	}
	user, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	token, err := h.tokens.Issue(user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, dto.LoginResponse{Token: token, User: *user})
}

func (h *Handler) Me(c *ginext.Context) {
	user, err := h.svc.GetUser(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	dto.SuccessResponse(c, user)
}
