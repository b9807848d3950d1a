package api

import (
	"net/http"
	"strings"

	"assetbook/internal/domain"
	"assetbook/internal/service"
)

func (s *HTTPServer) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.svc.Auth.Signup(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"detail":   "User created. Check your email to activate the account.",
		"id":       user.ID,
		"username": user.Username,
	})
}

func (s *HTTPServer) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}

	already, err := s.svc.Auth.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if already {
		writeJSON(w, http.StatusOK, map[string]string{"detail": "User already verified.", "status": "already_verified"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Email verified. You can now log in.", "status": "success"})
}

func (s *HTTPServer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		s.fail(w, r, domain.Validation("username and password are required"))
		return
	}

	pair, err := s.svc.Auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *HTTPServer) handleTokenRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if strings.TrimSpace(req.Refresh) == "" {
		s.fail(w, r, domain.Validation("refresh is required"))
		return
	}

	access, err := s.svc.Auth.Refresh(r.Context(), req.Refresh)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}
