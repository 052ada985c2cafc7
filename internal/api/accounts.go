package api

import (
	"fmt"
	"net/http"
	"strconv"

	"tourbook/internal/auth"
	"tourbook/internal/service"
)

func (s *HTTPServer) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.deps.Auth.RegisterUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "User registered successfully",
		"user":    user,
	})
}

func (s *HTTPServer) handleLoginUser(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.deps.Auth.LoginUser(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Login successful",
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.User,
	})
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	user, err := s.deps.Auth.GetUser(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("Welcome to the dashboard, %s", user.Name),
		"user":    user,
	})
}

func (s *HTTPServer) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterAdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	claims := ClaimsFromContext(r.Context())
	callerIsAdmin := claims != nil && claims.Role == auth.RoleAdmin

	admin, err := s.deps.Auth.RegisterAdmin(r.Context(), req, callerIsAdmin)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Admin registered successfully",
		"adminId": admin.ID,
	})
}

func (s *HTTPServer) handleLoginAdmin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := s.deps.Auth.LoginAdmin(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"admin":     session.Admin,
	})
}

func (s *HTTPServer) handleContact(w http.ResponseWriter, r *http.Request) {
	var req service.ContactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := s.deps.Contacts.Submit(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Message received",
		"id":      msg.ID,
	})
}

func (s *HTTPServer) handleListContacts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	msgs, err := s.deps.Contacts.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messages": msgs})
}
