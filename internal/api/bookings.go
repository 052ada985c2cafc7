package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tourbook/internal/auth"
	"tourbook/internal/export"
	"tourbook/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req service.CreateBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var userID *string
	if claims := ClaimsFromContext(r.Context()); claims != nil && claims.Role == auth.RoleUser {
		id := claims.Subject
		userID = &id
	}

	booking, err := s.deps.Bookings.CreateBooking(r.Context(), req, userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "booking": booking})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	var override *int
	if raw := strings.TrimSpace(r.URL.Query().Get("capacity")); raw != "" {
		capacity, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid capacity")
			return
		}
		override = &capacity
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "tourId and date required")
		return
	}

	avail, err := s.deps.Availability.CheckAvailability(r.Context(), chi.URLParam(r, "tourId"), date, override)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"tourId":      avail.TourID,
		"date":        avail.Date,
		"bookedCount": avail.BookedCount,
		"capacity":    avail.Capacity,
		"isAvailable": avail.IsAvailable,
	})
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Bookings.ListBookings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": list.Bookings, "stats": list.Stats})
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	bookings, err := s.deps.Bookings.ListUserBookings(r.Context(), claims.Subject)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.deps.Bookings.GetBooking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": booking})
}

type updateStatusRequest struct {
	Status     string  `json:"status"`
	AdminNotes *string `json:"adminNotes"`
}

func (s *HTTPServer) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := s.deps.Bookings.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.AdminNotes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "booking": booking})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")

	bookings, err := s.deps.Bookings.BookingsForExport(r.Context(), from, to, s.maxRangeDays)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	fromDay, _ := service.NormalizeDate(from)
	toDay, _ := service.NormalizeDate(to)
	period := export.Period{From: fromDay, To: toDay}

	var buf bytes.Buffer
	if err := export.WriteBookings(&buf, period, bookings); err != nil {
		writeServiceError(w, r, fmt.Errorf("render export: %w", err))
		return
	}

	zerolog.Ctx(r.Context()).Info().Str("from", period.From).Str("to", period.To).Int("bookings", len(bookings)).
		Msg("Bookings exported")

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", period.FileName()))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
