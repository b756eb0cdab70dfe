package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ArionMiles/notispend/pkg/amount"
	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/pipeline"
)

var filteredMessages = map[pipeline.Reason]string{
	pipeline.ReasonNotPaid:       "Notification not about paying ignored (filtered)",
	pipeline.ReasonWalletPackage: "Notification with wallet package ignored (filtered)",
}

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type filteredResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	PackageName string `json:"package_name"`
}

type insertedData struct {
	ID          int64     `json:"id"`
	PackageName string    `json:"package_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type insertedResponse struct {
	Status  string       `json:"status"`
	Message string       `json:"message"`
	Data    insertedData `json:"data"`
}

type listResponse struct {
	Status string                   `json:"status"`
	Count  int                      `json:"count"`
	Data   []api.StoredNotification `json:"data"`
}

type backfillResponse struct {
	Status       string             `json:"status"`
	UpdatedCount int                `json:"updated_count"`
	Data         []api.AmountUpdate `json:"data"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "Notifications API is running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusOK, healthResponse{Status: "unhealthy", Database: "disconnected: " + err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Database: "connected"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	n, err := api.DecodeNotification(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out, err := s.svc.Ingest(r.Context(), n)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrValidation), errors.Is(err, amount.ErrAmbiguous):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, api.ErrConflict):
		s.writeError(w, http.StatusConflict, "Duplicate notification: "+err.Error())
		return
	default:
		s.writeError(w, http.StatusInternalServerError, "Failed to insert notification: "+err.Error())
		return
	}

	if out.Status == pipeline.StatusFiltered {
		s.writeJSON(w, http.StatusOK, filteredResponse{
			Status:      "filtered",
			Message:     filteredMessages[out.Reason],
			PackageName: n.PackageName,
		})
		return
	}

	s.writeJSON(w, http.StatusOK, insertedResponse{
		Status:  "success",
		Message: "Notification inserted successfully",
		Data: insertedData{
			ID:          out.Stored.SerialID,
			PackageName: out.Stored.PackageName,
			CreatedAt:   out.Stored.CreatedAt,
		},
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rows, err := s.svc.List(r.Context(), page)
	if err != nil {
		if errors.Is(err, api.ErrValidation) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "Failed to fetch notifications: "+err.Error())
		return
	}
	if rows == nil {
		rows = []api.StoredNotification{}
	}

	s.writeJSON(w, http.StatusOK, listResponse{Status: "success", Count: len(rows), Data: rows})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updates, err := s.svc.Backfill(r.Context(), page)
	switch {
	case err == nil:
	case errors.Is(err, api.ErrValidation), errors.Is(err, amount.ErrAmbiguous):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	default:
		s.writeError(w, http.StatusInternalServerError, "Failed to update notifications: "+err.Error())
		return
	}
	if updates == nil {
		updates = []api.AmountUpdate{}
	}

	s.writeJSON(w, http.StatusOK, backfillResponse{Status: "success", UpdatedCount: len(updates), Data: updates})
}

// parsePage reads limit and offset query parameters, defaulting to 100 and 0.
func parsePage(r *http.Request) (api.Page, error) {
	page := api.Page{Limit: api.DefaultLimit}
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return api.Page{}, &api.ValidationError{Field: "limit", Reason: fmt.Sprintf("%q is not an integer", v)}
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return api.Page{}, &api.ValidationError{Field: "offset", Reason: fmt.Sprintf("%q is not an integer", v)}
		}
		page.Offset = n
	}

	if err := page.Validate(); err != nil {
		return api.Page{}, err
	}
	return page, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}
