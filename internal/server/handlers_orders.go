package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ordenapp/internal/repository"
	"ordenapp/internal/usecase"
)

type assignRequest struct {
	TechnicianID int64 `json:"technicianId"`
}

type scheduleRequest struct {
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type serviceTypeRequest struct {
	ServiceTypeID int64 `json:"serviceTypeId"`
}

// decodeJSON reads a JSON body, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errInvalidPayload
	}
	return nil
}

// pathID parses a positive integer URL parameter
func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(getURLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, errInvalidID
	}
	return id, nil
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var in usecase.CreateOrderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	in.CreatedBy = actorID(r)

	order, err := s.usecases.Orders.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.OrderFilter{Status: strings.ToUpper(q.Get("status"))}

	for key, dst := range map[string]*int64{"technician_id": &filter.TechnicianID, "client_id": &filter.ClientID} {
		if v := q.Get(key); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				writeAppError(w, newAppError("INVALID_REQUEST", "Invalid "+key, http.StatusBadRequest))
				return
			}
			*dst = n
		}
	}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Offset, _ = strconv.Atoi(q.Get("offset"))

	orders, err := s.usecases.Orders.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.usecases.Orders.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in usecase.UpdateOrderInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.usecases.Orders.Update(r.Context(), id, actorID(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAssignOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req assignRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.usecases.Orders.Assign(r.Context(), id, actorID(r), req.TechnicianID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleScheduleOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	// Parse date and time
	start, err := time.Parse("2006-01-02 15:04", req.Date+" "+req.Time)
	if err != nil {
		writeAppError(w, newAppError("VALIDATION_ERROR", "date must be YYYY-MM-DD and time HH:MM", http.StatusBadRequest))
		return
	}
	var end time.Time
	if req.DurationMinutes > 0 {
		end = start.Add(time.Duration(req.DurationMinutes) * time.Minute)
	}

	order, err := s.usecases.Orders.Schedule(r.Context(), id, actorID(r), start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleStartOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.usecases.Orders.Start(r.Context(), id, actorID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	order, err := s.usecases.Orders.Cancel(r.Context(), id, actorID(r), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleChangeServiceType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req serviceTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.usecases.Orders.ChangeServiceType(r.Context(), id, actorID(r), req.ServiceTypeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := s.usecases.Orders.History(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handlePreviewPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.usecases.Orders.PreviewPlan(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
