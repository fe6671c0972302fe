package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"ordenapp/internal/domain"
	"ordenapp/internal/usecase"
)

type addPlanItemRequest struct {
	ActivityID int64 `json:"activityId"`
}

type planItemRequest struct {
	Completed     *bool    `json:"completed"`
	MeasuredValue *float64 `json:"measuredValue"`
	Observation   *string  `json:"observation"`
}

func (s *Server) handleOrderPlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := s.usecases.Orders.Plan(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAddPlanItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addPlanItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.usecases.Orders.AddPlanItem(r.Context(), id, actorID(r), req.ActivityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleUpdatePlanItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	itemID, err := pathID(r, "itemId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req planItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := s.usecases.Orders.UpdatePlanItem(r.Context(), id, actorID(r), domain.PlanItemResult{
		ItemID:        itemID,
		Completed:     req.Completed,
		MeasuredValue: req.MeasuredValue,
		Observation:   req.Observation,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// readUpload parses a multipart request and returns the "file" part
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, error) {
	maxBytes := int64(s.config.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, "", newAppError("FILE_TOO_LARGE", "The uploaded file exceeds the size limit", http.StatusRequestEntityTooLarge)
		}
		return nil, "", errInvalidPayload
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", domain.NewValidationError("file", "file is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", errInvalidPayload
	}
	return data, contentTypeOf(header, data), nil
}

func contentTypeOf(header *multipart.FileHeader, data []byte) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}
	return http.DetectContentType(data)
}

func (s *Server) handleAddEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, contentType, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ev, err := s.usecases.Collector.AddEvidence(r.Context(), usecase.EvidenceInput{
		OrderID:     id,
		Phase:       r.FormValue("phase"),
		Description: r.FormValue("description"),
		ContentType: contentType,
		Data:        data,
		UploadedBy:  actorID(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (s *Server) handleListEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	evidence, err := s.usecases.Collector.ListEvidence(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evidence)
}

func (s *Server) handleAddSignature(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, contentType, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	in := usecase.SignatureInput{
		OrderID:     id,
		Role:        r.FormValue("role"),
		SignerName:  r.FormValue("signerName"),
		ContentType: contentType,
		Data:        data,
	}
	if v := r.FormValue("signerId"); v != "" {
		signerID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, r, domain.NewValidationError("signerId", "must be a number"))
			return
		}
		in.SignerID = &signerID
	}

	sig, err := s.usecases.Collector.AddSignature(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sig)
}

func (s *Server) handleListSignatures(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	signatures, err := s.usecases.Collector.ListSignatures(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signatures)
}

func (s *Server) handleFinalizeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in usecase.FinalizeInput
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, r, err)
			return
		}
	}
	in.OrderID = id
	in.Actor = actorID(r)

	res, err := s.usecases.Finalizer.Finalize(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	docs, err := s.usecases.Finalizer.Documents(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}
