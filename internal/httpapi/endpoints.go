package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/EdwinVallejo/SalesforceTMO/api"
	"github.com/EdwinVallejo/SalesforceTMO/internal/locks"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) error {
	recordID := r.PathValue("record")
	record, err := h.service.Check(r.Context(), recordID)
	if err != nil {
		return convertServiceError(err)
	}
	if record == nil {
		return httpError{
			Status: http.StatusNotFound,
			Code:   api.ErrorCodeRecordFree,
			Detail: "no live lock for record",
		}
	}
	h.writeJSON(w, http.StatusOK, wireRecord(record))
	return nil
}

func (h *Handler) handleAcquire(w http.ResponseWriter, r *http.Request) error {
	var req api.AcquireRequest
	if err := decodeJSONBody(io.LimitReader(r.Body, acquireBodyLimit), &req); err != nil {
		return httpError{Status: http.StatusBadRequest, Code: "invalid_body", Detail: err.Error()}
	}
	record, err := h.service.Acquire(r.Context(), locks.AcquireParams{
		RecordID:        req.RecordID,
		HolderName:      req.HolderName,
		HolderGroup:     req.HolderGroup,
		DurationMinutes: req.DurationMinutes,
	})
	if err != nil {
		return convertServiceError(err)
	}
	h.writeJSON(w, http.StatusCreated, api.AcquireResponse{
		LockRecord:    wireRecord(record),
		CorrelationID: correlationID(r.Context()),
	})
	return nil
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) error {
	recordID := r.PathValue("record")
	if err := h.service.Release(r.Context(), recordID); err != nil {
		return convertServiceError(err)
	}
	h.writeJSON(w, http.StatusOK, api.ReleaseResponse{
		Released:      true,
		CorrelationID: correlationID(r.Context()),
	})
	return nil
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusOK)
	return nil
}

func (h *Handler) handleReady(w http.ResponseWriter, _ *http.Request) error {
	w.WriteHeader(http.StatusOK)
	return nil
}

func wireRecord(record *storage.Record) api.LockRecord {
	return api.LockRecord{
		RecordID:    record.RecordID,
		HolderName:  record.HolderName,
		HolderGroup: record.HolderGroup,
		AcquiredAt:  record.AcquiredAtUnix,
		ExpiresAt:   record.ExpiresAtUnix,
	}
}

func convertServiceError(err error) error {
	var vErr *locks.ValidationError
	if errors.As(err, &vErr) {
		return httpError{Status: http.StatusBadRequest, Code: vErr.Code, Detail: vErr.Detail}
	}
	return err
}
