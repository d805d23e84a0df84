package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	allocationerrors "grantpool/contexts/pool-funding/allocation-strategy/domain/errors"
	allocationhttp "grantpool/contexts/pool-funding/allocation-strategy/transport/http"
)

func writeAllocationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, allocationhttp.ErrorResponse{Code: code, Message: message})
}

func writeAllocationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocationerrors.ErrUnauthorizedProfileMember),
		errors.Is(err, allocationerrors.ErrUnauthorizedPoolManager):
		writeAllocationError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, allocationerrors.ErrRecipientNotFound):
		writeAllocationError(w, http.StatusNotFound, "recipient_not_found", err.Error())
	case errors.Is(err, allocationerrors.ErrRegistrationClosed):
		writeAllocationError(w, http.StatusConflict, "registration_closed", err.Error())
	case errors.Is(err, allocationerrors.ErrRecipientAlreadyPaid):
		writeAllocationError(w, http.StatusConflict, "recipient_already_paid", err.Error())
	case errors.Is(err, allocationerrors.ErrRecipientNotAccepted):
		writeAllocationError(w, http.StatusUnprocessableEntity, "recipient_not_accepted", err.Error())
	case errors.Is(err, allocationerrors.ErrZeroPayout):
		writeAllocationError(w, http.StatusUnprocessableEntity, "zero_payout", err.Error())
	case errors.Is(err, allocationerrors.ErrInvalidRecipientAddress),
		errors.Is(err, allocationerrors.ErrAmountValueMismatch),
		errors.Is(err, allocationerrors.ErrUnexpectedNativeValue),
		errors.Is(err, allocationerrors.ErrInvalidReviewStatus),
		errors.Is(err, allocationerrors.ErrInvalidInput):
		writeAllocationError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, allocationerrors.ErrInsufficientPoolFunds),
		errors.Is(err, allocationerrors.ErrTransferFailed):
		writeAllocationError(w, http.StatusFailedDependency, "transfer_failed", err.Error())
	case errors.Is(err, allocationerrors.ErrUnknownAsset):
		writeAllocationError(w, http.StatusUnprocessableEntity, "unknown_asset", err.Error())
	default:
		writeAllocationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func requireAllocationAuthorization(w http.ResponseWriter, r *http.Request) bool {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		writeAllocationError(w, http.StatusUnauthorized, "unauthorized", "Authorization bearer token is required")
		return false
	}
	return true
}

func requireAllocationRequestID(w http.ResponseWriter, r *http.Request) bool {
	if strings.TrimSpace(r.Header.Get("X-Request-Id")) == "" {
		writeAllocationError(w, http.StatusBadRequest, "missing_request_id", "X-Request-Id header is required")
		return false
	}
	return true
}

func requireAllocationUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeAllocationError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return "", false
	}
	return userID, true
}

func (s *Server) handleRegisterRecipient(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}
	submitterID, ok := requireAllocationUserID(w, r)
	if !ok {
		return
	}

	var req allocationhttp.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAllocationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.allocation.Handler.RegisterHandler(r.Context(), submitterID, req)
	if err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReviewRecipient(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}
	reviewerID, ok := requireAllocationUserID(w, r)
	if !ok {
		return
	}

	recipientID := strings.TrimSpace(r.PathValue("recipient_id"))
	if recipientID == "" {
		writeAllocationError(w, http.StatusBadRequest, "invalid_request", "recipient_id is required")
		return
	}

	var req allocationhttp.ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAllocationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.allocation.Handler.ReviewHandler(r.Context(), reviewerID, recipientID, req)
	if err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}

	recipientID := strings.TrimSpace(r.PathValue("recipient_id"))
	if recipientID == "" {
		writeAllocationError(w, http.StatusBadRequest, "invalid_request", "recipient_id is required")
		return
	}

	resp, err := s.allocation.Handler.GetRecipientHandler(r.Context(), recipientID)
	if err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetRecipientStatus(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}

	recipientID := strings.TrimSpace(r.PathValue("recipient_id"))
	if recipientID == "" {
		writeAllocationError(w, http.StatusBadRequest, "invalid_request", "recipient_id is required")
		return
	}

	resp, err := s.allocation.Handler.GetStatusHandler(r.Context(), recipientID)
	if err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordAllocation(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}

	var req allocationhttp.AllocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAllocationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	if err := s.allocation.Handler.AllocateHandler(r.Context(), req); err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}
	executorID, ok := requireAllocationUserID(w, r)
	if !ok {
		return
	}

	var req allocationhttp.DistributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAllocationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.allocation.Handler.DistributeHandler(r.Context(), executorID, req)
	if err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePayoutPreview(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}

	query := r.URL.Query()
	recipientID := strings.TrimSpace(query.Get("recipient_id"))
	if recipientID == "" {
		writeAllocationError(w, http.StatusBadRequest, "invalid_request", "recipient_id is required")
		return
	}
	claimIndex, err := strconv.ParseUint(query.Get("claim_index"), 10, 64)
	if err != nil {
		writeAllocationError(w, http.StatusBadRequest, "invalid_request", "claim_index must be an unsigned integer")
		return
	}
	amount, err := strconv.ParseUint(query.Get("amount"), 10, 64)
	if err != nil {
		writeAllocationError(w, http.StatusBadRequest, "invalid_request", "amount must be an unsigned integer")
		return
	}

	resp, err := s.allocation.Handler.PayoutPreviewHandler(r.Context(), claimIndex, recipientID, amount)
	if err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStrategyState(w http.ResponseWriter, r *http.Request) {
	if !requireAllocationAuthorization(w, r) || !requireAllocationRequestID(w, r) {
		return
	}

	resp, err := s.allocation.Handler.StateHandler(r.Context())
	if err != nil {
		writeAllocationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
