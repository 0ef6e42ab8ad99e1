package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database and queue connections)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backing service is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.db != nil {
		if err := s.db.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unreachable")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// TokenRequest exchanges an API key for a bearer token
// @Description API key token exchange request
type TokenRequest struct {
	TenantID string `json:"tenant_id" example:"tenant-1"`
	KeyID    string `json:"key_id" example:"key-abc"`
	Secret   string `json:"secret" example:"s3cret"`
}

// TokenResponse carries a signed bearer token
// @Description Signed bearer token
type TokenResponse struct {
	Token string `json:"token"`
}

// handleIssueToken godoc
// @Summary      Issue bearer token
// @Description  Exchange a tenant API key for a signed JWT
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      TokenRequest  true  "API key credentials"
// @Success      200      {object}  TokenResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Unknown key or wrong secret"
// @Router       /auth/token [post]
func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.authService.IssueToken(r.Context(), req.TenantID, req.KeyID, req.Secret)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "tenant_id, key_id, and secret are required")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, http.StatusInternalServerError, "token issuance failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}

// Pair endpoints

// handleListPairs godoc
// @Summary      List candidate pairs
// @Description  Returns the tenant's cached duplicate candidates, best similarity first
// @Tags         Pairs
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.DuplicatePair
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /pairs [get]
func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pairs, err := s.pairingService.ListCandidatePairs(r.Context(), authCtx.TenantID)
	if err != nil {
		s.writeServiceError(w, err, "failed to list pairs")
		return
	}

	writeJSON(w, http.StatusOK, pairs)
}

// ScanRequest tunes a duplicate scan
// @Description Duplicate scan parameters
type ScanRequest struct {
	Threshold   float64 `json:"threshold,omitempty" example:"0.65"`
	ContainerID string  `json:"container_id,omitempty" example:"DOCS"`
	Neighbors   int     `json:"neighbors,omitempty" example:"10"`
}

// handleScanPairs godoc
// @Summary      Scan for duplicates
// @Description  Recomputes candidate pairs from the vector index and refreshes the cache
// @Tags         Pairs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      ScanRequest  false  "Scan parameters"
// @Success      200      {array}   domain.DuplicatePair
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Router       /pairs/scan [post]
func (s *Server) handleScanPairs(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ScanRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	pairs, err := s.pairingService.Scan(r.Context(), authCtx.TenantID, driving.PairingOptions{
		Threshold:   req.Threshold,
		ContainerID: req.ContainerID,
		Neighbors:   req.Neighbors,
	})
	if err != nil {
		s.writeServiceError(w, err, "scan failed")
		return
	}

	writeJSON(w, http.StatusOK, pairs)
}

// handleIgnorePair godoc
// @Summary      Ignore a pair
// @Description  Marks a candidate pair as not-a-duplicate so scans stop surfacing it
// @Tags         Pairs
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Pair ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "Pair not found"
// @Failure      409  {object}  ErrorResponse  "Pair is not actionable"
// @Router       /pairs/{id}/ignore [post]
func (s *Server) handleIgnorePair(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pairID := r.PathValue("id")
	if err := s.pairingService.IgnorePair(r.Context(), authCtx.TenantID, pairID); err != nil {
		s.writeServiceError(w, err, "failed to ignore pair")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Merge endpoints

// MergeRequest selects a pair to merge and which side to keep
// @Description Merge request
type MergeRequest struct {
	PairID string `json:"pair_id" example:"pair-123"`
	Keep   string `json:"keep" example:"a" enums:"a,b"`
}

// handleMerge godoc
// @Summary      Merge a duplicate pair
// @Description  Drafts merged content, applies it to the content repository, and records the operation
// @Tags         Merges
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      MergeRequest  true  "Pair and keep side"
// @Success      200      {object}  domain.MergeResult
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Failure      409      {object}  ErrorResponse  "Pair already merged or document consumed"
// @Failure      502      {object}  ErrorResponse  "Partial merge, operator reconciliation required"
// @Router       /merges [post]
func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	keep := driving.KeepSide(req.Keep)
	if keep != driving.KeepSideA && keep != driving.KeepSideB {
		writeError(w, http.StatusBadRequest, "keep must be \"a\" or \"b\"")
		return
	}

	result, err := s.mergeService.Merge(r.Context(), authCtx.TenantID, req.PairID, keep)
	if err != nil {
		var partial *domain.PartialMergeError
		if errors.As(err, &partial) {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":          "partial_merge",
				"kept_doc_id":    partial.KeptDocID,
				"deleted_doc_id": partial.DeletedDocID,
				"detail":         partial.Error(),
			})
			return
		}
		s.writeServiceError(w, err, "merge failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// PreviewRequest selects a pair to preview
// @Description Merge preview request
type PreviewRequest struct {
	PairID string `json:"pair_id" example:"pair-123"`
}

// handleMergePreview godoc
// @Summary      Preview a merge
// @Description  Drafts merged content for a pair without touching the repository
// @Tags         Merges
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      PreviewRequest  true  "Pair to preview"
// @Success      200      {object}  driving.MergePreview
// @Failure      404      {object}  ErrorResponse  "Pair not found"
// @Failure      502      {object}  ErrorResponse  "Drafting failed"
// @Router       /merges/preview [post]
func (s *Server) handleMergePreview(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	preview, err := s.mergeService.Preview(r.Context(), authCtx.TenantID, req.PairID)
	if err != nil {
		if errors.Is(err, domain.ErrMergeDraftFailed) {
			writeError(w, http.StatusBadGateway, "merge drafting failed")
			return
		}
		s.writeServiceError(w, err, "preview failed")
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// handleListMerges godoc
// @Summary      List merge history
// @Description  Returns the tenant's merge operations chronologically
// @Tags         Merges
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.MergeOperation
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /merges [get]
func (s *Server) handleListMerges(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ops, err := s.historyService.ListMergeHistory(r.Context(), authCtx.TenantID)
	if err != nil {
		s.writeServiceError(w, err, "failed to list merge history")
		return
	}

	writeJSON(w, http.StatusOK, ops)
}

// handleUndoMerge godoc
// @Summary      Undo a merge
// @Description  Reverses a recorded merge. Rejected with 409 when newer operations in the lineage must be undone first.
// @Tags         Merges
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Operation ID"
// @Success      200  {object}  domain.UndoResult
// @Failure      404  {object}  ErrorResponse  "Operation not found"
// @Failure      409  {object}  ErrorResponse  "Blocked by newer operations"
// @Router       /merges/{id}/undo [post]
func (s *Server) handleUndoMerge(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	operationID := r.PathValue("id")
	result, err := s.undoService.Undo(r.Context(), authCtx.TenantID, operationID)
	if err != nil {
		var sequential *domain.SequentialUndoError
		if errors.As(err, &sequential) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":              "undo blocked by newer operations",
				"next_required_undo": sequential.NextRequiredUndo,
				"blocking":           sequential.Blocking,
			})
			return
		}
		s.writeServiceError(w, err, "undo failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleCheckConsistency godoc
// @Summary      Check ledger consistency
// @Description  Reports documents whose repository state does not match the ledger. Never auto-repairs.
// @Tags         Merges
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.InconsistencyReport
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /merges/consistency [get]
func (s *Server) handleCheckConsistency(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	reports, err := s.historyService.CheckConsistency(r.Context(), authCtx.TenantID)
	if err != nil {
		s.writeServiceError(w, err, "consistency check failed")
		return
	}

	writeJSON(w, http.StatusOK, reports)
}

// Lineage endpoint

// handleGetLineage godoc
// @Summary      Get document lineage
// @Description  Returns the merge chain transitively touching a document
// @Tags         Documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {array}   domain.MergeOperation
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /documents/{id}/lineage [get]
func (s *Server) handleGetLineage(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	docID := r.PathValue("id")
	ops, err := s.historyService.Lineage(r.Context(), authCtx.TenantID, docID)
	if err != nil {
		s.writeServiceError(w, err, "failed to get lineage")
		return
	}

	writeJSON(w, http.StatusOK, ops)
}

// Ingest endpoint

// IngestRequest selects a container to load into the index
// @Description Ingest request
type IngestRequest struct {
	ContainerID string `json:"container_id" example:"DOCS"`
	Limit       int    `json:"limit,omitempty" example:"100"`
	Async       bool   `json:"async,omitempty" example:"true"`
}

// handleIngest godoc
// @Summary      Ingest a container
// @Description  Fetches a container's pages, embeds them, and upserts them into the vector index. With async=true the work is queued and a task id returned.
// @Tags         Ingest
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      IngestRequest  true  "Container to ingest"
// @Success      200      {object}  driving.IngestResult
// @Success      202      {object}  map[string]string  "Task queued"
// @Failure      400      {object}  ErrorResponse  "Invalid request"
// @Router       /ingest [post]
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ContainerID == "" {
		writeError(w, http.StatusBadRequest, "container_id is required")
		return
	}

	if req.Async {
		task := domain.NewTask(domain.TaskTypeIngestContainer, authCtx.TenantID, map[string]string{
			"container_id": req.ContainerID,
			"limit":        strconv.Itoa(req.Limit),
		})
		if err := s.taskQueue.Enqueue(r.Context(), task); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to queue ingest")
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": task.ID})
		return
	}

	result, err := s.ingestService.IngestContainer(r.Context(), authCtx.TenantID, req.ContainerID, req.Limit)
	if err != nil {
		s.writeServiceError(w, err, "ingest failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Task endpoint

// handleGetTask godoc
// @Summary      Get task status
// @Description  Returns a background task's state
// @Tags         Tasks
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  domain.Task
// @Failure      404  {object}  ErrorResponse  "Task not found"
// @Router       /tasks/{id} [get]
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	taskID := r.PathValue("id")
	task, err := s.taskQueue.GetTask(r.Context(), taskID)
	if err != nil || task == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	// A task id from another tenant is indistinguishable from a missing one.
	if task.TenantID != authCtx.TenantID {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Credential endpoints

// CredentialRequest carries a tenant's content repository connection
// @Description Content repository credentials
type CredentialRequest struct {
	BaseURL  string `json:"base_url" example:"https://example.atlassian.net/wiki"`
	Username string `json:"username" example:"bot@example.com"`
	APIToken string `json:"api_token" example:"token"`
}

// handleGetCredentials godoc
// @Summary      Get repository credentials
// @Description  Returns the tenant's connection settings with the token blanked
// @Tags         Credentials
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.TenantCredentials
// @Failure      404  {object}  ErrorResponse  "No credentials configured"
// @Router       /credentials [get]
func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	creds, err := s.credentialService.GetCredentials(r.Context(), authCtx.TenantID)
	if err != nil {
		s.writeServiceError(w, err, "failed to get credentials")
		return
	}

	writeJSON(w, http.StatusOK, creds)
}

// handleSaveCredentials godoc
// @Summary      Save repository credentials
// @Description  Stores connection settings after verifying them against the repository
// @Tags         Credentials
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      CredentialRequest  true  "Connection settings"
// @Success      200      {object}  StatusResponse
// @Failure      400      {object}  ErrorResponse  "Incomplete credentials"
// @Failure      502      {object}  ErrorResponse  "Repository rejected the credentials"
// @Router       /credentials [put]
func (s *Server) handleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.credentialService.SaveCredentials(r.Context(), &domain.TenantCredentials{
		TenantID: authCtx.TenantID,
		BaseURL:  req.BaseURL,
		Username: req.Username,
		APIToken: req.APIToken,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "base_url, username, and api_token are required")
		case errors.Is(err, domain.ErrRepositoryUnavailable):
			writeError(w, http.StatusBadGateway, "repository rejected the credentials")
		default:
			s.writeServiceError(w, err, "failed to save credentials")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleTestCredentials godoc
// @Summary      Test repository connection
// @Description  Verifies the stored credentials still work
// @Tags         Credentials
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse  "No credentials configured"
// @Failure      502  {object}  ErrorResponse  "Repository unreachable"
// @Router       /credentials/test [post]
func (s *Server) handleTestCredentials(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := s.credentialService.TestConnection(r.Context(), authCtx.TenantID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "no credentials configured")
		case errors.Is(err, domain.ErrRepositoryUnavailable):
			writeError(w, http.StatusBadGateway, "repository unreachable")
		default:
			s.writeServiceError(w, err, "connection test failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

// writeServiceError maps common domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var isolation *domain.TenantIsolationError
	if errors.As(err, &isolation) {
		log.Printf("ERROR: %v", isolation)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrPairNotActionable),
		errors.Is(err, domain.ErrPairAlreadyMerged),
		errors.Is(err, domain.ErrDocumentConsumed),
		errors.Is(err, domain.ErrOperationNotUndoable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrLedgerLocked):
		writeError(w, http.StatusConflict, "tenant ledger is locked, retry shortly")
	default:
		log.Printf("ERROR: %s: %v", fallback, err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
