package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

const maxRequestBodyBytes = 1 << 20

type enrichRequest struct {
	ModelID string         `json:"model_id"`
	Options map[string]any `json:"options"`
}

type bulkRequest struct {
	DocumentIDs json.RawMessage `json:"document_ids"`
	ModelID     string          `json:"model_id"`
	Options     map[string]any  `json:"options"`
}

type queueResponse struct {
	Success bool   `json:"success"`
	Queued  int    `json:"queued"`
	Error   string `json:"error,omitempty"`
}

type versionsResponse struct {
	DocumentID string                     `json:"document_id"`
	Versions   []domain.EnrichmentVersion `json:"versions"`
}

func (rt *Router) enrichDocument(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	result, err := rt.deps.Enricher.Enrich(r.Context(), r.PathValue("document_id"), req.ModelID, domain.ParseEnrichmentOptions(req.Options))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) runBatch(w http.ResponseWriter, r *http.Request) {
	req, ids, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}

	result, err := rt.deps.Batch.Run(r.Context(), ids, req.ModelID, domain.ParseEnrichmentOptions(req.Options))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) enqueue(w http.ResponseWriter, r *http.Request) {
	req, ids, ok := decodeBulkRequest(w, r)
	if !ok {
		return
	}

	queued, err := rt.deps.Queue.Enqueue(r.Context(), ids, req.ModelID, domain.ParseEnrichmentOptions(req.Options))
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), queueResponse{Success: false, Queued: queued, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, queueResponse{Success: true, Queued: queued})
}

func (rt *Router) listVersions(w http.ResponseWriter, r *http.Request) {
	documentID := r.PathValue("document_id")
	versions, err := rt.deps.Versions.ListVersions(r.Context(), documentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versionsResponse{DocumentID: documentID, Versions: versions})
}

func (rt *Router) getActiveVersion(w http.ResponseWriter, r *http.Request) {
	version, err := rt.deps.Versions.GetActive(r.Context(), r.PathValue("document_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

func (rt *Router) getVersion(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "version must be an integer")
		return
	}

	version, err := rt.deps.Versions.GetVersion(r.Context(), r.PathValue("document_id"), number)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, version)
}

// decodeBulkRequest rejects bodies whose document_ids is missing or not a
// list of strings. Empty lists are left to the use case.
func decodeBulkRequest(w http.ResponseWriter, r *http.Request) (bulkRequest, []string, bool) {
	var req bulkRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return req, nil, false
	}

	raw := strings.TrimSpace(string(req.DocumentIDs))
	if raw == "" || raw == "null" || !strings.HasPrefix(raw, "[") {
		writeError(w, http.StatusBadRequest, "document_ids must be a list")
		return req, nil, false
	}
	var ids []string
	if err := json.Unmarshal(req.DocumentIDs, &ids); err != nil {
		writeError(w, http.StatusBadRequest, "document_ids must be a list of strings")
		return req, nil, false
	}
	return req, ids, true
}

// decodeOptionalJSON treats an empty body as an empty object.
func decodeOptionalJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes)).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
