package httpadapter

import (
	"net/http"

	"github.com/kirillkom/document-enricher/internal/core/domain"
)

type publishRequest struct {
	CollectionID string         `json:"collection_id"`
	Properties   map[string]any `json:"properties"`
}

type publishRecordsResponse struct {
	EnrichmentVersionID string                 `json:"enrichment_version_id"`
	Records             []domain.PublishRecord `json:"records"`
}

func (rt *Router) publish(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	outcome, err := rt.deps.Publisher.Publish(r.Context(), r.PathValue("version_id"), req.CollectionID, domain.PageProperties(req.Properties))
	if err != nil {
		if outcome != nil {
			writeJSON(w, mapErrorToHTTPStatus(err), outcome)
			return
		}
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) listPublishRecords(w http.ResponseWriter, r *http.Request) {
	versionID := r.PathValue("version_id")
	records, err := rt.deps.Publisher.ListRecords(r.Context(), versionID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, publishRecordsResponse{EnrichmentVersionID: versionID, Records: records})
}
