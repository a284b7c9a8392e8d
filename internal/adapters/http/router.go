package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gestiloc/document-pipeline/internal/config"
	"github.com/gestiloc/document-pipeline/internal/core/domain"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
	"github.com/gestiloc/document-pipeline/internal/observability/metrics"
)

type Router struct {
	ingestor  ports.DocumentIngestor
	stager    ports.DocumentStager
	confirmer ports.TypeConfirmer
	reader    ports.DocumentReader
	lifecycle ports.DocumentLifecycle

	cfg     config.Config
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	ingestor ports.DocumentIngestor,
	stager ports.DocumentStager,
	confirmer ports.TypeConfirmer,
	reader ports.DocumentReader,
	lifecycle ports.DocumentLifecycle,
	cfg config.Config,
	m *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		ingestor:  ingestor,
		stager:    stager,
		confirmer: confirmer,
		reader:    reader,
		lifecycle: lifecycle,
		cfg:       cfg,
		metrics:   m,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/documents", rt.ingestDocument)
	mux.HandleFunc("/v1/documents/staged", rt.stageDocument)
	mux.HandleFunc("/v1/documents/", rt.documentByID)

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.cfg.ServiceName, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ingestDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, closeFile, ic, period, policy, ok := rt.parseUpload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	start := time.Now()
	result, err := rt.ingestor.Ingest(r.Context(), file, ic, period, policy)
	if err != nil {
		rt.writeIngestError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordIngest(rt.cfg.ServiceName, string(result.Decision), time.Since(start))
		rt.metrics.RecordClassification(rt.cfg.ServiceName, result.ChosenType, result.Confidence)
		if result.DuplicateVerdict != nil {
			rt.metrics.RecordDedupVerdict(rt.cfg.ServiceName, string(result.DuplicateVerdict.Tier))
		}
		var primary, derived int
		for _, link := range result.Links {
			if link.Role == domain.RolePrimary {
				primary++
			} else {
				derived++
			}
		}
		rt.metrics.RecordLinksResolved(rt.cfg.ServiceName, primary, derived)
	}
	writeJSON(w, http.StatusCreated, result)
}

func (rt *Router) stageDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, closeFile, ic, period, policy, ok := rt.parseUpload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	doc, err := rt.stager.Stage(r.Context(), file, ic, period, policy)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

// documentByID dispatches /v1/documents/{id} and its sub-resources.
func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		rt.getDocument(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		rt.softDeleteDocument(w, r, id)
	case action == "restore" && r.Method == http.MethodPost:
		rt.restoreDocument(w, r, id)
	case action == "discard" && r.Method == http.MethodPost:
		rt.discardDocument(w, r, id)
	case action == "confirm-type" && r.Method == http.MethodPost:
		rt.confirmDocumentType(w, r, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	org, ok := rt.requireOrg(w, r)
	if !ok {
		return
	}

	doc, err := rt.reader.GetByID(r.Context(), org, id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	links, err := rt.reader.ListLinks(r.Context(), org, id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"links":    links,
	})
}

func (rt *Router) softDeleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	org, ok := rt.requireOrg(w, r)
	if !ok {
		return
	}

	policy := ports.OrphanBlock
	if r.URL.Query().Get("policy") == string(ports.OrphanWarn) {
		policy = ports.OrphanWarn
	}

	blockers, err := rt.lifecycle.SoftDelete(r.Context(), org, id, policy)
	if err != nil {
		var blocked *domain.SoftDeleteBlockedError
		if errors.As(err, &blocked) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    blocked.Error(),
				"blockers": blocked.Blockers,
			})
			return
		}
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   string(domain.StatusDeleted),
		"blockers": blockers,
	})
}

func (rt *Router) restoreDocument(w http.ResponseWriter, r *http.Request, id string) {
	org, ok := rt.requireOrg(w, r)
	if !ok {
		return
	}

	doc, err := rt.lifecycle.Restore(r.Context(), org, id)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) discardDocument(w http.ResponseWriter, r *http.Request, id string) {
	org, ok := rt.requireOrg(w, r)
	if !ok {
		return
	}

	if err := rt.lifecycle.Discard(r.Context(), org, id); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) confirmDocumentType(w http.ResponseWriter, r *http.Request, id string) {
	org, ok := rt.requireOrg(w, r)
	if !ok {
		return
	}

	var req struct {
		TypeCode string `json:"type_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.TypeCode) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type_code is required"})
		return
	}

	result, err := rt.confirmer.ConfirmType(r.Context(), org, id, req.TypeCode)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseUpload reads the multipart form shared by the ingest and stage
// endpoints. A false return means the response has been written.
func (rt *Router) parseUpload(w http.ResponseWriter, r *http.Request) (ports.FileUpload, func(), domain.IngestionContext, *domain.Period, domain.DuplicatePolicy, bool) {
	var none ports.FileUpload

	org, ok := rt.requireOrg(w, r)
	if !ok {
		return none, nil, domain.IngestionContext{}, nil, "", false
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return none, nil, domain.IngestionContext{}, nil, "", false
	}

	ic := domain.IngestionContext{
		OrgID:           org,
		PropertyID:      r.FormValue("property_id"),
		LeaseID:         r.FormValue("lease_id"),
		TransactionID:   r.FormValue("transaction_id"),
		DeclaredContext: domain.ContextKind(r.FormValue("declared_context")),
		SkipGlobalLink:  r.FormValue("skip_global_link") == "true",
	}
	for _, tenantID := range strings.Split(r.FormValue("tenant_ids"), ",") {
		if tenantID = strings.TrimSpace(tenantID); tenantID != "" {
			ic.TenantIDs = append(ic.TenantIDs, tenantID)
		}
	}

	period, err := parsePeriod(r.FormValue("period_start"), r.FormValue("period_end"))
	if err != nil {
		file.Close()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return none, nil, domain.IngestionContext{}, nil, "", false
	}

	upload := ports.FileUpload{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Body:     file,
	}
	return upload, func() { _ = file.Close() }, ic, period, domain.DuplicatePolicy(r.FormValue("duplicate_policy")), true
}

func (rt *Router) requireOrg(w http.ResponseWriter, r *http.Request) (string, bool) {
	org := orgID(r)
	if org == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "X-Org-Id header is required"})
		return "", false
	}
	return org, true
}

func (rt *Router) writeIngestError(w http.ResponseWriter, err error) {
	var blocked *domain.DuplicateBlockedError
	if errors.As(err, &blocked) {
		if rt.metrics != nil {
			rt.metrics.RecordDuplicateBlocked(rt.cfg.ServiceName)
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":                blocked.Error(),
			"existing_document_id": blocked.ExistingDocumentID,
			"verdict":              blocked.Verdict,
		})
		return
	}
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func parsePeriod(start, end string) (*domain.Period, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.New("period_start and period_end must be provided together")
	}

	from, err := parseDate(start)
	if err != nil {
		return nil, errors.New("period_start must be an RFC3339 timestamp or YYYY-MM-DD date")
	}
	to, err := parseDate(end)
	if err != nil {
		return nil, errors.New("period_end must be an RFC3339 timestamp or YYYY-MM-DD date")
	}
	if to.Before(from) {
		return nil, errors.New("period_end must not precede period_start")
	}
	return &domain.Period{Start: from, End: to}, nil
}

func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
