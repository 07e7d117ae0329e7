// Package api exposes HTTP handlers for office reports.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"example.com/officereport/internal/auth"
	"example.com/officereport/internal/domain"
	"example.com/officereport/internal/export"
	"example.com/officereport/internal/report"
)

const maxBodyBytes = 1 << 20

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires the record endpoints onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", healthz)
	r.Route("/v1/records", func(r chi.Router) {
		r.Post("/", h.submitRecord)
		r.Get("/", h.listRecords)
		r.Get("/summary", h.recordSummary)
		r.Get("/table", h.recordTable)
		r.Get("/export.xlsx", h.exportRecords)
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) submitRecord(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}

	var form domain.Form
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	result, err := h.service.Submit(r.Context(), claims.Identity(), form)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := SubmitRecordResponse{Record: toRecordView(result.Record)}
	if result.VisitorsErr != nil {
		resp.VisitorsError = result.VisitorsErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	records, ok := h.visibleRecords(w, r)
	if !ok {
		return
	}

	items := make([]RecordView, 0, len(records))
	for _, rec := range records {
		items = append(items, toRecordView(rec))
	}
	writeJSON(w, http.StatusOK, ListRecordsResponse{Items: items})
}

func (h *Handler) recordSummary(w http.ResponseWriter, r *http.Request) {
	records, ok := h.visibleRecords(w, r)
	if !ok {
		return
	}

	resp := SummaryResponse{Summary: report.Aggregate(records)}
	if claims, _ := auth.FromContext(r.Context()); claims.Admin {
		all := records
		if officeFilter(r) != "" {
			var err error
			if all, err = h.service.List(r.Context(), claims.Identity(), ""); err != nil {
				h.writeDomainError(w, err)
				return
			}
		}
		resp.Offices = report.Offices(all)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) recordTable(w http.ResponseWriter, r *http.Request) {
	records, ok := h.visibleRecords(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report.Flatten(records))
}

func (h *Handler) exportRecords(w http.ResponseWriter, r *http.Request) {
	records, ok := h.visibleRecords(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, report.Flatten(records), report.Aggregate(records)); err != nil {
		h.logger.Error().Err(err).Msg("xlsx export failed")
		writeError(w, http.StatusInternalServerError, "server_error", "unable to build spreadsheet")
		return
	}

	name := "all"
	if claims, _ := auth.FromContext(r.Context()); !claims.Admin {
		name = claims.Office
	} else if f := officeFilter(r); f != "" {
		name = f
	}
	w.Header().Set("Content-Type", export.ContentTypeXLSX)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "records_"+safeFile(name)+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// visibleRecords loads the records the caller may see, writing the error
// response itself when it returns false.
func (h *Handler) visibleRecords(w http.ResponseWriter, r *http.Request) ([]domain.Record, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}

	records, err := h.service.List(r.Context(), claims.Identity(), officeFilter(r))
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	return records, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var storeErr *domain.StoreError
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.As(err, &storeErr):
		resp := errorResponse{Type: "store_error", Detail: err.Error()}
		if rec, ok := storeErr.Payload.(domain.Record); ok {
			view := toRecordView(rec)
			resp.Payload = &view
		}
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		h.logger.Error().Err(err).Msg("unexpected handler error")
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func officeFilter(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("office"))
}

func safeFile(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// RecordView is the JSON representation of a record.
type RecordView struct {
	ID        string           `json:"id,omitempty"`
	Office    string           `json:"office"`
	PeriodKey string           `json:"period_key"`
	Counters  domain.Counters  `json:"counters"`
	Revenue   decimal.Decimal  `json:"revenue"`
	Visitors  []domain.Visitor `json:"visitors"`
	CreatedAt *time.Time       `json:"created_at,omitempty"`
}

// SubmitRecordResponse is returned by POST /v1/records. VisitorsError is
// set when the record was kept but its visitors could not be stored.
type SubmitRecordResponse struct {
	Record        RecordView `json:"record"`
	VisitorsError string     `json:"visitors_error,omitempty"`
}

// ListRecordsResponse packages list results.
type ListRecordsResponse struct {
	Items []RecordView `json:"items"`
}

// SummaryResponse carries the per-period summary. Offices is only filled
// for administrators.
type SummaryResponse struct {
	report.Summary
	Offices []string `json:"offices,omitempty"`
}

type errorResponse struct {
	Type    string      `json:"type"`
	Detail  string      `json:"detail"`
	Payload *RecordView `json:"payload,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorResponse{Type: code, Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toRecordView(rec domain.Record) RecordView {
	view := RecordView{
		ID:        rec.ID,
		Office:    rec.Office,
		PeriodKey: rec.PeriodKey,
		Counters:  rec.Counters,
		Revenue:   rec.Revenue,
		Visitors:  rec.Visitors,
	}
	if view.Visitors == nil {
		view.Visitors = []domain.Visitor{}
	}
	if !rec.CreatedAt.IsZero() {
		ts := rec.CreatedAt.UTC()
		view.CreatedAt = &ts
	}
	return view
}
