package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sketchin/redforecast/internal/domain"
	"github.com/sketchin/redforecast/internal/forecast"
	"github.com/sketchin/redforecast/internal/history"
	"github.com/sketchin/redforecast/internal/ingestion"
)

// Handler exposes the forecast operations over HTTP JSON.
type Handler struct {
	history  *history.Service
	forecast *forecast.Service
	ingest   *ingestion.Service
}

// NewHandler creates the API handler.
func NewHandler(historySvc *history.Service, forecastSvc *forecast.Service, ingestSvc *ingestion.Service) *Handler {
	return &Handler{
		history:  historySvc,
		forecast: forecastSvc,
		ingest:   ingestSvc,
	}
}

// Register mounts the endpoints on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/snapshots", h.snapshots)
	mux.HandleFunc("/diff", h.diff)
	mux.HandleFunc("/forecast", h.getForecast)
	mux.HandleFunc("/opportunities", h.opportunities)
}

// snapshots handles GET (list stored dates) and POST (capture a new
// snapshot from an uploaded workbook).
func (h *Handler) snapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		dates, err := h.history.ListDates(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
	case http.MethodPost:
		h.capture(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// capture ingests an uploaded workbook and stores it as the snapshot for
// the given date (today when omitted). The refreshed records also become
// the live view served by /forecast and /opportunities.
func (h *Handler) capture(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	date := strings.TrimSpace(r.FormValue("date"))
	if date == "" {
		date = time.Now().Format(domain.DateLayout)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}

	parsed, err := h.ingest.Parse(r.Context(), ingestion.Request{
		FileName:  header.Filename,
		SheetName: strings.TrimSpace(r.FormValue("sheetName")),
		Data:      bytes.NewReader(data),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.history.Capture(r.Context(), date, parsed.Records)
	if err != nil {
		writeError(w, err)
		return
	}
	h.forecast.SetRecords(parsed.Records)

	status := http.StatusCreated
	if !result.Created {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// diff compares the snapshots closest to the from and to query dates.
func (h *Handler) diff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		http.Error(w, "from and to query parameters are required", http.StatusBadRequest)
		return
	}

	diff, err := h.history.Compare(r.Context(), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

// getForecast renders forecast text for the requested months.
func (h *Handler) getForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var months []string
	if raw := strings.TrimSpace(r.URL.Query().Get("months")); raw != "" {
		for _, m := range strings.Split(raw, ",") {
			if m = strings.TrimSpace(m); m != "" {
				months = append(months, m)
			}
		}
	}

	text, err := h.forecast.GetForecast(months, r.URL.Query().Get("factory"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"forecast": text})
}

// opportunities renders the filtered opportunity list.
func (h *Handler) opportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()

	fromSensitivity := 0.0
	if raw := q.Get("fromSensitivity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "invalid fromSensitivity", http.StatusBadRequest)
			return
		}
		fromSensitivity = v
	}
	toSensitivity := -1.0
	if raw := q.Get("toSensitivity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "invalid toSensitivity", http.StatusBadRequest)
			return
		}
		toSensitivity = v
	}

	text, err := h.forecast.FilterOpportunities(
		q.Get("month"), q.Get("contentOwner"), q.Get("factory"),
		fromSensitivity, toSensitivity, q.Get("status"),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"opportunities": text})
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateDate):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrSchemaMismatch),
		errors.Is(err, forecast.ErrNotLoaded):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
