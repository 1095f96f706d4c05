package web

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hpungsan/venueindex/internal/errors"
	"github.com/hpungsan/venueindex/internal/index"
	"github.com/hpungsan/venueindex/internal/record"
	"github.com/hpungsan/venueindex/internal/report"
)

// Handlers contains HTTP route handlers.
type Handlers struct {
	idx     *index.Index
	version string
	log     *slog.Logger
}

// HandleSearch handles GET /events?q=&start_date=&end_date=.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var dates *index.DateRange
	if start, end := q.Get("start_date"), q.Get("end_date"); start != "" || end != "" {
		dates = &index.DateRange{Start: start, End: end}
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"event_ids": h.idx.Search(q.Get("q"), dates),
	})
}

// HandleSummary handles GET /events/{id}.
func (h *Handlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, ok := h.idx.Summary(id)
	if !ok {
		renderError(w, errors.NewNotFound(id))
		return
	}
	renderJSON(w, http.StatusOK, summary)
}

// HandleCommunications handles GET /events/{id}/communications?window=&source=.
func (h *Handlers) HandleCommunications(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	source, ok := record.ParseSource(q.Get("source"))
	if !ok {
		renderError(w, errors.NewUnsupported("source", q.Get("source")))
		return
	}

	comms, ok := h.idx.Communications(id, q.Get("window"), source)
	if !ok {
		renderError(w, errors.NewNotFound(id))
		return
	}

	renderJSON(w, http.StatusOK, map[string]any{
		"event_id":       id,
		"count":          len(comms),
		"communications": comms,
	})
}

// HandleReport handles GET /events/{id}/report. The digest is HTML unless
// format=md is given.
func (h *Handlers) HandleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q := r.URL.Query()

	digest, ok := report.Build(h.idx, id, q.Get("window"))
	if !ok {
		renderError(w, errors.NewNotFound(id))
		return
	}

	if strings.EqualFold(q.Get("format"), "md") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(digest.Markdown()))
		return
	}

	body, err := digest.HTML()
	if err != nil {
		h.log.Error("render report", "event_id", id, "error", err)
		renderError(w, err)
		return
	}

	title := digest.Summary.Name
	if title == "" {
		title = id
	}
	if err := renderHTML(w, reportPageData{
		Title:   title,
		Version: h.version,
		Body:    template.HTML(body),
	}); err != nil {
		h.log.Error("render report page", "event_id", id, "error", err)
		renderError(w, err)
	}
}

// HandleStatistics handles GET /stats.
func (h *Handlers) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, h.idx.Statistics())
}

// HandleDecisions handles GET /decisions?event_id=.
func (h *Handlers) HandleDecisions(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("event_id")

	decisions := h.idx.Decisions()
	if eventID != "" {
		filtered := make([]record.Decision, 0, len(decisions))
		for _, d := range decisions {
			if d.EventID == eventID {
				filtered = append(filtered, d)
			}
		}
		decisions = filtered
	}

	renderJSON(w, http.StatusOK, map[string]any{"decisions": decisions})
}
