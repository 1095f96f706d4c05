package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"html/template"
	"net/http"

	"github.com/hpungsan/venueindex/internal/errors"
)

var reportPage = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<main>
{{.Body}}
</main>
<footer>venueindex {{.Version}}</footer>
</body>
</html>
`))

type reportPageData struct {
	Title   string
	Version string
	Body    template.HTML
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderError writes an error envelope. Internal and persistence messages
// are replaced with a generic one.
func renderError(w http.ResponseWriter, err error) {
	var iErr *errors.IndexError
	if !stderrors.As(err, &iErr) {
		iErr = errors.NewInternal(err)
	}

	message := iErr.Message
	if iErr.Code == errors.ErrInternal || iErr.Code == errors.ErrPersistence {
		message = "an internal error occurred"
	}

	renderJSON(w, iErr.Status, map[string]any{
		"error": map[string]any{
			"code":    string(iErr.Code),
			"message": message,
			"status":  iErr.Status,
		},
	})
}

// renderHTML wraps an already-rendered HTML body in the page layout.
func renderHTML(w http.ResponseWriter, data reportPageData) error {
	var buf bytes.Buffer
	if err := reportPage.Execute(&buf, data); err != nil {
		return errors.NewInternal(err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}
