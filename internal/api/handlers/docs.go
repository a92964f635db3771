package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/homeport/stackpilot/internal/domain/errs"
	"github.com/homeport/stackpilot/internal/pkg/httputil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>stackpilot deployment</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 56rem; margin: 2rem auto; padding: 0 1rem; }
        table { border-collapse: collapse; }
        th, td { border: 1px solid #ccc; padding: .3rem .6rem; text-align: left; }
        code, pre { background: #f4f4f4; }
    </style>
</head>
<body>
`

// DocsHandler serves the deployment reference document.
type DocsHandler struct {
	ops      Operations
	markdown goldmark.Markdown
}

// NewDocsHandler creates a new documentation handler.
func NewDocsHandler(ops Operations) *DocsHandler {
	return &DocsHandler{
		ops:      ops,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// HandleReferenceDoc renders the reference document for the last plan.
// GET /api/v1/docs, or ?format=markdown for the source.
func (h *DocsHandler) HandleReferenceDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := h.ops.ReferenceDoc()
	if err != nil {
		if errors.Is(err, errs.ErrNoScan) {
			httputil.NotFound(w, r, err.Error())
			return
		}
		httputil.FromError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(doc))
		return
	}

	var buf bytes.Buffer
	buf.WriteString(docsPage)
	if err := h.markdown.Convert([]byte(doc), &buf); err != nil {
		httputil.InternalError(w, r, err)
		return
	}
	buf.WriteString("</body>\n</html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
