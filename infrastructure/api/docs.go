// Package api provides HTTP server and API documentation.
package api

import (
	"embed"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"text/template"

	"github.com/go-chi/chi/v5"
)

//go:embed openapi.json
var openapiFS embed.FS

// loadOpenAPI decodes the embedded document once.
var loadOpenAPI = sync.OnceValues(func() (map[string]any, error) {
	data, err := openapiFS.ReadFile("openapi.json")
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode openapi.json: %w", err)
	}
	return doc, nil
})

var swaggerPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
    <style>body { margin: 0; background: #fafafa; }</style>
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" charset="UTF-8"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: "{{.SpecURL}}",
                dom_id: '#swagger-ui',
                deepLinking: true,
                presets: [SwaggerUIBundle.presets.apis],
                layout: "BaseLayout"
            });
        };
    </script>
</body>
</html>`))

// DocsRouter serves Swagger UI and the OpenAPI document.
type DocsRouter struct {
	specURL string
	version string
}

// NewDocsRouter creates a DocsRouter whose UI loads specURL. A non-empty
// version replaces info.version in the served document.
func NewDocsRouter(specURL, version string) *DocsRouter {
	return &DocsRouter{specURL: specURL, version: version}
}

// Routes returns the chi router for documentation endpoints.
func (d *DocsRouter) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", d.ui)
	router.Get("/openapi.json", d.openAPI)
	return router
}

func (d *DocsRouter) ui(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = swaggerPage.Execute(w, struct{ Title, SpecURL string }{
		Title:   "ticketsql API Documentation",
		SpecURL: d.specURL,
	})
}

// openAPI serves the document with its server URL pointing at the host the
// request came through, so "Try it out" works behind proxies.
func (d *DocsRouter) openAPI(w http.ResponseWriter, r *http.Request) {
	doc, err := loadOpenAPI()
	if err != nil {
		http.Error(w, "openapi document unavailable", http.StatusInternalServerError)
		return
	}

	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	out["servers"] = []map[string]string{{"url": requestBaseURL(r) + "/api/v1"}}
	if d.version != "" {
		if info, ok := doc["info"].(map[string]any); ok {
			patched := make(map[string]any, len(info))
			for k, v := range info {
				patched[k] = v
			}
			patched["version"] = d.version
			out["info"] = patched
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func requestBaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		scheme = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host := r.Host
	if forwarded := r.Header.Get("X-Forwarded-Host"); forwarded != "" {
		host = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + host
}
