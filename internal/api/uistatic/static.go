// Package uistatic embeds the browser chat page.
package uistatic

import (
	"bytes"
	"embed"
	"net/http"
	"strings"
	"time"
)

//go:embed app/index.html
var pageFS embed.FS

const apiPrefix = "/v1/"

// Handler serves the chat page for every path outside the API. Unknown API
// paths get a JSON 404 instead of the page so clients never parse HTML.
func Handler() http.Handler {
	page, err := pageFS.ReadFile("app/index.html")
	if err != nil {
		return http.NotFoundHandler()
	}
	loadedAt := time.Now()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path+"/" == apiPrefix || strings.HasPrefix(r.URL.Path, apiPrefix) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error_code":"NOT_FOUND","message":"unknown API path","retryable":false}` + "\n"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeContent(w, r, "index.html", loadedAt, bytes.NewReader(page))
	})
}
