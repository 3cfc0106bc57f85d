package web

import (
	"fmt"
	"html"
	"net/http"
)

const homepageTemplate = `<!doctype html>
<html>
  <head><title>RGW Exporter</title></head>
  <body>
    <h1>RGW Exporter</h1>
    <p>Bucket usage collected %s.</p>
    <p><a href=%q>Metrics</a></p>
  </body>
</html>`

// HomePageHandler serves the landing page on / and 404 on anything else the
// mux routes here.
func HomePageHandler(metricsPath, mode string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, homepageTemplate, html.EscapeString(mode), metricsPath)
	}
}
