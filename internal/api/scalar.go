package api

import (
	"fmt"
	"net/http"
)

// ScalarHandler serves the Scalar documentation UI for the delivery API.
// The OpenAPI document itself is generated by fuego and served at specURL.
func ScalarHandler(specURL, title, description string) http.Handler {
	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<title>%s</title>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<style>body { margin: 0; padding: 0; }</style>
</head>
<body>
	<script id="api-reference" data-url="%s"></script>
	<script>
		document.getElementById('api-reference').dataset.configuration = JSON.stringify({
			theme: 'kepler',
			layout: 'modern',
			showSidebar: true,
			darkMode: true,
			forceDarkModeState: 'dark',
			metaData: {
				title: '%s',
				description: '%s'
			},
			servers: [{ url: window.location.origin, description: 'This server' }]
		})
	</script>
	<script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body>
</html>`, title, specURL, title, description)

	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
	})
}
