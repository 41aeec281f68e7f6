package handlers

import (
	_ "embed"
	"net/http"
)

// openapiSpec documents the read-only inventory routes and the lookup audit log.
//
//go:embed openapi.yaml
var openapiSpec []byte

// docsPage is a browsable view of the inventory API; only GET requests can be
// tried from it.
const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>lab_inventory: Ansible inventory API</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.yaml",
      dom_id: "#swagger-ui",
      deepLinking: true,
      supportedSubmitMethods: ["get"],
    });
  </script>
</body>
</html>`

// OpenAPISpec handles GET /openapi.yaml. The document is compiled into the
// binary, so clients may cache it for five minutes.
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(openapiSpec) //nolint:errcheck
}

// Docs handles GET /docs.
func Docs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(docsPage)) //nolint:errcheck
}
