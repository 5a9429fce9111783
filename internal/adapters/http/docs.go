package http

import (
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"
)

// DefaultOpenAPIPath is where the API document lives relative to the
// working directory of cmd/api.
const DefaultOpenAPIPath = "api/openapi.yaml"

const swaggerUIPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Tripline API %[1]s | Swagger UI</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body style="margin:0">
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/docs/openapi.yaml', dom_id: '#swagger-ui', deepLinking: true, tryItOutEnabled: true});
  </script>
</body>
</html>`

// SetupDocs serves Swagger UI at /docs and the trip API document at
// /docs/openapi.yaml. The document is read once; a missing file leaves /docs
// up and answers 404 for the document.
func SetupDocs(app *fiber.App, specPath string) {
	if specPath == "" {
		specPath = DefaultOpenAPIPath
	}
	doc, readErr := os.ReadFile(specPath)

	page := fmt.Sprintf(swaggerUIPage, apiVersion)
	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Type("html", "utf-8")
		return c.SendString(page)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if readErr != nil {
			return newError(c, fiber.StatusNotFound, "not_found", "API document unavailable")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(doc)
	})
}
