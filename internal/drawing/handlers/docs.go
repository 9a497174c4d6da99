package handlers

import (
	"bytes"
	_ "embed"
	"html/template"

	"github.com/gofiber/fiber/v3"
)

// ============================================================
// API Docs Handlers
// ============================================================

const specPath = "/docs/openapi.yaml"

//go:embed openapi.yaml
var openAPISpec []byte

// Страница документации: ReDoc читает спецификацию по specPath.
var docsPage = template.Must(template.New("docs").Parse(`<!doctype html>
<meta charset="utf-8">
<title>{{.Title}}</title>
<redoc spec-url="{{.SpecURL}}" hide-download-button></redoc>
<script src="https://cdn.redoc.ly/redoc/v2.1.5/bundles/redoc.standalone.js"></script>
`))

// RegisterDocs вешает /docs и specPath.
func RegisterDocs(r fiber.Router) {
	r.Get(specPath, OpenAPISpec)
	r.Get("/docs", Docs)
}

// OpenAPISpec отдаёт OpenAPI YAML.
func OpenAPISpec(c fiber.Ctx) error {
	c.Type("yaml")
	return c.Send(openAPISpec)
}

func Docs(c fiber.Ctx) error {
	var buf bytes.Buffer
	err := docsPage.Execute(&buf, struct{ Title, SpecURL string }{"Drawing core API", specPath})
	if err != nil {
		return err
	}
	c.Type("html")
	return c.Send(buf.Bytes())
}
