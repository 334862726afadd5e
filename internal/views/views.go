// Package views holds the embedded HTML templates and the Fiber template
// engine configured for them.
package views

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates/*.html
var templatesFS embed.FS

// NewEngine returns the HTML view engine backed by the embedded templates.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		// The templates are compiled in; this cannot fail at runtime.
		panic(err)
	}
	return html.NewFileSystem(http.FS(sub), ".html")
}
