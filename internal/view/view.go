// Package view holds the server-rendered pages.
package view

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"time"

	"github.com/gofiber/template/html/v2"
)

//go:embed templates
var templates embed.FS

const Layout = "layouts/main"

// NewEngine returns the template engine for fiber.Config.Views.
func NewEngine() *html.Engine {
	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		panic(err)
	}

	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFunc("date", func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2 Jan 2006 15:04")
	})
	engine.AddFunc("statusLabel", StatusLabel)
	engine.AddFunc("sortedKeys", func(m map[string]interface{}) []string {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	})
	engine.AddFunc("str", func(v interface{}) string {
		return fmt.Sprint(v)
	})
	return engine
}

func StatusLabel(status string) string {
	switch status {
	case "open":
		return "Open"
	case "in_progress":
		return "In progress"
	case "closed":
		return "Closed"
	}
	return status
}
