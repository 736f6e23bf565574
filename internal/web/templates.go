package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/justestif/moodarc/internal/catalog"
	"github.com/justestif/moodarc/internal/mood"
	"github.com/justestif/moodarc/internal/scoring"
)

const layoutTemplate = "base"

// Templates renders the server-side pages and the fragments swapped into them.
// Pages are parsed together with every layout and partial; partials are also
// parsed on their own.
type Templates struct {
	pages    map[string]*template.Template
	partials map[string]*template.Template
}

// NewTemplates parses layouts/, partials/ and pages/ from templatesFS.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding layouts: %w", err)
	}
	partials, err := fs.Glob(templatesFS, "partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding partials: %w", err)
	}
	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding pages: %w", err)
	}

	t := &Templates{
		pages:    make(map[string]*template.Template, len(pages)),
		partials: make(map[string]*template.Template, len(partials)),
	}

	shared := append(layouts, partials...)
	for _, page := range pages {
		tmpl, err := parse(templatesFS, page, shared...)
		if err != nil {
			return nil, err
		}
		t.pages[templateName(page)] = tmpl
	}
	for _, partial := range partials {
		tmpl, err := parse(templatesFS, partial)
		if err != nil {
			return nil, err
		}
		t.partials[templateName(partial)] = tmpl
	}

	return t, nil
}

func templateName(file string) string {
	return strings.TrimSuffix(path.Base(file), ".html")
}

func parse(fsys fs.FS, file string, extra ...string) (*template.Template, error) {
	name := templateName(file)
	tmpl, err := template.New(name).Funcs(funcs).ParseFS(fsys, append([]string{file}, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", file, err)
	}
	return tmpl, nil
}

// Render writes a full page wrapped in the base layout.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, layoutTemplate, data)
}

// RenderPartial writes a fragment without the layout.
func (t *Templates) RenderPartial(w io.Writer, partial string, data any) error {
	tmpl, ok := t.partials[partial]
	if !ok {
		return fmt.Errorf("partial %q not found", partial)
	}
	return tmpl.Execute(w, data)
}

var funcs = template.FuncMap{
	"moodColor": moodColor,
	"moodName":  mood.Name,
	"percent": func(x float64) string {
		return fmt.Sprintf("%.0f%%", x*100)
	},
	"add": func(a, b int) int { return a + b },
}

// moodColor maps energy to hue, from cool indigo to warm orange, and valence to
// saturation and lightness.
func moodColor(energy, valence float64) string {
	hue := 264 - energy*229
	if hue < 0 {
		hue += 360
	}
	return fmt.Sprintf("hsl(%.0f, %.0f%%, %.0f%%)", hue, 60+valence*40, 40+valence*20)
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	User        *UserData
	CurrentPath string
}

// UserData is the logged-in listener shown in the header.
type UserData struct {
	ID   string
	Name string
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	LoginEnabled bool
	Catalog      catalog.Summary
	Regions      []catalog.Region
	Modes        []scoring.Mode
	FrontendURL  string
}
