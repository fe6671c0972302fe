// Package render produces the service report document from an order snapshot.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sync"
	"time"

	"ordenapp/internal/domain"
)

//go:embed templates
var embedded embed.FS

// DefaultTemplates returns the report templates compiled into the binary
func DefaultTemplates() fs.FS {
	sub, _ := fs.Sub(embedded, "templates")
	return sub
}

var templateIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Manager handles report template loading and caching.
// Templates live in reports/<id>.html and are parsed together with layouts/base.html.
type Manager struct {
	fsys    fs.FS
	reload  bool
	cache   map[string]*template.Template
	mu      sync.RWMutex
	funcMap template.FuncMap
}

// NewManager creates a new template manager
// If reload is true, templates are parsed again on every render
// If reload is false, templates are cached in memory
func NewManager(fsys fs.FS, reload bool) (*Manager, error) {
	m := &Manager{
		fsys:   fsys,
		reload: reload,
		cache:  make(map[string]*template.Template),
		funcMap: template.FuncMap{
			"formatDate":     formatDate,
			"formatDateTime": formatDateTime,
			"formatValue":    formatValue,
			"statusLabel":    domain.OrderStatusLabel,
			"phaseLabel":     domain.PhaseLabel,
			"yesNo":          yesNo,
			"add":            add,
		},
	}

	if !reload {
		if err := m.loadTemplates(); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// loadTemplates parses every report template with the layout
func (m *Manager) loadTemplates() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	layout, err := fs.ReadFile(m.fsys, "layouts/base.html")
	if err != nil {
		return fmt.Errorf("failed to read layout: %w", err)
	}

	entries, err := fs.ReadDir(m.fsys, "reports")
	if err != nil {
		return fmt.Errorf("failed to read report templates: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".html" {
			continue
		}
		id := e.Name()[:len(e.Name())-len(".html")]
		tmpl, err := m.parse(layout, id)
		if err != nil {
			return err
		}
		m.cache[id] = tmpl
	}
	return nil
}

func (m *Manager) parse(layout []byte, id string) (*template.Template, error) {
	page, err := fs.ReadFile(m.fsys, path.Join("reports", id+".html"))
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", id, err)
	}

	tmpl := template.New("base").Funcs(m.funcMap)
	if _, err := tmpl.Parse(string(layout)); err != nil {
		return nil, fmt.Errorf("failed to parse layout for %s: %w", id, err)
	}
	if _, err := tmpl.Parse(string(page)); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", id, err)
	}
	return tmpl, nil
}

// Has reports whether a template id can be rendered
func (m *Manager) Has(id string) bool {
	if !templateIDPattern.MatchString(id) {
		return false
	}
	if m.reload {
		_, err := fs.Stat(m.fsys, path.Join("reports", id+".html"))
		return err == nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cache[id]
	return ok
}

// Render executes a report template with the given data
func (m *Manager) Render(w io.Writer, id string, data any) error {
	if !templateIDPattern.MatchString(id) {
		return fmt.Errorf("template not found: %s", id)
	}

	if m.reload {
		if err := m.loadSingle(id); err != nil {
			return fmt.Errorf("failed to reload templates: %w", err)
		}
	}

	m.mu.RLock()
	tmpl, ok := m.cache[id]
	m.mu.RUnlock()

	if !ok {
		return fmt.Errorf("template not found: %s", id)
	}

	return tmpl.ExecuteTemplate(w, "base", data)
}

// loadSingle parses one template (used when reload is on)
func (m *Manager) loadSingle(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	layout, err := fs.ReadFile(m.fsys, "layouts/base.html")
	if err != nil {
		return fmt.Errorf("failed to read layout: %w", err)
	}
	tmpl, err := m.parse(layout, id)
	if err != nil {
		return err
	}
	m.cache[id] = tmpl
	return nil
}

// Template helper functions

func formatDate(v any) string {
	t, ok := toTime(v)
	if !ok {
		return "-"
	}
	return t.Format("02/01/2006")
}

func formatDateTime(v any) string {
	t, ok := toTime(v)
	if !ok {
		return "-"
	}
	return t.Format("02/01/2006 15:04")
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil || t.IsZero() {
			return time.Time{}, false
		}
		return *t, true
	}
	return time.Time{}, false
}

func formatValue(v *float64, unit string) string {
	if v == nil {
		return "-"
	}
	if unit == "" {
		return fmt.Sprintf("%g", *v)
	}
	return fmt.Sprintf("%g %s", *v, unit)
}

func yesNo(b bool) string {
	if b {
		return "Sí"
	}
	return "No"
}

func add(a, b int) int {
	return a + b
}
