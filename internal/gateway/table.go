// Package gateway is the public entry point: it authenticates requests and
// forwards them to the backend services.
package gateway

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gestor-financiero/pkg/config"
)

// Route sends every path under Prefix to Target with Prefix stripped.
type Route struct {
	Name   string
	Prefix string
	Target string

	// Public paths (after stripping) skip the auth guard.
	Public []string

	Timeout time.Duration
	// SlowPaths are path prefixes that get SlowTimeout instead, for
	// requests that trigger OCR.
	SlowPaths   []string
	SlowTimeout time.Duration
}

func (r *Route) IsPublic(rest string) bool {
	for _, p := range r.Public {
		if rest == p {
			return true
		}
	}
	return false
}

func (r *Route) TimeoutFor(rest string) time.Duration {
	for _, p := range r.SlowPaths {
		if strings.HasPrefix(rest, p) {
			return r.SlowTimeout
		}
	}
	return r.Timeout
}

// Table is built once at startup and read concurrently afterwards.
type Table struct {
	routes []Route
}

func NewTable(routes ...Route) (*Table, error) {
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if !strings.HasPrefix(r.Prefix, "/") || strings.HasSuffix(r.Prefix, "/") {
			return nil, fmt.Errorf("route %q: prefix must start and not end with /", r.Prefix)
		}
		if r.Target == "" {
			return nil, fmt.Errorf("route %q: empty target", r.Prefix)
		}
		if seen[r.Prefix] {
			return nil, fmt.Errorf("route %q: duplicate prefix", r.Prefix)
		}
		seen[r.Prefix] = true
	}

	sorted := append([]Route(nil), routes...)
	for i := range sorted {
		sorted[i].Target = strings.TrimRight(sorted[i].Target, "/")
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i].Prefix) > len(sorted[j].Prefix) })
	return &Table{routes: sorted}, nil
}

// DefaultTable maps /api/{auth,documents,financial,ocr} to the backends.
func DefaultTable(cfg *config.GatewayConfig) (*Table, error) {
	return NewTable(
		Route{
			Name:    "auth",
			Prefix:  "/api/auth",
			Target:  cfg.AuthURL,
			Public:  []string{"/register", "/login", "/health"},
			Timeout: cfg.DefaultTimeout,
		},
		Route{
			Name:        "documents",
			Prefix:      "/api/documents",
			Target:      cfg.DocumentsURL,
			Public:      []string{"/health"},
			Timeout:     cfg.DefaultTimeout,
			SlowPaths:   []string{"/upload", "/process/", "/create-transaction/"},
			SlowTimeout: cfg.ProcessTimeout,
		},
		Route{
			Name:    "financial",
			Prefix:  "/api/financial",
			Target:  cfg.FinancialURL,
			Public:  []string{"/health"},
			Timeout: cfg.DefaultTimeout,
		},
		Route{
			Name:        "ocr",
			Prefix:      "/api/ocr",
			Target:      cfg.OCRURL,
			Public:      []string{"/health"},
			Timeout:     cfg.DefaultTimeout,
			SlowPaths:   []string{"/process"},
			SlowTimeout: cfg.ProcessTimeout,
		},
	)
}

// Match finds the longest prefix covering path on a segment boundary and
// returns the remainder to forward.
func (t *Table) Match(path string) (*Route, string, bool) {
	for i := range t.routes {
		r := &t.routes[i]
		if path == r.Prefix {
			return r, "/", true
		}
		if strings.HasPrefix(path, r.Prefix+"/") {
			return r, path[len(r.Prefix):], true
		}
	}
	return nil, "", false
}

func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}
