package middleware

import (
	"net/http"
	"strings"
	"time"
)

// PreviewCookie marks a browser that unlocked the site with the preview key.
const PreviewCookie = "mcg_preview_ok"

// PreviewHeader carries the preview key on scripted requests.
const PreviewHeader = "X-Preview-Key"

const previewTTL = 8 * time.Hour

// GateConfig controls the maintenance gate.
type GateConfig struct {
	Locked     bool
	PreviewKey string
	// Open lists path prefixes that are never gated (health checks,
	// /preview itself, metrics scrapes).
	Open []string
}

// MaintenanceGate hides the portal while applications are closed.
//
// PER-REQUEST DECISION (only when Locked):
//
//	path under an Open prefix        → pass
//	preview cookie set               → pass
//	X-Preview-Key matches the key    → pass
//	/api/...                         → 503 {"ok":false,"message":"Applications are not open yet."}
//	anything else                    → 503 plain text
func MaintenanceGate(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Locked {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range cfg.Open {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if c, err := r.Cookie(PreviewCookie); err == nil && c.Value == "yes" {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.PreviewKey != "" && r.Header.Get(PreviewHeader) == cfg.PreviewKey {
				next.ServeHTTP(w, r)
				return
			}

			if strings.HasPrefix(r.URL.Path, "/api/") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"ok":false,"message":"Applications are not open yet."}` + "\n"))
				return
			}
			http.Error(w, "Applications are not open yet.", http.StatusServiceUnavailable)
		})
	}
}

// Preview unlocks the gate for this browser when ?key= matches previewKey.
//
// HTTP: GET /preview?key=...
func Preview(previewKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if previewKey == "" || r.URL.Query().Get("key") != previewKey {
			http.Error(w, "Invalid preview key", http.StatusForbidden)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     PreviewCookie,
			Value:    "yes",
			Path:     "/",
			MaxAge:   int(previewTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/", http.StatusFound)
	}
}
