// Package site serves the embedded onboarding pages for each audience.
package site

import (
	"context"
	"net/http"
)

// Roles lists the audiences that have an onboarding page under /docs/roles/.
var Roles = []string{"patient", "doctor", "hospital", "pharmacy", "ambulance", "blogger"}

// Register attaches the embedded documentation site under /docs/.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	files := http.StripPrefix("/docs/", http.FileServer(FS()))
	mux.Handle("GET /docs/", files)
	mux.Handle("GET /docs", http.RedirectHandler("/docs/", http.StatusMovedPermanently))
}
