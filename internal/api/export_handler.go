package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/heimdex-editor/internal/export"
)

// cutEDLHandler returns the latest saved cut of a media item as a CMX3600
// EDL download.
func cutEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mediaID := chi.URLParam(r, "id")

		m, err := cfg.CatalogService.GetMedia(r.Context(), mediaID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		edl, err := cfg.CatalogService.CutEDL(r.Context(), mediaID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		name := export.SanitizeName(m.Title, 120)
		if name == "" {
			name = "heimdex_cut"
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".edl"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl))
	}
}
