package api

import (
	"net/http"

	"github.com/minerva-imaging/minervadb/pkg/httputil"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// createImage handles POST /images. The image must name exactly one parent:
// a complete fileset, or a repository directly.
func (s *Server) createImage(w http.ResponseWriter, r *http.Request) {
	var img store.Image
	if !httputil.ParseJSONOrError(w, r, &img) {
		return
	}
	if !httputil.RequireNonEmpty(w, img.ID, "id") {
		return
	}

	if err := s.store.CreateImage(r.Context(), &img); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, img)
}

// getImage handles GET /images/{id}
func (s *Server) getImage(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	img, err := s.store.GetImage(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, img)
}

// deleteImage handles DELETE /images/{id}. The default is a soft delete;
// ?purge=true removes the row and its rendering settings.
func (s *Server) deleteImage(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)

	var err error
	if r.URL.Query().Get("purge") == "true" {
		err = s.store.DeleteImage(r.Context(), vars["id"])
	} else {
		err = s.store.MarkImageDeleted(r.Context(), vars["id"])
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listRenderingSettings handles GET /images/{id}/rendering-settings
func (s *Server) listRenderingSettings(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	settings, err := s.store.ListRenderingSettingsForImage(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, settings)
}

// createRenderingSettings handles POST /images/{id}/rendering-settings
func (s *Server) createRenderingSettings(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var rs store.RenderingSettings
	if !httputil.ParseJSONOrError(w, r, &rs) {
		return
	}
	if !httputil.RequireNonEmpty(w, rs.ID, "id") {
		return
	}
	rs.ImageID = vars["id"]

	if err := s.store.CreateRenderingSettings(r.Context(), &rs); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, rs)
}

// getRenderingSettings handles GET /rendering-settings/{id}
func (s *Server) getRenderingSettings(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	rs, err := s.store.GetRenderingSettings(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, rs)
}
