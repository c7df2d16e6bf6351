package api

import (
	"net/http"

	"github.com/minerva-imaging/minervadb/pkg/httputil"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// createImport handles POST /imports
func (s *Server) createImport(w http.ResponseWriter, r *http.Request) {
	var imp store.Import
	if !httputil.ParseJSONOrError(w, r, &imp) {
		return
	}
	if !httputil.RequireNonEmpty(w, imp.ID, "id") ||
		!httputil.RequireNonEmpty(w, imp.RepositoryID, "repository_id") {
		return
	}

	if err := s.store.CreateImport(r.Context(), &imp); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, imp)
}

// getImport handles GET /imports/{id}
func (s *Server) getImport(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	imp, err := s.store.GetImport(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, imp)
}

// updateImport handles PATCH /imports/{id}
func (s *Server) updateImport(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req UpdateImportRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	imp, err := s.store.UpdateImport(r.Context(), vars["id"], req.Name, req.Complete)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, imp)
}

// listImportKeys handles GET /imports/{id}/keys
func (s *Server) listImportKeys(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	keys, err := s.store.ListKeysInImport(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, keys)
}

// addKeys handles POST /imports/{id}/keys
func (s *Server) addKeys(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req AddKeysRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Keys) == 0 {
		httputil.WriteBadRequest(w, "keys is required")
		return
	}

	if err := s.store.AddKeysToImport(r.Context(), vars["id"], req.Keys...); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// listFilesets handles GET /imports/{id}/filesets
func (s *Server) listFilesets(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	filesets, err := s.store.ListFilesetsInImport(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, filesets)
}

// createFileset handles POST /filesets. The named keys are bound to the
// new fileset in the creating transaction; a key already bound elsewhere
// fails the whole request with a conflict.
func (s *Server) createFileset(w http.ResponseWriter, r *http.Request) {
	var req CreateFilesetRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Fileset.ID, "fileset.id") ||
		!httputil.RequireNonEmpty(w, req.Fileset.ImportID, "fileset.import_id") {
		return
	}

	if err := s.store.CreateFileset(r.Context(), &req.Fileset, req.Keys); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, req.Fileset)
}

// getFileset handles GET /filesets/{id}
func (s *Server) getFileset(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	fs, err := s.store.GetFileset(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, fs)
}

// updateFileset handles PATCH /filesets/{id}. Marking the fileset complete
// registers the detected images in the same transaction.
func (s *Server) updateFileset(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req UpdateFilesetRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	fs, err := s.store.UpdateFileset(r.Context(), vars["id"], req.Name, req.Complete, req.Progress, req.Images)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, fs)
}

// listFilesetKeys handles GET /filesets/{id}/keys
func (s *Server) listFilesetKeys(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	keys, err := s.store.ListKeysInFileset(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, keys)
}

// listFilesetImages handles GET /filesets/{id}/images
func (s *Server) listFilesetImages(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	images, err := s.store.ListImagesInFileset(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, images)
}
