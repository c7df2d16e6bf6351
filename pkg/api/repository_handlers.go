package api

import (
	"net/http"

	"github.com/minerva-imaging/minervadb/pkg/httputil"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// createRepository handles POST /repositories. The creating user receives
// an Admin grant in the same transaction.
func (s *Server) createRepository(w http.ResponseWriter, r *http.Request) {
	var req CreateRepositoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ID, "id") ||
		!httputil.RequireNonEmpty(w, req.Name, "name") ||
		!httputil.RequireNonEmpty(w, req.CreatorUserID, "creator_user_id") {
		return
	}

	repo := store.Repository{
		ID:         req.ID,
		Name:       req.Name,
		RawStorage: req.RawStorage,
		Access:     req.Access,
	}
	if err := s.store.CreateRepository(r.Context(), &repo, req.CreatorUserID); err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateDecisions(r, req.CreatorUserID)
	httputil.WriteCreated(w, repo)
}

// getRepository handles GET /repositories/{id}
func (s *Server) getRepository(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	repo, err := s.store.GetRepository(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, repo)
}

// updateRepository handles PATCH /repositories/{id}
func (s *Server) updateRepository(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req UpdateRepositoryRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	repo, err := s.store.UpdateRepository(r.Context(), vars["id"], req.Name, req.RawStorage, req.Access)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, repo)
}

// deleteRepository handles DELETE /repositories/{id}. The whole containment
// tree under the repository goes with it.
func (s *Server) deleteRepository(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	if err := s.store.DeleteRepository(r.Context(), vars["id"]); err != nil {
		writeStoreError(w, err)
		return
	}
	if s.engine != nil {
		s.engine.PurgeDecisions(r.Context())
	}
	httputil.WriteNoContent(w)
}

// listGrants handles GET /repositories/{id}/grants
func (s *Server) listGrants(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	grants, err := s.store.ListGrantsForRepository(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}

// grantPermission handles PUT /repositories/{id}/grants. Granting is
// idempotent per (subject, repository); a re-grant updates the level.
func (s *Server) grantPermission(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req GrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.SubjectID, "subject_id") {
		return
	}

	grant, err := s.store.GrantRepositoryToSubject(r.Context(), vars["id"], req.SubjectID, req.Permission)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	// The subject may be a group, so per-user invalidation cannot cover
	// everyone the grant now reaches
	if s.engine != nil {
		s.engine.PurgeDecisions(r.Context())
	}
	httputil.WriteSuccess(w, grant)
}

// listImports handles GET /repositories/{id}/imports
func (s *Server) listImports(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	imports, err := s.store.ListImportsInRepository(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, imports)
}

// listRepositoryImages handles GET /repositories/{id}/images
func (s *Server) listRepositoryImages(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	images, err := s.store.ListImagesInRepository(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, images)
}
