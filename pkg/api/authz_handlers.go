package api

import (
	"net/http"
	"time"

	"github.com/minerva-imaging/minervadb/pkg/httputil"
	"github.com/minerva-imaging/minervadb/pkg/observability"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// checkPermission handles POST /authz/check. A resource that does not exist
// yields allowed=false, the same as a denial; callers that need to tell the
// two apart fetch the resource first.
func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") ||
		!httputil.RequireNonEmpty(w, req.ResourceID, "resource_id") {
		return
	}
	// An omitted minimum asks the weakest question; explicit garbage is
	// still rejected by the lattice below
	if req.Minimum == "" {
		req.Minimum = store.PermissionRead
	}

	ctx := observability.WithUserID(r.Context(), req.UserID)
	start := time.Now()
	allowed, err := s.engine.HasPermission(ctx, req.UserID, req.ResourceType, req.ResourceID, req.Minimum)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.RecordPermissionCheck(string(req.ResourceType), string(req.Minimum), allowed, time.Since(start))
	}

	httputil.WriteSuccess(w, CheckResponse{Allowed: allowed})
}

// listVisibleRepositories handles GET /users/{id}/repositories. One row per
// (subject, repository) grant the user can act through, so a repository
// reachable via several grants appears once per grant.
func (s *Server) listVisibleRepositories(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	ctx := observability.WithUserID(r.Context(), vars["id"])
	grants, err := s.engine.RepositoriesVisibleTo(ctx, vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, grants)
}
