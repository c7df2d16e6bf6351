package api

import (
	"net/http"

	"github.com/minerva-imaging/minervadb/pkg/httputil"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// createUser handles POST /users
func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var user store.User
	if !httputil.ParseJSONOrError(w, r, &user) {
		return
	}
	if !httputil.RequireNonEmpty(w, user.ID, "id") {
		return
	}

	if err := s.store.CreateUser(r.Context(), &user); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, user)
}

// getUser handles GET /users/{id}
func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	user, err := s.store.GetUser(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, user)
}

// listGroupsForUser handles GET /users/{id}/groups
func (s *Server) listGroupsForUser(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	groups, err := s.store.ListGroupsForUser(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, groups)
}

// createGroup handles POST /groups. The owning user becomes the group's
// initial Owner member.
func (s *Server) createGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.ID, "id") ||
		!httputil.RequireNonEmpty(w, req.Name, "name") ||
		!httputil.RequireNonEmpty(w, req.OwnerUserID, "owner_user_id") {
		return
	}

	group := store.Group{ID: req.ID, Name: req.Name}
	if err := s.store.CreateGroup(r.Context(), &group, req.OwnerUserID); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteCreated(w, group)
}

// getGroup handles GET /groups/{id}
func (s *Server) getGroup(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	group, err := s.store.GetGroup(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, group)
}

// listUsersInGroup handles GET /groups/{id}/users
func (s *Server) listUsersInGroup(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	users, err := s.store.ListUsersInGroup(r.Context(), vars["id"])
	if err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// addMembers handles POST /groups/{id}/members. All named users are added
// as plain members, or none are.
func (s *Server) addMembers(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req AddMembersRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.UserIDs) == 0 {
		httputil.WriteBadRequest(w, "user_ids is required")
		return
	}

	if err := s.store.AddUsersToGroup(r.Context(), vars["id"], req.UserIDs...); err != nil {
		writeStoreError(w, err)
		return
	}
	for _, userID := range req.UserIDs {
		s.invalidateDecisions(r, userID)
	}
	httputil.WriteNoContent(w)
}

// createMembership handles POST /groups/{id}/memberships
func (s *Server) createMembership(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req MembershipRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.UserID, "user_id") {
		return
	}

	m := store.Membership{
		GroupID:        vars["id"],
		UserID:         req.UserID,
		MembershipType: req.MembershipType,
	}
	if err := s.store.CreateMembership(r.Context(), &m); err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateDecisions(r, req.UserID)
	httputil.WriteCreated(w, m)
}

// updateMembership handles PUT /groups/{id}/memberships/{userId}
func (s *Server) updateMembership(w http.ResponseWriter, r *http.Request) {
	vars := httputil.GetPathVars(r)
	var req MembershipRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.store.UpdateMembership(r.Context(), vars["id"], vars["userId"], req.MembershipType); err != nil {
		writeStoreError(w, err)
		return
	}
	s.invalidateDecisions(r, vars["userId"])
	httputil.WriteSuccess(w, store.Membership{
		GroupID:        vars["id"],
		UserID:         vars["userId"],
		MembershipType: req.MembershipType,
	})
}

// invalidateDecisions drops cached authorization decisions for a user whose
// reachable grants may have changed
func (s *Server) invalidateDecisions(r *http.Request, userID string) {
	if s.engine != nil {
		s.engine.InvalidateUser(r.Context(), userID)
	}
}
