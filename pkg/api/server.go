package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/minerva-imaging/minervadb/pkg/authz"
	"github.com/minerva-imaging/minervadb/pkg/httputil"
	"github.com/minerva-imaging/minervadb/pkg/observability"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// Server routes entity and authorization requests onto the store and the
// permission engine
type Server struct {
	store   *store.Store
	engine  *authz.Engine
	router  *mux.Router
	handler http.Handler
	metrics *observability.Metrics
}

// NewServer creates the API server. accessLog and metrics may be nil; the
// corresponding middleware is skipped.
func NewServer(st *store.Store, engine *authz.Engine, accessLog *logrus.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		store:   st,
		engine:  engine,
		router:  mux.NewRouter(),
		metrics: metrics,
	}
	s.setupRoutes()

	middlewares := []func(http.Handler) http.Handler{
		RequestIDMiddleware,
	}
	if accessLog != nil {
		middlewares = append(middlewares,
			RequestLoggingMiddleware(accessLog),
			httputil.RecoveryMiddleware(accessLog))
	}
	if metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	middlewares = append(middlewares, httputil.MaxBytesMiddleware(maxBodyBytes))
	s.handler = httputil.Chain(middlewares...)(s.router)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

const maxBodyBytes = 4 << 20

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Subject routes
	s.router.HandleFunc("/users", s.createUser).Methods("POST")
	s.router.HandleFunc("/users/{id}", s.getUser).Methods("GET")
	s.router.HandleFunc("/users/{id}/groups", s.listGroupsForUser).Methods("GET")
	s.router.HandleFunc("/users/{id}/repositories", s.listVisibleRepositories).Methods("GET")

	s.router.HandleFunc("/groups", s.createGroup).Methods("POST")
	s.router.HandleFunc("/groups/{id}", s.getGroup).Methods("GET")
	s.router.HandleFunc("/groups/{id}/users", s.listUsersInGroup).Methods("GET")
	s.router.HandleFunc("/groups/{id}/members", s.addMembers).Methods("POST")
	s.router.HandleFunc("/groups/{id}/memberships", s.createMembership).Methods("POST")
	s.router.HandleFunc("/groups/{id}/memberships/{userId}", s.updateMembership).Methods("PUT")

	// Repository routes
	s.router.HandleFunc("/repositories", s.createRepository).Methods("POST")
	s.router.HandleFunc("/repositories/{id}", s.getRepository).Methods("GET")
	s.router.HandleFunc("/repositories/{id}", s.updateRepository).Methods("PATCH")
	s.router.HandleFunc("/repositories/{id}", s.deleteRepository).Methods("DELETE")
	s.router.HandleFunc("/repositories/{id}/grants", s.listGrants).Methods("GET")
	s.router.HandleFunc("/repositories/{id}/grants", s.grantPermission).Methods("PUT")
	s.router.HandleFunc("/repositories/{id}/imports", s.listImports).Methods("GET")
	s.router.HandleFunc("/repositories/{id}/images", s.listRepositoryImages).Methods("GET")

	// Import routes
	s.router.HandleFunc("/imports", s.createImport).Methods("POST")
	s.router.HandleFunc("/imports/{id}", s.getImport).Methods("GET")
	s.router.HandleFunc("/imports/{id}", s.updateImport).Methods("PATCH")
	s.router.HandleFunc("/imports/{id}/keys", s.listImportKeys).Methods("GET")
	s.router.HandleFunc("/imports/{id}/keys", s.addKeys).Methods("POST")
	s.router.HandleFunc("/imports/{id}/filesets", s.listFilesets).Methods("GET")

	// Fileset routes
	s.router.HandleFunc("/filesets", s.createFileset).Methods("POST")
	s.router.HandleFunc("/filesets/{id}", s.getFileset).Methods("GET")
	s.router.HandleFunc("/filesets/{id}", s.updateFileset).Methods("PATCH")
	s.router.HandleFunc("/filesets/{id}/keys", s.listFilesetKeys).Methods("GET")
	s.router.HandleFunc("/filesets/{id}/images", s.listFilesetImages).Methods("GET")

	// Image routes
	s.router.HandleFunc("/images", s.createImage).Methods("POST")
	s.router.HandleFunc("/images/{id}", s.getImage).Methods("GET")
	s.router.HandleFunc("/images/{id}", s.deleteImage).Methods("DELETE")
	s.router.HandleFunc("/images/{id}/rendering-settings", s.listRenderingSettings).Methods("GET")
	s.router.HandleFunc("/images/{id}/rendering-settings", s.createRenderingSettings).Methods("POST")
	s.router.HandleFunc("/rendering-settings/{id}", s.getRenderingSettings).Methods("GET")

	// Authorization routes
	s.router.HandleFunc("/authz/check", s.checkPermission).Methods("POST")
}

// writeStoreError maps the store's error kinds onto HTTP statuses
func writeStoreError(w http.ResponseWriter, err error) {
	var dve *store.DomainValueError
	switch {
	case errors.Is(err, store.ErrNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, store.ErrConflict):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, store.ErrInvalidState):
		httputil.WriteBadRequest(w, err.Error())
	case errors.As(err, &dve):
		httputil.WriteBadRequest(w, err.Error())
	default:
		httputil.WriteInternalError(w, err)
	}
}
