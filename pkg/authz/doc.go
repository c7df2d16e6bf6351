// Package authz resolves permissions over the grant and membership
// relations. A user acts as themselves plus every group they belong to;
// grants attach to repositories, and any resource in the containment tree
// (import, fileset, image) inherits from its owning repository. Permission
// levels form a strict order, so holding a level answers for every weaker
// one.
//
// The engine offers two read paths: CheckPermission keeps "resource not
// found" distinct from a denial, while HasPermission collapses the two
// into a single existence query. Decisions can be memoized in a local LRU
// with an optional shared Redis tier.
package authz
