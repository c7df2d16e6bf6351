// Package store is the entity layer over PostgreSQL: subjects (users and
// groups), memberships, repositories, imports, filesets with their keys,
// images, grants, and rendering settings. All writes that touch more than
// one row run inside a transaction on the primary.
//
// Failures carry a kind callers can branch on: ErrNotFound, ErrConflict,
// and ErrInvalidState sentinels, plus DomainValueError for values outside
// an enum domain. Driver-level errors from postgres and sqlite are
// translated into these kinds at the boundary, so callers never inspect
// driver codes.
package store
