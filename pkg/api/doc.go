// Package api exposes the entity store and the authorization engine over
// HTTP. Routes are plain JSON resources under /users, /groups,
// /repositories, /imports, /filesets, /images and /rendering-settings,
// plus /authz/check for permission decisions.
//
// Store error kinds map onto statuses: not found is 404, conflicts are
// 409, invalid state and out-of-domain enum values are 400. Permission
// denials surface as allowed=false in the check response body, not as 403;
// the API itself performs no caller authentication.
package api
