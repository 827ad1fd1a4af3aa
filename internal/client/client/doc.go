// Package client is the JSON-over-HTTP transport shared by the identity,
// registry, custody and funding clients.
//
// # Overview
//
// A Client wraps an *http.Client with a per-call timeout, a response size
// cap, and a mapping from HTTP status codes and wire error codes onto the
// sentinel errors in internal/common. Boundary packages only build request
// and response structs; status handling lives here.
//
// # Error Handling
//
// Transport failures, timeouts and 5xx responses wrap the boundary's
// Unavailable sentinel (common.ErrUnavailable unless overridden). 401, 403,
// 404, 409, 429 and the {"error": "<code>"} body of 4xx responses map onto
// the matching class. Callers match with errors.Is.
//
// # Authentication
//
// WithPrincipal attaches the caller's proof per Principal variant: a bearer
// identity token for federated principals, the external address header for
// wallet principals.
package client
