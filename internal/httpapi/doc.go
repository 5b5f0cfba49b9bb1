// Package httpapi serves the admin and public HTTP routes.
//
// Admin routes under /api/admin/ require a bearer token when one is
// configured. Public routes expose asset views and file downloads by slug.
// Every response carries an X-Request-ID header; the same id is attached to
// the request context so log lines written while serving it can be correlated.
package httpapi
