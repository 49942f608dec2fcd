// Package httpapi exposes the snippet service, search and the AI assistant
// as a JSON HTTP API.
//
// Callers are identified by the X-User-ID header, which an upstream
// authenticator is trusted to set. Every /api route rejects requests
// without it. Errors are returned as {"error": "...", "details": [...]}
// with statuses derived from the domain error kinds: validation 400,
// missing snippet 404, provider failure 502, provider timeout 504.
package httpapi
