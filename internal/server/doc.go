// Package server hosts the Videoflix API and playback endpoints from a single
// HTTP server.
//
// The server builds a consistent middleware chain of request IDs, logging,
// metrics, rate limiting, CORS, and session auth so handlers all share common
// protections and instrumentation.
package server
