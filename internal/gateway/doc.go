// Package gateway assembles the gateway's components from configuration
// and serves the HTTP API: an authenticated command endpoint, an SSE
// event stream, and health endpoints.
package gateway
