// Package gateway assembles the inbound HTTP server of the API Gateway.
//
// The gin engine serves GET /health directly and sends every other request
// through a catch-all dispatcher:
//
//	router.Match -> Guard.Authenticate (protected routes) -> Forwarder.Forward
//
// in front of which the middleware chain runs in this order: recovery,
// correlation id, access log, metrics, CORS, rate limit.
package gateway
