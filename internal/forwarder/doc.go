// Package forwarder sends a client request on to the application chosen by
// the load balancer and returns its JSON response.
//
// Every forwarded call is bounded by the application's timeout and derived
// from the inbound request context, so a client disconnect or a server
// shutdown releases the outbound connection. Failures are returned as typed
// apperr errors and never change the application's health.
package forwarder
