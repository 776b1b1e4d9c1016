// Package handler implements the HTTP surface of the load balancer: the
// forwarding handler, the registration API, the balancer's own liveness
// endpoint and the request middleware.
package handler
