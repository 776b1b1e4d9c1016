// Package application models a downstream application instance registered
// with the load balancer: its identity, endpoint, forwarding attributes and
// health flag. It also validates registration payloads.
package application
