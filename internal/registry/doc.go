// Package registry holds the registered downstream applications keyed by
// endpoint. It is the source of truth for registration and health flags;
// every operation is atomic with respect to the others.
package registry
