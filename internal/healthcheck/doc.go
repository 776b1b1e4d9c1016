// Package healthcheck implements the periodic health prober. Every tick it
// probes each registered application in parallel, bounded by the
// application's own timeout, and promotes or demotes it in the load
// balancer. Ticks never overlap, and one application's failure never
// affects the probing of the others.
package healthcheck
