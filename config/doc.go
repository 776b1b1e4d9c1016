// Package config loads the load balancer configuration from a YAML file and
// ALB_-prefixed environment variables. It covers the listen address and
// server timeouts, the health check interval and fallback timeout, default
// forwarded headers, the metrics buffer and logging.
package config
