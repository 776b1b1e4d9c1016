package application

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Endpoint identifies one downstream instance by scheme, host and port.
// Two registrations with the same endpoint are the same application.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// NewEndpoint builds a normalised endpoint. Scheme and host are compared
// case-insensitively, so both are lower-cased.
func NewEndpoint(scheme, host string, port int) Endpoint {
	return Endpoint{
		Scheme: strings.ToLower(strings.TrimSpace(scheme)),
		Host:   strings.ToLower(strings.TrimSpace(host)),
		Port:   port,
	}
}

// String returns the endpoint as a base URL, e.g. "http://10.0.0.1:8080".
func (e Endpoint) String() string {
	return e.Scheme + "://" + e.hostPort()
}

// URL returns the endpoint as a *url.URL without path.
func (e Endpoint) URL() *url.URL {
	return &url.URL{
		Scheme: e.Scheme,
		Host:   e.hostPort(),
	}
}

func (e Endpoint) hostPort() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}
