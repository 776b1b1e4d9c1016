package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/angeloszaimis/alb/internal/application"
	"github.com/angeloszaimis/alb/internal/apperr"
)

const (
	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 10 << 20
)

// strippedHeaders are never copied to the outbound request. Most are
// connection-scoped. Accept-Encoding is left to the transport, which asks
// for gzip and decompresses it, so the body can be checked as JSON.
var strippedHeaders = []string{
	"Accept-Encoding",
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Request is the part of an inbound request that is forwarded.
type Request struct {
	// RelativePath is appended to the application's base path.
	RelativePath string
	RawQuery     string
	Header       http.Header
}

// Response is a successful downstream answer. Body is valid JSON.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
	Duration   time.Duration
}

type Forwarder struct {
	client          *http.Client
	defaultHeaders  http.Header
	fallbackTimeout time.Duration
	logger          *slog.Logger
}

// New creates a Forwarder. defaultHeaders are sent on every outbound request
// before the inbound headers are merged in. A nil client uses a fresh
// http.Client.
func New(client *http.Client, defaultHeaders http.Header, fallbackTimeout time.Duration, logger *slog.Logger) *Forwarder {
	if client == nil {
		client = &http.Client{}
	}
	if fallbackTimeout <= 0 {
		fallbackTimeout = DefaultTimeout
	}

	return &Forwarder{
		client:          client,
		defaultHeaders:  defaultHeaders.Clone(),
		fallbackTimeout: fallbackTimeout,
		logger:          logger,
	}
}

// TargetURL is where req is sent for app.
func TargetURL(app *application.Application, req Request) string {
	target := app.Endpoint().String() + app.Path() + req.RelativePath
	if req.RawQuery != "" {
		target += "?" + req.RawQuery
	}
	return target
}

// Forward issues a GET for req against app. A cancelled ctx is returned as
// ctx.Err(); an elapsed application deadline is an apperr timeout.
func (f *Forwarder) Forward(ctx context.Context, app *application.Application, req Request) (*Response, error) {
	target := TargetURL(app, req)

	callCtx, cancel := context.WithTimeout(ctx, app.Deadline(f.fallbackTimeout))
	defer cancel()

	outbound, err := http.NewRequestWithContext(callCtx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apperr.NewInternalError("failed to build downstream request", err)
	}
	outbound.Header = f.mergeHeaders(req.Header)

	f.logger.Debug("Forwarding request",
		slog.String("application", app.Endpoint().String()),
		slog.String("target", target))

	start := time.Now()

	res, err := f.client.Do(outbound)
	if err != nil {
		return nil, f.classify(ctx, callCtx, target, err)
	}
	defer res.Body.Close()

	duration := time.Since(start)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, maxBodyBytes))
		return nil, apperr.NewDownstreamError(target, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, f.classify(ctx, callCtx, target, err)
	}

	if !json.Valid(body) {
		return nil, apperr.NewInvalidResponseError(target, errors.New("response body is not valid JSON"))
	}

	return &Response{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}

func (f *Forwarder) mergeHeaders(inbound http.Header) http.Header {
	merged := f.defaultHeaders.Clone()
	if merged == nil {
		merged = make(http.Header)
	}

	for name, values := range inbound {
		for _, value := range values {
			merged.Add(name, value)
		}
	}

	for _, name := range strippedHeaders {
		merged.Del(name)
	}

	return merged
}

func (f *Forwarder) classify(parent, call context.Context, target string, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.NewTimeoutError(target, err)
	}
	return apperr.NewInternalError(fmt.Sprintf("request to %s failed", target), err)
}
