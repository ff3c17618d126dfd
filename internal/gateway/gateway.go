package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/recipes/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ExpiredMessage is signalled when the API rejects the token.
	ExpiredMessage = "Your session has expired. Please log in again."

	// RequestIDHeader correlates client and server logs.
	RequestIDHeader = "X-Request-ID"

	tracerName = "github.com/wolfeidau/recipes/internal/gateway"
)

// Session is the part of the session state the gateway depends on.
type Session interface {
	// Token returns the bearer token, or "" when anonymous.
	Token() string

	// SignalExpiry records that the API rejected the token. It must be idempotent.
	SignalExpiry(ctx context.Context, message string) bool
}

// Request describes one call to the API.
type Request struct {
	Method string

	// Path is resolved against the gateway base URL.
	Path string

	// Header values win over the gateway defaults.
	Header http.Header

	// Body is nil, *Multipart, []byte, io.Reader or a value encoded as JSON.
	Body any

	// Public requests carry no bearer token and a 401 is returned as a normal
	// response, for endpoints such as login where 401 means bad credentials.
	Public bool
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithHTTPClient sets the client used to reach the API.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.client = client
	}
}

// WithMetrics overrides the global metrics instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Gateway sends API requests with the session's bearer token and turns a 401
// into a session expiry.
type Gateway struct {
	baseURL *url.URL
	session Session
	client  *http.Client
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// New creates a gateway for the API at baseURL.
func New(baseURL string, session Session, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}

	g := &Gateway{
		baseURL: u,
		session: session,
		client:  http.DefaultClient,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = telemetry.GetMetrics()
	}

	return g, nil
}

// Do sends the request.
//
// Any response other than 401 is returned unmodified, including error
// statuses; reading and closing the body is up to the caller. A 401 signals
// session expiry and returns ErrUnauthorized. Transport failures are returned
// as-is and do not touch the session.
func (g *Gateway) Do(ctx context.Context, r *Request) (*http.Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	ctx, span := g.tracer.Start(ctx, "gateway "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	req, err := g.newRequest(ctx, method, r)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	attrs := metric.WithAttributes(attribute.String("http.method", method))
	g.metrics.GatewayRequestsTotal.Add(ctx, 1, attrs)

	logger := log.With().
		Str("method", method).
		Str("url", req.URL.String()).
		Str("requestID", req.Header.Get(RequestIDHeader)).
		Logger()

	started := time.Now()
	resp, err := g.client.Do(req)
	g.metrics.GatewayRequestDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	if err != nil {
		g.metrics.GatewayTransportErrorsTotal.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		logger.Debug().Err(err).Dur("duration", time.Since(started)).Msg("request failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	logger.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("request complete")

	if resp.StatusCode == http.StatusUnauthorized && !r.Public {
		// Callers never see this body, release the connection now.
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()

		g.metrics.GatewayUnauthorizedTotal.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, "unauthorized")

		if g.session.SignalExpiry(ctx, ExpiredMessage) {
			logger.Warn().Msg("token rejected, session expired")
		}

		return nil, ErrUnauthorized
	}

	return resp, nil
}

func (g *Gateway) newRequest(ctx context.Context, method string, r *Request) (*http.Request, error) {
	target, err := g.baseURL.Parse(r.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", r.Path, err)
	}

	body, kind, multipartType, err := encodeBody(r.Body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if kind == bodyNone || kind == bodyJSON {
		req.Header.Set("Content-Type", "application/json")
	}

	for key, values := range r.Header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	// Only the writer knows the boundary.
	if kind == bodyMultipart {
		req.Header.Set("Content-Type", multipartType)
	}

	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, newRequestID())
	}

	if !r.Public {
		if token := g.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return req, nil
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
