package gateway

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/rs/zerolog/log"
)

var _ connect.Interceptor = (*AuthInterceptor)(nil)

// AuthInterceptor gives Connect RPC clients the same session contract as
// Gateway.Do: the bearer token is attached when present, and an
// Unauthenticated error signals session expiry.
type AuthInterceptor struct {
	session Session
}

// NewAuthInterceptor creates a client interceptor bound to the session.
func NewAuthInterceptor(session Session) *AuthInterceptor {
	return &AuthInterceptor{session: session}
}

// ConnectClientOptions returns the client options every Connect client of the
// API should use: tracing plus session handling.
func ConnectClientOptions(session Session) ([]connect.ClientOption, error) {
	otelInterceptor, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, fmt.Errorf("failed to create interceptor: %w", err)
	}

	return []connect.ClientOption{
		connect.WithInterceptors(otelInterceptor, NewAuthInterceptor(session)),
	}, nil
}

// WrapUnary implements connect.Interceptor.
func (i *AuthInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if !req.Spec().IsClient {
			return next(ctx, req)
		}

		i.addAuthHeader(req.Header())

		resp, err := next(ctx, req)
		if err != nil {
			return nil, i.checkUnauthenticated(ctx, err)
		}
		return resp, nil
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *AuthInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		i.addAuthHeader(conn.RequestHeader())
		return &authStreamingClientConn{StreamingClientConn: conn, ctx: ctx, interceptor: i}
	}
}

// WrapStreamingHandler is not used for client interceptors.
func (i *AuthInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}

func (i *AuthInterceptor) addAuthHeader(headers interface{ Set(string, string) }) {
	if token := i.session.Token(); token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
}

// checkUnauthenticated converts an Unauthenticated error into a session expiry.
func (i *AuthInterceptor) checkUnauthenticated(ctx context.Context, err error) error {
	if connect.CodeOf(err) != connect.CodeUnauthenticated {
		return err
	}

	if i.session.SignalExpiry(ctx, ExpiredMessage) {
		log.Warn().Err(err).Msg("rpc token rejected, session expired")
	}

	return connect.NewError(connect.CodeUnauthenticated, ErrUnauthorized)
}

type authStreamingClientConn struct {
	connect.StreamingClientConn
	ctx         context.Context
	interceptor *AuthInterceptor
}

func (c *authStreamingClientConn) Receive(msg any) error {
	err := c.StreamingClientConn.Receive(msg)
	if err != nil {
		return c.interceptor.checkUnauthenticated(c.ctx, err)
	}
	return nil
}
