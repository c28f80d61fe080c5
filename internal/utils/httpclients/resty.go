package httpclients

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"jan-server/services/session-api/internal/utils/platformerrors"
)

type startsAtKey struct{}

// NewClient returns a resty client that debug-logs every exchange with its latency and the
// request id found on the request context.
func NewClient(clientName string, timeout time.Duration, log zerolog.Logger) *resty.Client {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		r.SetContext(context.WithValue(r.Context(), startsAtKey{}, time.Now()))
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		ctx := r.Request.Context()
		startTime, _ := ctx.Value(startsAtKey{}).(time.Time)

		event := log.Debug().
			Str("request_id", platformerrors.RequestIDFromContext(ctx)).
			Str("client", clientName).
			Int("status", r.StatusCode()).
			Dur("latency", time.Since(startTime))
		if raw := r.Request.RawRequest; raw != nil {
			event = event.Str("method", raw.Method).Str("path", raw.URL.Path)
		}
		event.Msg("HTTP client request")
		return nil
	})
	return client
}
