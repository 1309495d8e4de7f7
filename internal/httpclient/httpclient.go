package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration
	// Logger receives one debug line per outbound request. URLs are logged
	// without their query so API keys never reach the log.
	Logger zerolog.Logger
}

func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if opts.PreferIPv4 {
				return dialer.DialContext(ctx, "tcp4", addr)
			}
			return dialer.DialContext(ctx, network, addr)
		},
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &loggingTransport{next: transport, logger: opts.Logger},
	}
}

type loggingTransport struct {
	next   http.RoundTripper
	logger zerolog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	ev := t.logger.Debug().
		Str("method", req.Method).
		Str("host", req.URL.Host).
		Str("path", req.URL.Path).
		Dur("duration", time.Since(start))
	if err != nil {
		ev.Err(err).Msg("outbound request failed")
		return nil, err
	}
	ev.Int("status", resp.StatusCode).Msg("outbound request")
	return resp, nil
}
