package network

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

// config holds internal transport configuration
type config struct {
	timeout      time.Duration
	maxIdleConns int
	tlsConfig    *tls.Config
	userAgent    string
	token        string
	tokenHost    string
	dialerOpts   []DialerOption
}

// Option is a functional option for Transport configuration
type Option func(*config)

// WithTimeout sets the connect, TLS handshake and response header timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// WithMaxIdleConnsPerHost sets the idle connection pool size per host
func WithMaxIdleConnsPerHost(n int) Option {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

// WithTLSConfig sets the TLS client configuration layered on top of the
// connection. The dialer is not affected by it.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *config) {
		c.tlsConfig = cfg
	}
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *config) {
		c.userAgent = ua
	}
}

// WithToken sends "Authorization: Bearer <token>" on requests to the host of
// endpoint. Redirect hops to any other host go out without it. The token is
// never sent when endpoint has no host.
func WithToken(token, endpoint string) Option {
	return func(c *config) {
		c.token = token
		c.tokenHost = ""
		if u, err := url.Parse(endpoint); err == nil {
			c.tokenHost = u.Host
		}
	}
}

// WithDialerOptions passes options through to the underlying Dialer
func WithDialerOptions(opts ...DialerOption) Option {
	return func(c *config) {
		c.dialerOpts = append(c.dialerOpts, opts...)
	}
}

// Capabilities describes how much a Transport can tell about its connections
type Capabilities struct {
	// EnforcesFamily is true when connections are restricted to IPv6
	EnforcesFamily bool
	// PerRequestPeer is true when each response can be attributed to the
	// connection that served it rather than the last connect
	PerRequestPeer bool
}

// Transport is an HTTP connector built on a Dialer. A single type serves both
// the enforcing (DialModeForceV6) and the observing (DialModeObserve) variant.
type Transport struct {
	dialer *Dialer
	client *http.Client
}

// New creates a Transport in the given mode
func New(mode model.DialMode, opts ...Option) *Transport {
	cfg := &config{
		timeout:      model.DefaultTimeout,
		maxIdleConns: 16,
		userAgent:    types.AppName + "/" + types.Version,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dialerOpts := append([]DialerOption{WithConnectTimeout(cfg.timeout)}, cfg.dialerOpts...)
	dialer := NewDialer(mode, dialerOpts...)

	base := &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.maxIdleConns * 2,
		MaxIdleConnsPerHost:   cfg.maxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   cfg.timeout,
		ResponseHeaderTimeout: cfg.timeout,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       cfg.tlsConfig,
	}

	// A proxy would own the origin connection and its family, so forced
	// IPv6 connects directly.
	if mode == model.DialModeObserve {
		base.Proxy = http.ProxyFromEnvironment
	}

	t := &Transport{dialer: dialer}
	t.client = &http.Client{
		Transport: &roundTripper{
			base:      base,
			transport: t,
			userAgent: cfg.userAgent,
			token:     cfg.token,
			tokenHost: cfg.tokenHost,
		},
	}
	return t
}

// NewFromFlag picks the enforcing transport when forceV6 is set and the
// observing one otherwise
func NewFromFlag(forceV6 bool, opts ...Option) *Transport {
	if forceV6 {
		return New(model.DialModeForceV6, opts...)
	}
	return New(model.DialModeObserve, opts...)
}

// Client returns the HTTP client backed by this transport
func (t *Transport) Client() *http.Client {
	return t.client
}

// Mode returns the dial mode
func (t *Transport) Mode() model.DialMode {
	return t.dialer.Mode()
}

// LastObservation returns the most recent successful connect
func (t *Transport) LastObservation() model.ConnectionObservation {
	return t.dialer.LastObservation()
}

// Capabilities reports the introspection available from this transport
func (t *Transport) Capabilities() Capabilities {
	return Capabilities{
		EnforcesFamily: t.dialer.Mode() == model.DialModeForceV6,
		PerRequestPeer: true,
	}
}

// TraceConnection returns a context that reports the connection used by a
// request made with it, new or reused
func TraceConnection(ctx context.Context, fn func(model.ConnectionObservation)) context.Context {
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			if info.Conn != nil {
				fn(observe(info.Conn))
			}
		},
	})
}

type roundTripper struct {
	base      http.RoundTripper
	transport *Transport
	userAgent string
	token     string
	tokenHost string
}

func (rt *roundTripper) sendsToken(u *url.URL) bool {
	return rt.token != "" && rt.tokenHost != "" && strings.EqualFold(u.Host, rt.tokenHost)
}

// RoundTrip performs the request and emits one debug line with the URL, the
// family and the peer. The last recorded observation is used when the
// connection itself could not be inspected.
func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	var obs model.ConnectionObservation
	ctx := TraceConnection(req.Context(), func(o model.ConnectionObservation) {
		obs = o
	})

	req = req.Clone(ctx)
	if rt.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", rt.userAgent)
	}
	if rt.sendsToken(req.URL) && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+rt.token)
	}

	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if obs.Family == model.FamilyUnknown {
		obs = rt.transport.LastObservation()
	}
	ctxlog.From(ctx).Debug("request",
		"url", req.URL.String(),
		"family", obs.Family.String(),
		"peer", obs.PeerString(),
		"status", resp.StatusCode,
	)

	return resp, nil
}
