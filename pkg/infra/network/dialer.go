package network

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"runtime/debug"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/msipv6/pkg/domain/model"
	"github.com/m-mizutani/msipv6/pkg/domain/types"
)

// Resolver resolves a host name restricted to a network ("ip", "ip4", "ip6").
// *net.Resolver satisfies it.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// DialFunc opens a raw stream connection
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// ConnectHook is called after every successful connect. Its errors and
// panics are logged at debug level and never abort the connection.
type ConnectHook func(conn net.Conn, peer netip.AddrPort) error

// Dialer resolves and connects according to a fixed DialMode and records the
// last observed connection
type Dialer struct {
	mode     model.DialMode
	resolver Resolver
	dial     DialFunc
	timeout  time.Duration
	hook     ConnectHook

	last atomic.Pointer[model.ConnectionObservation]
}

// DialerOption is a functional option for Dialer
type DialerOption func(*Dialer)

// WithResolver replaces the DNS resolver used by DialModeForceV6
func WithResolver(r Resolver) DialerOption {
	return func(d *Dialer) {
		d.resolver = r
	}
}

// WithDialFunc replaces the function that opens raw connections
func WithDialFunc(fn DialFunc) DialerOption {
	return func(d *Dialer) {
		d.dial = fn
	}
}

// WithConnectTimeout bounds resolution plus connect. Zero means no bound.
func WithConnectTimeout(timeout time.Duration) DialerOption {
	return func(d *Dialer) {
		d.timeout = timeout
	}
}

// WithConnectHook sets the connect-observed callback
func WithConnectHook(hook ConnectHook) DialerOption {
	return func(d *Dialer) {
		d.hook = hook
	}
}

// NewDialer creates a Dialer. The mode cannot be changed afterwards.
func NewDialer(mode model.DialMode, opts ...DialerOption) *Dialer {
	nd := &net.Dialer{KeepAlive: 30 * time.Second}
	d := &Dialer{
		mode:     mode,
		resolver: net.DefaultResolver,
		dial:     nd.DialContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mode returns the dial mode
func (d *Dialer) Mode() model.DialMode {
	return d.mode
}

// LastObservation returns the most recent successful connect, or the zero
// value if none happened yet
func (d *Dialer) LastObservation() model.ConnectionObservation {
	if obs := d.last.Load(); obs != nil {
		return *obs
	}
	return model.ConnectionObservation{}
}

// DialContext has the signature expected by http.Transport
func (d *Dialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid dial address", goerr.V("address", address))
	}
	conn, _, err := d.Connect(ctx, host, port)
	return conn, err
}

// Connect resolves host and opens a connection to host:port. In
// DialModeForceV6 only AAAA records are considered and the first one is used;
// there is no fallback to IPv4.
func (d *Dialer) Connect(ctx context.Context, host, port string) (net.Conn, model.ConnectionObservation, error) {
	dialCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var (
		conn net.Conn
		err  error
	)
	switch d.mode {
	case model.DialModeForceV6:
		conn, err = d.connectV6(dialCtx, host, port)
	default:
		conn, err = d.dial(dialCtx, "tcp", net.JoinHostPort(host, port))
		if err != nil {
			err = classifyDialError(ctx, err, host, port)
		}
	}
	if err != nil {
		return nil, model.ConnectionObservation{}, err
	}

	obs := observe(conn)
	d.last.Store(&obs)
	d.notify(ctx, conn, obs.Peer)

	return conn, obs, nil
}

func (d *Dialer) connectV6(ctx context.Context, host, port string) (net.Conn, error) {
	addr, err := d.resolveV6(ctx, host)
	if err != nil {
		return nil, err
	}

	conn, err := d.dial(ctx, "tcp6", net.JoinHostPort(addr.String(), port))
	if err != nil {
		return nil, classifyDialError(ctx, err, host, port)
	}
	return conn, nil
}

func (d *Dialer) resolveV6(ctx context.Context, host string) (netip.Addr, error) {
	if literal, err := netip.ParseAddr(host); err == nil {
		if model.FamilyOf(literal) != model.FamilyIPv6 {
			return netip.Addr{}, goerr.New("address literal is not IPv6",
				goerr.V("host", host),
				goerr.T(types.ErrTagNoAddressForFamily))
		}
		return literal, nil
	}

	addrs, err := d.resolver.LookupNetIP(ctx, "ip6", host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return netip.Addr{}, goerr.Wrap(err, "no IPv6 address found",
				goerr.V("host", host),
				goerr.T(types.ErrTagNoAddressForFamily))
		}
		return netip.Addr{}, classifyDialError(ctx, err, host, "")
	}

	for _, addr := range addrs {
		if model.FamilyOf(addr) == model.FamilyIPv6 {
			return addr, nil
		}
	}

	return netip.Addr{}, goerr.New("no IPv6 address found",
		goerr.V("host", host),
		goerr.V("resolved", len(addrs)),
		goerr.T(types.ErrTagNoAddressForFamily))
}

func (d *Dialer) notify(ctx context.Context, conn net.Conn, peer netip.AddrPort) {
	if d.hook == nil {
		return
	}

	logger := ctxlog.From(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Debug("connect hook panicked",
				"recover", r,
				"stack", string(debug.Stack()))
		}
	}()

	if err := d.hook(conn, peer); err != nil {
		logger.Debug("connect hook failed", "error", err, "peer", peer.String())
	}
}

// observe reads back the peer address of a connected socket
func observe(conn net.Conn) model.ConnectionObservation {
	peer := peerOf(conn.RemoteAddr())
	return model.ConnectionObservation{
		Family: model.FamilyOf(peer.Addr()),
		Peer:   peer,
	}
}

func peerOf(addr net.Addr) netip.AddrPort {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return a.AddrPort()
	case nil:
		return netip.AddrPort{}
	default:
		ap, err := netip.ParseAddrPort(a.String())
		if err != nil {
			return netip.AddrPort{}
		}
		return ap
	}
}

// classifyDialError tags a connect failure without reinterpreting its cause
func classifyDialError(ctx context.Context, err error, host, port string) error {
	opts := []goerr.Option{goerr.V("host", host)}
	if port != "" {
		opts = append(opts, goerr.V("port", port))
	}

	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		opts = append(opts, goerr.T(types.ErrTagCanceled))
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		opts = append(opts, goerr.T(types.ErrTagConnectTimeout))
	case errors.Is(err, syscall.ECONNREFUSED):
		opts = append(opts, goerr.T(types.ErrTagConnectRefused))
	case errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		opts = append(opts, goerr.T(types.ErrTagNetworkUnreachable))
	}

	return goerr.Wrap(err, "failed to connect", opts...)
}
