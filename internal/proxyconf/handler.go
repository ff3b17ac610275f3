package proxyconf

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.io/kevin-rd/k8s-tools/go-proxyconf/internal/metrics"
)

// Dialer opens connections to the proxy itself, or to the target when the
// target bypasses the proxy. proxy.Direct satisfies it.
type Dialer interface {
	proxy.Dialer
	proxy.ContextDialer
}

// Handler performs the proxy handshake for a single ProxyConfig. The wire
// protocols are delegated: SOCKS5 to golang.org/x/net/proxy and HTTP
// CONNECT to net/http.Transport.
type Handler struct {
	config               *ProxyConfig
	connectTimeoutMillis int64
	forward              Dialer
}

// NewProxyHandler creates a handler bounded by the normalized connect
// timeout. Credentials and headers are resolved per connection, not here.
func (c *ProxyConfig) NewProxyHandler() *Handler {
	return &Handler{
		config:               c,
		connectTimeoutMillis: NormalizeConnectTimeout(c.connectTimeoutMillis),
		forward:              proxy.Direct,
	}
}

// WithForward returns a copy of h that reaches the network through d.
func (h *Handler) WithForward(d Dialer) *Handler {
	cp := *h
	cp.forward = d
	return &cp
}

func (h *Handler) ConnectTimeoutMillis() int64 { return h.connectTimeoutMillis }

func (h *Handler) Config() *ProxyConfig { return h.config }

// DialContext connects to addr, through the proxy unless the host is
// excluded by the non-proxy hosts pattern.
func (h *Handler) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("proxyconf: bad target %q: %w", addr, err)
	}
	if !h.config.ShouldProxy(host) {
		log.Debugf("bypass proxy for %s", addr)
		return h.forward.DialContext(ctx, network, addr)
	}
	if h.config.typ != SOCKS5 {
		return nil, fmt.Errorf("%w: cannot dial through %s proxy", ErrUnsupportedType, h.config.typ)
	}

	if h.connectTimeoutMillis > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ConnectTimeout(h.connectTimeoutMillis))
		defer cancel()
	}

	start := time.Now()
	conn, err := h.dialSOCKS5(ctx, network, addr)
	metrics.ObserveHandshake(h.config.typ.String(), start, err)
	if err != nil {
		log.Warnf("fail in handshake with %s for %s: %v", h.config.address, addr, err)
		return nil, err
	}
	log.Debugf("connected to %s via %s", addr, h.config.address)
	return conn, nil
}

func (h *Handler) dialSOCKS5(ctx context.Context, network, addr string) (net.Conn, error) {
	var auth *proxy.Auth
	if h.config.username != "" {
		password, err := h.config.passwordProvider.Password(ctx, h.config.username)
		if err != nil {
			return nil, fmt.Errorf("proxyconf: resolve password: %w", err)
		}
		auth = &proxy.Auth{User: h.config.username, Password: password}
	}

	d, err := proxy.SOCKS5("tcp", h.config.address.String(), auth, h.forward)
	if err != nil {
		return nil, fmt.Errorf("proxyconf: socks5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return d.Dial(network, addr)
	}
	return cd.DialContext(ctx, network, addr)
}

// ConfigureTransport points t at the proxy. HTTP proxies use t.Proxy and
// t.GetProxyConnectHeader; SOCKS5 proxies replace t.DialContext.
func (h *Handler) ConfigureTransport(t *http.Transport) error {
	switch h.config.typ {
	case HTTP:
		t.Proxy = h.proxyURL
		t.GetProxyConnectHeader = h.connectHeader
		if t.DialContext == nil && h.connectTimeoutMillis > 0 {
			t.DialContext = (&net.Dialer{Timeout: ConnectTimeout(h.connectTimeoutMillis)}).DialContext
		}
	case SOCKS5:
		t.Proxy = nil
		t.DialContext = h.DialContext
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedType, h.config.typ)
	}
	return nil
}

func (h *Handler) proxyURL(req *http.Request) (*url.URL, error) {
	if !h.config.ShouldProxy(req.URL.Hostname()) {
		return nil, nil
	}
	u := &url.URL{Scheme: "http", Host: h.config.address.String()}
	if h.config.username == "" {
		return u, nil
	}
	if h.config.passwordProvider == nil {
		u.User = url.User(h.config.username)
		return u, nil
	}
	password, err := h.config.passwordProvider.Password(req.Context(), h.config.username)
	if err != nil {
		return nil, fmt.Errorf("proxyconf: resolve password: %w", err)
	}
	u.User = url.UserPassword(h.config.username, password)
	return u, nil
}

func (h *Handler) connectHeader(_ context.Context, _ *url.URL, _ string) (http.Header, error) {
	hdr := make(http.Header)
	h.config.authHeaderCallback.Apply(hdr)
	return hdr, nil
}
