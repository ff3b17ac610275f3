package proxyconf

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.io/kevin-rd/k8s-tools/go-proxyconf/internal/metrics"
)

// ProxyConfig describes how outbound connections are routed through a proxy.
// It is immutable once built and may be shared by any number of goroutines.
type ProxyConfig struct {
	typ                  Type
	address              Address
	username             string
	passwordProvider     *PasswordProvider
	authHeaderCallback   *HeaderCallback
	nonProxyHostsPattern string
	predicate            *HostMatchPredicate
	connectTimeoutMillis int64
}

func (c *ProxyConfig) Type() Type { return c.typ }
func (c *ProxyConfig) Address() Address { return c.address }
func (c *ProxyConfig) Username() string { return c.username }
func (c *ProxyConfig) PasswordProvider() *PasswordProvider { return c.passwordProvider }
func (c *ProxyConfig) AuthHeaderCallback() *HeaderCallback { return c.authHeaderCallback }
func (c *ProxyConfig) NonProxyHosts() string { return c.nonProxyHostsPattern }
func (c *ProxyConfig) NonProxyHostsPredicate() *HostMatchPredicate { return c.predicate }

// ConnectTimeoutMillis is the normalized handshake timeout; 0 means none.
func (c *ProxyConfig) ConnectTimeoutMillis() int64 { return c.connectTimeoutMillis }

// ShouldProxy reports whether a connection to host goes through the proxy.
func (c *ProxyConfig) ShouldProxy(host string) bool {
	ok := c.predicate.Test(host)
	route := "direct"
	if ok {
		route = "proxy"
	}
	metrics.RouteCounter.WithLabelValues(c.typ.String(), route).Inc()
	return ok
}

// Equal compares every field. Capabilities compare by identity.
func (c *ProxyConfig) Equal(o *ProxyConfig) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.typ == o.typ &&
		c.address.Equal(o.address) &&
		c.username == o.username &&
		c.passwordProvider == o.passwordProvider &&
		c.authHeaderCallback == o.authHeaderCallback &&
		c.nonProxyHostsPattern == o.nonProxyHostsPattern &&
		c.connectTimeoutMillis == o.connectTimeoutMillis
}

// Hash is consistent with Equal.
func (c *ProxyConfig) Hash() uint64 {
	if c == nil {
		return 0
	}
	d := xxhash.New()
	var buf [8]byte
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	writeString := func(s string) {
		writeUint(uint64(len(s)))
		_, _ = d.WriteString(s)
	}

	writeUint(uint64(c.typ))
	writeString(c.address.canonical())
	writeString(c.username)
	writeUint(c.passwordProvider.identity())
	writeUint(c.authHeaderCallback.identity())
	writeString(c.nonProxyHostsPattern)
	writeUint(uint64(c.connectTimeoutMillis))
	return d.Sum64()
}

func (c *ProxyConfig) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s://", strings.ToLower(c.typ.String()))
	if c.username != "" {
		b.WriteString(c.username)
		if c.passwordProvider != nil {
			b.WriteString(":xxxxx")
		}
		b.WriteByte('@')
	}
	b.WriteString(c.address.String())
	if c.nonProxyHostsPattern != "" {
		fmt.Fprintf(&b, " nonProxyHosts=%q", c.nonProxyHostsPattern)
	}
	fmt.Fprintf(&b, " connectTimeoutMillis=%d", c.connectTimeoutMillis)
	return b.String()
}
