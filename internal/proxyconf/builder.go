package proxyconf

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Builder collects ProxyConfig fields. It is meant to be filled in and
// discarded by a single goroutine.
type Builder struct {
	typ                  Type
	address              Address
	username             string
	passwordProvider     *PasswordProvider
	authHeaderCallback   *HeaderCallback
	nonProxyHostsPattern string
	connectTimeoutMillis int64
}

func NewBuilder() *Builder {
	return &Builder{connectTimeoutMillis: DefaultConnectTimeoutMillis}
}

func (b *Builder) Type(t Type) *Builder {
	b.typ = t
	return b
}

func (b *Builder) Address(addr Address) *Builder {
	b.address = addr
	return b
}

func (b *Builder) Username(username string) *Builder {
	b.username = username
	return b
}

// Password sets the credential source. Without a username it is kept but
// never consulted.
func (b *Builder) Password(p *PasswordProvider) *Builder {
	b.passwordProvider = p
	return b
}

// HTTPHeaders sets the CONNECT header mutator, used by HTTP proxies only.
func (b *Builder) HTTPHeaders(cb *HeaderCallback) *Builder {
	b.authHeaderCallback = cb
	return b
}

func (b *Builder) NonProxyHosts(pattern string) *Builder {
	b.nonProxyHostsPattern = pattern
	return b
}

// ConnectTimeoutMillis sets the handshake timeout. Non-positive values mean
// no timeout.
func (b *Builder) ConnectTimeoutMillis(millis int64) *Builder {
	b.connectTimeoutMillis = millis
	return b
}

// Build validates the accumulated fields. Every problem found is reported;
// use errors.As to pick out a *ConfigurationError or *PatternCompileError.
func (b *Builder) Build() (*ProxyConfig, error) {
	var result *multierror.Error

	switch b.typ {
	case SOCKS4, SOCKS5, HTTP:
	case TypeUnset:
		result = multierror.Append(result, &ConfigurationError{Field: "type", Reason: "not set"})
	default:
		result = multierror.Append(result, &ConfigurationError{Field: "type", Reason: fmt.Sprintf("unknown value %d", b.typ)})
	}

	if b.address.IsZero() {
		result = multierror.Append(result, &ConfigurationError{Field: "address", Reason: "not set"})
	} else if err := b.address.validate(); err != nil {
		result = multierror.Append(result, err)
	}

	predicate, err := FromWildcardedPattern(b.nonProxyHostsPattern)
	if err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &ProxyConfig{
		typ:                  b.typ,
		address:              b.address,
		username:             b.username,
		passwordProvider:     b.passwordProvider,
		authHeaderCallback:   b.authHeaderCallback,
		nonProxyHostsPattern: b.nonProxyHostsPattern,
		predicate:            predicate,
		connectTimeoutMillis: NormalizeConnectTimeout(b.connectTimeoutMillis),
	}, nil
}
