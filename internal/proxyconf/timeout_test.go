package proxyconf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeConnectTimeout(t *testing.T) {
	assert.Equal(t, int64(0), NormalizeConnectTimeout(0))
	assert.Equal(t, int64(0), NormalizeConnectTimeout(-1))
	assert.Equal(t, int64(100), NormalizeConnectTimeout(100))
	assert.Equal(t, time.Duration(0), ConnectTimeout(-10))
	assert.Equal(t, 250*time.Millisecond, ConnectTimeout(250))
}

func TestConnectTimeoutWithNonPositiveValue(t *testing.T) {
	assert.Equal(t, int64(0), createConnectTimeoutProxy(t, 0).NewProxyHandler().ConnectTimeoutMillis())
	assert.Equal(t, int64(0), createConnectTimeoutProxy(t, -1).NewProxyHandler().ConnectTimeoutMillis())
	assert.Equal(t, int64(100), createConnectTimeoutProxy(t, 100).NewProxyHandler().ConnectTimeoutMillis())
}

func TestConnectTimeoutWithDefault(t *testing.T) {
	cfg, err := NewBuilder().Type(SOCKS5).Address(address1).Build()
	if assert.NoError(t, err) {
		assert.Equal(t, int64(10000), cfg.ConnectTimeoutMillis())
	}
}
