package proxyconf

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleWildcardInNonProxyHosts(t *testing.T) {
	pred, err := FromWildcardedPattern("*.foo.com")
	require.NoError(t, err)
	assert.True(t, pred.Test("some.other.com"), "should proxy")
	assert.False(t, pred.Test("some.foo.com"), "should not proxy")
}

func TestHostMatchPredicate(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		host    string
		proxy   bool
	}{
		{"empty pattern proxies everything", "", "localhost", true},
		{"blank pattern proxies everything", "   ", "localhost", true},
		{"exact match bypasses", "localhost", "localhost", false},
		{"exact no match", "localhost", "localhost.example.com", true},
		{"dot is literal", "foo.com", "fooxcom", true},
		{"wildcard subdomain", "*.foo.com", "a.b.foo.com", false},
		{"wildcard needs the dot", "*.foo.com", "foo.com", true},
		{"wildcard is anchored", "*.foo.com", "some.foo.com.evil.net", true},
		{"case insensitive", "*.foo.com", "SOME.Foo.COM", false},
		{"trailing root dot", "*.foo.com", "some.foo.com.", false},
		{"trailing wildcard", "foo.com*", "foo.company", false},
		{"middle wildcard", "api.*.internal", "api.eu.internal", false},
		{"star alone", "*", "anything", false},
		{"pipe separated first", "localhost|127.*", "localhost", false},
		{"pipe separated second", "localhost|127.*", "127.0.0.1", false},
		{"pipe separated miss", "localhost|127.*", "example.com", true},
		{"comma separated", "localhost, *.internal", "db.internal", false},
		{"empty host proxies", "*", "", true},
		{"star run collapses", "**.foo.com", "a.foo.com", false},
		{"segments in order", "a*b*c", "acbc", false},
		{"segments out of order", "a*b*c", "acb", true},
		{"repeated segment", "*a*a", "aa", false},
		{"repeated segment needs two", "*a*a", "a", true},
		{"overlapping segments", "a*bc*bc", "abcbc", false},
		{"last segment after middle", "*ab*b", "ab", true},
		{"regex metachars literal", "a+b*(c)", "a+bxx(c)", false},
		{"newline in host", "*.foo.com", "x\n.foo.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := FromWildcardedPattern(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.proxy, pred.Test(tt.host))
		})
	}
}

func TestHostMatchPredicateErrors(t *testing.T) {
	for _, pattern := range []string{
		"a||b",
		"|localhost",
		"localhost,",
		"local host",
		"http://foo.com",
		"foo.com/path",
		"a, ,b",
	} {
		t.Run(pattern, func(t *testing.T) {
			pred, err := FromWildcardedPattern(pattern)
			assert.Nil(t, pred)
			var perr *PatternCompileError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, pattern, perr.Pattern)
		})
	}
}

func TestHostMatchPredicateNil(t *testing.T) {
	var pred *HostMatchPredicate
	assert.True(t, pred.Test("localhost"))
	assert.True(t, pred.TestAddress(Unresolved("localhost", 80)))
	assert.Equal(t, "", pred.Pattern())
}

func TestHostMatchPredicateTestAddress(t *testing.T) {
	pred, err := FromWildcardedPattern("127.0.0.1|*.internal")
	require.NoError(t, err)

	assert.False(t, pred.TestAddress(Resolved(netip.MustParseAddr("127.0.0.1"), 80)))
	assert.False(t, pred.TestAddress(Unresolved("db.internal", 5432)))
	assert.True(t, pred.TestAddress(Resolved(netip.MustParseAddr("10.1.2.3"), 80)))
	assert.Equal(t, "127.0.0.1|*.internal", pred.Pattern())
}

func TestHostMatchPredicateManyStarsLongHost(t *testing.T) {
	pred, err := FromWildcardedPattern("*a*a*a*a*a*a*a*b")
	require.NoError(t, err)

	for _, n := range []int{40, 120, 240, 2000} {
		host := strings.Repeat("a", n)
		start := time.Now()
		assert.True(t, pred.Test(host), "no b, must proxy")
		assert.False(t, pred.Test(host+"b"), "must bypass")
		assert.Less(t, time.Since(start), matchTimeout, "host of %d chars", n)
	}
}
