package proxyconf

import (
	"errors"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	log "github.com/sirupsen/logrus"
)

// matchTimeout bounds a single Test. A match that times out counts as no
// match, so the host is proxied.
const matchTimeout = 100 * time.Millisecond

// HostMatchPredicate decides whether a destination goes through the proxy.
// Test returns false for hosts matching the non-proxy pattern and true for
// everything else. The zero value and a nil predicate proxy every host.
type HostMatchPredicate struct {
	pattern string
	regex   *regexp2.Regexp
}

// FromWildcardedPattern compiles a non-proxy hosts pattern such as
// "localhost|*.foo.com". Entries are separated by '|' or ','; '*' matches
// any sequence of characters and everything else is literal. Matching is
// anchored and case-insensitive. Runs of '*' collapse and every star but
// the last commits to the earliest match, so Test is linear in the host.
func FromWildcardedPattern(pattern string) (*HostMatchPredicate, error) {
	if strings.TrimSpace(pattern) == "" {
		return &HostMatchPredicate{pattern: pattern}, nil
	}

	entries := strings.FieldsFunc(pattern, func(r rune) bool { return r == '|' || r == ',' })
	if strings.Count(pattern, "|")+strings.Count(pattern, ",")+1 != len(entries) {
		return nil, &PatternCompileError{Pattern: pattern, Err: errors.New("empty entry")}
	}

	alts := make([]string, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if err := validateEntry(entry); err != nil {
			return nil, &PatternCompileError{Pattern: pattern, Entry: entry, Err: err}
		}
		alts = append(alts, wildcardToRegex(entry))
	}

	expr := "^(?:" + strings.Join(alts, "|") + ")$"
	re, err := regexp2.Compile(expr, regexp2.IgnoreCase|regexp2.Singleline)
	if err != nil {
		return nil, &PatternCompileError{Pattern: pattern, Err: err}
	}
	re.MatchTimeout = matchTimeout
	log.Debugf("compiled non-proxy hosts %q as %s", pattern, expr)

	return &HostMatchPredicate{pattern: pattern, regex: re}, nil
}

func validateEntry(entry string) error {
	switch {
	case entry == "":
		return errors.New("empty entry")
	case strings.ContainsAny(entry, " \t\r\n"):
		return errors.New("entry must not contain whitespace")
	case strings.Contains(entry, "://"):
		return errors.New("entry must not contain a scheme")
	case strings.Contains(entry, "/"):
		return errors.New("entry must not contain a path")
	}
	return nil
}

// wildcardToRegex turns "a*b*c" into a(?>.*?b).*c. Committing each middle
// segment to its leftmost occurrence is always safe for '*'-only globs and
// keeps the engine from backtracking across stars.
func wildcardToRegex(entry string) string {
	parts := strings.Split(entry, "*")
	if len(parts) == 1 {
		return regexp2.Escape(entry)
	}

	var b strings.Builder
	b.WriteString(regexp2.Escape(parts[0]))
	for _, mid := range parts[1 : len(parts)-1] {
		if mid == "" {
			continue
		}
		b.WriteString("(?>.*?")
		b.WriteString(regexp2.Escape(mid))
		b.WriteString(")")
	}
	b.WriteString(".*")
	b.WriteString(regexp2.Escape(parts[len(parts)-1]))
	return b.String()
}

func (p *HostMatchPredicate) Pattern() string {
	if p == nil {
		return ""
	}
	return p.pattern
}

// Test reports whether host should be proxied.
func (p *HostMatchPredicate) Test(host string) bool {
	if p == nil || p.regex == nil {
		return true
	}
	return !p.matches(host)
}

// TestAddress also checks the IP text of a resolved address.
func (p *HostMatchPredicate) TestAddress(addr Address) bool {
	if p == nil || p.regex == nil {
		return true
	}
	if p.matches(addr.Host()) {
		return false
	}
	if addr.IsResolved() && p.matches(addr.IP().String()) {
		return false
	}
	return true
}

func (p *HostMatchPredicate) matches(host string) bool {
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return false
	}
	ok, err := p.regex.MatchString(host)
	if err != nil {
		log.Warnf("non-proxy hosts match on %q failed: %v", host, err)
		return false
	}
	return ok
}
