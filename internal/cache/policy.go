package cache

import (
	"strings"
	"time"
)

// DefaultTTL applies to keys no rule matches.
const DefaultTTL = 10 * time.Minute

// Rule assigns a TTL to every key in a namespace. A key belongs to the
// namespace "budgets" when it equals it or starts with "budgets:".
type Rule struct {
	Prefix string
	TTL    time.Duration
}

// Policy resolves a TTL per key. The longest matching prefix wins.
type Policy struct {
	Default time.Duration
	Rules   []Rule
}

// NewPolicy builds a policy; a non-positive default falls back to DefaultTTL.
func NewPolicy(defaultTTL time.Duration, rules ...Rule) Policy {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return Policy{Default: defaultTTL, Rules: rules}
}

// With returns a copy of p with the rule for prefix set to ttl.
func (p Policy) With(prefix string, ttl time.Duration) Policy {
	rules := make([]Rule, 0, len(p.Rules)+1)
	for _, r := range p.Rules {
		if r.Prefix != prefix {
			rules = append(rules, r)
		}
	}
	rules = append(rules, Rule{Prefix: prefix, TTL: ttl})
	return Policy{Default: p.Default, Rules: rules}
}

// TTL returns the validity window for key.
func (p Policy) TTL(key string) time.Duration {
	best := -1
	ttl := p.Default
	for _, r := range p.Rules {
		if !inNamespace(key, r.Prefix) {
			continue
		}
		if len(r.Prefix) > best {
			best = len(r.Prefix)
			ttl = r.TTL
		}
	}
	return ttl
}

func inNamespace(key, prefix string) bool {
	if key == prefix {
		return true
	}
	return strings.HasPrefix(key, prefix+":")
}

// InNamespace reports whether key equals prefix or is nested under it.
func InNamespace(prefix string) func(key string) bool {
	return func(key string) bool {
		return inNamespace(key, prefix)
	}
}
