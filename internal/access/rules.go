// internal/access/rules.go
package access

import (
	"fmt"
	"strings"
)

// Policy is the access policy attached to a rule
type Policy string

const (
	// Public allows every request, authenticated or not
	Public Policy = "PUBLIC"

	// Authenticated requires a request identity
	Authenticated Policy = "AUTHENTICATED"
)

// ParsePolicy converts a configuration string into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(Public):
		return Public, nil
	case string(Authenticated):
		return Authenticated, nil
	default:
		return "", fmt.Errorf("unknown access policy: %q", s)
	}
}

// Rule binds a path pattern to an access policy
type Rule struct {
	// Name is a unique identifier for the rule, used in logs and metrics
	Name string

	// Pattern is the URL path this rule applies to
	Pattern string

	// MatchPrefix indicates whether to match the path prefix instead of exact match
	MatchPrefix bool

	// Policy is the access policy for matched requests
	Policy Policy
}

// Matches reports whether the rule applies to the given request path
func (r Rule) Matches(path string) bool {
	if r.MatchPrefix {
		return strings.HasPrefix(path, r.Pattern)
	}
	return path == r.Pattern
}

// Ruleset is an ordered list of rules evaluated first-match-wins.
// Requests matching no rule fall through to the Authenticated policy:
// every exemption must be stated, none is inferred.
type Ruleset struct {
	rules []Rule
}

// DefaultRuleName is reported for requests matching no configured rule
const DefaultRuleName = "default"

// NewRuleset creates a ruleset from an ordered rule list
func NewRuleset(rules []Rule) (*Ruleset, error) {
	for i, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d (%q) has an empty pattern", i, r.Name)
		}
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("rule %d (%q) pattern must start with '/': %q", i, r.Name, r.Pattern)
		}
		if r.Policy != Public && r.Policy != Authenticated {
			return nil, fmt.Errorf("rule %d (%q) has unknown policy %q", i, r.Name, r.Policy)
		}
	}
	return &Ruleset{rules: rules}, nil
}

// Match returns the first rule matching the path, in declaration order.
// The returned rule is the implicit default (Authenticated) when nothing matches.
func (rs *Ruleset) Match(path string) Rule {
	for _, r := range rs.rules {
		if r.Matches(path) {
			return r
		}
	}
	return Rule{Name: DefaultRuleName, Pattern: path, Policy: Authenticated}
}

// PolicyFor returns the effective policy for a path
func (rs *Ruleset) PolicyFor(path string) Policy {
	return rs.Match(path).Policy
}

// Rules returns the configured rules in declaration order
func (rs *Ruleset) Rules() []Rule {
	return rs.rules
}
