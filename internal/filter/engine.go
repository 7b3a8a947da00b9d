// Package filter decides which discovered feed entries are worth resolving.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"reelpress/internal/model"
)

// Entry is the text of a feed entry a rule can look at.
type Entry struct {
	Title       string
	Description string
}

type rule struct {
	include bool
	scope   model.FilterScope
	word    string
	re      *regexp.Regexp
}

// Set is a compiled list of filter rules. The zero value allows everything.
type Set struct {
	rules       []rule
	hasIncludes bool
}

// Compile validates the filters and prepares them for matching.
func Compile(filters []model.Filter) (*Set, error) {
	s := &Set{}
	for i, f := range filters {
		if strings.TrimSpace(f.Value) == "" {
			return nil, fmt.Errorf("filter %d: empty value", i)
		}
		r := rule{scope: f.Scope}
		switch f.Scope {
		case model.ScopeTitle, model.ScopeContent, model.ScopeAll:
		case "":
			r.scope = model.ScopeAll
		default:
			return nil, fmt.Errorf("filter %d: unknown scope %q", i, f.Scope)
		}
		switch f.Kind {
		case model.FilterInclude, model.FilterExclude:
			r.word = strings.ToLower(f.Value)
		case model.FilterIncludeRe, model.FilterExcludeRe:
			re, err := regexp.Compile("(?i)" + f.Value)
			if err != nil {
				return nil, fmt.Errorf("filter %d: invalid regex: %w", i, err)
			}
			r.re = re
		default:
			return nil, fmt.Errorf("filter %d: unknown kind %q", i, f.Kind)
		}
		r.include = f.Kind == model.FilterInclude || f.Kind == model.FilterIncludeRe
		if r.include {
			s.hasIncludes = true
		}
		s.rules = append(s.rules, r)
	}
	return s, nil
}

// Allows reports whether an entry passes the set.
// Include rules use OR logic (at least one must match).
// Exclude rules use AND logic (none must match).
func (s *Set) Allows(e Entry) bool {
	if s == nil || len(s.rules) == 0 {
		return true
	}

	anyInclude := false
	for _, r := range s.rules {
		if !r.matches(e) {
			continue
		}
		if !r.include {
			return false
		}
		anyInclude = true
	}
	return !s.hasIncludes || anyInclude
}

// Len returns the number of compiled rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

func (r rule) matches(e Entry) bool {
	text := textForScope(e, r.scope)
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(text, r.word)
}

func textForScope(e Entry, scope model.FilterScope) string {
	switch scope {
	case model.ScopeTitle:
		return strings.ToLower(e.Title)
	case model.ScopeContent:
		return strings.ToLower(e.Description)
	default:
		return strings.ToLower(e.Title + " " + e.Description)
	}
}
