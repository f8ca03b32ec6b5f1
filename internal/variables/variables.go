// Package variables builds the flat name-to-value map that fills template
// placeholders from an ordered list of sources.
package variables

import "sort"

// Well-known source names, lowest precedence first in the default policy.
const (
	SourceProfile = "profile"
	SourcePosting = "posting"
	SourceCustom  = "custom"
)

// Map is a resolved set of variables. Keys are literal and case-sensitive.
type Map map[string]string

// Source is one named provider of variable values.
type Source struct {
	Name   string
	Values map[string]string
}

// Build merges sources in order. A later source overwrites an earlier one
// for the same key; empty values are treated as absent and never overwrite.
func Build(sources ...Source) Map {
	out := Map{}
	for _, src := range sources {
		for k, v := range src.Values {
			if k == "" || v == "" {
				continue
			}
			out[k] = v
		}
	}
	return out
}

// Keys returns the map's keys in sorted order.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Policy orders sources by name before they are merged.
type Policy struct {
	// Precedence lists source names from lowest to highest priority.
	Precedence []string
}

// DefaultPolicy lets request-level custom values win over posting metadata,
// which wins over the profile.
func DefaultPolicy() Policy {
	return Policy{Precedence: []string{SourceProfile, SourcePosting, SourceCustom}}
}

// Order returns sources sorted by the policy. Sources the policy does not
// name keep their relative order and rank below every named source.
func (p Policy) Order(sources []Source) []Source {
	rank := make(map[string]int, len(p.Precedence))
	for i, name := range p.Precedence {
		if _, dup := rank[name]; !dup {
			rank[name] = i + 1
		}
	}
	out := append([]Source(nil), sources...)
	sort.SliceStable(out, func(i, j int) bool {
		return rank[out[i].Name] < rank[out[j].Name]
	})
	return out
}

// Resolve orders sources by the policy and merges them.
func (p Policy) Resolve(sources ...Source) Map {
	return Build(p.Order(sources)...)
}
