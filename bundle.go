package weld

import (
	"shanhu.io/misc/errcode"
)

// Bundle is a set of rules grouped under one name. A bundle has no build
// action; it just aggregates.
type Bundle struct {
	Name string
	Deps []string
}

// ExpandBundle expands a bundle into a single zero-action rule granting
// "source".
func ExpandBundle(cfg *Config, r *Bundle) ([]*Rule, error) {
	if r.Name == "" {
		return nil, errcode.InvalidArgf("bundle has no name")
	}
	rule := &Rule{
		Name:     r.Name,
		Ins:      append([]string{}, r.Deps...),
		NoAction: true,
		Provides: map[string]string{CapSource: r.Name},
	}
	return []*Rule{rule}, nil
}
