// Package monorepo tracks partial multi-package releases and decides when a
// release group is complete enough to act on.
package monorepo

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// GroupDefinition names one set of dependencies that publish together.
type GroupDefinition struct {
	Name    string   `yaml:"name"`
	Members []string `yaml:"members"`
}

// groupsFile is the parsed YAML structure:
// groups: [{name, members: [...]}]
type groupsFile struct {
	Groups []GroupDefinition `yaml:"groups"`
}

// LoadGroupsFile parses a YAML group-definition file from the given path.
// Returns nil if path is empty (no group file configured).
func LoadGroupsFile(path string) ([]GroupDefinition, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read groups file: %w", err)
	}

	var gf groupsFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, fmt.Errorf("parse groups file: %w", err)
	}

	if err := validateGroups(gf.Groups); err != nil {
		return nil, err
	}

	return gf.Groups, nil
}

func validateGroups(groups []GroupDefinition) error {
	seenGroup := make(map[string]bool)
	seenMember := make(map[string]string)

	for i, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("group %d: name is required", i)
		}
		if seenGroup[g.Name] {
			return fmt.Errorf("group %q: duplicate name", g.Name)
		}
		seenGroup[g.Name] = true

		if len(g.Members) == 0 {
			return fmt.Errorf("group %q: members is required", g.Name)
		}
		for _, member := range g.Members {
			if member == "" {
				return fmt.Errorf("group %q: empty member name", g.Name)
			}
			if owner, ok := seenMember[member]; ok {
				return fmt.Errorf("group %q: member %q already belongs to group %q", g.Name, member, owner)
			}
			seenMember[member] = g.Name
		}
	}

	return nil
}

// Resolver answers group-membership questions for dependency names.
type Resolver interface {
	// IsMember reports whether the dependency publishes as part of a group.
	IsMember(name string) bool
	// Group returns all members of the dependency's group, sorted. A
	// dependency in no group resolves to just itself.
	Group(name string) []string
}

// StaticResolver resolves membership from loaded group definitions.
type StaticResolver struct {
	memberToGroup map[string][]string
}

// NewStaticResolver builds a resolver from group definitions.
func NewStaticResolver(groups []GroupDefinition) (*StaticResolver, error) {
	if err := validateGroups(groups); err != nil {
		return nil, err
	}
	memberToGroup := make(map[string][]string)
	for _, g := range groups {
		members := append([]string(nil), g.Members...)
		sort.Strings(members)
		for _, member := range g.Members {
			memberToGroup[member] = members
		}
	}
	return &StaticResolver{memberToGroup: memberToGroup}, nil
}

// IsMember implements Resolver.
func (r *StaticResolver) IsMember(name string) bool {
	_, ok := r.memberToGroup[name]
	return ok
}

// Group implements Resolver.
func (r *StaticResolver) Group(name string) []string {
	if members, ok := r.memberToGroup[name]; ok {
		return append([]string(nil), members...)
	}
	return []string{name}
}
