package compose

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Providers
// =============================================================================

// Provider supplies values for variable references.
type Provider interface {
	Lookup(name string) (string, bool)
}

// MapProvider is a Provider backed by a plain map.
type MapProvider map[string]string

// Lookup implements Provider.
func (m MapProvider) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// ProviderFunc adapts a lookup function such as os.LookupEnv to Provider.
type ProviderFunc func(name string) (string, bool)

// Lookup implements Provider.
func (f ProviderFunc) Lookup(name string) (string, bool) {
	return f(name)
}

// EnvironProvider builds a MapProvider from KEY=VALUE pairs as returned by
// os.Environ. Entries without '=' are ignored.
func EnvironProvider(environ []string) MapProvider {
	m := make(MapProvider, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m
}

// =============================================================================
// Substituter
// =============================================================================

var varPattern = regexp.MustCompile(
	`\$(?:(?P<escaped>\$)|(?P<named>[_a-zA-Z][_a-zA-Z0-9]*)|\{(?P<braced>[_a-zA-Z][_a-zA-Z0-9]*)(?:(?P<empty>:)?(?:-(?P<default>[^}]*)|\?(?P<err>[^}]*)))?\})`,
)

var (
	groupEscaped = varPattern.SubexpIndex("escaped")
	groupNamed   = varPattern.SubexpIndex("named")
	groupBraced  = varPattern.SubexpIndex("braced")
	groupEmpty   = varPattern.SubexpIndex("empty")
	groupDefault = varPattern.SubexpIndex("default")
	groupErr     = varPattern.SubexpIndex("err")
)

// Substituter interpolates variable references using an ordered list of
// providers. The first provider returning a non-empty value wins.
type Substituter struct {
	providers []Provider
}

// NewSubstituter creates a Substituter over the given providers.
func NewSubstituter(providers ...Provider) *Substituter {
	return &Substituter{providers: providers}
}

// lookup returns the resolved value and whether any provider knows the name.
func (s *Substituter) lookup(name string) (string, bool) {
	set := false
	for _, p := range s.providers {
		v, ok := p.Lookup(name)
		if !ok {
			continue
		}
		set = true
		if v != "" {
			return v, true
		}
	}
	return "", set
}

// String substitutes every variable reference in value. Replacement text is
// never re-scanned.
func (s *Substituter) String(value string) (string, error) {
	matches := varPattern.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(value[last:m[0]])
		last = m[1]

		group := func(i int) (string, bool) {
			if m[2*i] < 0 {
				return "", false
			}
			return value[m[2*i]:m[2*i+1]], true
		}

		if _, ok := group(groupEscaped); ok {
			b.WriteByte('$')
			continue
		}

		name, ok := group(groupNamed)
		if !ok {
			name, _ = group(groupBraced)
		}
		resolved, set := s.lookup(name)
		if _, colon := group(groupEmpty); colon && resolved == "" {
			set = false
		}
		if set {
			b.WriteString(resolved)
			continue
		}
		if msg, isErr := group(groupErr); isErr {
			if msg == "" {
				msg = fmt.Sprintf("required variable %s is missing a value", name)
			}
			return "", NewConfigError("", msg, ErrMissingVariable)
		}
		def, _ := group(groupDefault)
		b.WriteString(def)
	}
	b.WriteString(value[last:])
	return b.String(), nil
}

// Node returns a substituted deep copy of n. String scalars are interpolated,
// mapping keys are left untouched, and aliases are replaced by a substituted
// copy of the anchored node.
func (s *Substituter) Node(n *yaml.Node) (*yaml.Node, error) {
	return s.node(n, "")
}

func (s *Substituter) node(n *yaml.Node, path string) (*yaml.Node, error) {
	if n == nil {
		return nil, nil
	}
	out := *n

	switch n.Kind {
	case yaml.DocumentNode:
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			sub, err := s.node(c, path)
			if err != nil {
				return nil, err
			}
			out.Content[i] = sub
		}

	case yaml.SequenceNode:
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			sub, err := s.node(c, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out.Content[i] = sub
		}

	case yaml.MappingNode:
		out.Content = make([]*yaml.Node, len(n.Content))
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := *n.Content[i]
			out.Content[i] = &key
			sub, err := s.node(n.Content[i+1], fieldPath(path, key.Value))
			if err != nil {
				return nil, err
			}
			out.Content[i+1] = sub
		}

	case yaml.AliasNode:
		return s.node(n.Alias, path)

	case yaml.ScalarNode:
		if n.ShortTag() != "!!str" {
			return &out, nil
		}
		v, err := s.String(n.Value)
		if err != nil {
			if ce, ok := err.(*ConfigError); ok {
				ce.Field = path
			}
			return nil, err
		}
		if v != n.Value {
			out.Value = v
			retag(&out)
		}
	}

	return &out, nil
}

// retag lets plain scalars resolve their type again after interpolation so
// "${REPLICAS}" can become an int. Empty results stay strings.
func retag(n *yaml.Node) {
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle|yaml.LiteralStyle|yaml.FoldedStyle) != 0 || n.Value == "" {
		n.Tag = "!!str"
		return
	}
	n.Tag = ""
}
