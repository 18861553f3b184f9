package compose

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Service Normalization
// =============================================================================

// listKeys are service keys whose single-string form is rewritten to a
// one-element list before files are merged.
var listKeys = []string{"env_file", "security_opt", "volumes"}

// mapKeys are service keys whose KEY=VALUE list form is rewritten to a
// mapping before files are merged.
var mapKeys = []string{"environment", "labels"}

// normalizeServices rewrites the short forms of every service in a services
// mapping so that two files spelling the same key differently still merge.
func normalizeServices(services *yaml.Node) {
	if services == nil || services.Kind != yaml.MappingNode {
		return
	}
	for i := 1; i < len(services.Content); i += 2 {
		normalizeServiceNode(services.Content[i])
	}
}

func normalizeServiceNode(svc *yaml.Node) {
	if svc == nil || svc.Kind != yaml.MappingNode {
		return
	}
	for _, key := range listKeys {
		if v := lookupKey(svc, key); v != nil && v.Kind == yaml.ScalarNode && v.ShortTag() == "!!str" {
			item := *v
			*v = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Content: []*yaml.Node{&item}}
		}
	}
	for _, key := range mapKeys {
		if v := lookupKey(svc, key); v != nil && v.Kind == yaml.SequenceNode {
			*v = *pairsToMapping(v)
		}
	}
	if v := lookupKey(svc, "extends"); v != nil && v.Kind == yaml.ScalarNode && v.ShortTag() == "!!str" {
		name := *v
		*v = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{scalar("service"), &name}}
	}
}

// pairsToMapping turns a list of KEY=VALUE strings into a mapping. A bare
// KEY maps to null. Non-scalar items are kept under their index so the
// decoder still reports them.
func pairsToMapping(seq *yaml.Node) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: seq.Line, Column: seq.Column}
	for i, item := range seq.Content {
		if item.Kind != yaml.ScalarNode {
			out.Content = append(out.Content, scalar(fmt.Sprint(i)), item)
			continue
		}
		k, v, ok := strings.Cut(item.Value, "=")
		val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Line: item.Line, Column: item.Column}
		if ok {
			val = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v, Line: item.Line, Column: item.Column}
		}
		out.Content = append(out.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k, Line: item.Line, Column: item.Column}, val)
	}
	return out
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// =============================================================================
// Merging
// =============================================================================

// mergeInto merges the mapping source into the mapping target in place.
//
// Keys only in source are copied. For keys in both:
//   - command is replaced
//   - lists are appended; for volumes, earlier entries mounting the same
//     target as a new short-form entry are dropped first
//   - mappings are merged recursively
//   - scalars are replaced
//
// Values of different kinds cannot be merged. A null in source leaves the
// target alone and a null in target takes the source value.
func mergeInto(target, source *yaml.Node, path string) error {
	for i := 0; i+1 < len(source.Content); i += 2 {
		key, value := source.Content[i], source.Content[i+1]
		field := fieldPath(path, key.Value)

		idx := keyIndex(target, key.Value)
		if idx < 0 {
			target.Content = append(target.Content, cloneNode(key), cloneNode(value))
			continue
		}

		existing := target.Content[idx+1]
		if isNull(value) {
			continue
		}
		if key.Value == "command" || isNull(existing) {
			target.Content[idx+1] = cloneNode(value)
			continue
		}
		existing, value = resolveAlias(existing), resolveAlias(value)
		if existing.Kind != value.Kind {
			return NewConfigError(field, fmt.Sprintf("can't merge %s with %s", kindName(existing), kindName(value)), ErrInvalidMerge)
		}

		switch value.Kind {
		case yaml.SequenceNode:
			merged := cloneNode(existing)
			if key.Value == "volumes" {
				merged.Content = dropShadowedMounts(merged.Content, value.Content)
			}
			for _, item := range value.Content {
				merged.Content = append(merged.Content, cloneNode(item))
			}
			target.Content[idx+1] = merged
		case yaml.MappingNode:
			merged := cloneNode(existing)
			if err := mergeInto(merged, value, field); err != nil {
				return err
			}
			target.Content[idx+1] = merged
		default:
			target.Content[idx+1] = cloneNode(value)
		}
	}
	return nil
}

// dropShadowedMounts removes short-form entries of current whose part after
// the first ':' equals that of a short-form entry in incoming.
func dropShadowedMounts(current, incoming []*yaml.Node) []*yaml.Node {
	targets := make(map[string]bool)
	for _, n := range incoming {
		if n.Kind != yaml.ScalarNode {
			continue
		}
		if _, rest, ok := strings.Cut(n.Value, ":"); ok {
			targets[rest] = true
		}
	}
	if len(targets) == 0 {
		return current
	}

	out := current[:0]
	for _, n := range current {
		if n.Kind == yaml.ScalarNode {
			if _, rest, ok := strings.Cut(n.Value, ":"); ok && targets[rest] {
				continue
			}
		}
		out = append(out, n)
	}
	return out
}

func keyIndex(m *yaml.Node, key string) int {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return i
		}
	}
	return -1
}

func deleteKey(m *yaml.Node, key string) {
	if i := keyIndex(m, key); i >= 0 {
		m.Content = append(m.Content[:i], m.Content[i+2:]...)
	}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "a list"
	case yaml.MappingNode:
		return "a mapping"
	}
	return "a scalar"
}

// cloneNode deep-copies n, replacing aliases by copies of their anchors.
func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		return cloneNode(n.Alias)
	}
	out := *n
	if n.Content != nil {
		out.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = cloneNode(c)
		}
	}
	return &out
}
