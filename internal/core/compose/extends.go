package compose

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// Extends
// =============================================================================

// extender resolves `extends` entries of one services mapping.
type extender struct {
	services *yaml.Node
	opts     Options
	state    map[string]int // 1 resolving, 2 done
}

// resolveExtends replaces every service that extends another one by the
// base service merged with its own keys. Bases in the same document are
// resolved first, so chains work. A cycle is a ConfigError.
func resolveExtends(services *yaml.Node, opts Options) error {
	e := &extender{services: services, opts: opts, state: make(map[string]int)}
	for i := 0; i+1 < len(services.Content); i += 2 {
		if err := e.resolve(services.Content[i].Value, nil); err != nil {
			return err
		}
	}
	return nil
}

func (e *extender) resolve(name string, chain []string) error {
	switch e.state[name] {
	case 2:
		return nil
	case 1:
		cycle := append(chain, name)
		return NewConfigError(fieldPath("services", name)+".extends", strings.Join(cycle, " -> "), ErrExtendsCycle)
	}

	idx := keyIndex(e.services, name)
	if idx < 0 {
		return nil
	}
	svc := e.services.Content[idx+1]
	field := fieldPath("services", name)

	ext := lookupKey(svc, "extends")
	if ext == nil || isNull(ext) {
		e.state[name] = 2
		return nil
	}
	if ext.Kind != yaml.MappingNode {
		return NewConfigError(field+".extends", "must be a service name or a mapping", ErrInvalidService)
	}
	baseName := scalarValue(lookupKey(ext, "service"))
	if baseName == "" {
		e.state[name] = 2
		return nil
	}

	e.state[name] = 1
	var base *yaml.Node
	var err error
	if file := scalarValue(lookupKey(ext, "file")); file != "" {
		base, err = e.external(field, file, baseName)
	} else {
		base, err = e.local(field, baseName, append(chain, name))
	}
	if err != nil {
		return err
	}

	merged := cloneNode(base)
	deleteKey(merged, "extends")
	if err := mergeInto(merged, svc, field); err != nil {
		return err
	}
	e.services.Content[idx+1] = merged
	e.state[name] = 2
	return nil
}

// local returns a service of the same document, resolving its own extends.
func (e *extender) local(field, baseName string, chain []string) (*yaml.Node, error) {
	if err := e.resolve(baseName, chain); err != nil {
		return nil, err
	}
	base := lookupKey(e.services, baseName)
	if base == nil {
		return nil, NewConfigError(field+".extends", fmt.Sprintf("service %q not found", baseName), ErrInvalidService)
	}
	if base.Kind != yaml.MappingNode {
		return emptyMapping(), nil
	}
	return base, nil
}

// external loads a service from another compose file. Its own extends is
// not followed.
func (e *extender) external(field, file, baseName string) (*yaml.Node, error) {
	if e.opts.ReadFile == nil {
		return nil, NewConfigError(field+".extends.file", "cannot read "+file, ErrInvalidService)
	}
	path := strings.TrimPrefix(file, "./")
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.opts.Dir, path)
	}
	content, err := e.opts.ReadFile(path)
	if err != nil {
		return nil, NewConfigError(field+".extends.file", err.Error(), ErrInvalidService)
	}

	root, err := decodeRoot(path, content)
	if err != nil {
		return nil, err
	}
	if services := lookupKey(root, "services"); services != nil {
		root = services
	}
	if e.opts.Substituter != nil {
		if root, err = e.opts.Substituter.Node(root); err != nil {
			return nil, err
		}
	}

	base := lookupKey(root, baseName)
	if base == nil {
		return nil, NewConfigError(field+".extends", fmt.Sprintf("service %q not found in %s", baseName, file), ErrInvalidService)
	}
	if base.Kind != yaml.MappingNode {
		return emptyMapping(), nil
	}
	normalizeServiceNode(base)
	return base, nil
}

func scalarValue(n *yaml.Node) string {
	if n == nil || n.Kind != yaml.ScalarNode || isNull(n) {
		return ""
	}
	return n.Value
}

func emptyMapping() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}
