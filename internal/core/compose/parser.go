package compose

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// File is one compose file of a project.
type File struct {
	Path    string // used in error messages and to find extends files
	Content []byte
}

// Options controls how files are turned into a Document.
type Options struct {
	// Substituter interpolates variables. Nil leaves them untouched.
	Substituter *Substituter

	// Dir resolves relative extends.file paths.
	Dir string

	// ReadFile loads extends.file targets. Nil rejects extends.file.
	ReadFile func(path string) ([]byte, error)
}

// =============================================================================
// Main Parser Function
// =============================================================================

// ParseDocument parses raw compose YAML, substitutes variables through subst
// and decodes every service. A nil subst leaves variables untouched.
func ParseDocument(content []byte, subst *Substituter) (*Document, error) {
	return ParseFiles([]File{{Content: content}}, Options{Substituter: subst})
}

// ParseFiles parses compose files in order and merges each one into the
// result of the previous ones. Every file is normalized and substituted
// before it is merged. Extends is resolved on the merged services.
func ParseFiles(files []File, opts Options) (*Document, error) {
	if len(files) == 0 {
		return nil, NewConfigError("", ErrEmptyInput.Error(), ErrEmptyInput)
	}

	root := emptyMapping()
	for _, f := range files {
		node, err := decodeRoot(f.Path, f.Content)
		if err != nil {
			return nil, err
		}
		normalizeServices(lookupKey(node, "services"))
		if opts.Substituter != nil {
			if node, err = opts.Substituter.Node(node); err != nil {
				return nil, err
			}
		}
		if err := mergeInto(root, node, ""); err != nil {
			return nil, err
		}
	}

	hash, err := hashNode(root)
	if err != nil {
		return nil, err
	}
	doc := &Document{Root: root, Hash: hash}

	services := lookupKey(root, "services")
	if services == nil || len(services.Content) == 0 {
		return nil, NewConfigError("services", ErrNoServices.Error(), ErrNoServices)
	}
	if services.Kind != yaml.MappingNode {
		return nil, NewConfigError("services", "must be a mapping", ErrInvalidDocument)
	}
	if err := resolveExtends(services, opts); err != nil {
		return nil, err
	}

	for i := 0; i+1 < len(services.Content); i += 2 {
		name := services.Content[i].Value
		svc, err := decodeService(name, services.Content[i+1])
		if err != nil {
			return nil, err
		}
		doc.Services = append(doc.Services, svc)
	}

	if volumes := lookupKey(root, "volumes"); volumes != nil && !isNull(volumes) {
		if volumes.Kind != yaml.MappingNode {
			return nil, NewConfigError("volumes", "must be a mapping", ErrInvalidDocument)
		}
		for i := 0; i+1 < len(volumes.Content); i += 2 {
			doc.Volumes = append(doc.Volumes, volumes.Content[i].Value)
		}
	}

	if name := lookupKey(root, "name"); name != nil {
		if name.Kind != yaml.ScalarNode {
			return nil, NewConfigError("name", "must be a string", ErrInvalidProjectName)
		}
		doc.Name = scalarValue(name)
	}

	return doc, nil
}

// =============================================================================
// Helpers
// =============================================================================

// decodeRoot parses one file and returns its top-level mapping.
func decodeRoot(path string, content []byte) (*yaml.Node, error) {
	if len(strings.TrimSpace(string(content))) == 0 {
		return nil, NewConfigError("", inFile(path, ErrEmptyInput.Error()), ErrEmptyInput)
	}

	var raw yaml.Node
	if err := yaml.Unmarshal(content, &raw); err != nil {
		return nil, NewConfigError("", inFile(path, err.Error()), ErrInvalidYAML)
	}

	root := &raw
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, NewConfigError("", inFile(path, "top level must be a mapping"), ErrInvalidDocument)
	}
	return root, nil
}

func inFile(path, msg string) string {
	if path == "" {
		return msg
	}
	return path + ": " + msg
}

func decodeService(name string, node *yaml.Node) (Service, error) {
	field := fieldPath("services", name)

	if isNull(node) {
		return Service{Name: name}, nil
	}
	if node.Kind != yaml.MappingNode {
		return Service{}, NewConfigError(field, "service must be a mapping", ErrInvalidService)
	}

	var spec ServiceSpec
	if err := node.Decode(&spec); err != nil {
		return Service{}, NewConfigError(field, err.Error(), ErrInvalidService)
	}
	if spec.Healthcheck.Kind == yaml.AliasNode && spec.Healthcheck.Alias != nil {
		spec.Healthcheck = *spec.Healthcheck.Alias
	}
	spec.normalize()

	return Service{Name: name, Spec: spec}, nil
}

// lookupKey returns the value node of key in a mapping node.
func lookupKey(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func hashNode(n *yaml.Node) (string, error) {
	out, err := yaml.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode document for hashing: %w", err)
	}
	sum := blake3.Sum256(out)
	return hex.EncodeToString(sum[:]), nil
}

// DefaultProjectName derives a project name from the compose file's
// directory.
//
// Example: DefaultProjectName("/home/me/My App") returns "myapp"
func DefaultProjectName(dir string) string {
	return loader.NormalizeProjectName(filepath.Base(filepath.Clean(dir)))
}

// ProjectName picks the project name: explicit when set, then the
// document's top-level name, then COMPOSE_PROJECT_NAME from providers,
// then the compose directory. The last two are normalized, and a name that
// normalizes to nothing is an error.
func ProjectName(explicit string, doc *Document, providers []Provider, dir string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if doc != nil && doc.Name != "" {
		return doc.Name, nil
	}

	for _, p := range providers {
		if v, ok := p.Lookup("COMPOSE_PROJECT_NAME"); ok && v != "" {
			if name := loader.NormalizeProjectName(v); name != "" {
				return name, nil
			}
			return "", emptyProjectName(v)
		}
	}
	if name := DefaultProjectName(dir); name != "" {
		return name, nil
	}
	return "", emptyProjectName(filepath.Base(filepath.Clean(dir)))
}

func emptyProjectName(source string) error {
	return NewConfigError("name", fmt.Sprintf("project name %q normalized to empty", source), ErrInvalidProjectName)
}
