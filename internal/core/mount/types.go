package mount

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Type is the kind of mount.
type Type string

const (
	TypeBind   Type = "bind"
	TypeVolume Type = "volume"
	TypeTmpfs  Type = "tmpfs"
)

// Ownership labels put on volumes created for a project.
const (
	LabelProject        = "io.podman.compose.project"
	LabelComposeProject = "com.docker.compose.project"
)

// Descriptor is the canonical form of a mount. Target is always absolute.
// Source is an absolute host path for binds and a volume name for volumes.
type Descriptor struct {
	Type     Type         `yaml:"type" json:"type"`
	Source   string       `yaml:"source,omitempty" json:"source,omitempty"`
	Target   string       `yaml:"target" json:"target"`
	ReadOnly bool         `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	Bind     BindOptions  `yaml:"bind,omitempty" json:"bind,omitempty"`
	Tmpfs    TmpfsOptions `yaml:"tmpfs,omitempty" json:"tmpfs,omitempty"`
}

// BindOptions are bind specific options.
type BindOptions struct {
	Propagation string `yaml:"propagation,omitempty" json:"propagation,omitempty"`
}

// TmpfsOptions are tmpfs specific options.
type TmpfsOptions struct {
	Size string `yaml:"size,omitempty" json:"size,omitempty"`
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// Entry is one item of a service's volumes list as written: either the
// compact string form or the verbose mapping form.
type Entry struct {
	Short string
	Long  *Descriptor
}

// ShortEntry wraps a compact mount string.
func ShortEntry(s string) Entry {
	return Entry{Short: s}
}

// LongEntry wraps a verbose mount declaration.
func LongEntry(d Descriptor) Entry {
	return Entry{Long: &d}
}

func (e *Entry) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*e = Entry{Short: n.Value}
		return nil
	case yaml.MappingNode:
		var d Descriptor
		if err := n.Decode(&d); err != nil {
			return err
		}
		*e = Entry{Long: &d}
		return nil
	}
	return fmt.Errorf("line %d: volume must be a string or a mapping", n.Line)
}

// String returns the entry as written, for error messages.
func (e Entry) String() string {
	if e.Long == nil {
		return e.Short
	}
	if e.Long.Source == "" {
		return fmt.Sprintf("%s:%s", e.Long.Type, e.Long.Target)
	}
	return fmt.Sprintf("%s:%s:%s", e.Long.Type, e.Long.Source, e.Long.Target)
}
