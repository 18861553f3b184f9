package compose

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"

	"github.com/artpar/podcompose/internal/core/mount"
)

// =============================================================================
// Document
// =============================================================================

// Document is a substituted compose document. It is immutable after parsing.
type Document struct {
	// Root is the substituted top-level mapping node.
	Root *yaml.Node

	// Services in document order.
	Services []Service

	// Volumes lists the names declared in the top-level volumes mapping.
	Volumes []string

	// Hash is a content digest of the substituted, merged document.
	Hash string

	// Name is the top-level name key, if any.
	Name string
}

// Service is one named entry of the services mapping.
type Service struct {
	Name string
	Spec ServiceSpec
}

// DeclaredVolumes returns the top-level volume names as a membership set.
func (d *Document) DeclaredVolumes() map[string]bool {
	set := make(map[string]bool, len(d.Volumes))
	for _, v := range d.Volumes {
		set[v] = true
	}
	return set
}

// =============================================================================
// Service Spec
// =============================================================================

// ServiceSpec holds the service options the translator understands.
// Unknown keys are ignored.
type ServiceSpec struct {
	Image         string      `yaml:"image"`
	ContainerName string      `yaml:"container_name"`
	Command       Command     `yaml:"command"`
	Entrypoint    Command     `yaml:"entrypoint"`
	Environment   KeyValues   `yaml:"environment"`
	EnvFile       StringList  `yaml:"env_file"`
	Labels        KeyValues   `yaml:"labels"`
	Ports         PortList    `yaml:"ports"`
	Expose        StringList  `yaml:"expose"`
	Volumes       VolumeList  `yaml:"volumes"`
	Tmpfs         StringList  `yaml:"tmpfs"`
	ExtraHosts    HostList    `yaml:"extra_hosts"`
	Links         StringList  `yaml:"links"`
	DependsOn     ServiceRefs `yaml:"depends_on"`
	NetworkMode   string      `yaml:"network_mode"`
	SecurityOpt   StringList  `yaml:"security_opt"`
	ReadOnly      bool        `yaml:"read_only"`
	User          string      `yaml:"user"`
	WorkingDir    string      `yaml:"working_dir"`
	Hostname      string      `yaml:"hostname"`
	ShmSize       string      `yaml:"shm_size"`
	StdinOpen     bool        `yaml:"stdin_open"`
	Tty           bool        `yaml:"tty"`
	CapAdd        StringList  `yaml:"cap_add"`
	CapDrop       StringList  `yaml:"cap_drop"`
	Devices       StringList  `yaml:"devices"`
	DNS           StringList  `yaml:"dns"`
	Privileged    bool        `yaml:"privileged"`
	Init          bool        `yaml:"init"`
	Restart       string      `yaml:"restart"`
	StopSignal    string      `yaml:"stop_signal"`
	Sysctls       KeyValues   `yaml:"sysctls"`
	Ulimits       Ulimits     `yaml:"ulimits"`
	Deploy        Deploy      `yaml:"deploy"`

	// Compose file v2 resource options. deploy.resources wins over these.
	CPUs           Scalar `yaml:"cpus"`
	CPUShares      Scalar `yaml:"cpu_shares"`
	MemLimit       Scalar `yaml:"mem_limit"`
	MemReservation Scalar `yaml:"mem_reservation"`

	// Healthcheck is kept as a raw node; its shape is validated when
	// launch arguments are built.
	Healthcheck yaml.Node `yaml:"healthcheck"`
}

// Deploy holds the subset of deploy options used for expansion and
// resource limits.
type Deploy struct {
	Replicas  Replicas  `yaml:"replicas"`
	Resources Resources `yaml:"resources"`
}

// Resources is deploy.resources.
type Resources struct {
	Limits       ResourceSpec `yaml:"limits"`
	Reservations ResourceSpec `yaml:"reservations"`
}

// ResourceSpec is one side of deploy.resources.
type ResourceSpec struct {
	CPUs   Scalar `yaml:"cpus"`
	Memory Scalar `yaml:"memory"`
}

// Clone returns a deep copy of the list-valued fields.
func (s ServiceSpec) Clone() ServiceSpec {
	c := s
	c.Command = s.Command.Clone()
	c.Entrypoint = s.Entrypoint.Clone()
	c.Environment = cloneStrings(s.Environment)
	c.EnvFile = cloneStrings(s.EnvFile)
	c.Labels = cloneStrings(s.Labels)
	c.Ports = cloneStrings(s.Ports)
	c.Expose = cloneStrings(s.Expose)
	c.Volumes = append(VolumeList(nil), s.Volumes...)
	c.Tmpfs = cloneStrings(s.Tmpfs)
	c.ExtraHosts = cloneStrings(s.ExtraHosts)
	c.Links = cloneStrings(s.Links)
	c.DependsOn = cloneStrings(s.DependsOn)
	c.SecurityOpt = cloneStrings(s.SecurityOpt)
	c.CapAdd = cloneStrings(s.CapAdd)
	c.CapDrop = cloneStrings(s.CapDrop)
	c.Devices = cloneStrings(s.Devices)
	c.DNS = cloneStrings(s.DNS)
	c.Sysctls = cloneStrings(s.Sysctls)
	c.Ulimits = cloneStrings(s.Ulimits)
	return c
}

func cloneStrings[S ~[]string](s S) S {
	if s == nil {
		return nil
	}
	return append(S(nil), s...)
}

// normalize rewrites legacy option spellings.
func (s *ServiceSpec) normalize() {
	for i, opt := range s.SecurityOpt {
		if strings.HasPrefix(opt, "seccomp:") {
			s.SecurityOpt[i] = "seccomp=" + strings.TrimPrefix(opt, "seccomp:")
		}
		if opt == "apparmor:unconfined" {
			s.SecurityOpt[i] = "apparmor=unconfined"
		}
	}
}

// =============================================================================
// Flexible Field Types
// =============================================================================

// StringList accepts a single scalar or a sequence of scalars.
type StringList []string

func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*l = StringList{n.Value}
		return nil
	case yaml.SequenceNode:
		out := make(StringList, 0, len(n.Content))
		for _, item := range n.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a string", item.Line)
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
}

// KeyValues accepts a list of KEY=VALUE strings or a mapping. Mapping
// entries become KEY=VALUE, or just KEY when the value is null.
// Document order is preserved.
type KeyValues []string

func (kv *KeyValues) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		var l StringList
		if err := l.UnmarshalYAML(n); err != nil {
			return err
		}
		*kv = KeyValues(l)
		return nil
	case yaml.MappingNode:
		out := make(KeyValues, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if val.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: value of %q must be a scalar", val.Line, key.Value)
			}
			if val.ShortTag() == "!!null" {
				out = append(out, key.Value)
				continue
			}
			out = append(out, key.Value+"="+val.Value)
		}
		*kv = out
		return nil
	}
	return fmt.Errorf("line %d: expected a list or a mapping", n.Line)
}

// HostList accepts "host:ip" strings or a host to ip mapping.
type HostList []string

func (h *HostList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode, yaml.ScalarNode:
		var l StringList
		if err := l.UnmarshalYAML(n); err != nil {
			return err
		}
		*h = HostList(l)
		return nil
	case yaml.MappingNode:
		out := make(HostList, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out = append(out, n.Content[i].Value+":"+n.Content[i+1].Value)
		}
		*h = out
		return nil
	}
	return fmt.Errorf("line %d: expected a list or a mapping", n.Line)
}

// ServiceRefs accepts a service name, a list of names, or a mapping keyed
// by service name (the long depends_on syntax).
type ServiceRefs []string

func (r *ServiceRefs) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.MappingNode {
		out := make(ServiceRefs, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out = append(out, n.Content[i].Value)
		}
		*r = out
		return nil
	}
	var l StringList
	if err := l.UnmarshalYAML(n); err != nil {
		return err
	}
	*r = ServiceRefs(l)
	return nil
}

// PortList accepts short port strings and long port mappings. Long entries
// are rendered back to the short form.
type PortList []string

func (p *PortList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		*p = PortList{n.Value}
		return nil
	}
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: ports must be a list", n.Line)
	}
	out := make(PortList, 0, len(n.Content))
	for _, item := range n.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			out = append(out, item.Value)
		case yaml.MappingNode:
			var pc types.ServicePortConfig
			if err := item.Decode(&pc); err != nil {
				return err
			}
			if pc.Target == 0 {
				return fmt.Errorf("line %d: port target is required", item.Line)
			}
			out = append(out, formatPort(pc))
		default:
			return fmt.Errorf("line %d: invalid port entry", item.Line)
		}
	}
	*p = out
	return nil
}

// formatPort renders a long port entry as [host_ip:][published:]target[/protocol].
func formatPort(pc types.ServicePortConfig) string {
	var b strings.Builder
	if pc.HostIP != "" {
		b.WriteString(pc.HostIP)
		b.WriteByte(':')
		if pc.Published == "" {
			b.WriteByte(':')
		}
	}
	if pc.Published != "" {
		b.WriteString(pc.Published)
		b.WriteByte(':')
	}
	b.WriteString(strconv.FormatUint(uint64(pc.Target), 10))
	if pc.Protocol != "" {
		b.WriteByte('/')
		b.WriteString(pc.Protocol)
	}
	return b.String()
}

// VolumeList accepts a single mount entry or a list of them.
type VolumeList []mount.Entry

func (v *VolumeList) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		var e mount.Entry
		if err := n.Decode(&e); err != nil {
			return err
		}
		*v = VolumeList{e}
		return nil
	}
	out := make(VolumeList, 0, len(n.Content))
	for _, item := range n.Content {
		var e mount.Entry
		if err := item.Decode(&e); err != nil {
			return err
		}
		out = append(out, e)
	}
	*v = out
	return nil
}

// Command is a command or entrypoint in either list or string form.
type Command struct {
	// Args holds the list form.
	Args []string
	// Shell holds the string form.
	Shell string
	// List reports whether the list form was used.
	List bool
	set  bool
}

func (c *Command) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		*c = Command{Shell: n.Value, set: true}
		return nil
	case yaml.SequenceNode:
		var l StringList
		if err := l.UnmarshalYAML(n); err != nil {
			return err
		}
		*c = Command{Args: []string(l), List: true, set: true}
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", n.Line)
}

// IsSet reports whether the command was present in the document.
func (c Command) IsSet() bool {
	return c.set
}

// NewShellCommand builds a string-form Command.
func NewShellCommand(s string) Command {
	return Command{Shell: s, set: true}
}

// NewListCommand builds a list-form Command.
func NewListCommand(args ...string) Command {
	return Command{Args: args, List: true, set: true}
}

// Clone returns a deep copy of c.
func (c Command) Clone() Command {
	c.Args = cloneStrings(c.Args)
	return c
}

// Scalar is a scalar option kept as written, such as cpus: 0.5 or
// mem_limit: 512M. Null is empty.
type Scalar string

func (s *Scalar) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a scalar", n.Line)
	}
	if n.ShortTag() == "!!null" {
		*s = ""
		return nil
	}
	*s = Scalar(n.Value)
	return nil
}

// Ulimits holds --ulimit values. A single string such as "host" is passed
// through, and so are list entries. Mapping entries become name=value, or
// name=soft:hard for the long form, where a missing bound takes the other.
type Ulimits []string

func (u *Ulimits) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.ShortTag() == "!!null" {
			*u = nil
			return nil
		}
		*u = Ulimits{n.Value}
		return nil
	case yaml.SequenceNode:
		var l StringList
		if err := l.UnmarshalYAML(n); err != nil {
			return err
		}
		*u = Ulimits(l)
		return nil
	case yaml.MappingNode:
		out := make(Ulimits, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			name, val := n.Content[i].Value, n.Content[i+1]
			switch val.Kind {
			case yaml.ScalarNode:
				out = append(out, name+"="+val.Value)
			case yaml.MappingNode:
				soft, hard := scalarValue(lookupKey(val, "soft")), scalarValue(lookupKey(val, "hard"))
				if soft == "" && hard == "" {
					return fmt.Errorf("line %d: ulimit %q needs a soft or hard limit", val.Line, name)
				}
				if soft == "" {
					soft = hard
				}
				if hard == "" {
					hard = soft
				}
				out = append(out, name+"="+soft+":"+hard)
			default:
				return fmt.Errorf("line %d: invalid ulimit %q", val.Line, name)
			}
		}
		*u = out
		return nil
	}
	return fmt.Errorf("line %d: expected a string, a list or a mapping", n.Line)
}

// Replicas is deploy.replicas. Missing or non-numeric values count as 1.
type Replicas struct {
	n   int
	set bool
}

func (r *Replicas) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.Value))
	if err != nil {
		*r = Replicas{}
		return nil
	}
	*r = Replicas{n: v, set: true}
	return nil
}

// NewReplicas returns an explicit replica count.
func NewReplicas(n int) Replicas {
	return Replicas{n: n, set: true}
}

// Count returns the number of containers to create.
func (r Replicas) Count() int {
	if !r.set {
		return 1
	}
	if r.n < 0 {
		return 0
	}
	return r.n
}
