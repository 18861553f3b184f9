package mount

import (
	"fmt"
	"strings"
)

// Option renders a descriptor as the value of a --mount flag.
//
// Example: a read-only bind of /srv to /data renders as
// "type=bind,source=/srv,destination=/data,ro".
func Option(d Descriptor) (string, error) {
	var opts []string

	switch d.Type {
	case TypeBind:
		opts = append(opts, "type=bind", "source="+d.Source, "destination="+d.Target)
		if d.ReadOnly {
			opts = append(opts, "ro")
		}
		opts = append(opts, propagationOptions(d.Bind.Propagation)...)

	case TypeVolume:
		opts = append(opts, "type=volume")
		if d.Source != "" {
			opts = append(opts, "source="+d.Source)
		}
		opts = append(opts, "destination="+d.Target)
		if d.ReadOnly {
			opts = append(opts, "ro")
		}

	case TypeTmpfs:
		opts = append(opts, "type=tmpfs", "destination="+d.Target)
		if d.Tmpfs.Size != "" {
			opts = append(opts, "tmpfs-size="+d.Tmpfs.Size)
		}
		if d.Tmpfs.Mode != "" {
			opts = append(opts, "tmpfs-mode="+d.Tmpfs.Mode)
		}
		if d.ReadOnly {
			opts = append(opts, "ro")
		}

	default:
		return "", NewMountError(d.Target, fmt.Sprintf("unknown mount type %q", d.Type), ErrUnknownMountType)
	}

	return strings.Join(opts, ","), nil
}

// propagationOptions maps propagation tokens to mount options. The SELinux
// tokens z and Z become relabel options.
func propagationOptions(propagation string) []string {
	if propagation == "" {
		return nil
	}
	var opts []string
	for _, p := range strings.Split(propagation, ",") {
		switch p {
		case "z":
			opts = append(opts, "relabel=shared")
		case "Z":
			opts = append(opts, "relabel=private")
		default:
			opts = append(opts, "bind-propagation="+p)
		}
	}
	return opts
}
