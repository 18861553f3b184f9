package mount

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
)

var propagationPattern = regexp.MustCompile(`^(?:z|Z|r?shared|r?slave|r?private)$`)

// isHostPath reports whether a compact source names a host path rather
// than a volume.
func isHostPath(src string) bool {
	return strings.HasPrefix(src, "~") || strings.HasPrefix(src, "/") || strings.HasPrefix(src, ".")
}

// ParseCompact parses the compact [src:]dst[:opts] form. Host path sources
// are made absolute against basedir after expanding a leading ~ to home.
func ParseCompact(spec, basedir, home string) (Descriptor, error) {
	parts := strings.Split(spec, ":")

	var src, dst, opts string
	switch len(parts) {
	case 1:
		dst = parts[0]
	case 2:
		if strings.HasPrefix(parts[1], "/") {
			src, dst = parts[0], parts[1]
		} else {
			dst, opts = parts[0], parts[1]
		}
	case 3:
		src, dst, opts = parts[0], parts[1], parts[2]
	default:
		return Descriptor{}, NewMountError(spec, "too many ':' separated fields", ErrMalformedMount)
	}

	d := Descriptor{Type: TypeVolume, Source: src, Target: dst}
	if src != "" && isHostPath(src) {
		d.Type = TypeBind
		d.Source = HostPath(src, basedir, home)
	}

	if opts != "" {
		var propagation []string
		for _, opt := range strings.Split(opts, ",") {
			switch {
			case opt == "ro":
				d.ReadOnly = true
			case opt == "rw":
				d.ReadOnly = false
			case propagationPattern.MatchString(opt):
				propagation = append(propagation, opt)
			default:
				return Descriptor{}, NewMountError(spec, fmt.Sprintf("unknown mount option %q", opt), ErrUnknownMountOption)
			}
		}
		d.Bind.Propagation = strings.Join(propagation, ",")
	}

	if err := checkTarget(spec, d.Target); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Normalize turns an Entry of either form into a Descriptor.
func Normalize(e Entry, basedir, home string) (Descriptor, error) {
	if e.Long == nil {
		return ParseCompact(e.Short, basedir, home)
	}

	d := *e.Long
	switch d.Type {
	case "":
		d.Type = TypeVolume
		if d.Source != "" && isHostPath(d.Source) {
			d.Type = TypeBind
		}
	case TypeBind, TypeVolume, TypeTmpfs:
	default:
		return Descriptor{}, NewMountError(e.String(), fmt.Sprintf("unknown mount type %q", d.Type), ErrUnknownMountType)
	}
	if d.Type == TypeBind {
		if d.Source == "" {
			return Descriptor{}, NewMountError(e.String(), "bind mount needs a source", ErrMalformedMount)
		}
		d.Source = HostPath(d.Source, basedir, home)
	}
	if d.Bind.Propagation != "" {
		for _, opt := range strings.Split(d.Bind.Propagation, ",") {
			if !propagationPattern.MatchString(opt) {
				return Descriptor{}, NewMountError(e.String(), fmt.Sprintf("unknown propagation %q", opt), ErrUnknownMountOption)
			}
		}
	}
	if err := checkTarget(e.String(), d.Target); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// HostPath expands a leading ~ and resolves path against basedir.
func HostPath(path, basedir, home string) string {
	if path == "~" {
		path = home
	} else if strings.HasPrefix(path, "~/") {
		path = filepath.Join(home, path[2:])
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(basedir, path)
	}
	return filepath.Clean(path)
}

func checkTarget(spec, target string) error {
	if target == "" {
		return NewMountError(spec, "missing target path", ErrMalformedMount)
	}
	if !strings.HasPrefix(target, "/") {
		return NewMountError(spec, fmt.Sprintf("target %q is not an absolute path", target), ErrMalformedMount)
	}
	return nil
}

// =============================================================================
// Canonicalization
// =============================================================================

// AnonymousVolumeName derives the stable volume name for an unnamed volume
// mounted at target.
//
// Example: AnonymousVolumeName("db", "shop_db_1", "/var/lib/mysql")
// returns "db_shop_db_1_" followed by 64 hex characters.
func AnonymousVolumeName(service, container, target string) string {
	sum := blake3.Sum256([]byte(target))
	return fmt.Sprintf("%s_%s_%s", service, container, hex.EncodeToString(sum[:]))
}

// Canonicalize assigns a synthetic source to unnamed volumes.
func Canonicalize(d Descriptor, service, container string) Descriptor {
	if d.Type == TypeVolume && d.Source == "" {
		d.Source = AnonymousVolumeName(service, container, d.Target)
	}
	return d
}
