package mount

import (
	"context"
	"fmt"
)

// VolumeStore is the part of a container engine that manages named volumes.
type VolumeStore interface {
	// InspectVolume returns the host mountpoint of an existing volume.
	InspectVolume(ctx context.Context, name string) (string, error)

	// CreateVolume creates a volume with the given labels.
	CreateVolume(ctx context.Context, name string, labels map[string]string) error
}

// Resolver turns volume mounts into bind mounts of the volume's host
// directory. With a nil store volumes are left as volume mounts under their
// engine name.
type Resolver struct {
	store    VolumeStore
	project  string
	declared map[string]bool
}

// NewResolver creates a Resolver for one project. declared holds the names
// of the document's top-level volumes.
func NewResolver(store VolumeStore, project string, declared map[string]bool) *Resolver {
	if declared == nil {
		declared = map[string]bool{}
	}
	return &Resolver{
		store:    store,
		project:  project,
		declared: declared,
	}
}

// VolumeName returns the engine name of a project volume.
//
// Example: VolumeName("shop", "data") returns "shop_data"
func VolumeName(project, name string) string {
	return fmt.Sprintf("%s_%s", project, name)
}

// Labels returns the ownership labels for a project's volumes.
func Labels(project string) map[string]string {
	return map[string]string{
		LabelProject:        project,
		LabelComposeProject: project,
	}
}

// DefaultPropagation is z for volumes shared through the top-level volumes
// mapping and Z for everything else.
func DefaultPropagation(name string, declared map[string]bool) string {
	if declared[name] {
		return "z"
	}
	return "Z"
}

// Resolve resolves a canonical descriptor. Only volume mounts change.
func (r *Resolver) Resolve(ctx context.Context, d Descriptor) (Descriptor, error) {
	if d.Type != TypeVolume {
		return d, nil
	}

	name := VolumeName(r.project, d.Source)
	if r.store == nil {
		out := d
		out.Source = name
		return out, nil
	}

	mountpoint, err := r.inspectOrCreate(ctx, name)
	if err != nil {
		return Descriptor{}, err
	}

	out := Descriptor{
		Type:     TypeBind,
		Source:   mountpoint,
		Target:   d.Target,
		ReadOnly: d.ReadOnly,
		Bind:     d.Bind,
	}
	if out.Bind.Propagation == "" {
		out.Bind.Propagation = DefaultPropagation(d.Source, r.declared)
	}
	return out, nil
}

// inspectOrCreate inspects name, creating the volume once if the first
// inspection fails.
func (r *Resolver) inspectOrCreate(ctx context.Context, name string) (string, error) {
	mountpoint, err := r.store.InspectVolume(ctx, name)
	if err == nil {
		return mountpoint, nil
	}

	if err := r.store.CreateVolume(ctx, name, Labels(r.project)); err != nil {
		return "", NewMountError(name, fmt.Sprintf("create volume: %v", err), fmt.Errorf("%w: %w", ErrVolumeResolution, err))
	}

	mountpoint, err = r.store.InspectVolume(ctx, name)
	if err != nil {
		return "", NewMountError(name, fmt.Sprintf("inspect volume: %v", err), fmt.Errorf("%w: %w", ErrVolumeResolution, err))
	}
	return mountpoint, nil
}
