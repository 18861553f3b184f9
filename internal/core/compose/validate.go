package compose

import (
	"errors"
	"fmt"

	"github.com/docker/go-connections/nat"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Validation
// =============================================================================

// Validate checks options that are otherwise only interpreted by the
// container engine. Unlike planning, it collects every finding instead of
// stopping at the first one.
func Validate(doc *Document) error {
	var result *multierror.Error

	known := make(map[string]bool, len(doc.Services))
	for _, svc := range doc.Services {
		known[svc.Name] = true
	}

	for _, svc := range doc.Services {
		field := fieldPath("services", svc.Name)
		spec := svc.Spec

		for i, p := range spec.Ports {
			if _, err := nat.ParsePortSpec(p); err != nil {
				result = multierror.Append(result,
					NewConfigError(fmt.Sprintf("%s.ports[%d]", field, i), err.Error(), ErrInvalidPort))
			}
		}

		for i, e := range spec.Expose {
			if err := validateExpose(e); err != nil {
				result = multierror.Append(result,
					NewConfigError(fmt.Sprintf("%s.expose[%d]", field, i), err.Error(), ErrInvalidExpose))
			}
		}

		switch spec.Healthcheck.Kind {
		case 0, yaml.MappingNode:
		default:
			if spec.Healthcheck.ShortTag() != "!!null" {
				result = multierror.Append(result,
					NewConfigError(fieldPath(field, "healthcheck"), "must be a key-value mapping", ErrInvalidHealthcheck))
			}
		}

		for _, dep := range spec.DependsOn {
			if !known[dep] {
				result = multierror.Append(result,
					NewConfigError(fieldPath(field, "depends_on"), fmt.Sprintf("depends on undefined service %q", dep), ErrInvalidService))
			}
		}
	}

	return result.ErrorOrNil()
}

func validateExpose(e string) error {
	proto, port := nat.SplitProtoPort(e)
	if port == "" {
		return errors.New("empty port")
	}
	switch proto {
	case "tcp", "udp", "sctp":
	default:
		return fmt.Errorf("invalid protocol %q", proto)
	}
	if _, _, err := nat.ParsePortRangeToInt(port); err != nil {
		return err
	}
	return nil
}
