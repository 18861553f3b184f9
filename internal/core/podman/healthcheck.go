package podman

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/syntax"

	"github.com/artpar/podcompose/internal/core/compose"
)

// healthcheckSpec is the decoded healthcheck mapping.
type healthcheckSpec struct {
	Test        yaml.Node `yaml:"test"`
	Interval    string    `yaml:"interval"`
	Timeout     string    `yaml:"timeout"`
	StartPeriod string    `yaml:"start_period"`
	Retries     string    `yaml:"retries"`
	Disable     bool      `yaml:"disable"`
}

// HealthcheckArgs maps a healthcheck node to podman flags. field is the
// node's document path, used in errors.
//
// A string test runs through /bin/sh -c. A list test starts with its mode:
// NONE disables the healthcheck, CMD quotes each remaining element into one
// command line, and CMD-SHELL takes exactly one raw shell command.
func HealthcheckArgs(field string, n *yaml.Node) ([]string, error) {
	if n == nil || n.Kind == 0 || n.ShortTag() == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, compose.NewConfigError(field, "'healthcheck' must be a key-value mapping", compose.ErrInvalidHealthcheck)
	}

	var hc healthcheckSpec
	if err := n.Decode(&hc); err != nil {
		return nil, compose.NewConfigError(field, err.Error(), compose.ErrInvalidHealthcheck)
	}
	if hc.Disable {
		return []string{"--no-healthcheck"}, nil
	}

	var args []string
	testField := field + ".test"

	switch hc.Test.Kind {
	case 0:
	case yaml.ScalarNode:
		if hc.Test.ShortTag() == "!!null" {
			break
		}
		cmd, err := shellCommand(testField, hc.Test.Value)
		if err != nil {
			return nil, err
		}
		args = append(args, "--healthcheck-command", cmd)

	case yaml.SequenceNode:
		var test compose.StringList
		if err := hc.Test.Decode(&test); err != nil {
			return nil, compose.NewConfigError(testField, err.Error(), compose.ErrInvalidHealthcheck)
		}
		if len(test) == 0 {
			return nil, compose.NewConfigError(testField, "test must not be empty", compose.ErrInvalidHealthcheck)
		}

		mode, rest := test[0], test[1:]
		switch mode {
		case "NONE":
			return []string{"--no-healthcheck"}, nil
		case "CMD":
			quoted := make([]string, len(rest))
			for i, arg := range rest {
				q, err := quote(testField, arg)
				if err != nil {
					return nil, err
				}
				quoted[i] = q
			}
			cmd, err := shellCommand(testField, strings.Join(quoted, " "))
			if err != nil {
				return nil, err
			}
			args = append(args, "--healthcheck-command", cmd)
		case "CMD-SHELL":
			if len(rest) != 1 {
				return nil, compose.NewConfigError(testField,
					fmt.Sprintf("'CMD-SHELL' takes a single string after it, got %d", len(rest)), compose.ErrInvalidHealthcheck)
			}
			cmd, err := shellCommand(testField, rest[0])
			if err != nil {
				return nil, err
			}
			args = append(args, "--healthcheck-command", cmd)
		default:
			return nil, compose.NewConfigError(testField,
				fmt.Sprintf("unknown healthcheck test type %q, expecting NONE, CMD or CMD-SHELL", mode), compose.ErrInvalidHealthcheck)
		}

	default:
		return nil, compose.NewConfigError(testField, "test must be a string or a list", compose.ErrInvalidHealthcheck)
	}

	if hc.Interval != "" {
		args = append(args, "--healthcheck-interval", hc.Interval)
	}
	if hc.Timeout != "" {
		args = append(args, "--healthcheck-timeout", hc.Timeout)
	}
	if hc.StartPeriod != "" {
		args = append(args, "--healthcheck-start-period", hc.StartPeriod)
	}
	if hc.Retries != "" {
		args = append(args, "--healthcheck-retries", hc.Retries)
	}
	return args, nil
}

// shellCommand wraps cmd so it runs through /bin/sh -c.
func shellCommand(field, cmd string) (string, error) {
	q, err := quote(field, cmd)
	if err != nil {
		return "", err
	}
	return "/bin/sh -c " + q, nil
}

func quote(field, s string) (string, error) {
	q, err := syntax.Quote(s, syntax.LangPOSIX)
	if err != nil {
		return "", compose.NewConfigError(field, err.Error(), compose.ErrInvalidHealthcheck)
	}
	return q, nil
}
