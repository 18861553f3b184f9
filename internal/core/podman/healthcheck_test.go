package podman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/artpar/podcompose/internal/core/compose"
)

func healthcheckNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	if len(doc.Content) == 0 {
		return &yaml.Node{}
	}
	return doc.Content[0]
}

func TestHealthcheckArgs_Absent(t *testing.T) {
	args, err := HealthcheckArgs("services.web.healthcheck", &yaml.Node{})
	require.NoError(t, err)
	assert.Nil(t, args)

	args, err = HealthcheckArgs("services.web.healthcheck", nil)
	require.NoError(t, err)
	assert.Nil(t, args)
}

func TestHealthcheckArgs_NotMapping(t *testing.T) {
	_, err := HealthcheckArgs("services.web.healthcheck", healthcheckNode(t, `- CMD`))
	require.Error(t, err)
	assert.ErrorIs(t, err, compose.ErrInvalidHealthcheck)
	assert.Contains(t, err.Error(), "services.web.healthcheck")
}

func TestHealthcheckArgs_StringTest(t *testing.T) {
	n := healthcheckNode(t, `
test: curl -f http://localhost
interval: 30s
timeout: 5s
start_period: 10s
retries: 3
`)
	args, err := HealthcheckArgs("hc", n)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"--healthcheck-command", "/bin/sh -c 'curl -f http://localhost'",
		"--healthcheck-interval", "30s",
		"--healthcheck-timeout", "5s",
		"--healthcheck-start-period", "10s",
		"--healthcheck-retries", "3",
	}, args)
}

func TestHealthcheckArgs_Modes(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "cmd quotes each element",
			src:  `test: ["CMD", "curl", "-f", "http://x"]`,
			want: []string{"--healthcheck-command", "/bin/sh -c 'curl -f http://x'"},
		},
		{
			name: "cmd element with spaces",
			src:  `test: ["CMD", "echo", "a b"]`,
			want: []string{"--healthcheck-command", `/bin/sh -c "echo 'a b'"`},
		},
		{
			name: "cmd-shell single command",
			src:  `test: ["CMD-SHELL", "curl -f http://x || exit 1"]`,
			want: []string{"--healthcheck-command", "/bin/sh -c 'curl -f http://x || exit 1'"},
		},
		{
			name: "none disables",
			src:  "test: [NONE]\ninterval: 10s",
			want: []string{"--no-healthcheck"},
		},
		{
			name: "disable flag",
			src:  "disable: true\ntest: [CMD, true]",
			want: []string{"--no-healthcheck"},
		},
		{
			name: "timing only",
			src:  "retries: 5",
			want: []string{"--healthcheck-retries", "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := HealthcheckArgs("hc", healthcheckNode(t, tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, args)
		})
	}
}

func TestHealthcheckArgs_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{"cmd-shell without command", `test: ["CMD-SHELL"]`, "single string"},
		{"cmd-shell with two commands", `test: ["CMD-SHELL", "a", "b"]`, "got 2"},
		{"unknown mode", `test: ["EXEC", "true"]`, "EXEC"},
		{"empty list", `test: []`, "must not be empty"},
		{"mapping test", `test: {cmd: true}`, "string or a list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HealthcheckArgs("services.db.healthcheck", healthcheckNode(t, tt.src))
			require.Error(t, err)
			assert.ErrorIs(t, err, compose.ErrInvalidHealthcheck)
			assert.Contains(t, err.Error(), tt.message)
			assert.Contains(t, err.Error(), "services.db.healthcheck.test")
		})
	}
}
