package podman

import (
	"strconv"
	"strings"

	"github.com/artpar/podcompose/internal/core/compose"
)

// resourceArgs renders CPU and memory options. deploy.resources limits and
// reservations take precedence over the compose v2 keys. Values that are
// zero or do not parse are skipped.
func resourceArgs(spec compose.ServiceSpec) []string {
	var args []string
	res := spec.Deploy.Resources

	if cpus := firstPositive(res.Limits.CPUs, spec.CPUs); cpus != "" {
		args = append(args, "--cpus", cpus)
	}
	if shares, err := strconv.Atoi(strings.TrimSpace(string(spec.CPUShares))); err == nil && shares != 0 {
		args = append(args, "--cpu-shares", strconv.Itoa(shares))
	}
	if mem := firstSet(res.Limits.Memory, spec.MemLimit); mem != "" {
		args = append(args, "-m", strings.ToLower(mem))
	}
	if mem := firstSet(res.Reservations.Memory, spec.MemReservation); mem != "" {
		args = append(args, "--memory-reservation", strings.ToLower(mem))
	}
	return args
}

// firstPositive returns the first value that parses as a positive number,
// formatted with at least one decimal place.
func firstPositive(values ...compose.Scalar) string {
	for _, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
		if err != nil || f <= 0 {
			continue
		}
		s := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(s, ".") {
			s += ".0"
		}
		return s
	}
	return ""
}

func firstSet(values ...compose.Scalar) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return ""
}
