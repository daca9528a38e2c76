package install

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

var errInvalidVersionOutput = errors.New("invalid version output format")

// Probe asks a binary for its version.
type Probe struct {
	args    []string
	pattern *regexp.Regexp
}

// NewProbe creates a probe running "<binary> args...". When pattern is set,
// its first submatch (or whole match) is the version.
func NewProbe(args []string, pattern string) (*Probe, error) {
	p := &Probe{args: append([]string(nil), args...)}

	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile version pattern: %w", err)
		}

		p.pattern = re
	}

	return p, nil
}

// Version runs the binary and parses its standard output.
func (p *Probe) Version(ctx context.Context, binaryPath string) (string, error) {
	output, err := exec.CommandContext(ctx, binaryPath, p.args...).Output()
	if err != nil {
		return "", fmt.Errorf("run %s: %w", binaryPath, err)
	}

	return p.parse(string(output))
}

// parse extracts the version from tool output. Without a pattern it
// understands "version: X, commit: ..." and otherwise takes the first line.
func (p *Probe) parse(output string) (string, error) {
	output = strings.TrimSpace(output)

	if p.pattern != nil {
		m := p.pattern.FindStringSubmatch(output)
		switch {
		case len(m) > 1 && m[1] != "":
			return m[1], nil
		case len(m) == 1 && m[0] != "":
			return m[0], nil
		default:
			return "", fmt.Errorf("%w: %q", errInvalidVersionOutput, output)
		}
	}

	line, _, _ := strings.Cut(output, "\n")
	line = strings.TrimSpace(line)

	if rest, ok := strings.CutPrefix(line, "version: "); ok {
		line, _, _ = strings.Cut(rest, ",")
		line = strings.TrimSpace(line)
	}

	if line == "" {
		return "", errInvalidVersionOutput
	}

	return line, nil
}
