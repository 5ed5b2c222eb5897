// Package tracer owns the "record" mode ambient infrastructure: creating
// the temporary named pipe, spawning the external tracer process against
// it, and handing the pipeline a reader once the tracer is attached. The
// platform split (pipe_unix.go / pipe_windows.go) keeps the OS-specific pipe
// transport out of session.go; each side serves a single one-shot record
// session.
package tracer

import (
	"fmt"

	"github.com/kylewlacy/systrument/internal/yamlconfig"
)

// Config is the tracer-invocation template, decoded from an optional YAML
// file: a gopkg.in/yaml.v2 pass into a generic map, then
// mitchellh/mapstructure into the typed struct.
type Config struct {
	// Binary is the tracer executable name or path. Defaults to "strace".
	Binary string `mapstructure:"binary"`

	// StringLimit bounds how much of a string argument the tracer prints
	// before truncating it (the `--string-limit` flag).
	StringLimit int `mapstructure:"string_limit"`

	// ExtraArgs are appended after the built-in argument template and
	// before `-- <cmd>`.
	ExtraArgs []string `mapstructure:"extra_args"`
}

// DefaultConfig returns the in-code defaults used when no config file is
// given.
func DefaultConfig() Config {
	return Config{Binary: "strace", StringLimit: 4096}
}

// LoadConfig decodes a tracer configuration file and layers it over
// DefaultConfig. An empty path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	parsed, err := yamlconfig.ParseFile[Config](path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load tracer config: %w", err)
	}

	if parsed.Binary != "" {
		cfg.Binary = parsed.Binary
	}
	if parsed.StringLimit != 0 {
		cfg.StringLimit = parsed.StringLimit
	}
	if len(parsed.ExtraArgs) > 0 {
		cfg.ExtraArgs = parsed.ExtraArgs
	}

	return cfg, nil
}

// Args builds the tracer's command-line argument list for the given target
// command:
//
//	tracer -f --status=!unfinished --string-limit=<n>
//	  --absolute-timestamps=unix,us --syscall-times --decode-fds=all
//	  --always-show-pid --no-abbrev [--seccomp-bpf --trace=file,process]
//	  --output=<path> -- <user-cmd>
func (c Config) Args(outputPath string, seccompFilter bool, userCmd []string) []string {
	args := []string{
		"-f",
		"--status=!unfinished",
		fmt.Sprintf("--string-limit=%d", c.StringLimit),
		"--absolute-timestamps=unix,us",
		"--syscall-times",
		"--decode-fds=all",
		"--always-show-pid",
		"--no-abbrev",
	}
	if seccompFilter {
		args = append(args, "--seccomp-bpf", "--trace=file,process")
	}
	args = append(args, c.ExtraArgs...)
	args = append(args, "--output="+outputPath, "--")
	args = append(args, userCmd...)
	return args
}
