package tracer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadConfig_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func Test_LoadConfig_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("binary: /opt/bin/strace\nstring_limit: 64\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/bin/strace", cfg.Binary)
	assert.Equal(t, 64, cfg.StringLimit)
}

func Test_LoadConfig_PartialOverrideKeepsOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extra_args:\n  - -v\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Binary, cfg.Binary)
	assert.Equal(t, DefaultConfig().StringLimit, cfg.StringLimit)
	assert.Equal(t, []string{"-v"}, cfg.ExtraArgs)
}

func Test_Args_BuildsExpectedFlags(t *testing.T) {
	cfg := DefaultConfig()
	args := cfg.Args("/tmp/out.strace", false, []string{"echo", "hi"})

	assert.Contains(t, args, "--string-limit=4096")
	assert.Contains(t, args, "--output=/tmp/out.strace")
	assert.NotContains(t, args, "--seccomp-bpf")

	last := args[len(args)-2:]
	assert.Equal(t, []string{"echo", "hi"}, last)
}

func Test_Args_SeccompFilterAddsFlags(t *testing.T) {
	cfg := DefaultConfig()
	args := cfg.Args("/tmp/out.strace", true, []string{"echo"})
	assert.Contains(t, args, "--seccomp-bpf")
	assert.Contains(t, args, "--trace=file,process")
}

func Test_Args_AppendsExtraArgsBeforeOutput(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExtraArgs = []string{"-v"}
	args := cfg.Args("/tmp/out.strace", false, []string{"echo"})

	var extraIdx, outputIdx int
	for i, a := range args {
		if a == "-v" {
			extraIdx = i
		}
		if a == "--output=/tmp/out.strace" {
			outputIdx = i
		}
	}
	assert.Less(t, extraIdx, outputIdx)
}
