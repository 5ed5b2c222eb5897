package yamlconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSettings struct {
	Binary      string   `mapstructure:"binary"`
	StringLimit int      `mapstructure:"string_limit"`
	ExtraArgs   []string `mapstructure:"extra_args"`
}

func Test_ParseBuffer_DecodesIntoStruct(t *testing.T) {
	data := []byte("binary: /usr/bin/strace\nstring_limit: 256\nextra_args:\n  - -f\n  - -tt\n")

	got, err := ParseBuffer[testSettings](data, "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/strace", got.Binary)
	assert.Equal(t, 256, got.StringLimit)
	assert.Equal(t, []string{"-f", "-tt"}, got.ExtraArgs)
}

func Test_ParseBuffer_InvalidYAML(t *testing.T) {
	data := []byte("binary: [unterminated")
	_, err := ParseBuffer[testSettings](data, "test.yaml")
	assert.Error(t, err)
}

func Test_ParseFile_MissingFile(t *testing.T) {
	_, err := ParseFile[testSettings]("/nonexistent/path/to/config.yaml")
	assert.Error(t, err)
}
