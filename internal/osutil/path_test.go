package osutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFilePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("KVENV_TEST_DIR", "from-env")

	wd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		in, want string
	}{
		{in: "", want: ""},
		{in: "~/kvenv.cfg", want: filepath.Join(home, "kvenv.cfg")},
		{in: "$KVENV_TEST_DIR/kvenv.cfg", want: filepath.Join(wd, "from-env", "kvenv.cfg")},
		{in: "./a/../kvenv.cfg", want: filepath.Join(wd, "kvenv.cfg")},
	}

	for _, test := range tests {
		got, err := NormalizeFilePath(test.in)
		require.NoError(t, err)
		assert.Equal(t, test.want, got, "NormalizeFilePath(%q)", test.in)
	}
}

func TestExpandHomeRejectsOtherUsers(t *testing.T) {
	_, err := ExpandHome("~someone/kvenv.cfg")
	assert.EqualError(t, err, "cannot expand user-specific home dir")
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	assert.True(t, FileExists(path))
	assert.False(t, FileExists(filepath.Join(dir, "absent")))
}
