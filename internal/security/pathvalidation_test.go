package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckWithinDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "packets")
	elsewhere := filepath.Join(root, "elsewhere")
	require.NoError(t, os.MkdirAll(out, 0755))
	require.NoError(t, os.MkdirAll(elsewhere, 0755))
	link := filepath.Join(out, "link")
	require.NoError(t, os.Symlink(elsewhere, link))

	tests := []struct {
		name    string
		path    string
		outside bool
	}{
		{"file in dir", filepath.Join(out, "squat.json"), false},
		{"not yet created subdir", filepath.Join(out, "2026", "squat.json"), false},
		{"dir itself", out, false},
		{"dotdot", filepath.Join(out, "..", "squat.json"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"absolute elsewhere", "/etc/passwd", true},
		{"through symlink", filepath.Join(link, "squat.json"), true},
		{"symlink itself", link, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckWithinDir(tt.path, out)
			if tt.outside {
				assert.ErrorIs(t, err, ErrOutsideDir)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckWithinDir_MissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "missing")
	err := CheckWithinDir(filepath.Join(dir, "squat.json"), dir)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOutsideDir)
}

func TestOutputPath(t *testing.T) {
	outDir := t.TempDir()

	tests := []struct {
		in   string
		want string
	}{
		{"squat.json", "squat.json"},
		{"../../etc/passwd", "etc_passwd"},
		{"my video/take 2.json", "my_video_take_2.json"},
		{"", "unknown"},
	}
	for _, tt := range tests {
		got, err := OutputPath(outDir, tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, filepath.Join(outDir, tt.want), got, tt.in)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"clip_01.mp4":      "clip_01.mp4",
		"..hidden":         "hidden",
		"a***b":            "a_b",
		"___":              "unknown",
		"pull-ups (1).mp4": "pull-ups_1_.mp4",
		"résumé.mov":       "r_sum_.mov",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeFilename(in), in)
	}

	assert.Len(t, SanitizeFilename(strings.Repeat("a", 300)), maxNameLen)
}
