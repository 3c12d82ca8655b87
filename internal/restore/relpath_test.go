package restore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/coldvault/internal/manifest"
)

func TestRelativePath(t *testing.T) {
	tests := []struct {
		name     string
		original string
		root     string
		mode     manifest.Mode
		want     string
	}{
		{
			"file mode flattens to base name",
			`\\server\share\deep\nested\report.pdf`, `\\server\share\deep\nested\report.pdf`,
			manifest.ModeFile, "report.pdf",
		},
		{
			"directory mode preserves subtree",
			`\\server\share\projects\2026\q3\plan.xlsx`, `\\server\share\projects`,
			manifest.ModeDirectory, `2026\q3\plan.xlsx`,
		},
		{
			"root with trailing separator",
			`\\server\share\projects\a.txt`, `\\server\share\projects\`,
			manifest.ModeDirectory, "a.txt",
		},
		{
			"case drift between archive and restore",
			`\\SERVER\Share\Projects\a.txt`, `\\server\share\projects`,
			manifest.ModeDirectory, "a.txt",
		},
		{
			"path outside root falls back to base name",
			`\\other\share\x\y.txt`, `\\server\share\projects`,
			manifest.ModeDirectory, "y.txt",
		},
		{
			"sibling prefix is not a subtree",
			`\\server\share\projects-old\a.txt`, `\\server\share\projects`,
			manifest.ModeDirectory, "a.txt",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RelativePath(tt.original, tt.root, tt.mode))
		})
	}
}

func TestPlacementPath(t *testing.T) {
	dest := filepath.Join("restored", "out")
	got := placementPath(dest, `2026\q3\plan.xlsx`)
	assert.Equal(t, filepath.Join(dest, "2026", "q3", "plan.xlsx"), got)

	flat := placementPath(dest, "report.pdf")
	assert.Equal(t, filepath.Join(dest, "report.pdf"), flat)
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "f.txt", baseName(`\\s\share\dir\f.txt`))
	assert.Equal(t, "f.txt", baseName("dir/sub/f.txt"))
	assert.Equal(t, "dir", baseName(`\\s\share\dir\`))
}
