package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRestore_TwoColumnModeInference(t *testing.T) {
	dest := t.TempDir()
	path := writeManifest(t, "Restore Path,Destination\n"+
		`\\server\share\docs\report.pdf,`+dest+"\n"+
		`\\server\share\projects\,`+dest+"\n")

	entries, errs, err := ParseRestore(path)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, entries, 2)

	assert.Equal(t, ModeFile, entries[0].Mode)
	assert.Equal(t, `\\server\share\docs\report.pdf`, entries[0].SourcePath)
	assert.Equal(t, dest, entries[0].DestDir)

	assert.Equal(t, ModeDirectory, entries[1].Mode)
}

func TestParseRestore_ExplicitModeColumn(t *testing.T) {
	dest := t.TempDir()
	path := writeManifest(t,
		`\\server\share\projects,`+dest+",DIRECTORY\n"+
			`\\server\share\a.txt,`+dest+",file\n")

	entries, errs, err := ParseRestore(path)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, entries, 2)
	assert.Equal(t, ModeDirectory, entries[0].Mode)
	assert.Equal(t, ModeFile, entries[1].Mode)
}

func TestParseRestore_RejectsBadLines(t *testing.T) {
	dest := t.TempDir()

	tests := []struct {
		name   string
		line   string
		reason string
	}{
		{"wrong column count", `\\s\share\a.txt`, "wrong column count"},
		{"invalid mode", `\\s\share\a.txt,` + dest + ",tree", "invalid restore mode"},
		{"missing destination", `\\s\share\a.txt,` + dest + `\nope`, "destination directory does not exist"},
		{"empty source", "," + dest, "source path is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeManifest(t, tt.line+"\n")
			entries, errs, err := ParseRestore(path)
			require.NoError(t, err)
			assert.Empty(t, entries)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0].Reason, tt.reason)
		})
	}
}

func TestParseRestore_DestinationMustBeDirectory(t *testing.T) {
	dest := t.TempDir()
	file := writeManifest(t, "not a dir")

	path := writeManifest(t, `\\s\share\a.txt,`+file+"\n"+`\\s\share\b.txt,`+dest+"\n")

	entries, errs, err := ParseRestore(path)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "destination is not a directory", errs[0].Reason)
	require.Len(t, entries, 1)
	assert.Equal(t, `\\s\share\b.txt`, entries[0].SourcePath)
}
