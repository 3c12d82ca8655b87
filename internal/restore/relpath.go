package restore

import (
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/coldvault/internal/manifest"
)

// RelativePath computes where an archived file lands under the destination
// directory. File-mode restores always flatten to the base name. Directory
// restores preserve the subtree below the requested root, comparing paths in
// the backslash convention the provenance store records and ignoring case,
// since the archived paths came from Windows shares. An original path that
// does not sit under the root falls back to the base name rather than
// escaping the destination.
func RelativePath(originalPath, requestedRoot string, mode manifest.Mode) string {
	if mode == manifest.ModeFile {
		return baseName(originalPath)
	}

	orig := strings.ReplaceAll(originalPath, "/", `\`)
	root := strings.TrimRight(strings.ReplaceAll(requestedRoot, "/", `\`), `\`) + `\`

	if len(orig) > len(root) && strings.EqualFold(orig[:len(root)], root) {
		rel := strings.Trim(orig[len(root):], `\`)
		if rel != "" {
			return rel
		}
	}
	return baseName(originalPath)
}

// placementPath turns an item's destination directory and backslash-separated
// relative path into a local path for this OS.
func placementPath(destDir, relative string) string {
	segments := strings.Split(strings.Trim(relative, `\`), `\`)
	return filepath.Join(append([]string{destDir}, segments...)...)
}

func baseName(p string) string {
	p = strings.ReplaceAll(p, "/", `\`)
	p = strings.TrimRight(p, `\`)
	if i := strings.LastIndex(p, `\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
