package weld

import (
	"path"
	"path/filepath"
)

// srcPath maps a slash-separated source name to a filesystem path under
// the source directory.
func srcPath(srcDir, f string) string {
	return filepath.Join(srcDir, filepath.FromSlash(path.Clean(f)))
}
