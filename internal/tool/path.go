package tool

import "path/filepath"

func resolvePath(c *Context, path string) (string, error) {
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	if !c.HasCWD() {
		return "", errNoCWD
	}
	return filepath.Clean(filepath.Join(c.CWD, path)), nil
}
