package loader

import (
	"os"
	"path/filepath"
	"strings"
)

// Resolver maps import specifiers to files on disk. Relative specifiers
// resolve against the importing module's directory, bare specifiers against
// the configured base directory. Candidates are tried verbatim first, then
// with each configured extension appended.
type Resolver struct {
	baseDir    string
	extensions []string
}

// NewResolver creates a resolver rooted at baseURL.
func NewResolver(baseURL string, extensions []string) (*Resolver, error) {
	baseDir, err := filepath.Abs(baseURL)
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = []string{".slv"}
	}
	return &Resolver{baseDir: baseDir, extensions: extensions}, nil
}

// BaseDir returns the absolute resolution root.
func (r *Resolver) BaseDir() string {
	return r.baseDir
}

// Resolve returns the absolute file path for specifier, imported from
// fromDir. An empty fromDir means the base directory.
func (r *Resolver) Resolve(specifier, fromDir string) (string, error) {
	root := r.baseDir
	if isRelative(specifier) && fromDir != "" {
		root = fromDir
	}
	candidate := filepath.Clean(filepath.Join(root, specifier))

	tried := make([]string, 0, len(r.extensions)+1)
	if fileExists(candidate) {
		return candidate, nil
	}
	tried = append(tried, candidate)

	for _, ext := range r.extensions {
		withExt := candidate + ext
		if fileExists(withExt) {
			return withExt, nil
		}
		tried = append(tried, withExt)
	}

	return "", &ModuleNotFoundError{Specifier: specifier, FromDir: fromDir, Tried: tried}
}

func isRelative(specifier string) bool {
	return strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") ||
		specifier == "." || specifier == ".."
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
