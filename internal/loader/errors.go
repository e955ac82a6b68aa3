package loader

import (
	"fmt"
	"strings"
)

// ModuleNotFoundError reports a specifier that resolved to no file.
type ModuleNotFoundError struct {
	Specifier string
	FromDir   string
	Tried     []string
}

func (e *ModuleNotFoundError) Error() string {
	return fmt.Sprintf("module %q not found (from %s, tried %s)",
		e.Specifier, e.FromDir, strings.Join(e.Tried, ", "))
}

// CircularDependencyError names an import chain that returned to a module
// already being resolved.
type CircularDependencyError struct {
	Chain []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Chain, " -> "))
}
