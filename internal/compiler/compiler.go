// Package compiler defines the contract with the slovo-to-JavaScript
// transpiler pipeline. The pipeline itself lives outside this repository; the
// loader only consumes its output.
package compiler

import (
	"fmt"
	"regexp"
)

// Diagnostic is one message reported by the transpiler.
type Diagnostic struct {
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Snippet  string `json:"snippet"`
}

// Options are the per-invocation compiler settings.
type Options struct {
	Target string
	Strict bool
}

// Result is the transpiler output for one module.
type Result struct {
	// Code is the generated JavaScript.
	Code string
	// Imports are the module specifiers the source pulls in, in order.
	Imports []string
	// Errors is non-empty when compilation failed.
	Errors []Diagnostic
}

// Compiler turns slovo source into JavaScript.
type Compiler interface {
	Compile(source string, opts Options) (*Result, error)
}

// CompilationError carries the diagnostics for a module that failed to
// compile. It is never retried.
type CompilationError struct {
	Path        string
	Diagnostics []Diagnostic
}

func (e *CompilationError) Error() string {
	if len(e.Diagnostics) == 0 {
		return fmt.Sprintf("compilation of %s failed", e.Path)
	}
	first := e.Diagnostics[0]
	return fmt.Sprintf("compilation of %s failed: %s (line %d, column %d)",
		e.Path, first.Message, first.Line, first.Column)
}

// importPattern matches the slovo import form: подключить "specifier"
var importPattern = regexp.MustCompile(`(?m)^\s*подключить\s+"([^"]+)"`)

// Passthrough is a stand-in Compiler that emits the source unchanged while
// still discovering imports. It backs tests and tooling until the binary is
// linked against the real transpiler pipeline.
type Passthrough struct{}

// Compile returns the source as generated code and scans it for imports.
func (Passthrough) Compile(source string, _ Options) (*Result, error) {
	res := &Result{Code: source}
	for _, match := range importPattern.FindAllStringSubmatch(source, -1) {
		res.Imports = append(res.Imports, match[1])
	}
	return res, nil
}
