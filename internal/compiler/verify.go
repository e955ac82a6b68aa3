package compiler

import (
	"github.com/dop251/goja"
)

// VerifyOutput parses generated JavaScript and reports syntax defects as a
// CompilationError before the result is cached. It never executes the code.
func VerifyOutput(path, code string) error {
	_, err := goja.Compile(path, code, false)
	if err == nil {
		return nil
	}
	return &CompilationError{
		Path: path,
		Diagnostics: []Diagnostic{
			{
				Message:  err.Error(),
				Line:     1,
				Column:   1,
				Severity: "error",
				Code:     "SLV0100",
			},
		},
	}
}
