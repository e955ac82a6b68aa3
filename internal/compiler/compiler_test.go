package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthroughFindsImports(t *testing.T) {
	source := "подключить \"./математика\"\nподключить \"../общие/строки\"\n\nвывести(1)\n"

	res, err := Passthrough{}.Compile(source, Options{})
	require.NoError(t, err)
	assert.Equal(t, source, res.Code)
	assert.Equal(t, []string{"./математика", "../общие/строки"}, res.Imports)
	assert.Empty(t, res.Errors)
}

func TestPassthroughIgnoresImportKeywordMidLine(t *testing.T) {
	res, err := Passthrough{}.Compile("вывести(\"подключить\")\n", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Imports)
}

func TestCompilationErrorMessage(t *testing.T) {
	err := &CompilationError{
		Path: "/src/главный.slv",
		Diagnostics: []Diagnostic{
			{Message: "неожиданный символ", Line: 3, Column: 14},
			{Message: "второстепенная", Line: 9, Column: 1},
		},
	}
	assert.Contains(t, err.Error(), "главный.slv")
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "неожиданный символ")

	empty := &CompilationError{Path: "x.slv"}
	assert.Contains(t, empty.Error(), "x.slv")
}

func TestVerifyOutput(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr bool
	}{
		{name: "valid program", code: "const x = 1;\nfunction f(a) { return a * 2; }\n"},
		{name: "empty program", code: ""},
		{name: "unbalanced brace", code: "function f( {", wantErr: true},
		{name: "stray token", code: "const = ;", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifyOutput("out.js", tt.code)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var compErr *CompilationError
			require.ErrorAs(t, err, &compErr)
			assert.Equal(t, "out.js", compErr.Path)
			assert.NotEmpty(t, compErr.Diagnostics)
		})
	}
}
