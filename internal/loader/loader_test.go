package loader

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slovo-lang/slovo/internal/compiler"
	"github.com/slovo-lang/slovo/internal/config"
	"github.com/slovo-lang/slovo/internal/logging"
	"github.com/slovo-lang/slovo/internal/metrics"
)

// countingCompiler wraps Passthrough and counts invocations.
type countingCompiler struct {
	calls atomic.Int32
}

func (c *countingCompiler) Compile(source string, opts compiler.Options) (*compiler.Result, error) {
	c.calls.Add(1)
	return compiler.Passthrough{}.Compile(source, opts)
}

// brokenCompiler always reports a diagnostic.
type brokenCompiler struct {
	calls atomic.Int32
}

func (c *brokenCompiler) Compile(string, compiler.Options) (*compiler.Result, error) {
	c.calls.Add(1)
	return &compiler.Result{
		Errors: []compiler.Diagnostic{{Message: "неожиданный символ", Line: 2, Column: 7, Severity: "error", Code: "SLV0002"}},
	}, nil
}

func testConfig(baseDir string) *config.Config {
	cfg := config.Default()
	cfg.Resolution.BaseURL = baseDir
	cfg.Resolution.Extensions = []string{".slv"}
	return cfg
}

func newTestLoader(t *testing.T, cfg *config.Config, comp compiler.Compiler) (*Loader, *metrics.Collector) {
	t.Helper()
	col := metrics.NewCollector(nil)
	ldr, err := New(cfg, comp, col, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(ldr.Shutdown)
	return ldr, col
}

func TestLoadSingleModule(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", `вывести("привет")`)

	ldr, col := newTestLoader(t, testConfig(dir), compiler.Passthrough{})
	entry, err := ldr.Load(context.Background(), "главный")
	require.NoError(t, err)

	assert.Contains(t, entry.ResolvedPath, "главный.slv")
	assert.Equal(t, `вывести("привет")`, entry.CompiledCode)
	assert.Empty(t, entry.Dependencies)
	assert.False(t, entry.InsertedAt.IsZero())
	assert.EqualValues(t, 1, col.ModulesLoaded.Value())
}

func TestLoadModuleGraph(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "подключить \"./математика\"\nподключить \"./строки\"\n")
	writeFile(t, dir, "математика.slv", "подключить \"./строки\"\n")
	writeFile(t, dir, "строки.slv", "")

	ldr, _ := newTestLoader(t, testConfig(dir), compiler.Passthrough{})
	entry, err := ldr.Load(context.Background(), "главный")
	require.NoError(t, err)
	assert.Len(t, entry.Dependencies, 2)

	stats := ldr.Statistics()
	assert.Equal(t, 3, stats.TotalModules)
	assert.Equal(t, 3, stats.TotalDependencies)
}

func TestLoadUsesCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "")

	comp := &countingCompiler{}
	ldr, col := newTestLoader(t, testConfig(dir), comp)

	_, err := ldr.Load(context.Background(), "главный")
	require.NoError(t, err)
	_, err = ldr.Load(context.Background(), "главный")
	require.NoError(t, err)

	assert.EqualValues(t, 1, comp.calls.Load())
	assert.EqualValues(t, 2, col.Requests.Value())
	assert.EqualValues(t, 1, col.LoadLatency.Count())
	assert.InDelta(t, 0.5, col.CacheHitRate(), 1e-9)
}

func TestLoadCacheDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "")

	cfg := testConfig(dir)
	cfg.Loading.Cache = false
	comp := &countingCompiler{}
	ldr, _ := newTestLoader(t, cfg, comp)

	_, err := ldr.Load(context.Background(), "главный")
	require.NoError(t, err)
	_, err = ldr.Load(context.Background(), "главный")
	require.NoError(t, err)

	assert.EqualValues(t, 2, comp.calls.Load())
	assert.Equal(t, 0, ldr.Statistics().TotalModules)
}

func TestLoadCycleErrorPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "а.slv", "подключить \"./б\"\n")
	writeFile(t, dir, "б.slv", "подключить \"./а\"\n")

	ldr, _ := newTestLoader(t, testConfig(dir), compiler.Passthrough{})
	_, err := ldr.Load(context.Background(), "а")
	require.Error(t, err)

	var cycle *CircularDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.GreaterOrEqual(t, len(cycle.Chain), 3)
	assert.Equal(t, cycle.Chain[0], cycle.Chain[len(cycle.Chain)-1])
}

func TestLoadCycleWarnPolicy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "а.slv", "подключить \"./б\"\n")
	writeFile(t, dir, "б.slv", "подключить \"./а\"\n")

	cfg := testConfig(dir)
	cfg.Loading.CircularDependencyStrategy = "warn"
	ldr, col := newTestLoader(t, cfg, compiler.Passthrough{})

	_, err := ldr.Load(context.Background(), "а")
	require.NoError(t, err)
	assert.Equal(t, 2, ldr.Statistics().TotalModules)
	// The broken back-edge is observable in metrics.
	assert.EqualValues(t, 1, col.CircularWarnings.Value())
}

func TestLoadMissingImport(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "подключить \"./нет-такого\"\n")

	ldr, col := newTestLoader(t, testConfig(dir), compiler.Passthrough{})
	_, err := ldr.Load(context.Background(), "главный")
	require.Error(t, err)

	var notFound *ModuleNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Greater(t, col.LoadErrors.Value(), uint64(0))
}

func TestLoadCompilationErrorNotRetried(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "сломано")

	comp := &brokenCompiler{}
	ldr, col := newTestLoader(t, testConfig(dir), comp)

	_, err := ldr.Load(context.Background(), "главный")
	require.Error(t, err)

	var compErr *compiler.CompilationError
	require.True(t, errors.As(err, &compErr))
	assert.Equal(t, "SLV0002", compErr.Diagnostics[0].Code)

	// Non-recoverable failures propagate on the first attempt.
	assert.EqualValues(t, 1, comp.calls.Load())
	assert.EqualValues(t, 1, col.CompileErrors.Value())
	assert.Equal(t, 0, ldr.Breakers().ActiveTimerCount())
}

func TestLoadVerifyOutputRejectsBadJS(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "function ( { broken")

	cfg := testConfig(dir)
	cfg.Compilation.VerifyOutput = true
	ldr, col := newTestLoader(t, cfg, compiler.Passthrough{})

	_, err := ldr.Load(context.Background(), "главный")
	require.Error(t, err)

	var compErr *compiler.CompilationError
	require.True(t, errors.As(err, &compErr))
	assert.EqualValues(t, 1, col.CompileErrors.Value())
}

func TestLoadVerifyOutputAcceptsValidJS(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "const x = 1;\n")

	cfg := testConfig(dir)
	cfg.Compilation.VerifyOutput = true
	ldr, _ := newTestLoader(t, cfg, compiler.Passthrough{})

	_, err := ldr.Load(context.Background(), "главный")
	require.NoError(t, err)
}

func TestLoaderValidate(t *testing.T) {
	dir := t.TempDir()
	ldr, _ := newTestLoader(t, testConfig(dir), compiler.Passthrough{})

	result := ldr.Validate()
	assert.True(t, result.IsValid)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 0, ldr.Statistics().TotalModules)
}

func TestLoaderValidateBadBase(t *testing.T) {
	cfg := testConfig("/nonexistent/path/for/slovo")
	col := metrics.NewCollector(nil)
	ldr, err := New(cfg, compiler.Passthrough{}, col, logging.NewNop())
	require.NoError(t, err)
	defer ldr.Shutdown()

	result := ldr.Validate()
	assert.False(t, result.IsValid)
	assert.NotEmpty(t, result.Errors)
}

func TestLoaderShutdown(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "")

	ldr, _ := newTestLoader(t, testConfig(dir), compiler.Passthrough{})
	_, err := ldr.Load(context.Background(), "главный")
	require.NoError(t, err)

	ldr.Shutdown()
	ldr.Shutdown() // idempotent

	assert.Equal(t, 0, ldr.Statistics().TotalModules)
	assert.Equal(t, 0, ldr.Breakers().ActiveTimerCount())

	_, err = ldr.Load(context.Background(), "главный")
	require.Error(t, err)
}

func TestLoadCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "")

	ldr, _ := newTestLoader(t, testConfig(dir), compiler.Passthrough{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ldr.Load(ctx, "главный")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadWithoutCircuitBreakers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "главный.slv", "подключить \"./другой\"\n")
	writeFile(t, dir, "другой.slv", "")

	cfg := testConfig(dir)
	cfg.Features.CircuitBreakers = false
	ldr, _ := newTestLoader(t, cfg, compiler.Passthrough{})

	_, err := ldr.Load(context.Background(), "главный")
	require.NoError(t, err)
	assert.Empty(t, ldr.Breakers().AllStatus())
}
