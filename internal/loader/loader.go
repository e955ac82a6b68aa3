// Package loader resolves, compiles, and caches slovo module graphs. Every
// load runs behind a per-path circuit breaker with timed retries so a flaky
// dependency is isolated instead of failing whole graphs repeatedly.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/slovo-lang/slovo/internal/compiler"
	"github.com/slovo-lang/slovo/internal/config"
	"github.com/slovo-lang/slovo/internal/logging"
	"github.com/slovo-lang/slovo/internal/metrics"
	"github.com/slovo-lang/slovo/internal/resilience"
)

// CacheEntry is one compiled module. Entries are invalidated only by an
// explicit cache clear, never by age.
type CacheEntry struct {
	ResolvedPath string    `json:"resolvedPath"`
	CompiledCode string    `json:"-"`
	Dependencies []string  `json:"dependencies"`
	InsertedAt   time.Time `json:"insertedAt"`
}

// Statistics summarizes the current cache.
type Statistics struct {
	TotalModules      int `json:"totalModules"`
	TotalDependencies int `json:"totalDependencies"`
}

// ValidationResult is the outcome of a configuration dry run.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// Loader loads module graphs with caching and cycle detection. It owns its
// circuit breaker manager; Shutdown tears both down.
type Loader struct {
	cfg      *config.Config
	comp     compiler.Compiler
	col      *metrics.Collector
	log      *logging.Logger
	breakers *resilience.Manager
	resolver *Resolver
	retry    resilience.RetryConfig

	mu     sync.Mutex
	cache  map[string]*CacheEntry
	closed bool
}

// New creates a loader. col may be nil when the metrics feature is disabled.
func New(cfg *config.Config, comp compiler.Compiler, col *metrics.Collector, log *logging.Logger) (*Loader, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if col == nil {
		col = metrics.NewCollector(nil)
	}
	resolver, err := NewResolver(cfg.Resolution.BaseURL, cfg.Resolution.Extensions)
	if err != nil {
		return nil, fmt.Errorf("invalid resolution base %q: %w", cfg.Resolution.BaseURL, err)
	}
	return &Loader{
		cfg:      cfg,
		comp:     comp,
		col:      col,
		log:      log,
		breakers: resilience.NewManager(resilience.DefaultConfig(), log),
		resolver: resolver,
		retry:    resilience.DefaultRetryConfig(),
		cache:    make(map[string]*CacheEntry),
	}, nil
}

// Breakers exposes the loader's circuit breaker manager to the management
// surface. Read-only use only.
func (l *Loader) Breakers() *resilience.Manager {
	return l.breakers
}

// Load resolves and loads the module graph rooted at entryPath.
func (l *Loader) Load(ctx context.Context, entryPath string) (*CacheEntry, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, fmt.Errorf("loader is shut down")
	}
	l.mu.Unlock()

	resolved, err := l.resolver.Resolve(entryPath, "")
	if err != nil {
		l.col.IncLoadErrors()
		return nil, err
	}
	return l.loadGuarded(ctx, resolved, nil)
}

// loadGuarded runs one module load through the per-path breaker with retries.
func (l *Loader) loadGuarded(ctx context.Context, resolved string, chain []string) (*CacheEntry, error) {
	op := func() (any, error) {
		return l.loadResolved(ctx, resolved, chain)
	}
	if !l.cfg.Features.CircuitBreakers {
		result, err := op()
		if err != nil {
			return nil, err
		}
		return result.(*CacheEntry), nil
	}
	result, err := l.breakers.ExecuteWithRetry(resolved, op, l.retry)
	if err != nil {
		return nil, err
	}
	return result.(*CacheEntry), nil
}

// loadResolved is one load attempt for an already-resolved path. chain holds
// the in-progress resolution paths, outermost first.
func (l *Loader) loadResolved(ctx context.Context, path string, chain []string) (*CacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, resilience.Permanent(err)
	}
	l.col.IncRequests()

	if l.cfg.Loading.Cache {
		l.mu.Lock()
		entry, ok := l.cache[path]
		l.mu.Unlock()
		if ok {
			return entry, nil
		}
	}

	if slices.Contains(chain, path) {
		cycle := append(slices.Clone(chain), path)
		if l.cfg.Loading.CircularDependencyStrategy == "warn" {
			l.log.Warn("circular dependency broken at back-edge",
				zap.Strings("cycle", cycle),
			)
			l.col.IncCircularWarnings()
			// Break the cycle by treating the back-edge as already resolved.
			return &CacheEntry{ResolvedPath: path, InsertedAt: time.Now()}, nil
		}
		return nil, resilience.Permanent(&CircularDependencyError{Chain: cycle})
	}

	start := time.Now()
	source, err := os.ReadFile(path)
	if err != nil {
		l.col.IncLoadErrors()
		return nil, fmt.Errorf("read module %s: %w", path, err)
	}

	compileStart := time.Now()
	result, err := l.comp.Compile(string(source), compiler.Options{
		Target: l.cfg.Compilation.Target,
		Strict: l.cfg.Compilation.Strict,
	})
	if err != nil {
		l.col.IncCompileErrors()
		return nil, resilience.Permanent(fmt.Errorf("compile %s: %w", path, err))
	}
	if len(result.Errors) > 0 {
		l.col.IncCompileErrors()
		return nil, resilience.Permanent(&compiler.CompilationError{Path: path, Diagnostics: result.Errors})
	}
	if l.cfg.Compilation.VerifyOutput {
		if err := compiler.VerifyOutput(path, result.Code); err != nil {
			l.col.IncCompileErrors()
			return nil, resilience.Permanent(err)
		}
	}
	l.col.RecordCompile(time.Since(compileStart))

	entry := &CacheEntry{
		ResolvedPath: path,
		CompiledCode: result.Code,
		InsertedAt:   time.Now(),
	}

	childChain := append(slices.Clone(chain), path)
	fromDir := filepath.Dir(path)
	for _, specifier := range result.Imports {
		childPath, err := l.resolver.Resolve(specifier, fromDir)
		if err != nil {
			l.col.IncLoadErrors()
			return nil, err
		}
		if _, err := l.loadGuarded(ctx, childPath, childChain); err != nil {
			// The child breaker already exhausted its own retries; retrying
			// the parent on top would multiply attempts across the graph.
			return nil, resilience.Permanent(fmt.Errorf("load dependency %q: %w", specifier, err))
		}
		entry.Dependencies = append(entry.Dependencies, childPath)
	}

	if l.cfg.Loading.Cache {
		l.mu.Lock()
		l.cache[path] = entry
		l.mu.Unlock()
	}
	l.col.IncModulesLoaded()
	l.col.RecordLoad(time.Since(start))

	l.log.Debug("module loaded",
		zap.String("path", path),
		zap.Int("dependencies", len(entry.Dependencies)),
	)
	return entry, nil
}

// Statistics reports cache and dependency edge counts.
func (l *Loader) Statistics() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := Statistics{TotalModules: len(l.cache)}
	for _, entry := range l.cache {
		stats.TotalDependencies += len(entry.Dependencies)
	}
	return stats
}

// Validate dry-runs the configuration without mutating the cache.
func (l *Loader) Validate() ValidationResult {
	result := ValidationResult{IsValid: true}
	fail := func(format string, args ...any) {
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	if info, err := os.Stat(l.resolver.BaseDir()); err != nil || !info.IsDir() {
		fail("resolution base directory %s is not accessible", l.resolver.BaseDir())
	}
	switch l.cfg.Loading.CircularDependencyStrategy {
	case "error", "warn":
	default:
		fail("unknown circular dependency strategy %q", l.cfg.Loading.CircularDependencyStrategy)
	}
	for _, ext := range l.cfg.Resolution.Extensions {
		if len(ext) == 0 || ext[0] != '.' {
			fail("extension %q must start with a dot", ext)
		}
	}
	return result
}

// ClearCache drops every cached module.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*CacheEntry)
}

// Shutdown tears down the breaker manager and releases the cache. Idempotent.
func (l *Loader) Shutdown() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.cache = make(map[string]*CacheEntry)
	l.mu.Unlock()

	l.breakers.Shutdown()
	l.log.Info("module loader shut down")
}
