package processor

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Generator produces info proxy accessors for packages. A single generator
// can run many passes, including concurrently; passes share its cache, so
// declarations that did not change since an earlier pass are not recomputed.
type Generator struct {
	settings Settings
	cache    *Cache
	reporter Reporter
	logger   *zap.Logger
	workers  int

	computed atomic.Int64
}

// Option configures a Generator.
type Option func(*Generator)

// WithSettings sets the names used in generated code.
func WithSettings(s Settings) Option {
	return func(g *Generator) {
		g.settings = s
	}
}

// WithCache sets the cache used across passes. Sharing a cache between
// generators with different settings is safe: settings are part of the key.
func WithCache(c *Cache) Option {
	return func(g *Generator) {
		g.cache = c
	}
}

// WithReporter sets where diagnostics are reported.
func WithReporter(r Reporter) Option {
	return func(g *Generator) {
		g.reporter = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// WithWorkers limits how many declarations are processed concurrently. Zero
// or negative means GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		g.workers = n
	}
}

// NewGenerator creates a generator.
func NewGenerator(opts ...Option) (*Generator, error) {
	g := &Generator{
		settings: DefaultSettings(),
		reporter: NopReporter,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if err := g.settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if g.workers <= 0 {
		g.workers = runtime.GOMAXPROCS(0)
	}
	if g.cache == nil {
		c, err := NewCache(DefaultCacheSize, nil)
		if err != nil {
			return nil, err
		}
		g.cache = c
	}
	return g, nil
}

// Settings returns the generator's settings.
func (g *Generator) Settings() Settings {
	return g.settings
}

// Stats summarizes the work done by a generator.
type Stats struct {
	// Hits is the number of declarations whose output came from the cache.
	Hits int64
	// Misses is the number of declarations not found in the cache.
	Misses int64
	// Computed is the number of declarations that were extracted,
	// validated and rendered.
	Computed int64
}

// Stats returns counters accumulated over all passes so far.
func (g *Generator) Stats() Stats {
	return Stats{
		Hits:     g.cache.Hits(),
		Misses:   g.cache.Misses(),
		Computed: g.computed.Load(),
	}
}

// Result is the output of one pass over a package.
type Result struct {
	// Package is the import path of the processed package.
	Package string
	// Proxies are the valid info proxies, in discovery order.
	Proxies []ValidatedProxyInfo
	// Artifacts has one file per valid info proxy, in discovery order.
	Artifacts []Artifact
	// Aggregated holds the registry's getter methods. It is always
	// produced, even when there are no valid proxies.
	Aggregated Artifact
	// Registration is produced only when Settings.Register is set.
	Registration *Artifact
	// Diagnostics are all problems found, in discovery order.
	Diagnostics []Diagnostic
}

// HasErrors returns true if any diagnostic has error severity.
func (r *Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// outcome is what one declaration contributes to a pass.
type outcome struct {
	info        *ValidatedProxyInfo
	artifact    *Artifact
	diagnostics []Diagnostic
}

// Run processes all annotated types in the given package. Declarations are
// handled independently: an invalid declaration yields diagnostics and no
// output, without affecting the others.
//
// An error is returned only if the pass could not complete, for example
// because ctx was cancelled. In that case, nothing computed by the
// abandoned pass is cached.
func (g *Generator) Run(ctx context.Context, pkg *Package) (*Result, error) {
	cands := pkg.discover()
	outcomes := make([]outcome, len(cands))

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(g.workers)
	for i, c := range cands {
		i, c := i, c
		grp.Go(func() error {
			if err := grpCtx.Err(); err != nil {
				return err
			}
			o, err := g.process(grpCtx, pkg, c)
			if err != nil {
				return err
			}
			outcomes[i] = o
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Package: pkg.Path}
	for _, o := range outcomes {
		res.Diagnostics = append(res.Diagnostics, o.diagnostics...)
		if o.info != nil {
			res.Proxies = append(res.Proxies, *o.info)
			res.Artifacts = append(res.Artifacts, *o.artifact)
		}
	}
	agg, err := Aggregate(g.settings, pkg.Path, pkg.Name, res.Proxies)
	if err != nil {
		return nil, err
	}
	res.Aggregated = agg
	if g.settings.Register {
		reg, err := RenderRegistration(pkg.Path, pkg.Name, res.Proxies)
		if err != nil {
			return nil, err
		}
		res.Registration = &reg
	}

	for _, d := range res.Diagnostics {
		g.reporter.Report(d)
	}
	g.logger.Info("processed package",
		zap.String("package", pkg.Path),
		zap.Int("candidates", len(cands)),
		zap.Int("proxies", len(res.Proxies)),
		zap.Int("diagnostics", len(res.Diagnostics)))
	return res, nil
}

func (g *Generator) process(ctx context.Context, pkg *Package, c candidate) (outcome, error) {
	in, ok, diags := pkg.resolve(c, g.settings.Marker)
	if !ok {
		return outcome{diagnostics: diags}, nil
	}

	key, err := computeKey(g.settings, in)
	if err != nil {
		return outcome{}, err
	}
	if e, ok := g.cache.get(key); ok {
		g.logger.Debug("cache hit", zap.String("type", in.QualifiedName()), zap.Stringer("key", key))
		return outcome{info: e.Info, artifact: e.Artifact.clone(), diagnostics: e.diagnostics(in)}, nil
	}
	g.logger.Debug("cache miss", zap.String("type", in.QualifiedName()), zap.Stringer("key", key))

	g.computed.Add(1)
	v := Combine(Extract(in), ValidateProxyID(in), func(t TypeDeclarationInfo, id uint32) ValidatedProxyInfo {
		return ValidatedProxyInfo{Type: t, ID: id}
	})
	var artifact *Artifact
	if info, ok := v.Value(); ok {
		a, err := RenderInstanceGetter(g.settings, info)
		if err != nil {
			return outcome{}, err
		}
		artifact = &a
	}
	entry := newEntry(in, v, artifact)

	if ctx.Err() != nil {
		// the pass is being abandoned; leave the cache as it was
		return outcome{}, ctx.Err()
	}
	if err := g.cache.put(key, entry); err != nil {
		g.logger.Warn("failed to store cache entry", zap.String("type", in.QualifiedName()), zap.Error(err))
	}
	return outcome{info: entry.Info, artifact: artifact.clone(), diagnostics: v.Diagnostics()}, nil
}
