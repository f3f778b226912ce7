package processor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	alphaDecl = "// Alpha is a proxy given by position.\n// @infoproxy.InfoProxy(3)\ntype Alpha struct{}"
	betaDecl  = "// Beta is a proxy given by name.\n// @infoproxy.InfoProxy{ID: 7}\ntype Beta struct{}"
	gammaDecl = "// @infoproxy.InfoProxy{}\ntype Gamma struct{}"
	deltaDecl = "// @infoproxy.InfoProxy{}\ntype Delta interface{}"
	plainDecl = "// Plain is not a proxy.\ntype Plain struct{}"
)

func newTestGenerator(t *testing.T, opts ...Option) (*Generator, *Collector) {
	t.Helper()
	var collector Collector
	opts = append([]Option{WithLogger(zaptest.NewLogger(t)), WithReporter(&collector)}, opts...)
	g, err := NewGenerator(opts...)
	require.NoError(t, err)
	return g, &collector
}

func run(t *testing.T, g *Generator, src string) *Result {
	t.Helper()
	res, err := g.Run(context.Background(), loadSource(t, src))
	require.NoError(t, err)
	return res
}

func TestGenerator_TwoProxies(t *testing.T) {
	g, collector := newTestGenerator(t)
	res := run(t, g, proxySource(alphaDecl, plainDecl, betaDecl))

	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, collector.Diagnostics())
	assert.False(t, res.HasErrors())
	assert.Equal(t, testPkgPath, res.Package)
	assert.Equal(t, []ValidatedProxyInfo{testProxy("Alpha", 3), testProxy("Beta", 7)}, res.Proxies)
	assert.Equal(t, []string{"Alpha.InstanceGetter.g.go", "Beta.InstanceGetter.g.go"}, filenames(res.Artifacts))
	assert.Nil(t, res.Registration)

	requireSameSource(t, `// Code generated by infoproxygen. DO NOT EDIT.

package info

// Instance returns the Alpha info proxy registered under id 3.
func (Alpha) Instance() *Alpha {
	return (*Alpha)(InfoModuleInstance().GetInfoProxyByID(3))
}
`, res.Artifacts[0].Source)

	assert.Equal(t, "InfoModule.InfoProxyGetter.g.go", res.Aggregated.Filename)
	requireSameSource(t, `// Code generated by infoproxygen. DO NOT EDIT.

package info

// GetAlpha returns the Alpha info proxy.
func (m *InfoModule) GetAlpha() *Alpha {
	return (*Alpha)(m.GetInfoProxyByID(3))
}

// GetBeta returns the Beta info proxy.
func (m *InfoModule) GetBeta() *Beta {
	return (*Beta)(m.GetInfoProxyByID(7))
}
`, res.Aggregated.Source)
}

func TestGenerator_MissingID(t *testing.T) {
	g, collector := newTestGenerator(t)
	src := proxySource(gammaDecl)
	res := run(t, g, src)

	assert.Empty(t, res.Artifacts)
	assert.Empty(t, res.Proxies)
	assert.True(t, res.HasErrors())
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, CodeMissingArgument, d.Code)
	assert.Contains(t, d.Message, "ID")
	assert.Contains(t, d.Message, "Gamma")
	assert.Contains(t, d.Message, "infoproxy.InfoProxy")
	line, col := positionOf(t, src, "@infoproxy.InfoProxy{}")
	assert.Equal(t, line, d.Pos.Line)
	assert.Equal(t, col, d.Pos.Column)
	assert.Equal(t, "info.go", d.Pos.Filename)
	assert.Equal(t, res.Diagnostics, collector.Diagnostics())

	// the aggregated file is produced even though it has no getters
	assert.Equal(t, "InfoModule.InfoProxyGetter.g.go", res.Aggregated.Filename)
	assert.NotContains(t, string(res.Aggregated.Source), "func")
}

func TestGenerator_NoCandidates(t *testing.T) {
	g, _ := newTestGenerator(t)
	res := run(t, g, proxySource(plainDecl))
	assert.Empty(t, res.Artifacts)
	assert.Empty(t, res.Diagnostics)
	requireSameSource(t, "// Code generated by infoproxygen. DO NOT EDIT.\n\npackage info\n", res.Aggregated.Source)
}

func TestGenerator_PartialFailure(t *testing.T) {
	g, _ := newTestGenerator(t, WithWorkers(2))
	res := run(t, g, proxySource(
		alphaDecl,
		gammaDecl,
		betaDecl,
		"// @infoproxy.InfoProxy(11)\ntype Epsilon struct{}",
	))
	assert.Equal(t, []string{
		"Alpha.InstanceGetter.g.go",
		"Beta.InstanceGetter.g.go",
		"Epsilon.InstanceGetter.g.go",
	}, filenames(res.Artifacts))
	assert.Equal(t, []Code{CodeMissingArgument}, codes(res.Diagnostics))

	agg := string(res.Aggregated.Source)
	assert.Contains(t, agg, "GetAlpha")
	assert.Contains(t, agg, "GetBeta")
	assert.Contains(t, agg, "GetEpsilon")
	assert.NotContains(t, agg, "GetGamma")
}

func TestGenerator_AccumulatesDiagnostics(t *testing.T) {
	g, _ := newTestGenerator(t)
	res := run(t, g, proxySource(deltaDecl))
	assert.Empty(t, res.Artifacts)
	require.Equal(t, []Code{CodeNotAStruct, CodeMissingArgument}, codes(res.Diagnostics))
	for _, d := range res.Diagnostics {
		assert.Contains(t, d.Message, "Delta")
	}
}

func TestGenerator_DiagnosticsInDiscoveryOrder(t *testing.T) {
	g, _ := newTestGenerator(t, WithWorkers(4))
	res := run(t, g, proxySource(
		"// @infoproxy.InfoProxy(\"one\")\ntype One struct{}",
		"// @infoproxy.InfoProxy{ID: 2, Extra: 3}\ntype Two struct{}",
		"// @infoproxy.InfoProxy(3)\ntype Three = Alpha",
		"// @infoproxy.InfoProxy(Four)\ntype Four struct{}",
		"// @infoproxy.InfoProxy{ID: 3,,}\ntype Five struct{}",
	))
	assert.Equal(t, []Code{
		CodeInvalidArgument,
		CodeUnknownArgument,
		CodeAliasDeclaration,
		CodeUnresolvedArgument,
		CodeMalformedAnnotation,
	}, codes(res.Diagnostics))
}

func TestGenerator_IgnoresOtherAnnotations(t *testing.T) {
	g, collector := newTestGenerator(t)
	res := run(t, g, proxySource(
		alphaDecl,
		"// Model is a response body.\n// @name ModelResponse\ntype Model struct{}",
		"// @see Alpha for details\ntype Other struct{}",
		"// @deprecated use Alpha (for now\n// @infoproxy.InfoProxy{ID: 7}\n// @see Alpha's docs\ntype Beta struct{}",
	))
	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, collector.Diagnostics())
	assert.Equal(t, []ValidatedProxyInfo{testProxy("Alpha", 3), testProxy("Beta", 7)}, res.Proxies)
}

func TestGenerator_IDByNameAndPosition(t *testing.T) {
	g, _ := newTestGenerator(t)
	src := proxySource("// @infoproxy.InfoProxy{ID: 3, 4}\ntype Mixed struct{}")
	res := run(t, g, src)
	assert.Empty(t, res.Proxies)
	require.Len(t, res.Diagnostics, 1)
	d := res.Diagnostics[0]
	assert.Equal(t, CodeDuplicateArgument, d.Code)
	assert.Equal(t, "@infoproxy.InfoProxy on Mixed gives argument ID both by name and by position", d.Message)
	line, col := positionOf(t, src, "4}")
	assert.Equal(t, line, d.Pos.Line)
	assert.Equal(t, col, d.Pos.Column)
}

func TestGenerator_PositionalEqualsNamed(t *testing.T) {
	g, _ := newTestGenerator(t)
	positional := run(t, g, proxySource("// @infoproxy.InfoProxy(5)\ntype FriendList struct{}"))
	braced := run(t, g, proxySource("// @infoproxy.InfoProxy{5}\ntype FriendList struct{}"))
	named := run(t, g, proxySource("// @infoproxy.InfoProxy{ID: 5}\ntype FriendList struct{}"))

	require.Len(t, positional.Artifacts, 1)
	assert.Equal(t, positional.Artifacts, braced.Artifacts)
	assert.Equal(t, positional.Artifacts, named.Artifacts)
	assert.Equal(t, positional.Aggregated, named.Aggregated)
	assert.Equal(t, positional.Proxies, named.Proxies)
}

func TestGenerator_NamingContract(t *testing.T) {
	g, _ := newTestGenerator(t)
	res := run(t, g, proxySource("// @infoproxy.InfoProxy(9)\ntype Linkshell struct{}"))
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, "Linkshell.InstanceGetter.g.go", res.Artifacts[0].Filename)
	assert.Contains(t, string(res.Artifacts[0].Source), "func (Linkshell) Instance() *Linkshell {")
	assert.Contains(t, string(res.Aggregated.Source), "func (m *InfoModule) GetLinkshell() *Linkshell {")
}

func TestGenerator_Deterministic(t *testing.T) {
	src := proxySource(alphaDecl, gammaDecl, betaDecl, deltaDecl)
	g1, _ := newTestGenerator(t, WithWorkers(1))
	g2, _ := newTestGenerator(t, WithWorkers(8))
	res1 := run(t, g1, src)
	res2 := run(t, g2, src)
	assert.Equal(t, res1, res2)
}

func TestGenerator_CachedPassIsIdentical(t *testing.T) {
	src := proxySource(alphaDecl, gammaDecl, betaDecl)
	g, collector := newTestGenerator(t)

	first := run(t, g, src)
	stats := g.Stats()
	assert.Equal(t, int64(3), stats.Computed)
	assert.Equal(t, int64(3), stats.Misses)
	assert.Equal(t, int64(0), stats.Hits)

	second := run(t, g, src)
	assert.Equal(t, first, second)
	stats = g.Stats()
	assert.Equal(t, int64(3), stats.Computed)
	assert.Equal(t, int64(3), stats.Hits)

	// diagnostics are reported on every pass
	assert.Len(t, collector.Diagnostics(), 2)
}

func TestGenerator_CachedArtifactsAreNotShared(t *testing.T) {
	src := proxySource(alphaDecl)
	g, _ := newTestGenerator(t)

	first := run(t, g, src)
	require.Len(t, first.Artifacts, 1)
	want := string(first.Artifacts[0].Source)

	second := run(t, g, src)
	require.Len(t, second.Artifacts, 1)
	assert.Equal(t, int64(1), g.Stats().Hits)
	for i := range second.Artifacts[0].Source {
		second.Artifacts[0].Source[i] = 'x'
	}

	third := run(t, g, src)
	require.Len(t, third.Artifacts, 1)
	assert.Equal(t, want, string(first.Artifacts[0].Source))
	assert.Equal(t, want, string(third.Artifacts[0].Source))
}

func TestGenerator_UnrelatedEditReusesOutputs(t *testing.T) {
	g, _ := newTestGenerator(t)
	before := run(t, g, proxySource(alphaDecl, betaDecl))

	// Beta changes and a new declaration pushes Alpha further down the file
	after := run(t, g, proxySource(
		"// @infoproxy.InfoProxy(1)\ntype Omega struct{}",
		alphaDecl,
		strings.Replace(betaDecl, "ID: 7", "ID: 8", 1),
	))
	assert.Equal(t, int64(4), g.Stats().Computed)

	require.Len(t, after.Artifacts, 3)
	assert.Equal(t, before.Artifacts[0], after.Artifacts[1])
	assert.NotEqual(t, before.Artifacts[1].Source, after.Artifacts[2].Source)
	assert.Contains(t, string(after.Artifacts[2].Source), "GetInfoProxyByID(8)")
}

func TestGenerator_MovedDeclarationKeepsPositions(t *testing.T) {
	g, _ := newTestGenerator(t)
	src1 := proxySource(gammaDecl)
	src2 := proxySource(plainDecl, "// Gamma moved.\n//\n"+gammaDecl)

	res1 := run(t, g, src1)
	res2 := run(t, g, src2)
	assert.Equal(t, int64(1), g.Stats().Computed)
	assert.Equal(t, int64(1), g.Stats().Hits)

	require.Len(t, res1.Diagnostics, 1)
	require.Len(t, res2.Diagnostics, 1)
	line1, col1 := positionOf(t, src1, "@infoproxy.InfoProxy{}")
	line2, col2 := positionOf(t, src2, "@infoproxy.InfoProxy{}")
	assert.Equal(t, line1, res1.Diagnostics[0].Pos.Line)
	assert.Equal(t, line2, res2.Diagnostics[0].Pos.Line)
	assert.Equal(t, col1, res1.Diagnostics[0].Pos.Column)
	assert.Equal(t, col2, res2.Diagnostics[0].Pos.Column)
	assert.Equal(t, strings.Index(src2, "@infoproxy.InfoProxy{}"), res2.Diagnostics[0].Pos.Offset)
	assert.Equal(t, "info.go", res2.Diagnostics[0].Pos.Filename)
	assert.Equal(t, res1.Diagnostics[0].Message, res2.Diagnostics[0].Message)
}

func TestGenerator_CancelledPassCachesNothing(t *testing.T) {
	cache, err := NewCache(DefaultCacheSize, nil)
	require.NoError(t, err)
	g, collector := newTestGenerator(t, WithCache(cache))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := g.Run(ctx, loadSource(t, proxySource(alphaDecl, betaDecl, gammaDecl)))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res)
	assert.Equal(t, 0, cache.Len())
	assert.Empty(t, collector.Diagnostics())
	assert.Equal(t, int64(0), g.Stats().Computed)
}

func TestGenerator_SharedDiskCache(t *testing.T) {
	dir := t.TempDir()
	src := proxySource(alphaDecl, gammaDecl)

	newCache := func() *Cache {
		dc, err := OpenDiskCache(dir)
		require.NoError(t, err)
		c, err := NewCache(DefaultCacheSize, dc)
		require.NoError(t, err)
		return c
	}

	g1, _ := newTestGenerator(t, WithCache(newCache()))
	res1 := run(t, g1, src)
	assert.Equal(t, int64(2), g1.Stats().Computed)

	// a fresh process only has the disk cache
	g2, _ := newTestGenerator(t, WithCache(newCache()))
	res2 := run(t, g2, src)
	assert.Equal(t, int64(0), g2.Stats().Computed)
	assert.Equal(t, int64(2), g2.Stats().Hits)
	assert.Equal(t, res1, res2)
}

func TestGenerator_SettingsAffectOutput(t *testing.T) {
	cache, err := NewCache(DefaultCacheSize, nil)
	require.NoError(t, err)
	src := proxySource(alphaDecl)

	g1, _ := newTestGenerator(t, WithCache(cache))
	res1 := run(t, g1, src)

	s := DefaultSettings()
	s.RegistryType = "Registry"
	s.RegistryInstance = "TheRegistry"
	s.RegistryLookup = "Lookup"
	g2, _ := newTestGenerator(t, WithCache(cache), WithSettings(s))
	res2 := run(t, g2, src)

	assert.Equal(t, int64(1), g2.Stats().Computed)
	assert.Contains(t, string(res1.Artifacts[0].Source), "InfoModuleInstance().GetInfoProxyByID(3)")
	assert.Contains(t, string(res2.Artifacts[0].Source), "TheRegistry().Lookup(3)")
	assert.Equal(t, "Registry.InfoProxyGetter.g.go", res2.Aggregated.Filename)
	assert.Contains(t, string(res2.Aggregated.Source), "func (m *Registry) GetAlpha() *Alpha {")
}

func TestGenerator_Registration(t *testing.T) {
	s := DefaultSettings()
	s.Register = true
	g, _ := newTestGenerator(t, WithSettings(s))
	res := run(t, g, proxySource(alphaDecl, betaDecl))
	require.NotNil(t, res.Registration)
	assert.Equal(t, RegistrationFilename, res.Registration.Filename)
	assert.Contains(t, string(res.Registration.Source), "reflect.TypeOf((*Beta)(nil)).Elem(), 7)")
}

func TestNewGenerator_InvalidSettings(t *testing.T) {
	s := DefaultSettings()
	s.RegistryLookup = "not an identifier"
	_, err := NewGenerator(WithSettings(s))
	assert.ErrorContains(t, err, "registry lookup")

	s = DefaultSettings()
	s.Marker = "InfoProxy"
	_, err = NewGenerator(WithSettings(s))
	assert.ErrorContains(t, err, "marker")
}
