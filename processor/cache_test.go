package processor

import (
	"fmt"
	"go/token"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyInput(line int) DeclInput {
	at := func(l, col int) token.Position {
		return token.Position{Filename: "info.go", Line: l, Column: col, Offset: l * 40}
	}
	return DeclInput{
		Name:      "FriendList",
		Namespace: testPkgPath,
		Package:   "info",
		Access:    AccessExported,
		Kind:      DeclStruct,
		Args: AnnotationArguments{
			Marker: "infoproxy.InfoProxy",
			Named:  []NamedArg{{Name: "ID", Value: ArgValue{Kind: ArgInt, Literal: "3", Expr: "3", Pos: at(line-1, 30)}}},
			Pos:    at(line-1, 4),
		},
		Pos: at(line, 6),
	}
}

func TestComputeKey(t *testing.T) {
	s := DefaultSettings()
	k1, err := computeKey(s, keyInput(10))
	require.NoError(t, err)

	// same declaration, moved
	k2, err := computeKey(s, keyInput(25))
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	in := keyInput(10)
	in.Pos.Filename = "other.go"
	k3, err := computeKey(s, in)
	require.NoError(t, err)
	assert.Equal(t, k1, k3)

	in = keyInput(10)
	in.Args.Named[0].Value.Literal = "4"
	k4, err := computeKey(s, in)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)

	in = keyInput(10)
	in.Args.Named[0].Value.Pos.Column++
	k5, err := computeKey(s, in)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k5)

	in = keyInput(10)
	in.Kind = DeclInterface
	k6, err := computeKey(s, in)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k6)

	s2 := s
	s2.RegistryInstance = "Other"
	k7, err := computeKey(s2, keyInput(10))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k7)
}

func TestRelativePositions(t *testing.T) {
	anchor := token.Position{Filename: "info.go", Line: 20, Column: 6, Offset: 400}
	pos := token.Position{Filename: "info.go", Line: 19, Column: 30, Offset: 380}
	rel := relativePosition(pos, anchor)
	assert.Equal(t, token.Position{Line: -1, Column: 30, Offset: -20}, rel)

	moved := token.Position{Filename: "moved.go", Line: 50, Column: 6, Offset: 1000}
	assert.Equal(t, token.Position{Filename: "moved.go", Line: 49, Column: 30, Offset: 980}, rebasePosition(rel, moved))
}

func TestCacheEntry_RebasesDiagnostics(t *testing.T) {
	in := keyInput(10)
	v := ValidateProxyID(DeclInput{Name: "Gamma", Args: AnnotationArguments{Marker: "infoproxy.InfoProxy", Pos: in.Args.Pos}, Pos: in.Pos})
	e := newEntry(DeclInput{Pos: in.Pos}, Combine(Succeed(TypeDeclarationInfo{}), v, func(TypeDeclarationInfo, uint32) ValidatedProxyInfo {
		return ValidatedProxyInfo{}
	}), nil)
	require.Nil(t, e.Info)
	require.Len(t, e.Diagnostics, 1)
	assert.Equal(t, -1, e.Diagnostics[0].Pos.Line)
	assert.Empty(t, e.Diagnostics[0].Pos.Filename)

	moved := keyInput(30)
	diags := e.diagnostics(moved)
	require.Len(t, diags, 1)
	assert.Equal(t, 29, diags[0].Pos.Line)
	assert.Equal(t, "info.go", diags[0].Pos.Filename)
	assert.Equal(t, CodeMissingArgument, diags[0].Code)
}

func TestCache_Concurrent(t *testing.T) {
	c, err := NewCache(16, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				in := keyInput(10)
				in.Name = fmt.Sprintf("Type%d", j%4)
				key, err := computeKey(DefaultSettings(), in)
				if !assert.NoError(t, err) {
					return
				}
				if _, ok := c.get(key); !ok {
					info := testProxy(in.Name, 1)
					assert.NoError(t, c.put(key, &cacheEntry{Info: &info}))
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, int64(800), c.Hits()+c.Misses())
	assert.GreaterOrEqual(t, c.Misses(), int64(4))

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_Evicts(t *testing.T) {
	c, err := NewCache(2, nil)
	require.NoError(t, err)
	var keys []Digest
	for i := 0; i < 3; i++ {
		in := keyInput(10)
		in.Name = fmt.Sprintf("Type%d", i)
		key, err := computeKey(DefaultSettings(), in)
		require.NoError(t, err)
		require.NoError(t, c.put(key, &cacheEntry{}))
		keys = append(keys, key)
	}
	assert.Equal(t, 2, c.Len())
	_, ok := c.get(keys[0])
	assert.False(t, ok)
	_, ok = c.get(keys[2])
	assert.True(t, ok)
}

func TestNewCache_InvalidSize(t *testing.T) {
	_, err := NewCache(0, nil)
	assert.Error(t, err)
}

func TestDiskCache(t *testing.T) {
	dc, err := OpenDiskCache(t.TempDir())
	require.NoError(t, err)

	key, err := computeKey(DefaultSettings(), keyInput(10))
	require.NoError(t, err)

	var out cacheEntry
	ok, err := dc.Get(key, &out)
	require.NoError(t, err)
	assert.False(t, ok)

	info := testProxy("FriendList", 3)
	artifact, err := RenderInstanceGetter(DefaultSettings(), info)
	require.NoError(t, err)
	entry := &cacheEntry{Info: &info, Artifact: &artifact}
	require.NoError(t, dc.Put(key, entry))

	ok, err = dc.Get(key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, out.Info)
	assert.Equal(t, info, *out.Info)
	require.NotNil(t, out.Artifact)
	assert.Equal(t, artifact.Filename, out.Artifact.Filename)
	assert.Equal(t, artifact.Source, out.Artifact.Source)

	failed := &cacheEntry{Diagnostics: []Diagnostic{newDiagnostic(CodeMissingArgument, token.Position{Line: -1, Column: 4}, "missing ID")}}
	in := keyInput(10)
	in.Name = "Gamma"
	key2, err := computeKey(DefaultSettings(), in)
	require.NoError(t, err)
	require.NoError(t, dc.Put(key2, failed))
	var out2 cacheEntry
	ok, err = dc.Get(key2, &out2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, out2.Info)
	assert.Equal(t, failed.Diagnostics, out2.Diagnostics)

	require.NoError(t, dc.DropAll())
	ok, err = dc.Get(key, &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_FallsBackToDisk(t *testing.T) {
	dc, err := OpenDiskCache(t.TempDir())
	require.NoError(t, err)
	c1, err := NewCache(8, dc)
	require.NoError(t, err)

	key, err := computeKey(DefaultSettings(), keyInput(10))
	require.NoError(t, err)
	info := testProxy("FriendList", 3)
	require.NoError(t, c1.put(key, &cacheEntry{Info: &info}))

	c2, err := NewCache(8, dc)
	require.NoError(t, err)
	e, ok := c2.get(key)
	require.True(t, ok)
	assert.Equal(t, info, *e.Info)
	assert.Equal(t, 1, c2.Len())
	assert.Equal(t, int64(1), c2.Hits())
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/xdg")
	dir, err := DefaultCacheDir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/xdg/infoproxygen", dir)
}
