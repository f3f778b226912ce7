package processor

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/format"
	goparser "go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testPkgPath = "example.com/game/info"

// stubImporter provides empty packages for every import, except for a
// package of identifier constants used to test constant resolution.
type stubImporter struct{}

func (stubImporter) Import(p string) (*types.Package, error) {
	if p == "unsafe" {
		return types.Unsafe, nil
	}
	pkg := types.NewPackage(p, defaultImportName(p))
	if p == "example.com/game/ids" {
		scope := pkg.Scope()
		scope.Insert(types.NewConst(token.NoPos, pkg, "FriendList", types.Typ[types.UntypedInt], constant.MakeInt64(3)))
		scope.Insert(types.NewConst(token.NoPos, pkg, "Linkshell", types.Typ[types.Uint32], constant.MakeInt64(20)))
		scope.Insert(types.NewConst(token.NoPos, pkg, "Title", types.Typ[types.String], constant.MakeString("title")))
		scope.Insert(types.NewConst(token.NoPos, pkg, "hidden", types.Typ[types.UntypedInt], constant.MakeInt64(99)))
	}
	pkg.MarkComplete()
	return pkg, nil
}

// loadTestPackage parses and type-checks the given files as a package with the
// given import path. Type errors are ignored, as they are when loading real
// packages.
func loadTestPackage(t testing.TB, pkgPath string, files map[string]string) *Package {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	fset := token.NewFileSet()
	asts := make([]*ast.File, 0, len(names))
	for _, name := range names {
		f, err := goparser.ParseFile(fset, name, files[name], goparser.ParseComments)
		require.NoError(t, err)
		asts = append(asts, f)
	}
	require.NotEmpty(t, asts)

	info := &types.Info{
		Defs:  map[*ast.Ident]types.Object{},
		Uses:  map[*ast.Ident]types.Object{},
		Types: map[ast.Expr]types.TypeAndValue{},
	}
	conf := types.Config{Importer: stubImporter{}, Error: func(error) {}}
	pkg, _ := conf.Check(pkgPath, fset, asts, info)
	return &Package{
		Path:  pkgPath,
		Name:  asts[0].Name.Name,
		Dir:   path.Base(pkgPath),
		Fset:  fset,
		Files: asts,
		Types: pkg,
		Info:  info,
	}
}

func loadSource(t testing.TB, src string) *Package {
	t.Helper()
	return loadTestPackage(t, testPkgPath, map[string]string{"info.go": src})
}

// positionOf returns the line and column of the first occurrence of needle
// in src.
func positionOf(t testing.TB, src, needle string) (line, col int) {
	t.Helper()
	idx := strings.Index(src, needle)
	require.GreaterOrEqual(t, idx, 0, "%q not found", needle)
	line = strings.Count(src[:idx], "\n") + 1
	col = idx - strings.LastIndexByte(src[:idx], '\n')
	return line, col
}

func requireSameSource(t testing.TB, expected string, actual []byte) {
	t.Helper()
	formatted, err := format.Source([]byte(expected))
	require.NoError(t, err)
	require.Equal(t, string(formatted), string(actual))
}

func codes(diags []Diagnostic) []Code {
	var cs []Code
	for _, d := range diags {
		cs = append(cs, d.Code)
	}
	return cs
}

func filenames(artifacts []Artifact) []string {
	var names []string
	for _, a := range artifacts {
		names = append(names, a.Filename)
	}
	return names
}

func proxySource(decls ...string) string {
	var sb strings.Builder
	sb.WriteString("package info\n\nimport _ \"github.com/jhump/infoproxy\"\n")
	for _, d := range decls {
		fmt.Fprintf(&sb, "\n%s\n", d)
	}
	return sb.String()
}
