package processor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/tools/go/packages"
)

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedSyntax |
	packages.NeedTypes | packages.NeedTypesInfo | packages.NeedImports

// LoadConfig controls how packages are loaded.
type LoadConfig struct {
	// Dir is the directory in which patterns are resolved. If empty, the
	// current directory is used.
	Dir string
	// BuildFlags are passed to the go command, such as "-tags=foo".
	BuildFlags []string
}

// Load parses and type-checks the packages matching the given patterns, such
// as "./...". Type errors do not prevent loading: annotated types can still
// be processed when, for example, generated files are stale or missing.
// Packages that cannot be parsed at all are reported as an error.
func Load(ctx context.Context, cfg LoadConfig, patterns ...string) ([]*Package, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}
	pcfg := &packages.Config{
		Context:    ctx,
		Mode:       loadMode,
		Dir:        cfg.Dir,
		BuildFlags: cfg.BuildFlags,
	}
	pkgs, err := packages.Load(pcfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	var errs []string
	out := make([]*Package, 0, len(pkgs))
	for _, p := range pkgs {
		if len(p.Syntax) == 0 || p.Types == nil {
			for _, e := range p.Errors {
				errs = append(errs, e.Error())
			}
			if len(p.Errors) == 0 {
				errs = append(errs, fmt.Sprintf("%s: no Go files", p.PkgPath))
			}
			continue
		}
		names := make(map[string]string, len(p.Imports))
		for path, imp := range p.Imports {
			names[path] = imp.Name
		}
		var dir string
		if len(p.GoFiles) > 0 {
			dir = filepath.Dir(p.GoFiles[0])
		}
		out = append(out, &Package{
			Path:        p.PkgPath,
			Name:        p.Name,
			Dir:         dir,
			Fset:        p.Fset,
			Files:       p.Syntax,
			Types:       p.Types,
			Info:        p.TypesInfo,
			ImportNames: names,
		})
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load packages:\n  %s", strings.Join(errs, "\n  "))
	}
	return out, nil
}
