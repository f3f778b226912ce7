package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jhump/infoproxy/processor"
)

func newGenerateCommand() *cobra.Command {
	var opts passOptions

	cmd := &cobra.Command{
		Use:   "generate [packages]",
		Short: "Generate info proxy accessors once",
		Long: `Generate loads the given packages (default ".") and writes, next to
their sources, one <Type>.InstanceGetter.g.go file per valid info proxy and an
aggregated <Registry>.InfoProxyGetter.g.go file. Files generated for types that
are no longer proxies are removed.

Invalid declarations are reported and skipped; the other proxies of the
package are still generated. The command fails if any declaration was invalid.

Examples:
  # Generate for the package in the current directory
  infoproxygen generate

  # Generate for every package in the module, without writing anything
  infoproxygen generate --dry-run ./...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts.dir)
			if err != nil {
				return err
			}
			logger, err := cfg.newLogger()
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() {
				_ = logger.Sync()
			}()

			g, err := cfg.newGenerator(logger, newConsoleReporter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			r := newRunner(g, opts, args, cmd.OutOrStdout(), logger)
			sum, err := r.pass(cmd.Context())
			if err != nil {
				return err
			}
			sum.print(cmd.OutOrStdout())
			if sum.Errors > 0 {
				return fmt.Errorf("%d invalid info proxy declaration(s)", sum.Errors)
			}
			return nil
		},
	}

	addPassFlags(cmd, &opts)
	return cmd
}

// passOptions are the flags shared by generate and watch.
type passOptions struct {
	dir    string
	tags   string
	dryRun bool
}

func addPassFlags(cmd *cobra.Command, opts *passOptions) {
	cmd.Flags().StringVarP(&opts.dir, "dir", "C", "", "directory in which package patterns are resolved")
	cmd.Flags().StringVar(&opts.tags, "tags", "", "comma-separated build tags used when loading packages")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report diagnostics without writing any files")
}

func (o passOptions) loadConfig() processor.LoadConfig {
	lc := processor.LoadConfig{Dir: o.dir}
	if o.tags != "" {
		lc.BuildFlags = []string{"-tags=" + o.tags}
	}
	return lc
}

// runner runs generator passes over a fixed set of package patterns.
type runner struct {
	gen      *processor.Generator
	load     processor.LoadConfig
	patterns []string
	dryRun   bool
	out      io.Writer
	logger   *zap.Logger
}

func newRunner(g *processor.Generator, opts passOptions, patterns []string, out io.Writer, logger *zap.Logger) *runner {
	return &runner{
		gen:      g,
		load:     opts.loadConfig(),
		patterns: patterns,
		dryRun:   opts.dryRun,
		out:      out,
		logger:   logger,
	}
}

// passSummary describes the outcome of one pass.
type passSummary struct {
	Packages int
	Proxies  int
	Errors   int
	Written  int
	Removed  int
	Cached   int64
	Computed int64
	// Dirs are the directories of the processed packages.
	Dirs []string
}

func (s passSummary) print(w io.Writer) {
	color.New(color.FgCyan).Fprintf(w, "%d package(s), %d proxy(ies): %d written, %d removed, %d cached, %d computed\n",
		s.Packages, s.Proxies, s.Written, s.Removed, s.Cached, s.Computed)
}

// pass loads the packages and generates code for each of them. Packages are
// processed in order; an invalid declaration does not stop the pass, but a
// failure to load or write does.
func (r *runner) pass(ctx context.Context) (passSummary, error) {
	var sum passSummary
	before := r.gen.Stats()

	pkgs, err := processor.Load(ctx, r.load, r.patterns...)
	if err != nil {
		return sum, err
	}
	for _, pkg := range pkgs {
		res, err := r.gen.Run(ctx, pkg)
		if err != nil {
			return sum, fmt.Errorf("%s: %w", pkg.Path, err)
		}
		sum.Packages++
		sum.Dirs = append(sum.Dirs, pkg.Dir)
		sum.Proxies += len(res.Proxies)
		for _, d := range res.Diagnostics {
			if d.Severity == processor.SeverityError {
				sum.Errors++
			}
		}
		if r.dryRun {
			continue
		}
		changes, err := processor.WriteResult(pkg.Dir, res)
		if err != nil {
			return sum, err
		}
		for _, c := range changes {
			switch c.Status {
			case processor.Written:
				sum.Written++
				color.New(color.FgGreen).Fprintf(r.out, "wrote %s\n", c.Path)
			case processor.Removed:
				sum.Removed++
				color.New(color.FgYellow).Fprintf(r.out, "removed %s\n", c.Path)
			default:
				r.logger.Debug("unchanged", zap.String("path", c.Path))
			}
		}
	}

	after := r.gen.Stats()
	sum.Cached = after.Hits - before.Hits
	sum.Computed = after.Computed - before.Computed
	return sum, nil
}

// consoleReporter prints diagnostics in the same form as the Go compiler,
// with the severity colored.
type consoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsoleReporter(w io.Writer) *consoleReporter {
	return &consoleReporter{w: w}
}

func (r *consoleReporter) Report(d processor.Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: %s %s: %s\n", d.Pos, severityColor(d.Severity).Sprint(d.Severity), d.Code, strings.TrimSpace(d.Message))
}

func severityColor(s processor.Severity) *color.Color {
	switch s {
	case processor.SeverityError:
		return color.New(color.FgRed, color.Bold)
	case processor.SeverityWarning:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}
