package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jhump/infoproxy/processor"
)

const defaultWatchDelay = 100 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var (
		opts  passOptions
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [packages]",
		Short: "Regenerate info proxy accessors whenever sources change",
		Long: `Watch runs generate once and then again each time a Go source file in
one of the packages changes. All passes share one cache, so only the
declarations that changed are validated and rendered again.

Press Ctrl+C to stop.`,
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
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			r := newRunner(g, opts, args, out, logger)

			var fw *fileWatcher
			runPass := func() {
				sum, err := r.pass(ctx)
				if err != nil {
					if ctx.Err() == nil {
						color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
					}
					return
				}
				sum.print(out)
				if err := fw.Add(sum.Dirs...); err != nil {
					logger.Warn("failed to watch package directories", zap.Error(err))
				}
			}

			fw, err = newFileWatcher(delay, logger, func(files []string) {
				logger.Debug("sources changed", zap.Strings("files", files))
				runPass()
			})
			if err != nil {
				return err
			}
			fw.Start()
			defer func() {
				_ = fw.Stop()
			}()

			runPass()
			color.New(color.FgYellow).Fprintln(out, "Watching for changes. Press Ctrl+C to stop.")
			<-ctx.Done()
			return nil
		},
	}

	addPassFlags(cmd, &opts)
	cmd.Flags().DurationVar(&delay, "delay", defaultWatchDelay, "how long to wait for more changes before regenerating")
	return cmd
}

// fileWatcher reports changes to Go sources in a set of directories.
type fileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	logger    *zap.Logger

	mu      sync.Mutex
	watched map[string]struct{}

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func newFileWatcher(delay time.Duration, logger *zap.Logger, onChange func([]string)) (*fileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	fw := &fileWatcher{
		watcher:   watcher,
		debouncer: newDebouncer(delay),
		logger:    logger,
		watched:   map[string]struct{}{},
		stopChan:  make(chan struct{}),
	}
	fw.debouncer.SetCallback(onChange)
	return fw, nil
}

// Add starts watching the given directories. Directories already watched
// are skipped.
func (fw *fileWatcher) Add(dirs ...string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	for _, dir := range dirs {
		if _, ok := fw.watched[dir]; ok {
			continue
		}
		if err := fw.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		fw.watched[dir] = struct{}{}
		fw.logger.Debug("watching directory", zap.String("dir", dir))
	}
	return nil
}

// Start begins handling events in the background.
func (fw *fileWatcher) Start() {
	fw.wg.Add(1)
	go fw.watch()
}

// Stop stops the watcher. It is safe to call more than once.
func (fw *fileWatcher) Stop() error {
	select {
	case <-fw.stopChan:
		return nil
	default:
		close(fw.stopChan)
	}

	fw.wg.Wait()
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *fileWatcher) watch() {
	defer fw.wg.Done()

	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if isSourceChange(event) {
				fw.debouncer.Add(event.Name)
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn("file watcher error", zap.Error(err))

		case <-fw.stopChan:
			return
		}
	}
}

// isSourceChange reports whether the event may change the output of a pass.
// Changes to generated files, including the ones a pass itself writes, are
// not.
func isSourceChange(event fsnotify.Event) bool {
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) &&
		!event.Op.Has(fsnotify.Remove) && !event.Op.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	switch {
	case strings.HasPrefix(name, "."), strings.HasPrefix(name, "_"):
		return false
	case !strings.HasSuffix(name, ".go"):
		return false
	case strings.HasSuffix(name, ".g.go"), name == processor.RegistrationFilename:
		return false
	}
	return true
}

// debouncer collects changed files and hands them to a callback once no
// more changes arrive for its duration.
type debouncer struct {
	duration time.Duration
	timer    *time.Timer
	files    map[string]struct{}
	mutex    sync.Mutex
	callback func([]string)
	stopped  bool
}

func newDebouncer(duration time.Duration) *debouncer {
	return &debouncer{
		duration: duration,
		files:    make(map[string]struct{}),
	}
}

func (d *debouncer) Add(file string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stopped {
		return
	}

	d.files[file] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.flush)
}

// flush runs the callback with the accumulated files, sorted. The lock is
// held during the callback, so callbacks never overlap.
func (d *debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.files) == 0 || d.stopped {
		return
	}
	files := make([]string, 0, len(d.files))
	for file := range d.files {
		files = append(files, file)
	}
	sort.Strings(files)
	d.files = make(map[string]struct{})

	if d.callback != nil {
		d.callback(files)
	}
}

func (d *debouncer) SetCallback(callback func([]string)) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

func (d *debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.stopped = true
}
