package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/toktrack/usagepipe/adapters"
	"github.com/toktrack/usagepipe/pipeline"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run load_warm once, then re-run it whenever a source file changes",
	Long: `watch calls load_warm once, then uses fsnotify to watch every
directory that holds a registered adapter's session files at startup
and re-runs load_warm on write or create events, debounced. It is a thin caller of load_warm; it adds no new
pipeline semantics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := pipeline.New(appConfig, location())

		if err := runWarmAndPrint(p); err != nil {
			return err
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		defer watcher.Close()

		for _, a := range adapters.Registry(appConfig.Data.AdapterPaths) {
			dirs, err := watchableDirs(a)
			if err != nil {
				continue // an adapter whose home dir can't resolve just isn't watched
			}
			for _, dir := range dirs {
				_ = watcher.Add(dir)
			}
		}

		debounce := time.NewTimer(0)
		<-debounce.C // drain the immediate fire; the first LoadWarm already ran above
		pending := false

		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if !pending {
					pending = true
					debounce.Reset(watchDebounce)
				}

			case <-debounce.C:
				if !pending {
					continue
				}
				pending = false
				if err := runWarmAndPrint(p); err != nil {
					fmt.Fprintf(os.Stderr, "watch: %v\n", err)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "watch: fsnotify error: %v\n", err)
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "quiet period after a file event before re-running load_warm")
}

func runWarmAndPrint(p *pipeline.Pipeline) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	result, err := p.LoadWarm(ctx)
	if err != nil {
		return fmt.Errorf("watch: load_warm: %w", err)
	}

	_, byModel, bySource := pipeline.AggregateSummaries(result)
	fmt.Printf("[%s] refreshed: %d sources, %d models\n", time.Now().Format(time.Kitchen), len(bySource), len(byModel))
	return nil
}

// watchableDirs enumerates the directories fsnotify should watch for one
// adapter: every distinct parent directory its files currently live in,
// since adapters don't expose a single flat data_dir() through the
// public Adapter interface.
func watchableDirs(a adapters.Adapter) ([]string, error) {
	files, err := a.CollectFiles()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var dirs []string
	for _, f := range files {
		dir := filepath.Dir(f)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}
