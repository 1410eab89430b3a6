package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zipbul/gildash/internal/config"
	"github.com/zipbul/gildash/internal/gildash"
	"github.com/zipbul/gildash/internal/gildashlog"
	"github.com/zipbul/gildash/internal/indexer"
)

var indexWatchFlag bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a project and report the resulting symbol/file counts",
	Long: `Index opens the project at --project (default: current directory),
runs a full index pass, and prints the resulting counts.

With --watch, the process stays alive and re-indexes on file change until
interrupted.`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&indexWatchFlag, "watch", "w", false, "keep running and re-index on file change")
}

func runIndex(cmd *cobra.Command, args []string) error {
	root, err := resolveProjectRoot()
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	hostCfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	hostCfg.Watch.Enabled = indexWatchFlag

	logger := gildashlog.New()
	gcfg := config.ToGildashConfig(root, hostCfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	gc, err := gildash.Open(ctx, gcfg)
	if err != nil {
		return fmt.Errorf("failed to open project: %w", err)
	}
	defer gc.Close()

	printSummary(gc)

	if !indexWatchFlag {
		return nil
	}

	if gc.Role() == "owner" {
		unsubscribe := gc.OnIndexed(func(result indexer.IndexResult) {
			fmt.Printf("reindexed: %d file(s) changed\n", len(result.ChangedFiles))
		})
		defer unsubscribe()
	}

	fmt.Println("watching for changes, press Ctrl+C to stop...")
	<-ctx.Done()
	return nil
}

func printSummary(gc *gildash.Context) {
	fmt.Printf("role: %s\n", gc.Role())

	stats := gc.GetStats()
	if !stats.IsOk() {
		fmt.Printf("stats unavailable: %s\n", stats.Err().Message)
		return
	}
	fmt.Printf("files: %d\n", stats.Value().FileCount)
	fmt.Printf("symbols: %d\n", stats.Value().SymbolCount)
}
