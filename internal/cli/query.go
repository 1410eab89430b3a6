package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zipbul/gildash/internal/config"
	"github.com/zipbul/gildash/internal/gildash"
	"github.com/zipbul/gildash/internal/gildashlog"
)

var querySymbolName string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the index for a symbol name",
	Long: `Query opens the project at --project (default: current directory)
against its existing index and searches for symbols matching --name.

Opening the project runs a full index pass when this process becomes the
index owner (no other live process holds it); as a reader it searches the
existing index as it is.`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&querySymbolName, "name", "", "exact symbol name to search for")
	queryCmd.MarkFlagRequired("name")
}

func runQuery(cmd *cobra.Command, args []string) error {
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
	hostCfg.Watch.Enabled = false

	gcfg := config.ToGildashConfig(root, hostCfg, gildashlog.New())

	gc, err := gildash.Open(context.Background(), gcfg)
	if err != nil {
		return fmt.Errorf("failed to open project: %w", err)
	}
	defer gc.Close()

	result := gc.SearchAllSymbols(gildash.SymbolSearchQuery{ExactName: &querySymbolName})
	if !result.IsOk() {
		return fmt.Errorf("search failed: %s", result.Err().Message)
	}

	symbols := result.Value()
	if len(symbols) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, sym := range symbols {
		fmt.Printf("%s\t%s:%d\n", sym.Name, sym.FilePath, sym.StartLine)
	}
	return nil
}
