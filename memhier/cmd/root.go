// Package cmd provides the command-line interface of memhier.
package cmd

import (
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/memhier/simulation"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "memhier",
	Short: "memhier simulates address translation and a cache hierarchy.",
	Long: `memhier translates virtual addresses through a page table and ` +
		`serves the accesses from write-through LRU caches. Defaults for ` +
		`flags can be given in a .env file (MEMHIER_CONFIG, MEMHIER_PORT).`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(loadEnv)

	rootCmd.PersistentFlags().StringP("config", "c", "",
		"YAML or JSON configuration file, defaults to $MEMHIER_CONFIG")
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Exit handlers run before the process ends.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func loadEnv() {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env: %v", err)
	}
}

func loadConfig(cmd *cobra.Command) (simulation.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("MEMHIER_CONFIG")
	}

	if path == "" {
		return simulation.DefaultConfig(), nil
	}

	return simulation.LoadConfig(path)
}

func newSimulation(cmd *cobra.Command) (*simulation.Simulation, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	b := simulation.MakeBuilder().WithConfig(cfg)

	if f := cmd.Flags().Lookup("verbose"); f != nil && f.Value.String() == "true" {
		b = b.WithLogger(log.New(os.Stderr, "", 0))
	}

	return b.Build()
}
