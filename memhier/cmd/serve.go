package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/sarchlab/memhier/monitoring"
	"github.com/sarchlab/memhier/trace"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a simulation over HTTP.",
	Long: "`serve --port 8080` starts the monitor. With --trace, the trace " +
		"is replayed in the background and its progress shown at /api/progress.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSimulation(cmd)
		if err != nil {
			return err
		}

		port, err := portNumber(cmd)
		if err != nil {
			return err
		}

		m := monitoring.NewMonitor(s).WithPortNumber(port)

		tracePath, _ := cmd.Flags().GetString("trace")
		if tracePath != "" {
			f, err := os.Open(tracePath)
			if err != nil {
				return err
			}

			ops, err := trace.ReadAll(f)
			f.Close()

			if err != nil {
				return err
			}

			go m.ReplayTrace(tracePath, ops)
		}

		url, err := m.StartServer()
		if err != nil {
			return err
		}

		open, _ := cmd.Flags().GetBool("open")
		if open {
			if err := browser.OpenURL(url); err != nil {
				fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
			}
		}

		select {}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 0,
		"Port to listen on, defaults to $MEMHIER_PORT or a random port")
	serveCmd.Flags().StringP("trace", "t", "", "Trace file to replay")
	serveCmd.Flags().Bool("open", false, "Open the monitor in a browser")
}

func portNumber(cmd *cobra.Command) (int, error) {
	if cmd.Flags().Changed("port") {
		return cmd.Flags().GetInt("port")
	}

	env := os.Getenv("MEMHIER_PORT")
	if env == "" {
		return 0, nil
	}

	port, err := strconv.Atoi(env)
	if err != nil {
		return 0, fmt.Errorf("bad MEMHIER_PORT %q", env)
	}

	return port, nil
}
