package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/memhier/datarecording"
	"github.com/sarchlab/memhier/simulation"
	"github.com/sarchlab/memhier/trace"
	"github.com/sarchlab/memhier/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a trace and print the statistics.",
	Long: "`run --trace t.txt` replays the accesses of t.txt. --db and --csv " +
		"record every access; an empty name picks a unique one.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := newSimulation(cmd)
		if err != nil {
			return err
		}

		var (
			recorder  datarecording.DataRecorder
			dbTracer  *tracing.DBTracer
			csvTracer *tracing.CSVTracer
		)

		if cmd.Flags().Changed("db") {
			name, _ := cmd.Flags().GetString("db")
			recorder = datarecording.New(name)
			dbTracer = tracing.NewDBTracer(recorder)
			tracing.CollectTrace(s, dbTracer)
		}

		if cmd.Flags().Changed("csv") {
			name, _ := cmd.Flags().GetString("csv")
			csvTracer = tracing.NewCSVTracer(name)
			csvTracer.Init()
			tracing.CollectTrace(s, csvTracer)
		}

		tracePath, _ := cmd.Flags().GetString("trace")

		f, err := os.Open(tracePath)
		if err != nil {
			return err
		}
		defer f.Close()

		summary, err := trace.Replay(s, f)
		if err != nil {
			return err
		}

		printSummary(cmd.OutOrStdout(), summary, s.Stats())

		if csvTracer != nil {
			csvTracer.Terminate()
		}

		if dbTracer != nil {
			dbTracer.RecordStats(s.Stats())

			if err := recorder.Close(); err != nil {
				return err
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("trace", "t", "", "Trace file to replay")
	runCmd.Flags().String("db", "", "Record accesses into <name>.sqlite3")
	runCmd.Flags().String("csv", "", "Record accesses into <name>.csv")
	runCmd.Flags().BoolP("verbose", "v", false, "Log every access")
	runCmd.MarkFlagRequired("trace")
}

func printSummary(w io.Writer, summary trace.Summary, stats simulation.Stats) {
	fmt.Fprintf(w, "accesses: %d, reads: %d, writes: %d\n",
		summary.Ops, stats.Reads, stats.Writes)
	fmt.Fprintf(w, "page faults: %d, failed on page fault: %d, TLB hits: %d\n",
		stats.PageFaults, summary.PageFaults, stats.TLBHits)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "level\tread hits\tread misses\twrite hits\twrite misses\tevictions\thit rate\t")

	for _, l := range stats.Levels {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%.4f\t\n",
			l.Name,
			l.Counts.ReadHits,
			l.Counts.ReadMisses,
			l.Counts.WriteHits,
			l.Counts.WriteMisses,
			l.Counts.Evictions,
			l.HitRate,
		)
	}

	tw.Flush()
}
