package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var translateCmd = &cobra.Command{
	Use:   "translate ADDR...",
	Short: "Translate virtual addresses.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSimulation(cmd)
		if err != nil {
			return err
		}

		for _, arg := range args {
			vAddr, err := strconv.ParseUint(arg, 0, 64)
			if err != nil {
				return fmt.Errorf("bad address %q", arg)
			}

			t, err := s.TranslateAddress(vAddr)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "0x%x: %v\n", vAddr, err)
				continue
			}

			fault := ""
			if t.PageFault {
				fault = " (page fault)"
			}

			fmt.Fprintf(cmd.OutOrStdout(), "0x%x -> 0x%x%s\n",
				t.VAddr, t.PAddr, fault)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)
}
