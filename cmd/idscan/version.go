package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MdYeasinSamadArnob/vLLM-Display/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "idscan %s\n", version.GitRelease)
		fmt.Fprintf(w, "  Go:     %s\n", version.GoInfo)
		fmt.Fprintf(w, "  Commit: %s\n", version.GitCommit)
		fmt.Fprintf(w, "  Date:   %s\n", version.GitCommitDate)
	},
}
