// Command qs-diag prints a diagnostic report of the linked crypto/tls
// build's post-quantum capabilities, for operators validating a deployment
// environment before running quantum-safe-proxy itself.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jerryr7/quantum-safe-proxy/diag"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var asJSON bool

	root := &cobra.Command{
		Use:   "qs-diag",
		Short: "Report the host's post-quantum TLS capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			report := diag.Generate()
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Println(diag.Summary(report))
			fmt.Println("groups:", report.SupportedGroups)
			fmt.Println("signature algorithms:", report.SupportedSigAlgs)
			for _, w := range report.Warnings {
				fmt.Println("warning:", w)
			}
			return nil
		},
	}
	root.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON")
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("qs-diag", version)
			return nil
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
