// Command pkdctl is an operator CLI for the PKD Passive Authentication
// core: run a standalone verification, admit a Master List's CSCA
// candidates (with an interactive trust-anchor confirmation gate),
// classify a Deviation List, or inspect a CRL. Built on cobra/pflag —
// adopted for this tool's multi-subcommand surface in place of the
// teacher's bare flag package, which cmd/pkd-verify keeps for its
// single-purpose demo server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	trustDir   string
	crlDir     string
	bundlePath string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	root := &cobra.Command{
		Use:   "pkdctl",
		Short: "Operate a PKD Passive Authentication trust store from the command line",
	}
	root.PersistentFlags().StringVar(&trustDir, "trust-dir", "", "directory of CSCA certificates (.cer/.crt/.pem) to seed as trust anchors")
	root.PersistentFlags().StringVar(&crlDir, "crl-dir", "", "directory of CRLs (.crl) to seed")
	root.PersistentFlags().StringVar(&bundlePath, "bundle", "", "zip/tar.gz bundle of CSCA certificates to extract and seed alongside --trust-dir")

	root.AddCommand(newVerifyCmd())
	root.AddCommand(newMasterListCmd())
	root.AddCommand(newDevListCmd())
	root.AddCommand(newCRLCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
