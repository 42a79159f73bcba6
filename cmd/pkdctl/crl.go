package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/icao-pkd/pa-core/crl"
)

func newCRLCmd() *cobra.Command {
	var filePath string
	var atRFC3339 string

	cmd := &cobra.Command{
		Use:   "crl",
		Short: "Inspect a CRL's issuer, validity window, and revoked entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read CRL file: %w", err)
			}

			parsed, err := crl.Parse(raw)
			if err != nil {
				return fmt.Errorf("parse CRL: %w", err)
			}

			at := time.Now().UTC()
			if atRFC3339 != "" {
				at, err = time.Parse(time.RFC3339, atRFC3339)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			fmt.Printf("issuer: %s\n", parsed.Issuer.String())
			fmt.Printf("thisUpdate: %s\n", parsed.ThisUpdate.Format(time.RFC3339))
			if parsed.HasNextUpdate {
				fmt.Printf("nextUpdate: %s\n", parsed.NextUpdate.Format(time.RFC3339))
			}
			if err := parsed.CheckFreshness(at, 0); err != nil {
				fmt.Printf("freshness: STALE as of %s (%s)\n", at.Format(time.RFC3339), err)
			} else {
				fmt.Printf("freshness: fresh as of %s\n", at.Format(time.RFC3339))
			}

			fmt.Printf("revoked entries: %d\n", len(parsed.Revoked))
			for _, entry := range parsed.Revoked {
				line := fmt.Sprintf("  serial %s, revoked %s", entry.SerialNumber.String(), entry.RevocationDate.Format(time.RFC3339))
				if entry.HasReason {
					line += fmt.Sprintf(", reason code %d", entry.Reason)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "path to the CRL file (required)")
	cmd.Flags().StringVar(&atRFC3339, "at", "", "time to check freshness against, RFC3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
