package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/devlist"
)

func newDevListCmd() *cobra.Command {
	var filePath string
	var atRFC3339 string

	cmd := &cobra.Command{
		Use:   "devlist",
		Short: "Verify a Deviation List's signer and classify its entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read deviation list file: %w", err)
			}

			at := time.Now().UTC()
			if atRFC3339 != "" {
				at, err = time.Parse(time.RFC3339, atRFC3339)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			ms := buildStore()

			list, err := devlist.Parse(raw, ms, at, config.DefaultCoreConfig())
			if err != nil {
				return fmt.Errorf("parse/verify deviation list: %w", err)
			}

			fmt.Printf("signer: %s, chain depth %d, %d hit(s)\n", list.Signer.Subject.String(), len(list.Chain.Nodes), len(list.Hits))
			for _, hit := range list.Hits {
				fmt.Printf("  [%s] %s — %s\n", hit.Category, hit.DefectOID.String(), hit.Description)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "path to the Deviation List CMS file (required)")
	cmd.Flags().StringVar(&atRFC3339, "at", "", "evaluation time, RFC3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
