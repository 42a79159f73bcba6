package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/masterlist"
)

func newMasterListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "masterlist",
		Short: "Inspect and admit ICAO Master Lists",
	}
	cmd.AddCommand(newMasterListAdmitCmd())
	return cmd
}

func newMasterListAdmitCmd() *cobra.Command {
	var filePath string
	var atRFC3339 string
	var yes bool

	cmd := &cobra.Command{
		Use:   "admit",
		Short: "Verify a Master List's signer and selectively promote its CSCA candidates to trust anchors",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read master list file: %w", err)
			}

			at := time.Now().UTC()
			if atRFC3339 != "" {
				at, err = time.Parse(time.RFC3339, atRFC3339)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			ms := buildStore()

			list, err := masterlist.Parse(raw)
			if err != nil {
				return fmt.Errorf("parse master list: %w", err)
			}

			result, err := masterlist.Verify(list, ms, at, config.DefaultCoreConfig())
			if err != nil {
				return fmt.Errorf("verify master list signer: %w", err)
			}

			fmt.Printf("master list signer resolved, chain depth %d\n", len(result.Chain.Nodes))

			for _, admission := range result.Admissions {
				if admission.Status != masterlist.Admitted {
					fmt.Printf("  rejected: %s (%s)\n", admission.Status, admission.Reason)
					continue
				}
				fingerprint := hex.EncodeToString(admission.Certificate.FingerprintSHA256[:])
				fmt.Printf("  candidate: %s (fingerprint %s)\n", admission.Certificate.Subject.String(), fingerprint)

				promote := yes
				if !promote {
					promote, err = confirmTrustAnchor("    promote to trust anchor? [y/N] ")
					if err != nil {
						return fmt.Errorf("read confirmation: %w", err)
					}
				}
				if promote {
					ms.MarkTrustAnchor(admission.Certificate.FingerprintSHA256)
					fmt.Println("    promoted to trust anchor")
				} else {
					ms.AddCertificate(admission.Certificate, false)
					fmt.Println("    admitted as candidate only (not a trust anchor)")
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&filePath, "file", "", "path to the Master List CMS file (required)")
	cmd.Flags().StringVar(&atRFC3339, "at", "", "evaluation time, RFC3339 (defaults to now)")
	cmd.Flags().BoolVar(&yes, "yes", false, "promote every admitted candidate without prompting")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// confirmTrustAnchor prompts on stdout and reads a single keystroke
// from the controlling terminal without waiting for Enter, the same
// raw-mode-then-restore shape cmd/cryptopro_extract uses for
// term.ReadPassword — here gating an irreversible trust decision
// instead of reading a secret.
func confirmTrustAnchor(prompt string) (bool, error) {
	fmt.Print(prompt)
	fd := int(syscall.Stdin)
	if !term.IsTerminal(fd) {
		fmt.Println("(no terminal attached, defaulting to no)")
		return false, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return false, fmt.Errorf("enter raw terminal mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	buf := make([]byte, 1)
	if _, err := os.Stdin.Read(buf); err != nil {
		return false, fmt.Errorf("read keystroke: %w", err)
	}
	fmt.Println()
	return buf[0] == 'y' || buf[0] == 'Y', nil
}
