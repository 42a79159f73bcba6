package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/icao-pkd/pa-core/audit"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/pa"
)

func newVerifyCmd() *cobra.Command {
	var sodPath string
	var dgFlags []string
	var atRFC3339 string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Run Passive Authentication against an EF.SOD and its Data Groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			sodBytes, err := os.ReadFile(sodPath)
			if err != nil {
				return fmt.Errorf("read SOD file: %w", err)
			}

			dataGroups := make(map[int][]byte, len(dgFlags))
			for _, flag := range dgFlags {
				num, path, err := splitDGFlag(flag)
				if err != nil {
					return err
				}
				raw, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read data group %d file %q: %w", num, path, err)
				}
				dataGroups[num] = raw
			}

			at := time.Now().UTC()
			if atRFC3339 != "" {
				at, err = time.Parse(time.RFC3339, atRFC3339)
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}

			ms := buildStore()
			sink := audit.NewSlogSink(nil)

			verdict, err := pa.Verify(context.Background(), pa.Request{
				SODBytes:       sodBytes,
				DataGroups:     dataGroups,
				EvaluationTime: at,
			}, ms, sink, config.DefaultCoreConfig())
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			out, err := json.MarshalIndent(verdict, "", "  ")
			if err != nil {
				return fmt.Errorf("render verdict: %w", err)
			}
			fmt.Println(string(out))

			if verdict.Overall == pa.Failed {
				os.Exit(2)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sodPath, "sod", "", "path to the EF.SOD file (required)")
	cmd.Flags().StringArrayVar(&dgFlags, "dg", nil, "data group in NUM=PATH form, repeatable (e.g. --dg 1=ef_dg1.bin)")
	cmd.Flags().StringVar(&atRFC3339, "at", "", "evaluation time, RFC3339 (defaults to now)")
	_ = cmd.MarkFlagRequired("sod")

	return cmd
}

func splitDGFlag(flag string) (int, string, error) {
	parts := strings.SplitN(flag, "=", 2)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("invalid --dg value %q, expected NUM=PATH", flag)
	}
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", fmt.Errorf("invalid --dg number %q: %w", parts[0], err)
	}
	return num, parts[1], nil
}
