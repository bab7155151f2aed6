package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"docqr-backend/internal/bootstrap"
	"docqr-backend/internal/enrich"
	"docqr-backend/internal/shared/config"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [file]",
	Short: "Summarize and tag text read from a file or stdin",
	Example: `  docctl extract scan.jpg | docctl enrich
  docctl enrich notes.txt --offline`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().Bool("offline", false, "Skip the model and use the local fallback")
	enrichCmd.Flags().Duration("timeout", time.Minute, "Enrichment timeout")
}

func runEnrich(cmd *cobra.Command, args []string) error {
	offline, _ := cmd.Flags().GetBool("offline")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	raw, err := readInput(path)
	if err != nil {
		return err
	}

	var res enrich.Result
	if offline {
		res = enrich.Fallback(string(raw))
	} else {
		client, err := bootstrap.BuildEnricher(config.Load())
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		res = client.Enrich(ctx, string(raw))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(enrichOutput{Summary: res.Summary, Tags: res.Tags, Source: string(res.Source)})
}

type enrichOutput struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Source  string   `json:"source"`
}

// readInput reads path, or stdin when path is empty or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(io.LimitReader(os.Stdin, 8<<20))
	}
	return os.ReadFile(path)
}
