package main

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"docqr-backend/internal/bootstrap"
	"docqr-backend/internal/shared/config"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract primary text from an image or PDF",
	Example: `  docctl extract scan.jpg
  docctl extract contract.pdf --json
  OCR_ENGINE=vision docctl extract photo.png`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().String("type", "", "Media type (default: guessed from the extension)")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
	extractCmd.Flags().Duration("timeout", 2*time.Minute, "Extraction timeout")
}

type extractOutput struct {
	File      string `json:"file"`
	MediaType string `json:"mediaType"`
	Kind      string `json:"kind"`
	Method    string `json:"method"`
	Text      string `json:"text"`
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	mediaType, _ := cmd.Flags().GetString("type")
	asJSON, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if mediaType == "" {
		mediaType = mime.TypeByExtension(filepath.Ext(path))
	}
	if mediaType == "" {
		return fmt.Errorf("cannot guess media type of %s; pass --type", path)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	ex, closeFn, err := bootstrap.BuildExtractor(ctx, config.Load())
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	res, err := ex.ExtractPrimaryText(ctx, path, mediaType)
	if err != nil {
		return err
	}

	if !asJSON {
		fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return nil
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(extractOutput{
		File:      path,
		MediaType: mediaType,
		Kind:      res.Kind.String(),
		Method:    string(res.Method),
		Text:      res.Text,
	})
}
