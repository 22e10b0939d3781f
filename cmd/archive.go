/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/softdesk/apiserver/config"
	"github.com/softdesk/apiserver/internal/archive"
	"github.com/softdesk/apiserver/internal/storage"
)

// archiveCmd reads back snapshots written when projects are deleted.
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Inspect archived project snapshots",
}

var archiveShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Print an archived project snapshot as JSON",
	Long: `Loads the snapshot stored under key (the archive_key of a
project.deleted event) and prints it. Usage:

	softdesk archive show projects/42/archive-20260101T000000.000000000Z.json
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		objects, err := storage.Open(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		if objects == nil {
			return errors.New("STORAGE_BACKEND is not set")
		}
		return showArchive(cmd.Context(), objects, args[0], cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveShowCmd)
}

func showArchive(ctx context.Context, objects storage.ObjectStore, key string, w io.Writer) error {
	snapshot, err := archive.New(objects).Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load archive %s: %w", key, err)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshot)
}
