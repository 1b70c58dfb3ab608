package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"coursepull/internal/cleanup"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Inspect relocated originals",
	}
	cleanupCmd.AddCommand(newCleanupListCommand(ctx))
	return cleanupCmd
}

func newCleanupListCommand(ctx *commandContext) *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List consolidated cleanup folders, largest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			target, err := resolveRoot(cfg, root)
			if err != nil {
				return err
			}
			dirs, err := cleanup.ListDirectories(target)
			if err != nil {
				return fmt.Errorf("list cleanup folders: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintf(out, "No cleanup folders under %s\n", cleanup.ConsolidatedRoot(target))
				return nil
			}

			spec := tableSpec{
				headers: []string{"Folder", "Files", "Size", "Modified"},
				aligns:  []columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
			}
			var totalSize int64
			totalFiles := 0
			for _, dir := range dirs {
				totalSize += dir.Size
				totalFiles += dir.Files
				spec.rows = append(spec.rows, []string{
					dir.Name,
					strconv.Itoa(dir.Files),
					humanize.IBytes(uint64(dir.Size)),
					humanize.Time(dir.ModTime),
				})
			}
			spec.footer = []string{fmt.Sprintf("%d folders", len(dirs)), strconv.Itoa(totalFiles), humanize.IBytes(uint64(totalSize)), ""}
			fmt.Fprintln(out, spec.render())
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", "", "Download tree to inspect (defaults to paths.download_root)")
	return cmd
}
