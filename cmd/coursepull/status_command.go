package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coursepull/internal/deps"
	"coursepull/internal/language"
	"coursepull/internal/preflight"
	"coursepull/internal/runlock"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories, and the course site",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Configuration", colorize) {
				fmt.Fprintln(out, line)
			}
			configPath := ctx.configPath
			if configPath == "" {
				configPath = "defaults"
			}
			fmt.Fprintln(out, renderStatusLine("Config", statusInfo, configPath, colorize))
			fmt.Fprintln(out, renderStatusLine("English audio", statusInfo, yesNo(cfg.Audio.English), colorize))
			fmt.Fprintln(out, renderStatusLine("Subtitles", statusInfo,
				fmt.Sprintf("%s (%s)", language.DisplayName(cfg.Courses.SubtitleLang), cfg.Courses.SubtitleLang), colorize))
			fmt.Fprintln(out, renderStatusLine("Cleanup", statusInfo,
				fmt.Sprintf("%s (consolidate: %s)", yesNo(cfg.Cleanup.Enabled), yesNo(cfg.Cleanup.Consolidate)), colorize))
			fmt.Fprintln(out, renderStatusLine("Courses", statusInfo, courseSummary(len(cfg.Courses.URLs), cfg.Courses.Manifest), colorize))
			fmt.Fprintln(out, renderStatusLine("Run lock", statusInfo, lockSummary(cfg.Paths.DownloadRoot), colorize))
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range dependencyLines(deps.Check(cfg), colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out)

			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range preflightLines(preflight.RunAll(cmd.Context(), cfg), colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func courseSummary(urls int, manifest string) string {
	parts := []string{fmt.Sprintf("%d url(s)", urls)}
	if strings.TrimSpace(manifest) != "" {
		parts = append(parts, "manifest "+manifest)
	}
	return strings.Join(parts, ", ")
}

// lockSummary probes the run lock without holding it.
func lockSummary(root string) string {
	lock, err := runlock.Acquire(root)
	if errors.Is(err, runlock.ErrLocked) {
		return "held by another process"
	}
	if err != nil {
		return err.Error()
	}
	_ = lock.Release()
	return "free"
}
