package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"coursepull/internal/pipeline"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags sourceFlags
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "plan [course-url...] [eng]",
		Short: "Show which lessons a run would download or skip",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cfg, args); err != nil {
				return err
			}
			logger, err := consoleLogger(cmd, cfg)
			if err != nil {
				return err
			}
			sources, err := buildSources(cfg, logger)
			if err != nil {
				return err
			}

			runner := pipeline.New(pipelineOptions(cfg), nil, nil, logger)
			out := cmd.OutOrStdout()
			for _, source := range sources {
				course, err := source.Load(cmd.Context())
				if err != nil {
					return fmt.Errorf("load %s: %w", source.Label, err)
				}

				spec := tableSpec{
					headers: []string{"#", "Lesson", "Action", "Reason"},
					aligns:  []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				}
				pending := 0
				for i, res := range runner.Plan(course) {
					action := string(res.Outcome)
					if action == "" {
						action = "download"
						pending++
					} else if pendingOnly {
						continue
					}
					spec.rows = append(spec.rows, []string{strconv.Itoa(i + 1), res.Stem, action, res.Reason})
				}

				fmt.Fprintf(out, "%s (%d lessons, %d to download)\n", course.Title, course.TaskCount(), pending)
				if len(spec.rows) > 0 {
					fmt.Fprintln(out, spec.render())
				}
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only list lessons that would be downloaded")
	return cmd
}
