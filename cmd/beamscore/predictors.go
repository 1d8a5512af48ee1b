package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/pipeline"
)

func predictorsCmd() *cli.Command {
	return &cli.Command{
		Name:  "predictors",
		Usage: "List predictor types, or the predictors of a pipeline",
		Flags: pipelineFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyPipelineConfig(cmd, LoadConfig())
			w := cmd.Root().Writer
			if pipelinePath == "" {
				return writeTypes(w)
			}
			cfg, err := pipeline.LoadConfig(pipelinePath)
			if err != nil {
				return err
			}
			comb, err := pipeline.Build(cfg, pipeline.WithLogger(logger.FromContext(ctx)))
			if err != nil {
				return err
			}
			return writeMembers(w, comb)
		},
	}
}

func writeTypes(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tKIND\tDESCRIPTION")
	for _, t := range pipeline.Types() {
		kind := "predictor"
		if t.Decorator {
			kind = "wrapper"
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, kind, t.Description)
	}
	return tw.Flush()
}

func writeMembers(w io.Writer, comb *pipeline.Combination) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tTYPE\tWEIGHT")
	for _, m := range comb.Members() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%g\n", m.Name, m.Type, m.Weight)
	}
	return tw.Flush()
}
