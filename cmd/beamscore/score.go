package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/pipeline"
	"github.com/samcharles93/beamscore/internal/vocab"
)

func scoreCmd() *cli.Command {
	var (
		srcPath string
		trgPath string
		format  string
		first   int64
	)

	return &cli.Command{
		Name:  "score",
		Usage: "Force-decode target sentences through the predictor pipeline",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:        "src",
				Usage:       "indexed source sentences, one per line",
				Destination: &srcPath,
			},
			&cli.StringFlag{
				Name:        "trg",
				Usage:       "indexed target sentences, one per line",
				Required:    true,
				Destination: &trgPath,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "output format (text, json)",
				Value:       "text",
				Destination: &format,
			},
			&cli.Int64Flag{
				Name:        "first-sentence",
				Usage:       "sentence id of the first line",
				Destination: &first,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyScoreConfig(cmd, LoadConfig(), &format)
			if pipelinePath == "" {
				return fmt.Errorf("--pipeline is required")
			}
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}

			trgs, err := vocab.LoadSentences(trgPath)
			if err != nil {
				return err
			}
			var srcs [][]int
			if srcPath != "" {
				if srcs, err = vocab.LoadSentences(srcPath); err != nil {
					return err
				}
				if len(srcs) != len(trgs) {
					return fmt.Errorf("%d source sentences for %d target sentences", len(srcs), len(trgs))
				}
			}

			cfg, err := pipeline.LoadConfig(pipelinePath)
			if err != nil {
				return err
			}
			comb, err := pipeline.Build(cfg, pipeline.WithLogger(log))
			if err != nil {
				return err
			}
			return scoreSentences(ctx, comb, srcs, trgs, int(first), format, cmd.Root().Writer)
		},
	}
}

// scoreSentences scores trgs[i] as sentence first+i and writes one line per
// sentence. srcs may be nil.
func scoreSentences(ctx context.Context, comb *pipeline.Combination, srcs, trgs [][]int, first int, format string, w io.Writer) error {
	log := logger.FromContext(ctx)
	for i, trg := range trgs {
		var src []int
		if srcs != nil {
			src = srcs[i]
		}
		id := first + i
		res, err := pipeline.Score(ctx, comb, id, src, trg)
		if err != nil {
			return fmt.Errorf("sentence %d: %w", id, err)
		}
		log.Debug("scored sentence", "sentence_id", id, "tokens", len(res.Steps), "total", float64(res.Total))
		if err := writeResult(w, comb, res, format); err != nil {
			return err
		}
	}
	return nil
}

func writeResult(w io.Writer, comb *pipeline.Combination, res *pipeline.Result, format string) error {
	if format == "json" {
		b, err := json.Marshal(res)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", b)
		return err
	}
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(res.SentenceID))
	sb.WriteByte('\t')
	sb.WriteString(formatLogProb(res.Total))
	for _, m := range comb.Members() {
		sb.WriteByte('\t')
		sb.WriteString(m.Name)
		sb.WriteByte('=')
		sb.WriteString(formatLogProb(res.Totals[m.Name]))
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

func formatLogProb(lp pipeline.LogProb) string {
	b, _ := lp.MarshalJSON()
	return strings.Trim(string(b), `"`)
}
