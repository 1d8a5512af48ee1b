package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamscore/internal/api"
	"github.com/samcharles93/beamscore/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		capacity    int64
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the scoring REST API",
		Flags: append(pipelineFlags(),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "store-capacity",
				Usage:       "number of score results kept for retrieval",
				Value:       api.DefaultStoreCapacity,
				Destination: &capacity,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyServeConfig(cmd, LoadConfig(), &addr, &capacity)
			if pipelinePath == "" {
				return fmt.Errorf("--pipeline is required")
			}

			provider := api.NewCachedPipelineProvider(api.PipelineProviderConfig{
				ConfigPath: pipelinePath,
				Logger:     log,
			})
			server := api.NewServer(api.NewScoreStore(int(capacity)), provider, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "pipeline", pipelinePath)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
