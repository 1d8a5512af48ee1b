package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/beamscore/internal/logger"
	"github.com/samcharles93/beamscore/internal/pipeline"
	"github.com/samcharles93/beamscore/internal/predictor"
)

type Server struct {
	store    *ScoreStore
	provider PipelineProvider
	log      logger.Logger
	clock    func() time.Time
}

func NewServer(store *ScoreStore, provider PipelineProvider, log logger.Logger) *Server {
	if store == nil {
		store = NewScoreStore(0)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		store:    store,
		provider: provider,
		log:      log,
		clock:    time.Now,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.GET("/healthz", s.handleHealth)

	e.POST("/v1/score", s.handleScore)
	e.GET("/v1/scores/:id", s.handleGetScore)
	e.DELETE("/v1/scores/:id", s.handleDeleteScore)

	e.GET("/v1/predictors", s.handlePredictors)
}

func (s *Server) handleHealth(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScore(c *echo.Context) error {
	if s.provider == nil {
		return writeServerError(c, "pipeline not configured")
	}
	req, err := decodeJSON[ScoreRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error(), "")
	}
	if err := validateScoreRequest(&req); err != nil {
		return writeBadRequest(c, err.Error(), errorParam(err))
	}

	resp, err := s.score(c.Request().Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			return writeBadRequest(c, err.Error(), errorParam(err))
		case errors.Is(err, predictor.ErrSentenceRange):
			return writeBadRequest(c, err.Error(), "sentence_id")
		}
		s.log.Error("score failed", "sentence_id", req.SentenceID, "error", err)
		return writeServerError(c, err.Error())
	}

	if req.Store == nil || *req.Store {
		s.store.Save(*resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func validateScoreRequest(req *ScoreRequest) error {
	if req.SentenceID < 0 {
		return newInvalidRequest("sentence_id", fmt.Sprintf("sentence_id must be non-negative, got %d", req.SentenceID))
	}
	for i, id := range req.Source {
		if id < 0 {
			return newInvalidRequest("source", fmt.Sprintf("source[%d]: negative token id %d", i, id))
		}
	}
	for i, id := range req.Target {
		if id < 0 {
			return newInvalidRequest("target", fmt.Sprintf("target[%d]: negative token id %d", i, id))
		}
	}
	return nil
}

func (s *Server) score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	var (
		res    *pipeline.Result
		states json.RawMessage
	)
	err := s.provider.WithPipeline(ctx, func(comb *pipeline.Combination) error {
		r, err := pipeline.Score(ctx, comb, req.SentenceID, req.Source, req.Target)
		if err != nil {
			return err
		}
		res = r
		if req.States {
			b, err := pipeline.EncodeStates(comb)
			if err != nil {
				return fmt.Errorf("encode states: %w", err)
			}
			states = b
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("scored sentence", "sentence_id", req.SentenceID, "tokens", len(res.Steps), "total", float64(res.Total))
	return &ScoreResponse{
		ID:         newScoreID(),
		Object:     "score",
		CreatedAt:  s.clock().Unix(),
		SentenceID: res.SentenceID,
		Steps:      res.Steps,
		Total:      res.Total,
		Totals:     res.Totals,
		States:     states,
	}, nil
}

func (s *Server) handleGetScore(c *echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return writeNotFound(c, "score not found")
	}
	resp, ok := s.store.Get(id)
	if !ok {
		return writeNotFound(c, "score not found")
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteScore(c *echo.Context) error {
	id := c.Param("id")
	if id == "" || !s.store.Delete(id) {
		return writeNotFound(c, "score not found")
	}
	return c.JSON(http.StatusOK, DeleteScoreResp{
		ID:      id,
		Object:  "score.deleted",
		Deleted: true,
	})
}

func (s *Server) handlePredictors(c *echo.Context) error {
	if s.provider == nil {
		return writeServerError(c, "pipeline not configured")
	}
	list := PredictorList{Object: "list", Types: pipeline.Types()}
	err := s.provider.WithPipeline(c.Request().Context(), func(comb *pipeline.Combination) error {
		for _, m := range comb.Members() {
			list.Data = append(list.Data, PredictorEntry{Name: m.Name, Type: m.Type, Weight: m.Weight})
		}
		return nil
	})
	if err != nil {
		s.log.Error("list predictors failed", "error", err)
		return writeServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}
