package api

import (
	"github.com/goccy/go-json"

	"github.com/samcharles93/beamscore/internal/pipeline"
)

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// ScoreRequest asks for the forced decoding score of Target given Source.
type ScoreRequest struct {
	// SentenceID is the 0-based index used by per-sentence resources.
	SentenceID int   `json:"sentence_id"`
	Source     []int `json:"source"`
	Target     []int `json:"target"`
	// States includes the final predictor snapshots in the response.
	States bool `json:"states,omitempty"`
	// Store keeps the result retrievable by id. Defaults to true.
	Store *bool `json:"store,omitempty"`
}

type ScoreResponse struct {
	ID         string                      `json:"id"`
	Object     string                      `json:"object"`
	CreatedAt  int64                       `json:"created_at"`
	SentenceID int                         `json:"sentence_id"`
	Steps      []pipeline.StepScore        `json:"steps"`
	Total      pipeline.LogProb            `json:"total"`
	Totals     map[string]pipeline.LogProb `json:"totals"`
	States     json.RawMessage             `json:"states,omitempty"`
}

type DeleteScoreResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type PredictorEntry struct {
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

type PredictorList struct {
	Object string              `json:"object"`
	Data   []PredictorEntry    `json:"data"`
	Types  []pipeline.TypeInfo `json:"types"`
}
