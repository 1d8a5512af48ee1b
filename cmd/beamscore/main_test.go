package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/samcharles93/beamscore/internal/length"
	"github.com/samcharles93/beamscore/internal/mathutil"
	"github.com/samcharles93/beamscore/internal/pipeline"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testCombination(t *testing.T) *pipeline.Combination {
	t.Helper()
	wc, err := length.NewWordCount(length.DefaultWordCountConfig())
	if err != nil {
		t.Fatalf("NewWordCount: %v", err)
	}
	return pipeline.NewCombination(pipeline.Member{Name: "wc", Type: pipeline.TypeWordCount, Weight: 0.5, Predictor: wc})
}

func TestScoreSentencesText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	trgs := [][]int{{5, 6}, {}}
	if err := scoreSentences(context.Background(), testCombination(t), nil, trgs, 10, "text", &buf); err != nil {
		t.Fatalf("scoreSentences: %v", err)
	}
	want := "10\t-1\twc=-2\n11\t0\twc=0\n"
	if got := buf.String(); got != want {
		t.Fatalf("output:\n%q\nwant\n%q", got, want)
	}
}

func TestScoreSentencesJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := scoreSentences(context.Background(), testCombination(t), [][]int{{9}}, [][]int{{5}}, 0, "json", &buf); err != nil {
		t.Fatalf("scoreSentences: %v", err)
	}
	var res struct {
		SentenceID int                `json:"sentence_id"`
		Total      float64            `json:"total"`
		Steps      []any              `json:"steps"`
		Totals     map[string]float64 `json:"totals"`
	}
	if err := json.Unmarshal(buf.Bytes(), &res); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if res.SentenceID != 0 || res.Total != -0.5 || len(res.Steps) != 2 || res.Totals["wc"] != -1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFormatLogProb(t *testing.T) {
	t.Parallel()

	if got := formatLogProb(pipeline.LogProb(-1.25)); got != "-1.25" {
		t.Fatalf("got %q", got)
	}
	if got := formatLogProb(pipeline.LogProb(mathutil.NegInf)); got != "-inf" {
		t.Fatalf("got %q", got)
	}
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "pipeline: /tmp/p.yaml\nformat: json\nstore_capacity: 8\nlog_level: debug\n")
	cfg := loadConfigFile(path)
	if cfg.Pipeline != "/tmp/p.yaml" || cfg.Format != "json" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.StoreCapacity == nil || *cfg.StoreCapacity != 8 {
		t.Fatalf("store_capacity: got %v", cfg.StoreCapacity)
	}

	if got := loadConfigFile(filepath.Join(dir, "missing.yaml")); got != (Config{}) {
		t.Fatalf("missing file should give zero config, got %+v", got)
	}
	bad := writeFile(t, dir, "bad.yaml", "pipeline: [\n")
	if got := loadConfigFile(bad); got != (Config{}) {
		t.Fatalf("bad file should give zero config, got %+v", got)
	}
}

// The app tests share the package-level flag variables and so do not run in
// parallel.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	err := app.Run(context.Background(), append([]string{"beamscore", "--log-level", "error"}, args...))
	return buf.String(), err
}

func TestScoreCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "lengths.txt", "2:-1.5\n1:-0.5 3:-2\n")
	cfgPath := writeFile(t, dir, "pipeline.yaml", `predictors:
  - type: wc
  - type: extlength
    path: lengths.txt
    weight: 2
`)
	trg := writeFile(t, dir, "trg.txt", "5 6\n7\n")

	out, err := runApp(t, "score", "--pipeline", cfgPath, "--trg", trg)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	want := "0\t-5\twc=-2\textlength=-1.5\n1\t-2\twc=-1\textlength=-0.5\n"
	if out != want {
		t.Fatalf("output:\n%q\nwant\n%q", out, want)
	}
}

func TestScoreCommandErrors(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "pipeline.yaml", "predictors:\n  - type: wc\n")
	trg := writeFile(t, dir, "trg.txt", "5\n6\n")
	src := writeFile(t, dir, "src.txt", "5\n")

	if _, err := runApp(t, "score", "--trg", trg); err == nil || !strings.Contains(err.Error(), "--pipeline") {
		t.Fatalf("expected missing pipeline error, got %v", err)
	}
	if _, err := runApp(t, "score", "--pipeline", cfgPath, "--trg", trg, "--format", "xml"); err == nil {
		t.Fatalf("expected unknown format error")
	}
	if _, err := runApp(t, "score", "--pipeline", cfgPath, "--trg", trg, "--src", src); err == nil {
		t.Fatalf("expected sentence count mismatch error")
	}
}

func TestPredictorsCommand(t *testing.T) {
	out, err := runApp(t, "predictors", "--pipeline", "")
	if err != nil {
		t.Fatalf("predictors: %v", err)
	}
	for _, typ := range pipeline.Types() {
		if !strings.Contains(out, typ.Name) {
			t.Fatalf("missing type %q in:\n%s", typ.Name, out)
		}
	}

	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "pipeline.yaml", "predictors:\n  - type: wc\n    name: penalty\n    weight: 0.25\n")
	out, err = runApp(t, "predictors", "--pipeline", cfgPath)
	if err != nil {
		t.Fatalf("predictors: %v", err)
	}
	if !strings.Contains(out, "penalty") || !strings.Contains(out, "0.25") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSetupLoggingFallsBackToText(t *testing.T) {
	prev := stderrIsTTY
	stderrIsTTY = func() bool { return false }
	defer func() { stderrIsTTY = prev }()

	if _, err := runApp(t, "version"); err != nil {
		t.Fatalf("version: %v", err)
	}
	if logFormat != "text" {
		t.Fatalf("log format: got %q want text", logFormat)
	}

	if _, err := runApp(t, "--log-format", "json", "version"); err != nil {
		t.Fatalf("version: %v", err)
	}
	if logFormat != "json" {
		t.Fatalf("explicit log format overridden: got %q", logFormat)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "version:") {
		t.Fatalf("unexpected output: %q", out)
	}
}
