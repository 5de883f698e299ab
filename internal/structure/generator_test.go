package structure

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hyperjump/manabu/internal/generation"
	"github.com/hyperjump/manabu/internal/models"
	"go.uber.org/zap"
)

type staticContext string

func (s staticContext) Retrieve(context.Context, string) (string, error) { return string(s), nil }

type failingContext struct{}

func (failingContext) Retrieve(context.Context, string) (string, error) {
	return "", errors.New("store offline")
}

func TestGenerator_accepts(t *testing.T) {
	gen := generation.NewScripted(`{"notebook_name":"Graphs","cells":[{"type":"code_with_visualization","content":"Plot a graph."}]}`)
	g := NewGenerator(gen, staticContext("graph theory notes"), WithLogger(zap.NewNop()))

	res, err := g.Generate(context.Background(), "Graphs")
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback || res.Attempts != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.Structure.Name != "Graphs" || res.Structure.Cells[0].Type != models.CodeWithVisualization {
		t.Errorf("structure = %+v", res.Structure)
	}
	req := gen.Requests()[0]
	if !req.JSON {
		t.Error("structure request not in JSON mode")
	}
	if req.User != "Topic: Graphs\n\nContext:\ngraph theory notes" {
		t.Errorf("user prompt = %q", req.User)
	}
	for _, typ := range models.CellTypes {
		if !strings.Contains(req.System, string(typ)) {
			t.Errorf("system prompt does not list %s", typ)
		}
	}
}

func TestGenerator_fallbackAfterThreeMalformed(t *testing.T) {
	gen := generation.NewScripted("nope", "{broken", "still not json", `{"notebook_name":"late"}`)
	g := NewGenerator(gen, staticContext("None"))

	res, err := g.Generate(context.Background(), "T")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || res.Attempts != 3 {
		t.Fatalf("result = %+v", res)
	}
	if res.Structure.Name != "T Notebook" || len(res.Structure.Cells) != 1 {
		t.Fatalf("structure = %+v", res.Structure)
	}
	if c := res.Structure.Cells[0]; c.Type != models.DefaultCellType || c.Content != IntroPrompt {
		t.Errorf("cell = %+v", c)
	}
	if !errors.Is(res.Reason, ErrExhausted) || !errors.Is(res.Reason, ErrMalformed) {
		t.Errorf("reason = %v", res.Reason)
	}
	if n := len(gen.Requests()); n != 3 {
		t.Errorf("generation calls = %d, want 3", n)
	}
	reqs := gen.Requests()
	if reqs[0] != reqs[1] || reqs[1] != reqs[2] {
		t.Error("retries must re-issue the same request")
	}
}

func TestGenerator_retrySucceeds(t *testing.T) {
	gen := generation.NewScripted("garbage", `{"notebook_name":"T","cells":[{"type":"weird","content":"x"}]}`)
	res, _ := NewGenerator(gen, staticContext("ctx")).Generate(context.Background(), "T")
	if res.Fallback || res.Attempts != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Structure.Cells[0].Type != models.DefaultCellType || len(res.Coercions) != 1 {
		t.Errorf("structure = %+v coercions = %v", res.Structure, res.Coercions)
	}
}

func TestGenerator_serviceErrorFallback(t *testing.T) {
	gen := generation.NewScripted()
	res, err := NewGenerator(gen, staticContext("ctx"), WithMaxAttempts(2)).Generate(context.Background(), "T")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback || res.Attempts != 2 || res.Structure.Cells[0].Content != GenerateErrorPrompt {
		t.Errorf("result = %+v", res)
	}
}

func TestGenerator_contextError(t *testing.T) {
	if _, err := NewGenerator(generation.NewScripted(), failingContext{}).Generate(context.Background(), "T"); err == nil {
		t.Error("expected retrieval error")
	}
}

func TestGenerator_Refine(t *testing.T) {
	gen := generation.NewScripted("x", "y", "z")
	res := NewGenerator(gen, staticContext("")).Refine(context.Background(), "T", `{"notebook_name":"T"}`, "more code")
	if !res.Fallback || res.Structure.Cells[0].Content != ImprovedIntroPrompt {
		t.Errorf("result = %+v", res)
	}
	user := gen.Requests()[0].User
	if !strings.Contains(user, `{"notebook_name":"T"}`) || !strings.Contains(user, "more code") {
		t.Errorf("user prompt = %q", user)
	}
}

func TestTopicsGenerator(t *testing.T) {
	gen := generation.NewScripted(`{"topics":["Intro","Advanced"]}`)
	tg := NewTopicsGenerator(gen, staticContext("ctx"))
	res, err := tg.Generate(context.Background(), "Go", 2)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fallback || len(res.Topics) != 2 || res.Topics[0] != "Intro" {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(gen.Requests()[0].User, "Notebook Count: 2") {
		t.Errorf("user prompt = %q", gen.Requests()[0].User)
	}

	gen = generation.NewScripted(`{"topics":"x"}`, "bad", `{"topics":[1]}`)
	res, _ = NewTopicsGenerator(gen, staticContext("ctx")).Generate(context.Background(), "Go", 2)
	if !res.Fallback || res.Attempts != 3 || res.Topics[1] != "Go Part 2" {
		t.Errorf("fallback result = %+v", res)
	}

	gen = generation.NewScripted(`{"topics":["A","B","C"]}`)
	refined := NewTopicsGenerator(gen, staticContext("")).Refine(context.Background(), "Go", []string{"a"}, "add depth", 3)
	if refined.Fallback || len(refined.Topics) != 3 {
		t.Errorf("refined = %+v", refined)
	}
	if !gen.Requests()[0].JSON {
		t.Error("refine request not in JSON mode")
	}
}
