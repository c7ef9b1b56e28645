package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/cue/internal/analyzer"
	"github.com/MikeSquared-Agency/cue/internal/answer"
	"github.com/MikeSquared-Agency/cue/internal/transcription"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := execute(t, "analyze", "How would you design a system for rate limiting?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var a analyzer.Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("output is not an analysis: %v\n%s", err, out)
	}
	if !a.IsQuestion || a.Category != analyzer.CategorySystemDesign {
		t.Errorf("unexpected analysis: %+v", a)
	}
}

func TestAskCommand_MockBackend(t *testing.T) {
	t.Setenv("CUE_CONFIG", "")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CUE_ANSWER_BACKEND", "mock")
	t.Setenv("CUE_ANSWER_TIMEOUT", "10s")

	out, err := execute(t, "ask", "--json", "What is a React hook?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var res answer.Result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not a result: %v\n%s", err, out)
	}
	if res.Question != "What is a React hook?" || res.Explanation == "" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestAskCommand_RequiresQuestion(t *testing.T) {
	if _, err := execute(t, "ask"); err == nil {
		t.Fatal("expected an error without a question")
	}
}

func TestPrinter(t *testing.T) {
	var out bytes.Buffer
	p := newPrinter(&out, false)

	p.OnTranscript("s", transcription.Event{Text: "what is a clos"})
	p.OnTranscript("s", transcription.Event{Text: "what is a closure", IsFinal: true})
	p.OnAnalysis("s", analyzer.Analysis{Category: analyzer.CategoryNotQuestion})
	p.OnAnalysis("s", analyzer.Analysis{
		IsQuestion:  true,
		IsTechnical: true,
		Category:    analyzer.CategoryGeneralTechnical,
		Keywords:    []string{"closure"},
	})
	p.OnAnswer("s", answer.Result{
		Question:    "what is a closure",
		Analysis:    analyzer.Analysis{Category: analyzer.CategoryGeneralTechnical},
		Code:        "const f = () => x",
		Explanation: "A function with its scope.",
		Latency:     300 * time.Millisecond,
	})

	got := out.String()
	if strings.Contains(got, "what is a clos\n") {
		t.Error("partials should be hidden by default")
	}
	for _, want := range []string{"what is a closure", "[general_technical] technical · closure", "A function with its scope.", "const f = () => x", "300ms"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q\n%s", want, got)
		}
	}
	if strings.Contains(got, "not_question") {
		t.Error("non-questions should not be printed")
	}
}
