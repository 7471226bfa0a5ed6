package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/engine/semantic"
)

type stubSearcher struct {
	results []semantic.ScoredChunk
	err     error
	gotK    int
	gotQ    string
}

func (s *stubSearcher) Search(_ context.Context, query string, k int) ([]semantic.ScoredChunk, error) {
	s.gotQ = query
	s.gotK = k
	return s.results, s.err
}

type stubGenerator struct {
	answer string
	err    error
	gotQ   string
	gotCtx string
	calls  int
}

func (g *stubGenerator) Ask(_ context.Context, question, contextText string) (string, error) {
	g.calls++
	g.gotQ = question
	g.gotCtx = contextText
	return g.answer, g.err
}

func chunk(text, source string, page int) semantic.ScoredChunk {
	return semantic.ScoredChunk{
		Chunk: domain.Chunk{Text: text, SourcePath: source, PageNumber: page},
	}
}

func TestAnswer_PipesRetrievalIntoGeneration(t *testing.T) {
	search := &stubSearcher{results: []semantic.ScoredChunk{
		chunk("Tighten to 40 Nm.", "/data/w22.pdf", 12),
		chunk("Use a torque wrench.", "/data/w22.pdf", 13),
	}}
	gen := &stubGenerator{answer: "Tighten the terminal to 40 Nm."}
	svc := New(search, gen, 0, nil)

	ans, err := svc.Answer(context.Background(), "  What is the terminal torque?  ")
	if err != nil {
		t.Fatal(err)
	}

	if search.gotK != DefaultTopK {
		t.Errorf("k = %d, want %d", search.gotK, DefaultTopK)
	}
	if search.gotQ != "What is the terminal torque?" {
		t.Errorf("query not trimmed: %q", search.gotQ)
	}
	if gen.gotCtx != "Tighten to 40 Nm.\n\nUse a torque wrench." {
		t.Errorf("context = %q", gen.gotCtx)
	}
	if ans.Text != "Tighten the terminal to 40 Nm." {
		t.Errorf("answer = %q", ans.Text)
	}
}

func TestAnswer_ReferencesFollowRankOrder(t *testing.T) {
	search := &stubSearcher{results: []semantic.ScoredChunk{
		chunk("a", "/data/w22.pdf", 2),
		chunk("b", "/data/w22.pdf", 5),
		chunk("c", "/data/acw.pdf", 1),
	}}
	svc := New(search, &stubGenerator{answer: "ok"}, 3, nil)

	ans, err := svc.Answer(context.Background(), "Which fuse protects the heater?")
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Source: w22.pdf (Page 2)",
		"Source: w22.pdf (Page 5)",
		"Source: acw.pdf (Page 1)",
	}
	got := ans.ReferenceStrings()
	if len(got) != len(want) {
		t.Fatalf("got %d references", len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reference %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAnswer_EmptyRetrievalStillGenerates(t *testing.T) {
	gen := &stubGenerator{answer: "Information not found."}
	svc := New(&stubSearcher{}, gen, 3, nil)

	ans, err := svc.Answer(context.Background(), "Is there a lunar mode?")
	if err != nil {
		t.Fatal(err)
	}
	if gen.gotCtx != "" {
		t.Errorf("context = %q, want empty", gen.gotCtx)
	}
	if len(ans.References) != 0 {
		t.Errorf("references = %v, want none", ans.References)
	}
}

func TestAnswer_InvalidQuestionSkipsRetrieval(t *testing.T) {
	search := &stubSearcher{}
	gen := &stubGenerator{}
	svc := New(search, gen, 3, nil)

	cases := map[string]string{
		"empty":     "   ",
		"too short": "ok",
		"injection": "what torque; DROP TABLE manuals",
	}
	for name, q := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Answer(context.Background(), q); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if search.gotQ != "" || gen.calls != 0 {
		t.Error("invalid questions must not reach retrieval or generation")
	}
}

func TestAnswer_SearchFailureAborts(t *testing.T) {
	search := &stubSearcher{err: errors.New("index unavailable")}
	gen := &stubGenerator{}
	svc := New(search, gen, 3, nil)

	_, err := svc.Answer(context.Background(), "What oil grade is required?")
	if err == nil || !strings.Contains(err.Error(), "index unavailable") {
		t.Fatalf("err = %v", err)
	}
	if gen.calls != 0 {
		t.Error("generation must not run after retrieval failure")
	}
}

func TestAnswer_GenerationFailurePropagates(t *testing.T) {
	search := &stubSearcher{results: []semantic.ScoredChunk{chunk("x", "/d.pdf", 1)}}
	gen := &stubGenerator{err: domain.ErrNoProvider}
	svc := New(search, gen, 3, nil)

	_, err := svc.Answer(context.Background(), "What oil grade is required?")
	if !errors.Is(err, domain.ErrNoProvider) {
		t.Fatalf("err = %v", err)
	}
}
