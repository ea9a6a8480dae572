package factcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"agoracore/internal/models"
)

type fakeLLMClient struct {
	response string
	err      error
}

func (f *fakeLLMClient) Complete(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int) (string, error) {
	return f.response, f.err
}

func TestVerifyClaimAllVerified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("The study found regulation reduces harm significantly."))
	}))
	defer server.Close()

	llm := &fakeLLMClient{response: `{"match": true, "explanation": "matches"}`}
	referee := NewReferee(llm, "claude-test", nil, nil)

	// checkLogicValid reads a "valid" field, which the single-response fake
	// above never returns, so swap in a sequencing fake that answers the
	// content-match prompt first and the logic prompt second.
	llmLogic := &sequencedLLMClient{responses: []string{
		`{"match": true, "explanation": "matches"}`,
		`{"valid": true, "explanation": "follows"}`,
	}}
	referee.LLM = llmLogic

	v := referee.VerifyClaim(context.Background(), "Regulation reduces harm", []models.Citation{
		{URL: server.URL, Title: "Study", Quote: "regulation reduces harm"},
	})

	if v.Verdict != models.VerdictVerified {
		t.Fatalf("expected verified verdict, got %v (details: %+v)", v.Verdict, v.Details)
	}
	if !v.CitationAccessible || !v.ContentMatch || !v.LogicValid {
		t.Fatalf("expected all checks to pass, got %+v", v)
	}
}

type sequencedLLMClient struct {
	responses []string
	calls     int
}

func (s *sequencedLLMClient) Complete(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.responses) {
		return s.responses[len(s.responses)-1], nil
	}
	return s.responses[i], nil
}

func TestVerifyClaimSourceInaccessible(t *testing.T) {
	llm := &fakeLLMClient{response: `{"match": true}`}
	referee := NewReferee(llm, "claude-test", nil, nil)

	v := referee.VerifyClaim(context.Background(), "claim", []models.Citation{
		{URL: "http://127.0.0.1:0", Title: "Dead link", Quote: "q"},
	})
	if v.Verdict != models.VerdictSourceInaccessible {
		t.Fatalf("expected source_inaccessible verdict, got %v", v.Verdict)
	}
}

func TestVerifyClaimSourceMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("unrelated content"))
	}))
	defer server.Close()

	llm := &fakeLLMClient{response: `{"match": false, "explanation": "no match"}`}
	referee := NewReferee(llm, "claude-test", nil, nil)

	v := referee.VerifyClaim(context.Background(), "claim", []models.Citation{
		{URL: server.URL, Title: "Page", Quote: "expected quote"},
	})
	if v.Verdict != models.VerdictSourceMismatch {
		t.Fatalf("expected source_mismatch verdict, got %v", v.Verdict)
	}
}

func TestVerifyClaimNoCitationsIsInconclusive(t *testing.T) {
	llm := &fakeLLMClient{}
	referee := NewReferee(llm, "claude-test", nil, nil)

	v := referee.VerifyClaim(context.Background(), "claim", nil)
	if v.Verdict != models.VerdictInconclusive {
		t.Fatalf("expected inconclusive verdict with no citations, got %v", v.Verdict)
	}
}
