package gateway

import (
	"context"
	"testing"
)

type fakeLLMClient struct {
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	text string
	err  error
}

func (f *fakeLLMClient) Complete(ctx context.Context, model, systemPrompt, userMessage string, maxTokens int) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.responses) {
		return f.responses[len(f.responses)-1].text, f.responses[len(f.responses)-1].err
	}
	return f.responses[i].text, f.responses[i].err
}

func TestBuiltinGenerateTurnHappyPath(t *testing.T) {
	client := &fakeLLMClient{responses: []fakeResponse{
		{text: `{"stance": "pro", "claim": "Regulation helps", "argument": "Because it reduces harm.", "citations": [{"url": "https://example.com", "title": "Example", "quote": "q"}], "rebuttal_target": null}`},
	}}
	b := NewBuiltin(client, "claude-test", nil, 1, nil)

	result, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "AI regulation", Side: "pro", TurnNumber: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Claim != "Regulation helps" {
		t.Fatalf("unexpected claim: %q", result.Claim)
	}
	if len(result.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(result.Citations))
	}
}

func TestBuiltinGenerateTurnFallsBackOnOverload(t *testing.T) {
	client := &fakeLLMClient{responses: []fakeResponse{
		{err: &VendorError{StatusCode: 529, Message: "overloaded"}},
		{text: `{"stance": "con", "claim": "Too slow", "argument": "Bureaucracy.", "citations": []}`},
	}}
	b := NewBuiltin(client, "claude-primary", []string{"claude-fallback"}, 1, nil)

	result, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: "con"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Claim != "Too slow" {
		t.Fatalf("expected fallback model's response, got %+v", result)
	}
}

func TestBuiltinGenerateTurnParseErrorFallback(t *testing.T) {
	client := &fakeLLMClient{responses: []fakeResponse{{text: "not json at all"}}}
	b := NewBuiltin(client, "claude-test", nil, 1, nil)

	result, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: "pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Claim != "[Parse error - auto-generated response]" {
		t.Fatalf("expected parse-error placeholder, got %+v", result)
	}
}

func TestBuiltinGenerateTurnStripsTrailingCommas(t *testing.T) {
	client := &fakeLLMClient{responses: []fakeResponse{
		{text: `{"stance": "pro", "claim": "c", "argument": "a", "citations": [],}`},
	}}
	b := NewBuiltin(client, "claude-test", nil, 1, nil)

	result, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: "pro"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Claim != "c" {
		t.Fatalf("expected trailing-comma JSON to still parse, got %+v", result)
	}
}

func TestBuiltinGenerateTurnNonRetryableErrorStopsImmediately(t *testing.T) {
	client := &fakeLLMClient{responses: []fakeResponse{
		{err: &VendorError{StatusCode: 400, Message: "bad request"}},
	}}
	b := NewBuiltin(client, "claude-test", []string{"claude-fallback"}, 1, nil)

	_, err := b.GenerateTurn(context.Background(), TurnRequest{Topic: "t", Side: "pro"})
	if err == nil {
		t.Fatal("expected non-retryable error to propagate")
	}
	if client.calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-retryable error, got %d", client.calls)
	}
}

func TestBuiltinGenerateCommentSkip(t *testing.T) {
	client := &fakeLLMClient{responses: []fakeResponse{{text: "null"}}}
	b := NewBuiltin(client, "claude-test", nil, 1, nil)

	result, err := b.GenerateComment(context.Background(), CommentRequest{TopicTitle: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil {
		t.Fatalf("expected nil result for skip response, got %+v", result)
	}
}

func TestBuiltinGenerateCommentContent(t *testing.T) {
	client := &fakeLLMClient{responses: []fakeResponse{
		{text: `{"content": "I agree with the prior point.", "references": [], "citations": [], "stance": "neutral"}`},
	}}
	b := NewBuiltin(client, "claude-test", nil, 1, nil)

	result, err := b.GenerateComment(context.Background(), CommentRequest{TopicTitle: "t"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || result.Content == "" {
		t.Fatalf("expected non-empty comment content, got %+v", result)
	}
}
