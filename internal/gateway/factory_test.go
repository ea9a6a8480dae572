package gateway

import (
	"testing"

	"agoracore/internal/models"
)

func TestFactoryForBuiltin(t *testing.T) {
	builtin := NewBuiltin(&fakeLLMClient{}, "claude-test", nil, 1, nil)
	f := NewFactory(builtin)

	got := f.For(&models.Participant{Kind: models.ParticipantBuiltin})
	if got != Gateway(builtin) {
		t.Fatalf("expected builtin participant to resolve to the shared Builtin gateway")
	}
}

func TestFactoryForExternal(t *testing.T) {
	builtin := NewBuiltin(&fakeLLMClient{}, "claude-test", nil, 1, nil)
	f := NewFactory(builtin)

	endpoint := "https://participant.example.com"
	got := f.For(&models.Participant{Kind: models.ParticipantExternal, EndpointURL: &endpoint})
	ext, ok := got.(*External)
	if !ok {
		t.Fatalf("expected external participant to resolve to *External, got %T", got)
	}
	if ext.EndpointURL != endpoint {
		t.Fatalf("expected endpoint %q, got %q", endpoint, ext.EndpointURL)
	}
}

func TestFactoryForExternalNilEndpoint(t *testing.T) {
	builtin := NewBuiltin(&fakeLLMClient{}, "claude-test", nil, 1, nil)
	f := NewFactory(builtin)

	got := f.For(&models.Participant{Kind: models.ParticipantExternal})
	ext, ok := got.(*External)
	if !ok {
		t.Fatalf("expected *External, got %T", got)
	}
	if ext.EndpointURL != "" {
		t.Fatalf("expected empty endpoint when EndpointURL is nil, got %q", ext.EndpointURL)
	}
}
