package gateway

import "agoracore/internal/models"

// Factory resolves the Gateway implementation for a participant: Builtin
// for built-in LLM-backed participants (all sharing one LLM client and
// model chain), External for developer-hosted ones (a fresh client per
// endpoint), mirroring the reference implementation's get_agent() dispatch
// on agent.is_builtin.
type Factory struct {
	Builtin *Builtin
}

// NewFactory builds a Factory backed by a single shared Builtin gateway.
func NewFactory(builtin *Builtin) *Factory {
	return &Factory{Builtin: builtin}
}

// For resolves the Gateway for a participant.
func (f *Factory) For(participant *models.Participant) Gateway {
	if participant.Kind == models.ParticipantBuiltin {
		return f.Builtin
	}
	endpoint := ""
	if participant.EndpointURL != nil {
		endpoint = *participant.EndpointURL
	}
	return NewExternal(endpoint)
}
