package webhook

import (
	"encoding/json"
	"strings"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
)

// IsHandshake reports whether the inbound payload is a provider
// verification call rather than real trigger traffic. A nil config
// means the trigger has no handshake step and this is always false.
func IsHandshake(payload *domain.WebhookPayload, config *domain.HandshakeConfig) bool {
	if config == nil {
		return false
	}

	switch config.Strategy {
	case domain.HandshakeHeaderPresent:
		for name := range payload.Headers {
			if strings.EqualFold(name, config.ParamName) {
				return true
			}
		}
		return false

	case domain.HandshakeQueryPresent:
		_, ok := payload.QueryParams[config.ParamName]
		return ok

	case domain.HandshakeBodyParamPresent:
		if len(payload.Body) == 0 {
			return false
		}
		var body map[string]json.RawMessage
		if err := json.Unmarshal(payload.Body, &body); err != nil {
			return false
		}
		_, ok := body[config.ParamName]
		return ok

	default:
		return false
	}
}
