package webhook

import (
	"encoding/json"
	"testing"

	"github.com/activepieces/activepieces-sub025/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestIsHandshake(t *testing.T) {
	tests := []struct {
		name    string
		payload domain.WebhookPayload
		config  *domain.HandshakeConfig
		want    bool
	}{
		{
			name:    "nil config is never a handshake",
			payload: domain.WebhookPayload{Headers: map[string]string{"X-Verify-Token": "abc"}},
			config:  nil,
			want:    false,
		},
		{
			name:    "header present",
			payload: domain.WebhookPayload{Headers: map[string]string{"X-Verify-Token": "abc"}},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeHeaderPresent, ParamName: "X-Verify-Token"},
			want:    true,
		},
		{
			name:    "header lookup is case-insensitive",
			payload: domain.WebhookPayload{Headers: map[string]string{"x-verify-token": "abc"}},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeHeaderPresent, ParamName: "X-Verify-Token"},
			want:    true,
		},
		{
			name:    "header absent",
			payload: domain.WebhookPayload{Headers: map[string]string{"X-Other": "abc"}},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeHeaderPresent, ParamName: "X-Verify-Token"},
			want:    false,
		},
		{
			name:    "query param present",
			payload: domain.WebhookPayload{QueryParams: map[string]string{"challenge": "123"}},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeQueryPresent, ParamName: "challenge"},
			want:    true,
		},
		{
			name:    "query lookup is exact",
			payload: domain.WebhookPayload{QueryParams: map[string]string{"Challenge": "123"}},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeQueryPresent, ParamName: "challenge"},
			want:    false,
		},
		{
			name:    "body param present",
			payload: domain.WebhookPayload{Body: json.RawMessage(`{"hub_challenge":"x"}`)},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeBodyParamPresent, ParamName: "hub_challenge"},
			want:    true,
		},
		{
			name:    "body not a keyed structure",
			payload: domain.WebhookPayload{Body: json.RawMessage(`[1,2,3]`)},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeBodyParamPresent, ParamName: "hub_challenge"},
			want:    false,
		},
		{
			name:    "empty body",
			payload: domain.WebhookPayload{},
			config:  &domain.HandshakeConfig{Strategy: domain.HandshakeBodyParamPresent, ParamName: "hub_challenge"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHandshake(&tt.payload, tt.config))
		})
	}
}
