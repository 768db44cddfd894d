package checkout

import (
	"testing"

	"chatbot-api/internal/config"
)

func TestNew_RejectsMalformedKeys(t *testing.T) {
	cases := []struct {
		name string
		key  string
	}{
		{name: "empty", key: ""},
		{name: "publishable", key: "pk_test_abc"},
		{name: "random", key: "not-a-key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(nil, config.StripeConfig{SecretKey: tc.key, FrontendURL: "http://localhost:3000"})
			if err == nil {
				t.Fatalf("expected error for key %q", tc.key)
			}
		})
	}
}

func TestNew_AcceptsSecretKeys(t *testing.T) {
	for _, key := range []string{"sk_test_abc", "sk_live_abc"} {
		bridge, err := New(nil, config.StripeConfig{SecretKey: key, FrontendURL: "http://localhost:3000/"})
		if err != nil {
			t.Fatalf("expected key %q to be accepted: %v", key, err)
		}
		if bridge.frontendURL != "http://localhost:3000" {
			t.Fatalf("expected trailing slash trimmed, got %q", bridge.frontendURL)
		}
	}
}
