package aibedrock

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// testConfig carries static SigV4 credentials so requests are signed.
func testConfig() aws.Config {
	return aws.Config{
		Region: "us-east-1",
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{AccessKeyID: "AKIDTEST", SecretAccessKey: "secret", Source: "test"}, nil
		}),
	}
}

func TestChat_Converse(t *testing.T) {
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"output": {"message": {"role": "assistant", "content": [{"text": "from bedrock"}]}},
			"stopReason": "end_turn",
			"usage": {"inputTokens": 4, "outputTokens": 2, "totalTokens": 6},
			"metrics": {"latencyMs": 10}
		}`))
	}))
	defer srv.Close()

	p := NewBedrockProvider(testConfig(),
		WithDefaultModel("test-model"),
		WithClientOptions(func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(srv.URL)
			o.RetryMaxAttempts = 1
		}),
	)

	resp, err := p.Chat(context.Background(), []llm.Message{
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("hi"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Message.Content != "from bedrock" {
		t.Fatalf("unexpected content %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
	if !strings.Contains(path, "/model/test-model/converse") {
		t.Fatalf("unexpected path %s", path)
	}
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256") {
		t.Fatalf("expected a SigV4 signature, got %q", auth)
	}
}

func TestChat_WithoutCredentialsFailsCleanly(t *testing.T) {
	t.Setenv("AWS_BEARER_TOKEN_BEDROCK", "")
	for name, cfg := range map[string]aws.Config{
		"anonymous": {Region: "us-east-1", Credentials: aws.AnonymousCredentials{}},
		"none":      {Region: "us-east-1"},
	} {
		p := NewBedrockProvider(cfg)
		_, err := p.Chat(context.Background(), []llm.Message{llm.NewUserMessage("hi")})
		if !ErrMissingCredentials.Is(err) {
			t.Fatalf("%s: expected missing credentials, got %v", name, err)
		}
	}
}

func TestChat_RejectsUnknownRole(t *testing.T) {
	p := NewBedrockProvider(testConfig())
	_, err := p.Chat(context.Background(), []llm.Message{
		llm.NewUserMessage("hi"),
		{Role: "tool", Content: "x"},
	})
	if !ErrUnsupportedRole.Is(err) {
		t.Fatalf("expected unsupported role, got %v", err)
	}
}

func TestChat_ThrottlingIsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Amzn-ErrorType", "ThrottlingException")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "Too many requests, please wait before trying again."}`))
	}))
	defer srv.Close()

	p := NewBedrockProvider(testConfig(),
		WithClientOptions(func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(srv.URL)
			o.RetryMaxAttempts = 1
		}),
	)

	_, err := p.Chat(context.Background(), []llm.Message{llm.NewUserMessage("hi")})
	if !codes.RateLimit.Is(err) {
		t.Fatalf("expected rate limit, got %v", err)
	}
}
