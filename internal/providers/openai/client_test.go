package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"adstudio/internal/infra/credentials"
	"adstudio/internal/providers"
)

type fakeCreds struct {
	token string
	err   error
}

func (f fakeCreds) Get(ctx context.Context, p providers.Provider) (credentials.Credential, error) {
	if f.err != nil {
		return credentials.Credential{}, f.err
	}
	return credentials.Credential{Provider: p, Token: f.token}, nil
}

type captureTransport struct {
	responses map[string]responseStub
	lastBody  []byte
	lastReq   *http.Request
}

type responseStub struct {
	status int
	header http.Header
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastReq = req
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	if stub, ok := c.responses[req.URL.Path]; ok {
		return stub.toResponse(), nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{
		status: status,
		header: http.Header{"Content-Type": []string{"application/json"}},
		body:   body,
	}
}

func (c *captureTransport) setBinaryResponse(path, contentType string, data []byte) {
	c.responses[path] = responseStub{
		status: http.StatusOK,
		header: http.Header{"Content-Type": []string{contentType}},
		body:   data,
	}
}

func (s responseStub) toResponse() *http.Response {
	header := http.Header{}
	for k, values := range s.header {
		cloned := make([]string, len(values))
		copy(cloned, values)
		header[k] = cloned
	}
	return &http.Response{
		StatusCode: s.status,
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(s.body)),
	}
}

func newTestClient(transport *captureTransport, creds CredentialSource) *Client {
	return NewClient(Options{
		Credentials: creds,
		HTTPClient:  &http.Client{Transport: transport},
	})
}

func TestGenerateTextExtractsFencedJSON(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/v1/chat/completions", http.StatusOK, map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "Sure! ```json\n{\"a\":1}\n```"}},
		},
	})
	client := newTestClient(transport, fakeCreds{token: "sk-test"})

	result, err := client.GenerateText(context.Background(), "gpt-4o-mini", providers.Payload{Prompt: "plan"})
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	if result.Binary != nil {
		t.Fatal("text result must not carry a binary payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(result.Structured, &decoded); err != nil {
		t.Fatalf("structured payload does not decode: %v", err)
	}
	if decoded["a"] != float64(1) {
		t.Fatalf("payload = %v", decoded)
	}
	if result.Candidate.Provider != providers.ProviderOpenAI || result.Candidate.Model != "gpt-4o-mini" {
		t.Fatalf("provenance = %v", result.Candidate)
	}
	if auth := transport.lastReq.Header.Get("Authorization"); auth != "Bearer sk-test" {
		t.Fatalf("authorization header = %q", auth)
	}
}

func TestGenerateTextVisionPayloadShape(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/v1/chat/completions", http.StatusOK, map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": `{"ok":true}`}},
		},
	})
	client := newTestClient(transport, fakeCreds{token: "sk-test"})

	_, err := client.GenerateText(context.Background(), "gpt-4o-mini", providers.Payload{
		Prompt:    "describe the product",
		ImageData: []byte{0x89, 'P', 'N', 'G'},
		ImageMIME: "image/png",
	})
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	messages := payload["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("messages len = %d, want 2", len(messages))
	}
	parts, ok := messages[1].(map[string]any)["content"].([]any)
	if !ok || len(parts) != 2 {
		t.Fatalf("vision user message must carry text + image parts: %v", messages[1])
	}
	imageURL := parts[1].(map[string]any)["image_url"].(map[string]any)["url"].(string)
	if !strings.HasPrefix(imageURL, "data:image/png;base64,") {
		t.Fatalf("image part url = %q", imageURL)
	}
}

func TestGenerateTextClassifiesStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   map[string]any
		want   providers.ErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "slow down"}}, providers.KindRateLimited},
		{"permission", http.StatusUnauthorized, map[string]any{"error": map[string]any{"message": "bad key"}}, providers.KindPermissionDenied},
		{"model missing", http.StatusNotFound, map[string]any{"error": map[string]any{"message": "nope", "code": "model_not_found"}}, providers.KindModelNotFound},
		{"overloaded", http.StatusServiceUnavailable, map[string]any{"error": map[string]any{"message": "busy"}}, providers.KindServiceOverloaded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			transport := &captureTransport{responses: map[string]responseStub{}}
			transport.setJSONResponse("/v1/chat/completions", tc.status, tc.body)
			client := newTestClient(transport, fakeCreds{token: "sk-test"})

			_, err := client.GenerateText(context.Background(), "gpt-4o-mini", providers.Payload{Prompt: "x"})
			if providers.KindOf(err) != tc.want {
				t.Fatalf("kind = %v, want %v (err %v)", providers.KindOf(err), tc.want, err)
			}
		})
	}
}

func TestGenerateTextMissingCredential(t *testing.T) {
	client := newTestClient(&captureTransport{responses: map[string]responseStub{}},
		fakeCreds{err: &credentials.MissingCredentialError{Provider: providers.ProviderOpenAI}})

	_, err := client.GenerateText(context.Background(), "gpt-4o-mini", providers.Payload{Prompt: "x"})
	if providers.KindOf(err) != providers.KindMissingCredential {
		t.Fatalf("kind = %v, want missing_credential", providers.KindOf(err))
	}
	var perr *providers.Error
	if !errors.As(err, &perr) || perr.Provider != providers.ProviderOpenAI {
		t.Fatalf("error must name the offending provider: %v", err)
	}
}

func TestGenerateTextUnparseableContent(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/v1/chat/completions", http.StatusOK, map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"content": "no json here"}},
		},
	})
	client := newTestClient(transport, fakeCreds{token: "sk-test"})

	_, err := client.GenerateText(context.Background(), "gpt-4o-mini", providers.Payload{Prompt: "x"})
	if providers.KindOf(err) != providers.KindExtraction {
		t.Fatalf("kind = %v, want extraction", providers.KindOf(err))
	}
}

func TestGenerateSpeechReturnsBinary(t *testing.T) {
	audio := []byte{0x49, 0x44, 0x33, 0x04}
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setBinaryResponse("/v1/audio/speech", "audio/mpeg", audio)
	client := newTestClient(transport, fakeCreds{token: "sk-test"})

	result, err := client.GenerateSpeech(context.Background(), "gpt-4o-mini-tts", providers.Payload{
		Prompt: "Fresh roasted, every morning.",
		Voice:  "nova",
	})
	if err != nil {
		t.Fatalf("GenerateSpeech error: %v", err)
	}
	if result.Structured != nil {
		t.Fatal("speech result must not carry a structured payload")
	}
	if result.Binary.MIME != "audio/mpeg" || !bytes.Equal(result.Binary.Data, audio) {
		t.Fatalf("binary = %+v", result.Binary)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["voice"] != "nova" {
		t.Fatalf("voice = %v, want nova", payload["voice"])
	}
	if payload["input"] != "Fresh roasted, every morning." {
		t.Fatalf("input = %v", payload["input"])
	}
}
