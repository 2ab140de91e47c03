package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
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
	status      int
	contentType string
	body        []byte
	lastReq     *http.Request
	lastBody    []byte
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
	return &http.Response{
		StatusCode: c.status,
		Header:     http.Header{"Content-Type": []string{c.contentType}},
		Body:       io.NopCloser(bytes.NewReader(c.body)),
	}, nil
}

func TestGenerateSpeechBinaryAndHeaders(t *testing.T) {
	audio := []byte{0xff, 0xfb, 0x90}
	transport := &captureTransport{status: 200, contentType: "audio/mpeg", body: audio}
	client := NewClient(Options{
		Credentials: fakeCreds{token: "el-test"},
		HTTPClient:  &http.Client{Transport: transport},
	})

	result, err := client.GenerateSpeech(context.Background(), "eleven_multilingual_v2", providers.Payload{
		Prompt: "Brewed bold. Served fast.",
		Voice:  "voice-123",
	})
	if err != nil {
		t.Fatalf("GenerateSpeech error: %v", err)
	}
	if result.Binary == nil || !bytes.Equal(result.Binary.Data, audio) {
		t.Fatalf("binary = %+v", result.Binary)
	}
	if result.Binary.MIME != "audio/mpeg" {
		t.Fatalf("mime = %q", result.Binary.MIME)
	}
	if key := transport.lastReq.Header.Get("xi-api-key"); key != "el-test" {
		t.Fatalf("xi-api-key = %q", key)
	}
	if !strings.HasSuffix(transport.lastReq.URL.Path, "/v1/text-to-speech/voice-123") {
		t.Fatalf("path = %q", transport.lastReq.URL.Path)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["model_id"] != "eleven_multilingual_v2" {
		t.Fatalf("model_id = %v", payload["model_id"])
	}
}

func TestGenerateSpeechDefaultVoice(t *testing.T) {
	transport := &captureTransport{status: 200, contentType: "audio/mpeg", body: []byte{1}}
	client := NewClient(Options{
		Credentials: fakeCreds{token: "el-test"},
		HTTPClient:  &http.Client{Transport: transport},
	})
	if _, err := client.GenerateSpeech(context.Background(), "eleven_multilingual_v2", providers.Payload{Prompt: "hi"}); err != nil {
		t.Fatalf("GenerateSpeech error: %v", err)
	}
	if !strings.HasSuffix(transport.lastReq.URL.Path, "/v1/text-to-speech/"+defaultVoiceID) {
		t.Fatalf("path = %q, want default voice", transport.lastReq.URL.Path)
	}
}

func TestGenerateSpeechClassifiesQuota(t *testing.T) {
	body, _ := json.Marshal(map[string]any{
		"detail": map[string]any{"status": "quota_exceeded", "message": "character limit reached"},
	})
	transport := &captureTransport{status: 401, contentType: "application/json", body: body}
	client := NewClient(Options{
		Credentials: fakeCreds{token: "el-test"},
		HTTPClient:  &http.Client{Transport: transport},
	})
	_, err := client.GenerateSpeech(context.Background(), "eleven_multilingual_v2", providers.Payload{Prompt: "hi"})
	if providers.KindOf(err) != providers.KindRateLimited {
		t.Fatalf("kind = %v, want rate_limited", providers.KindOf(err))
	}
}

func TestGenerateSpeechMissingCredential(t *testing.T) {
	client := NewClient(Options{
		Credentials: fakeCreds{err: &credentials.MissingCredentialError{Provider: providers.ProviderElevenLabs}},
		HTTPClient:  &http.Client{Transport: &captureTransport{status: 200}},
	})
	_, err := client.GenerateSpeech(context.Background(), "eleven_multilingual_v2", providers.Payload{Prompt: "hi"})
	if providers.KindOf(err) != providers.KindMissingCredential {
		t.Fatalf("kind = %v, want missing_credential", providers.KindOf(err))
	}
}
