package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
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
	responses map[string]responseStub
	lastBody  []byte
	lastReq   *http.Request
}

type responseStub struct {
	status int
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
	stub, ok := c.responses[req.URL.Path]
	if !ok {
		return &http.Response{StatusCode: http.StatusNotFound, Body: io.NopCloser(strings.NewReader("not found"))}, nil
	}
	return &http.Response{
		StatusCode: stub.status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(stub.body)),
	}, nil
}

func setJSON(tr *captureTransport, path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	tr.responses[path] = responseStub{status: status, body: body}
}

func newTestClient(transport *captureTransport) *Client {
	return NewClient(Options{
		Credentials: fakeCreds{token: "g-test"},
		HTTPClient:  &http.Client{Transport: transport},
	})
}

func textResponse(text string) map[string]any {
	return map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
}

func TestGenerateTextExtractsJSON(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	setJSON(transport, "/v1beta/models/gemini-2.5-flash:generateContent", 200, textResponse("```json\n{\"hook\":\"first sip\"}\n```"))

	client := newTestClient(transport)
	result, err := client.GenerateText(context.Background(), "gemini-2.5-flash", providers.Payload{Prompt: "plan"})
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(result.Structured, &decoded); err != nil {
		t.Fatalf("structured payload does not decode: %v", err)
	}
	if decoded["hook"] != "first sip" {
		t.Fatalf("payload = %v", decoded)
	}
	if key := transport.lastReq.URL.Query().Get("key"); key != "g-test" {
		t.Fatalf("key query param = %q", key)
	}
}

func TestGenerateTextVisionInlineData(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	setJSON(transport, "/v1beta/models/gemini-2.5-flash:generateContent", 200, textResponse(`{"ok":true}`))

	client := newTestClient(transport)
	image := []byte{0x89, 'P', 'N', 'G'}
	_, err := client.GenerateText(context.Background(), "gemini-2.5-flash", providers.Payload{
		Prompt:    "what product is shown",
		ImageData: image,
		ImageMIME: "image/png",
	})
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(transport.lastBody, &payload); err != nil {
		t.Fatalf("decode request payload: %v", err)
	}
	contents := payload["contents"].([]any)
	parts := contents[0].(map[string]any)["parts"].([]any)
	if len(parts) != 2 {
		t.Fatalf("parts len = %d, want text + inlineData", len(parts))
	}
	inline := parts[1].(map[string]any)["inlineData"].(map[string]any)
	if inline["mimeType"] != "image/png" {
		t.Fatalf("mimeType = %v", inline["mimeType"])
	}
	decoded, err := base64.StdEncoding.DecodeString(inline["data"].(string))
	if err != nil || !bytes.Equal(decoded, image) {
		t.Fatalf("inline data mismatch: %v %v", decoded, err)
	}
}

func TestGenerateImageDecodesInlineAsset(t *testing.T) {
	imageBytes := []byte{1, 2, 3, 4}
	transport := &captureTransport{responses: map[string]responseStub{}}
	setJSON(transport, "/v1beta/models/gemini-2.5-flash-image:generateContent", 200, map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"inlineData": map[string]any{
					"mimeType": "image/png",
					"data":     base64.StdEncoding.EncodeToString(imageBytes),
				}},
			}}},
		},
	})

	client := newTestClient(transport)
	result, err := client.GenerateImage(context.Background(), "gemini-2.5-flash-image", providers.Payload{Prompt: "latte art"})
	if err != nil {
		t.Fatalf("GenerateImage error: %v", err)
	}
	if result.Binary == nil || !bytes.Equal(result.Binary.Data, imageBytes) {
		t.Fatalf("binary = %+v", result.Binary)
	}
	if result.Binary.MIME != "image/png" {
		t.Fatalf("mime = %q", result.Binary.MIME)
	}
}

func TestGenerateVideoDownloadsFileData(t *testing.T) {
	videoBytes := []byte("frames")
	transport := &captureTransport{responses: map[string]responseStub{}}
	setJSON(transport, "/v1beta/models/veo-3.0-generate-001:generateContent", 200, map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{
				map[string]any{"fileData": map[string]any{
					"mimeType": "video/mp4",
					"fileUri":  "files/abc123",
				}},
			}}},
		},
	})
	transport.responses["/v1beta/files/abc123"] = responseStub{status: 200, body: videoBytes}

	client := newTestClient(transport)
	result, err := client.GenerateVideo(context.Background(), "veo-3.0-generate-001", providers.Payload{Prompt: "pan over beans", DurationSeconds: 6})
	if err != nil {
		t.Fatalf("GenerateVideo error: %v", err)
	}
	if result.Binary == nil || !bytes.Equal(result.Binary.Data, videoBytes) {
		t.Fatalf("binary = %+v", result.Binary)
	}
}

func TestClassifyStatusStrings(t *testing.T) {
	cases := []struct {
		status     string
		httpStatus int
		want       providers.ErrorKind
	}{
		{"NOT_FOUND", 404, providers.KindModelNotFound},
		{"PERMISSION_DENIED", 403, providers.KindPermissionDenied},
		{"RESOURCE_EXHAUSTED", 429, providers.KindRateLimited},
		{"UNAVAILABLE", 503, providers.KindServiceOverloaded},
	}
	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			transport := &captureTransport{responses: map[string]responseStub{}}
			setJSON(transport, "/v1beta/models/gemini-2.5-flash:generateContent", tc.httpStatus, map[string]any{
				"error": map[string]any{"code": tc.httpStatus, "message": "failed", "status": tc.status},
			})
			client := newTestClient(transport)
			_, err := client.GenerateText(context.Background(), "gemini-2.5-flash", providers.Payload{Prompt: "x"})
			if providers.KindOf(err) != tc.want {
				t.Fatalf("kind = %v, want %v", providers.KindOf(err), tc.want)
			}
		})
	}
}

func TestGenerateImageNoMediaReturned(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	setJSON(transport, "/v1beta/models/gemini-2.5-flash-image:generateContent", 200, textResponse("sorry, cannot help"))

	client := newTestClient(transport)
	if _, err := client.GenerateImage(context.Background(), "gemini-2.5-flash-image", providers.Payload{Prompt: "x"}); err == nil {
		t.Fatal("expected error when response carries no media part")
	}
}
