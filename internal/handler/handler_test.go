package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturoeanton/portfolio-assistant/internal/adapter/store"
	"github.com/arturoeanton/portfolio-assistant/internal/domain"
	"github.com/arturoeanton/portfolio-assistant/internal/middleware"
	"github.com/arturoeanton/portfolio-assistant/internal/port"
	"github.com/arturoeanton/portfolio-assistant/internal/service"
)

type stubEmbedder struct{}

func (stubEmbedder) ModelName() string { return "stub" }
func (stubEmbedder) Dimension() int    { return 2 }
func (stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}
func (stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, float32(i)}
	}
	return out, nil
}

type stubChat struct {
	tokens []string
	err    error
}

func (s stubChat) ModelName() string { return "stub-chat" }
func (s stubChat) ChatStream(ctx context.Context, _ []domain.ChatMessage, _ port.ChatOptions) (<-chan domain.StreamDelta, error) {
	ch := make(chan domain.StreamDelta, len(s.tokens)+1)
	for _, t := range s.tokens {
		ch <- domain.StreamDelta{Text: t}
	}
	if s.err != nil {
		ch <- domain.StreamDelta{Err: s.err}
	}
	close(ch)
	return ch, nil
}

type testEnv struct {
	app      *fiber.App
	tokenCfg middleware.TokenConfig
}

func newTestEnv(t *testing.T, password string, requireToken bool, chat stubChat) *testEnv {
	t.Helper()
	mem := store.NewMemoryVectorStore("")
	docs, err := service.NewDocumentService(stubEmbedder{}, mem, nil, service.DocumentConfig{
		ChunkSize: 1000, ChunkOverlap: 200, BatchEmbed: true,
	})
	require.NoError(t, err)

	persona := service.DefaultPersona("Jane")
	retrieval := service.NewRetrievalService(stubEmbedder{}, mem, persona, service.RetrievalConfig{TopK: 3})
	chatSvc := service.NewChatService(chat, retrieval, service.NewPromptBuilder(persona), port.ChatOptions{Temperature: 0.7, MaxTokens: 1000})

	tokenCfg := middleware.TokenConfig{Secret: "k", Issuer: "test", ExpiresIn: time.Hour, Required: requireToken}
	guard := middleware.AdminGuard(tokenCfg)

	app := fiber.New()
	NewDocumentHandler(docs, guard, nil, 1<<20).Register(app)
	NewChatHandler(chatSvc, 5*time.Second).Register(app)
	NewAuthHandler(service.NewAuthService(password, tokenCfg), nil).Register(app)
	NewMetaHandler("Portfolio Assistant", "test", persona, docs).Register(app)
	NewSearchHandler(retrieval).Register(app)
	return &testEnv{app: app, tokenCfg: tokenCfg}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := e.app.Test(req)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(body, &out), string(body))
	}
	return resp, out
}

func uploadRequest(t *testing.T, fileName, content, source string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	if source != "" {
		require.NoError(t, mw.WriteField("source", source))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDocumentHandler(t *testing.T) {
	env := newTestEnv(t, "pw", false, stubChat{})

	t.Run("upload", func(t *testing.T) {
		resp, body := env.do(t, uploadRequest(t, "bio.txt", strings.Repeat("a", 2500), "resume"))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.EqualValues(t, 4, body["chunksProcessed"])
		assert.Equal(t, "bio.txt", body["fileName"])
		assert.Equal(t, "resume", body["source"])
	})

	t.Run("upload rejects pdf", func(t *testing.T) {
		resp, body := env.do(t, uploadRequest(t, "cv.pdf", "%PDF-1.4", "s"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, body["error"], "PDF")
	})

	t.Run("upload without file", func(t *testing.T) {
		resp, body := env.do(t, uploadRequest(t, "", "", "s"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No file provided", body["error"])
	})

	t.Run("upload blank file", func(t *testing.T) {
		resp, body := env.do(t, uploadRequest(t, "blank.md", "   ", "s"))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "No text content found in file", body["error"])
	})

	t.Run("list", func(t *testing.T) {
		resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/documents", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		docs := body["documents"].([]any)
		require.Len(t, docs, 1)
		doc := docs[0].(map[string]any)
		assert.Equal(t, "resume", doc["source"])
		assert.EqualValues(t, 4, doc["chunkCount"])
	})

	t.Run("delete missing", func(t *testing.T) {
		resp, body := env.do(t, httptest.NewRequest(http.MethodDelete, "/documents?source=resume&fileName=nope.txt", nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Document not found", body["error"])
	})

	t.Run("delete without params", func(t *testing.T) {
		resp, _ := env.do(t, httptest.NewRequest(http.MethodDelete, "/documents", nil))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp, body := env.do(t, httptest.NewRequest(http.MethodDelete, "/documents?source=resume&fileName=bio.txt", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.EqualValues(t, 4, body["deletedChunks"])
	})

	t.Run("delete all", func(t *testing.T) {
		env.do(t, uploadRequest(t, "a.txt", "alpha", "s"))
		resp, body := env.do(t, httptest.NewRequest(http.MethodDelete, "/documents?deleteAll=true", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "deleteAll", body["action"])

		_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/documents", nil))
		assert.Empty(t, body["documents"])
	})
}

func TestDocumentHandler_TokenRequired(t *testing.T) {
	env := newTestEnv(t, "pw", true, stubChat{})

	resp, _ := env.do(t, uploadRequest(t, "a.txt", "alpha", "s"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, httptest.NewRequest(http.MethodGet, "/documents", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode, "listing stays public")

	_, login := env.do(t, jsonRequest(http.MethodPost, "/admin/auth", `{"password":"pw"}`))
	token, _ := login["token"].(string)
	require.NotEmpty(t, token)

	req := uploadRequest(t, "a.txt", "alpha", "s")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = env.do(t, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthHandler(t *testing.T) {
	t.Run("disabled gate", func(t *testing.T) {
		env := newTestEnv(t, "", false, stubChat{})
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/admin/auth", `{"password":"x"}`))
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Contains(t, body["error"], "disabled")
	})

	env := newTestEnv(t, "pw", false, stubChat{})

	t.Run("config check", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/admin/auth", `{"password":"config-check"}`))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["configured"])
		assert.Nil(t, body["success"])
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/admin/auth", `{"password":"nope"}`))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "Invalid password", body["error"])
	})

	t.Run("success", func(t *testing.T) {
		resp, body := env.do(t, jsonRequest(http.MethodPost, "/admin/auth", `{"password":"pw"}`))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["token"])
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, _ := env.do(t, jsonRequest(http.MethodPost, "/admin/auth", `{`))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestChatHandler(t *testing.T) {
	t.Run("streams tokens as SSE", func(t *testing.T) {
		env := newTestEnv(t, "pw", false, stubChat{tokens: []string{"Hel", "lo"}})
		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		body := string(raw)
		assert.Contains(t, body, "event: sources\n")
		assert.Contains(t, body, "data: {\"delta\":\"Hel\"}\n\n")
		assert.Contains(t, body, "data: {\"delta\":\"lo\"}\n\n")
		assert.True(t, strings.HasSuffix(body, "event: done\ndata: {}\n\n"))
	})

	t.Run("upstream failure mid-stream", func(t *testing.T) {
		env := newTestEnv(t, "pw", false, stubChat{tokens: []string{"x"}, err: errors.New("rate limited")})
		resp, err := env.app.Test(jsonRequest(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`))
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(raw), "event: error")
		assert.Contains(t, string(raw), "rate limited")
		assert.NotContains(t, string(raw), "event: done")
	})

	env := newTestEnv(t, "pw", false, stubChat{})
	for name, body := range map[string]string{
		"malformed json": `{"messages":`,
		"no messages":    `{}`,
		"assistant last": `{"messages":[{"role":"assistant","content":"hi"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, _ := env.do(t, jsonRequest(http.MethodPost, "/chat", body))
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

type endlessChat struct {
	stopped chan struct{}
}

func (endlessChat) ModelName() string { return "endless" }
func (e endlessChat) ChatStream(ctx context.Context, _ []domain.ChatMessage, _ port.ChatOptions) (<-chan domain.StreamDelta, error) {
	ch := make(chan domain.StreamDelta)
	go func() {
		defer close(e.stopped)
		defer close(ch)
		for {
			select {
			case ch <- domain.StreamDelta{Text: "x"}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func TestChatHandler_TimeoutCancelsUpstream(t *testing.T) {
	model := endlessChat{stopped: make(chan struct{})}
	persona := service.DefaultPersona("Jane")
	retrieval := service.NewRetrievalService(stubEmbedder{}, store.NewMemoryVectorStore(""), persona, service.RetrievalConfig{})
	chatSvc := service.NewChatService(model, retrieval, service.NewPromptBuilder(persona), port.ChatOptions{})

	app := fiber.New()
	NewChatHandler(chatSvc, 50*time.Millisecond).Register(app)

	resp, err := app.Test(jsonRequest(http.MethodPost, "/chat", `{"messages":[{"role":"user","content":"hi"}]}`),
		fiber.TestConfig{Timeout: 5 * time.Second})
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(raw), "event: error\ndata: {\"error\":\"answer timed out\"}\n\n"))

	select {
	case <-model.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream stream still running after timeout")
	}
}

func TestMetaHandler(t *testing.T) {
	env := newTestEnv(t, "pw", false, stubChat{})

	resp, body := env.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/suggestions", nil))
	initial := body["initial"].([]any)
	assert.Equal(t, "What are Jane's key technical skills?", initial[0])
	assert.NotEmpty(t, body["followUp"])

	env.do(t, uploadRequest(t, "a.txt", "alpha", "s"))
	_, body = env.do(t, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.EqualValues(t, 1, body["totalRecordCount"])
}

func TestSearchHandler(t *testing.T) {
	env := newTestEnv(t, "pw", false, stubChat{})
	env.do(t, uploadRequest(t, "a.txt", "Go and React", "resume"))

	resp, body := env.do(t, jsonRequest(http.MethodPost, "/search", `{"query":"skills","topK":2}`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
	first := body["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "resume", first["source"])
	assert.Equal(t, "Go and React", first["content"])

	resp, _ = env.do(t, jsonRequest(http.MethodPost, "/search", `{"query":"  "}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, 400, statusFor(port.Validationf("bad")))
	assert.Equal(t, 400, statusFor(port.ErrEmptyContent))
	assert.Equal(t, 404, statusFor(&port.NotFoundError{Msg: "x"}))
	assert.Equal(t, 401, statusFor(port.ErrAuthInvalid))
	assert.Equal(t, 503, statusFor(port.ErrAuthDisabled))
	assert.Equal(t, 500, statusFor(&port.UpstreamError{Op: "x", Err: errors.New("y")}))
	assert.Equal(t, 500, statusFor(errors.New("other")))
}
