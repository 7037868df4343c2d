package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(url string) *Config {
	return &Config{
		APIKey:  "test-key",
		APIURL:  url,
		Model:   "test-model",
		Timeout: 30,
		SiteURL: DefaultSiteURL,
		AppName: DefaultAppName,
	}
}

func writeAudio(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestNewClient(t *testing.T) {
	config := testConfig("https://api.example.com/")

	client, err := NewClient(config)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)

	_, err = NewClient(&Config{})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestNewClient_Insecure(t *testing.T) {
	config := testConfig("https://api.example.com")
	config.Insecure = true

	client, err := NewClient(config)
	require.NoError(t, err)

	transport, ok := client.httpClient.Transport.(*http.Transport)
	require.True(t, ok)
	require.NotNil(t, transport.TLSClientConfig)
	assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
}

func TestTranscribeAudio_RequestShape(t *testing.T) {
	audio := []byte("ID3 fake mp3")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultSiteURL, r.Header.Get("HTTP-Referer"))
		assert.Equal(t, DefaultAppName, r.Header.Get("X-Title"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string        `json:"role"`
				Content []ContentPart `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 1)
		require.Len(t, req.Messages[0].Content, 2)
		assert.Equal(t, "text", req.Messages[0].Content[0].Type)
		assert.Equal(t, "transcribe please", req.Messages[0].Content[0].Text)
		assert.Equal(t, "input_audio", req.Messages[0].Content[1].Type)
		assert.Equal(t, "mp3", req.Messages[0].Content[1].InputAudio.Format)
		assert.Equal(t, base64.StdEncoding.EncodeToString(audio), req.Messages[0].Content[1].InputAudio.Data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"1\n00:00:01,000 --> 00:00:02,000\n你好\n"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	text, err := client.TranscribeAudio(context.Background(), "transcribe please", writeAudio(t, "clip.MP3", audio))
	require.NoError(t, err)
	assert.Contains(t, text, "你好")
}

func TestTranscribeAudio_ListContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(testConfig(server.URL))
	require.NoError(t, err)

	text, err := client.TranscribeAudio(context.Background(), "p", writeAudio(t, "a.wav", []byte("RIFF")))
	require.NoError(t, err)
	assert.Equal(t, "part one part two", text)
}

func TestTranscribeAudio_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		errPart string
	}{
		{name: "api error", status: http.StatusUnauthorized, body: `{"error":{"message":"Invalid API key","type":"auth","code":401}}`, errPart: "Invalid API key"},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, errPart: "no choices"},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`, errPart: "empty response content"},
		{name: "non-json failure", status: http.StatusBadGateway, body: `upstream down`, errPart: "status 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(testConfig(server.URL))
			require.NoError(t, err)

			_, err = client.TranscribeAudio(context.Background(), "p", writeAudio(t, "a.mp3", []byte("x")))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestTranscribeAudio_MissingFile(t *testing.T) {
	client, err := NewClient(testConfig("http://127.0.0.1:1"))
	require.NoError(t, err)

	_, err = client.TranscribeAudio(context.Background(), "p", filepath.Join(t.TempDir(), "missing.mp3"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read audio")
}

func TestMessageContent_JSON(t *testing.T) {
	var c MessageContent
	require.NoError(t, json.Unmarshal([]byte(`"plain"`), &c))
	assert.Equal(t, "plain", c.String())

	require.NoError(t, json.Unmarshal([]byte(`null`), &c))
	assert.Equal(t, "", c.String())

	out, err := json.Marshal(MessageContent{Parts: []ContentPart{TextPart("hi")}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"text","text":"hi"}]`, string(out))
}

func TestNewAudioPartFromPath_NoExtension(t *testing.T) {
	part, err := NewAudioPartFromPath(writeAudio(t, "noext", []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "mp3", part.InputAudio.Format)
}
