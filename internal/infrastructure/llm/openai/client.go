package openai

import (
	"hash/fnv"
	"net"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds the OpenAI-compatible endpoint settings shared by the chat
// model and the embedder.
type Config struct {
	APIKey     string
	BaseURL    string
	ChatModel  string
	ChatModelB string
	EmbedModel string

	Timeout        time.Duration
	ConnectTimeout time.Duration
}

// Client wraps one go-openai client for both chat and embeddings, so every
// consumer shares the same endpoint and embedding model.
type Client struct {
	api        *openai.Client
	chatModel  string
	chatModelB string
	embedModel string
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 10 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: connectTimeout,
			}).DialContext,
			TLSHandshakeTimeout: connectTimeout,
		},
	}

	return &Client{
		api:        openai.NewClientWithConfig(clientCfg),
		chatModel:  cfg.ChatModel,
		chatModelB: cfg.ChatModelB,
		embedModel: cfg.EmbedModel,
	}
}

// EmbedModelID identifies the embedding model for the store factory cache key.
func (c *Client) EmbedModelID() string {
	return c.embedModel
}

// ModelForSession picks the A/B chat model variant for a session id.
func (c *Client) ModelForSession(sessionID string) string {
	if c.chatModelB == "" {
		return c.chatModel
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	if h.Sum32()%2 == 0 {
		return c.chatModel
	}
	return c.chatModelB
}
