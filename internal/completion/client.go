package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/petasbytes/llamachat/internal/transcript"
	"github.com/tidwall/gjson"
)

// DefaultURL is the llama.cpp server completion endpoint.
const DefaultURL = "http://127.0.0.1:8080/completion"

const (
	maxResponseBody = 8_000_000
	maxErrorExcerpt = 2_000
)

var doneMarker = []byte("[DONE]")

// ErrInvalidResponse is returned when a buffered response cannot be decoded.
var ErrInvalidResponse = errors.New("completion: invalid response")

// FragmentFunc receives generated text as it arrives. Buffered responses are
// delivered as a single fragment.
type FragmentFunc func(fragment string)

// Request is one completion call. Prompt is the serialized transcript ending
// in an open turn; Role is the role of that open turn.
type Request struct {
	Prompt string
	Role   transcript.Role
	Stream bool
}

type wireRequest struct {
	Prompt      string `json:"prompt"`
	CachePrompt bool   `json:"cache_prompt"`
	Stream      bool   `json:"stream"`
	NPredict    int    `json:"n_predict,omitempty"`
}

// Client talks to a llama.cpp style /completion endpoint.
type Client struct {
	url         string
	httpClient  *http.Client
	cachePrompt bool
	nPredict    int
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Streaming calls run for as long
// as generation takes, so the default client has no overall timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCachePrompt sets the server-side prompt cache hint.
func WithCachePrompt(on bool) Option {
	return func(c *Client) { c.cachePrompt = on }
}

// WithNPredict caps the number of generated tokens; 0 leaves the server default.
func WithNPredict(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.nPredict = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a client for url, or DefaultURL when url is empty.
func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:         url,
		httpClient:  &http.Client{},
		cachePrompt: true,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Complete sends the transcript and returns the fully assembled turn.
// Streaming and buffered responses yield the same content. On any failure no
// partial turn is returned.
func (c *Client) Complete(ctx context.Context, req Request, onFragment FragmentFunc) (transcript.Turn, error) {
	role := req.Role
	if role == "" {
		role = transcript.RoleAssistant
	}

	body, err := json.Marshal(wireRequest{
		Prompt:      req.Prompt,
		CachePrompt: c.cachePrompt,
		Stream:      req.Stream,
		NPredict:    c.nPredict,
	})
	if err != nil {
		return transcript.Turn{}, fmt.Errorf("completion: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return transcript.Turn{}, fmt.Errorf("completion: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return transcript.Turn{}, ctx.Err()
		}
		return transcript.Turn{}, fmt.Errorf("completion: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := readAllLimit(resp.Body, maxErrorExcerpt)
		return transcript.Turn{}, &UpstreamError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var content string
	if req.Stream {
		content, err = c.readStream(resp, onFragment)
	} else {
		content, err = readBuffered(resp.Body, onFragment)
	}
	if err != nil {
		if ctx.Err() != nil {
			return transcript.Turn{}, ctx.Err()
		}
		return transcript.Turn{}, err
	}

	c.logger.Debug("completion done",
		"stream", req.Stream,
		"role", role,
		"prompt_bytes", len(req.Prompt),
		"content_bytes", len(content),
		"duration", time.Since(start))
	return transcript.Turn{Role: role, Content: content}, nil
}

func readBuffered(r io.Reader, onFragment FragmentFunc) (string, error) {
	b, err := readAllLimit(r, maxResponseBody)
	if err != nil {
		return "", fmt.Errorf("completion: read response: %w", err)
	}
	if !gjson.ValidBytes(b) {
		return "", fmt.Errorf("%w: body is not JSON: %s", ErrInvalidResponse, excerpt(b))
	}
	field := gjson.GetBytes(b, "content")
	if !field.Exists() || field.Type != gjson.String {
		return "", fmt.Errorf("%w: missing content field", ErrInvalidResponse)
	}
	if onFragment != nil && field.Str != "" {
		onFragment(field.Str)
	}
	return field.Str, nil
}

// readStream consumes server-sent events until the stream ends, a stop chunk
// arrives or a chunk fails to decode. Fragments are forwarded as they arrive
// and accumulated; the accumulation is dropped on error.
func (c *Client) readStream(resp *http.Response, onFragment FragmentFunc) (string, error) {
	dec := ssestream.NewDecoder(resp)
	acc := &StreamAccumulator{}
	for dec.Next() {
		data := bytes.TrimSpace(dec.Event().Data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, doneMarker) {
			break
		}
		if !gjson.ValidBytes(data) {
			return "", &StreamDecodeError{Chunk: excerpt(data), Err: errors.New("chunk is not valid JSON")}
		}
		chunk := gjson.ParseBytes(data)
		if e := chunk.Get("error"); e.Exists() {
			return "", &UpstreamError{StatusCode: resp.StatusCode, Body: excerpt([]byte(e.Raw))}
		}
		if frag := chunk.Get("content"); frag.Type == gjson.String && frag.Str != "" {
			acc.Add(frag.Str)
			if onFragment != nil {
				onFragment(frag.Str)
			}
		}
		if chunk.Get("stop").Bool() {
			break
		}
	}
	if err := dec.Err(); err != nil {
		return "", fmt.Errorf("completion: read stream: %w", err)
	}
	c.logger.Debug("stream assembled", "fragments", acc.Fragments(), "bytes", acc.Len())
	return acc.String(), nil
}

func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxErrorExcerpt {
		return s[:maxErrorExcerpt] + "..."
	}
	return s
}
