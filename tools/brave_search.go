package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/petasbytes/llamachat/internal/safety"
	"github.com/tidwall/gjson"
)

const (
	BraveSearchURL    = "https://api.search.brave.com/res/v1/web/search"
	braveDefaultCount = 3
	braveDefaultLang  = "en"
	maxBraveBody      = 2_000_000
)

type BraveSearchInput struct {
	Query      string `json:"query" jsonschema_description:"Search query."`
	NumResults int    `json:"num_results,omitempty" jsonschema_description:"Number of results to return (default 3)."`
	Lang       string `json:"lang,omitempty" jsonschema_description:"Search language code (default en)."`
}

var BraveSearchInputSchema = GenerateSchema[BraveSearchInput]()

// BraveSearch queries the Brave web search API.
type BraveSearch struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewBraveSearch(apiKey string) *BraveSearch {
	return &BraveSearch{
		APIKey:     apiKey,
		BaseURL:    BraveSearchURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (b *BraveSearch) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "brave_search",
		Description: "Search the web and return the top results as a JSON array of {title, url, description}.",
		InputSchema: BraveSearchInputSchema,
		Function:    b.call,
	}
}

func (b *BraveSearch) call(ctx context.Context, args map[string]any) (string, error) {
	in, err := decodeArgs[BraveSearchInput](args)
	if err != nil {
		return "", safety.ToolError{Code: "ERR_BAD_ARGS", Message: err.Error()}
	}
	return b.Search(ctx, in)
}

// Search runs one query. A non-success status is reported as result text,
// not as an error.
func (b *BraveSearch) Search(ctx context.Context, in BraveSearchInput) (string, error) {
	if in.Query == "" {
		return "", safety.ToolError{Code: "ERR_MISSING_ARG", Message: "query is required"}
	}
	if in.NumResults <= 0 {
		in.NumResults = braveDefaultCount
	}
	if in.Lang == "" {
		in.Lang = braveDefaultLang
	}

	q := url.Values{}
	q.Set("q", in.Query)
	q.Set("count", strconv.Itoa(in.NumResults))
	q.Set("search_lang", in.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("brave_search: build request: %w", err)
	}
	req.Header.Set("X-Subscription-Token", b.APIKey)
	req.Header.Set("Accept", "application/json")

	hc := b.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("brave_search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("Brave API returned response with a status code %d", resp.StatusCode), nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBraveBody))
	if err != nil {
		return "", fmt.Errorf("brave_search: read body: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return "", fmt.Errorf("brave_search: invalid JSON response")
	}

	results := gjson.GetBytes(body, "web.results.#.{title,url,description}")
	if !results.Exists() || len(results.Array()) == 0 {
		return "No results", nil
	}
	return results.Raw, nil
}
