package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const webSearchDoc = `Search the web for information (NOT YET IMPLEMENTED).

Args:
    query: Search query to find relevant web pages
`

type webSearchArgs struct {
	Query string `json:"query"`
}

type webSearchTool struct{ desc Descriptor }

func newWebSearchTool() (Tool, error) {
	d, err := BuildDescriptor("web_search", webSearchDoc, webSearchArgs{})
	if err != nil {
		return nil, err
	}
	return &webSearchTool{desc: d}, nil
}

func (t *webSearchTool) Describe() Descriptor { return t.desc }

func (t *webSearchTool) Invoke(_ context.Context, _ Invocation, args map[string]any) (string, error) {
	var a webSearchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	return fmt.Sprintf("[Web search not yet implemented for query: %s]\nThis tool requires implementation with a search API.", a.Query), nil
}

const webFetchDoc = `Fetch the raw content of a URL.

Args:
    url: Full URL to fetch content from (e.g. https://example.com)
`

// webFetchMaxBody caps fetched pages so a large response cannot blow up
// the conversation window.
const webFetchMaxBody = 64 * 1024

type webFetchArgs struct {
	URL string `json:"url"`
}

type webFetchTool struct {
	desc   Descriptor
	client *http.Client
}

func newWebFetchTool() (Tool, error) {
	d, err := BuildDescriptor("web_fetch", webFetchDoc, webFetchArgs{})
	if err != nil {
		return nil, err
	}
	return &webFetchTool{desc: d, client: &http.Client{Timeout: 30 * time.Second}}, nil
}

func (t *webFetchTool) Describe() Descriptor { return t.desc }

func (t *webFetchTool) Invoke(ctx context.Context, _ Invocation, args map[string]any) (string, error) {
	var a webFetchArgs
	if err := decodeArgs(args, &a); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return fmt.Sprintf("Error: invalid URL '%s': %v", a.URL, err), nil
	}
	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Sprintf("Error fetching URL: %v", err), nil
	}
	defer func() { _ = res.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(res.Body, webFetchMaxBody))
	if err != nil {
		return fmt.Sprintf("Error reading response: %v", err), nil
	}
	if res.StatusCode != http.StatusOK {
		return fmt.Sprintf("Error: HTTP %d fetching '%s'\n%s", res.StatusCode, a.URL, string(body)), nil
	}
	return string(body), nil
}
