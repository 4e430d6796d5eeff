package atlassian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client provides access to the Jira Cloud REST API v3 through the OAuth
// gateway at api.atlassian.com/ex/jira/{cloudID}. It holds no per-user state:
// every call takes the caller's access token and cloud id.
type Client struct {
	httpClient *http.Client
	apiBase    string
}

// NewClient creates a Jira API client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBase:    apiBaseURL,
	}
}

func (c *Client) restURL(cloudID, path string) string {
	return fmt.Sprintf("%s/ex/jira/%s/rest/api/3%s", c.apiBase, cloudID, path)
}

// Issue is one search result.
type Issue struct {
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

type IssueFields struct {
	Summary string `json:"summary"`
	Status  Status `json:"status"`
}

type Status struct {
	Name string `json:"name"`
}

// Search runs a JQL query and returns the matching issues.
func (c *Client) Search(ctx context.Context, accessToken, cloudID, jql, fields string, maxResults int) ([]Issue, error) {
	qs := url.Values{
		"jql":        {jql},
		"fields":     {fields},
		"maxResults": {strconv.Itoa(maxResults)},
	}
	endpoint := c.restURL(cloudID, "/search") + "?" + qs.Encode()

	var result struct {
		Issues []Issue `json:"issues"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return result.Issues, nil
}

// Transition is a state-machine move available on an issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transitions lists the transitions currently available on an issue.
func (c *Client) Transitions(ctx context.Context, accessToken, cloudID, issueKey string) ([]Transition, error) {
	endpoint := c.restURL(cloudID, "/issue/"+url.PathEscape(issueKey)+"/transitions")

	var result struct {
		Transitions []Transition `json:"transitions"`
	}
	if err := c.do(ctx, accessToken, http.MethodGet, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return result.Transitions, nil
}

// DoTransition applies a transition to an issue.
func (c *Client) DoTransition(ctx context.Context, accessToken, cloudID, issueKey, transitionID string) error {
	endpoint := c.restURL(cloudID, "/issue/"+url.PathEscape(issueKey)+"/transitions")
	payload := map[string]any{
		"transition": map[string]string{"id": transitionID},
	}
	return c.do(ctx, accessToken, http.MethodPost, endpoint, payload, nil)
}

const defaultWorklogComment = "Jira Facilities Bot"

// AddWorklog records time on an issue and returns the new worklog id.
// started must already be in Jira's expected timestamp format; hours is
// serialized as Jira duration notation ("1.5h").
func (c *Client) AddWorklog(ctx context.Context, accessToken, cloudID, issueKey, started string, hours float64, comment string) (string, error) {
	if comment == "" {
		comment = defaultWorklogComment
	}
	endpoint := c.restURL(cloudID, "/issue/"+url.PathEscape(issueKey)+"/worklog")
	payload := map[string]any{
		"started":   started,
		"timeSpent": strconv.FormatFloat(hours, 'f', -1, 64) + "h",
		"comment":   comment,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, accessToken, http.MethodPost, endpoint, payload, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

// do performs one authenticated REST call. Non-2xx responses become
// *UpstreamError carrying the raw body; out may be nil when the response
// body is irrelevant.
func (c *Client) do(ctx context.Context, accessToken, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
