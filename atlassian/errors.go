package atlassian

import (
	"errors"
	"fmt"
)

// UpstreamError is any non-success response from the Atlassian identity
// provider or the Jira REST API. The raw response body is kept for
// diagnostics and surfaced to the user by the dispatcher.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("atlassian returned HTTP %d: %s", e.Status, e.Body)
}

// UpstreamText extracts the upstream response body from an error chain, or
// falls back to the plain error text.
func UpstreamText(err error) string {
	if err == nil {
		return ""
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Body
	}
	return err.Error()
}
