package health

import "strings"

// FailureSentinel is printed by the probe commands' shell fallback.
const FailureSentinel = "failed"

// FetcherOKToken is the fragment of the fetcher's /health body that marks it
// healthy.
const FetcherOKToken = `"status":"ok"`

// DatabaseReadyToken is printed by pg_isready when the server accepts
// connections.
const DatabaseReadyToken = "accepting connections"

// FetcherHealthy requires the ok token in the response body.
func FetcherHealthy(output string) bool {
	return strings.Contains(output, FetcherOKToken)
}

// NotifierHealthy accepts any response that does not contain the failure
// sentinel, including an empty one.
func NotifierHealthy(output string) bool {
	return !strings.Contains(output, FailureSentinel)
}

// WorkflowHealthy accepts any response that does not contain the failure
// sentinel, including an empty one.
func WorkflowHealthy(output string) bool {
	return !strings.Contains(output, FailureSentinel)
}

// DatabaseHealthy requires pg_isready to report that connections are accepted.
func DatabaseHealthy(output string) bool {
	return strings.Contains(output, DatabaseReadyToken)
}
