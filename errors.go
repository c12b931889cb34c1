package mural

import "fmt"

// ErrLLM is a model-level failure: the provider endpoint answered, but the
// payload was unusable (undecodable body, empty completion). The AI
// orchestrator treats it as retriable via the fallback parser.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP is a transport-level failure from a provider endpoint: a non-2xx
// status with the response body kept for the log line.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
