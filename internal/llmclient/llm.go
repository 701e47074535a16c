package llmclient

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidJSON reports that the model produced no usable JSON payload.
var ErrInvalidJSON = errors.New("llmclient: invalid json from model")

// Client is the completion capability: given a prompt and an input payload,
// produce one JSON response. The exploration loop treats it as a black box
// that may hallucinate, stall, or never invoke the terminal tool.
type Client interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}
