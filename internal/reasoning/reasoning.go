// Package reasoning integrates an external reasoning collaborator that
// reviews a job before it is computed: it restates the task, lists what
// it excludes, and raises clarifying questions. The collaborator is
// advisory only; its responses never gate or mutate orchestrator state,
// but malformed responses are refused at the boundary like any other
// external input.
package reasoning

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request describes one job for the collaborator.
type Request struct {
	JobID  string  `json:"job_id"`
	Target string  `json:"target"`
	TStart float64 `json:"t_start"`
	TEnd   float64 `json:"t_end"`
	Stride float64 `json:"stride"`
}

// Response is the collaborator's structured answer.
type Response struct {
	Restatement string   `json:"restatement"`
	Exclusions  []string `json:"exclusions"`
	Questions   []string `json:"questions"`
}

// responseSchema pins the response wire shape. Clients are out-of-process
// collaborators; their output is untrusted until it passes this.
const responseSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["restatement", "exclusions", "questions"],
	"additionalProperties": false,
	"properties": {
		"restatement": {"type": "string", "minLength": 1},
		"exclusions": {"type": "array", "items": {"type": "string"}},
		"questions": {"type": "array", "items": {"type": "string"}}
	}
}`

var compiledSchema = jsonschema.MustCompileString("reasoning-response.json", responseSchema)

// DecodeResponse validates raw collaborator output against the response
// schema and unmarshals it.
func DecodeResponse(raw []byte) (*Response, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("reasoning response is not JSON: %w", err)
	}
	if err := compiledSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("reasoning response rejected: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("reasoning response rejected: %w", err)
	}
	return &resp, nil
}

// Client produces raw responses for requests. Implementations typically
// wrap an external service; tests use canned bytes.
type Client interface {
	Consult(ctx context.Context, req Request) ([]byte, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) ([]byte, error)

// Consult implements Client.
func (f ClientFunc) Consult(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}
