package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Mode selects what a job produces.
type Mode string

const (
	// ModeText returns the merged text only.
	ModeText Mode = "text"

	// ModeSchema extracts the fields named by the job schema.
	ModeSchema Mode = "schema"
)

// ErrInvalidPayload is returned for queue entries that are not valid jobs.
var ErrInvalidPayload = errors.New("invalid job payload")

// Job is one queued OCR request. It is immutable once enqueued.
type Job struct {
	ID       string            `json:"job_id"`
	Mode     Mode              `json:"mode"`
	Schema   map[string]string `json:"schema,omitempty"`
	Filename string            `json:"filename,omitempty"`
	Image    []byte            `json:"image_bytes"`
}

// New creates a job with a fresh ID.
func New(mode Mode, schema map[string]string, filename string, image []byte) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Mode:     mode,
		Schema:   schema,
		Filename: filename,
		Image:    image,
	}
}

const payloadSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["job_id", "mode", "image_bytes"],
	"properties": {
		"job_id": {"type": "string", "minLength": 1},
		"mode": {"enum": ["text", "schema"]},
		"schema": {
			"type": "object",
			"additionalProperties": {"type": "string"}
		},
		"filename": {"type": "string"},
		"image_bytes": {"type": "string", "minLength": 1, "contentEncoding": "base64"}
	},
	"if": {"properties": {"mode": {"const": "schema"}}},
	"then": {"required": ["schema"]}
}`

var validator = compilePayloadSchema()

func compilePayloadSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.AssertContent = true
	if err := c.AddResource("job.json", strings.NewReader(payloadSchema)); err != nil {
		panic(fmt.Sprintf("load job schema: %v", err))
	}
	return c.MustCompile("job.json")
}

// Encode serializes job for the queue.
func Encode(job *Job) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("%w: nil job", ErrInvalidPayload)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}
	if err := validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Decode validates and parses a queue entry.
func Decode(data []byte) (*Job, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidPayload)
	}
	if err := validate(data); err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &job, nil
}

func validate(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validator.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
