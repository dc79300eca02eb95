package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
	"github.com/OFFIS-RIT/relgraph/pkg/graph"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrInvalidMessage marks a message that can never be processed.
var ErrInvalidMessage = errors.New("invalid queue message")

// ExtractionJob is an extraction request queued by POST /extract/async.
type ExtractionJob struct {
	ID        string    `json:"job_id"`
	Text      string    `json:"text"`
	Labels    []string  `json:"configured_entities,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExtractionJobResult is published to ResultQueue once a job finished.
type ExtractionJobResult struct {
	ID         string                   `json:"job_id"`
	Result     *common.ExtractionResult `json:"result"`
	FinishedAt time.Time                `json:"finished_at"`
}

// Runner runs one extraction. *graph.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, req graph.Request) (*common.ExtractionResult, error)
}

// NewExtractionJob assigns a fresh job id.
func NewExtractionJob(text string, labels []string, threshold float64) (ExtractionJob, error) {
	id, err := gonanoid.New()
	if err != nil {
		return ExtractionJob{}, fmt.Errorf("failed to create job id: %w", err)
	}
	return ExtractionJob{
		ID:        id,
		Text:      text,
		Labels:    labels,
		Threshold: threshold,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// PublishJob queues job on ExtractQueue.
func PublishJob(ctx context.Context, pub Publisher, job ExtractionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return PublishFIFO(ctx, pub, ExtractQueue, data)
}

// ProcessExtractionMessage decodes an ExtractionJob, runs it and publishes
// the result. Undecodable messages return an error wrapping
// ErrInvalidMessage.
func ProcessExtractionMessage(ctx context.Context, runner Runner, pub Publisher, body []byte) error {
	var job ExtractionJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if job.ID == "" || job.Text == "" {
		return fmt.Errorf("%w: job id and text are required", ErrInvalidMessage)
	}

	logger.Info("[Queue] Processing extraction job", "job_id", job.ID, "chars", len(job.Text))

	result, err := runner.Run(ctx, graph.Request{
		Text:      job.Text,
		Labels:    job.Labels,
		Threshold: job.Threshold,
	})
	if err != nil {
		return fmt.Errorf("job %s failed: %w", job.ID, err)
	}
	for _, w := range result.Warnings {
		logger.Warn("[Queue] Extraction job finished with warning", "job_id", job.ID, "warning", w)
	}

	data, err := json.Marshal(ExtractionJobResult{
		ID:         job.ID,
		Result:     result,
		FinishedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}
	if err := PublishFIFO(ctx, pub, ResultQueue, data); err != nil {
		return fmt.Errorf("failed to publish job result: %w", err)
	}

	logger.Info("[Queue] Extraction job done",
		"job_id", job.ID,
		"entities", len(result.Entities),
		"relationships", len(result.Relationships),
	)
	return nil
}
