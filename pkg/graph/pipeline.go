package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
	"github.com/OFFIS-RIT/relgraph/pkg/loader"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"
	"github.com/OFFIS-RIT/relgraph/pkg/store"
)

// Request is the input of one pipeline run.
type Request struct {
	Text      string
	Labels    []string
	Threshold float64
}

// State is passed from stage to stage.
type State struct {
	Text          string
	Labels        []string
	Threshold     float64
	Entities      []common.MergedEntity
	Relationships []common.Relationship
	Warnings      []string
}

// Stage is one step of the extraction pipeline.
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State) (*State, error)
}

// Pipeline runs its stages in order.
type Pipeline struct {
	stages []Stage
	client *GraphClient
}

// NewPipeline builds the standard pipeline: clean, entities, relationships
// and, if writer is not nil, persistence.
func NewPipeline(client *GraphClient, writer store.GraphWriter) *Pipeline {
	stages := []Stage{
		cleanStage{},
		entityStage{client: client},
		relationshipStage{client: client},
	}
	if writer != nil {
		stages = append(stages, persistStage{writer: writer})
	}
	return NewPipelineWithStages(client, stages...)
}

// NewPipelineWithStages builds a pipeline from custom stages.
func NewPipelineWithStages(client *GraphClient, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, client: client}
}

// Run executes every stage and returns the extraction result. Only
// cancellation and internal errors are returned; oracle and persistence
// failures are logged and, for persistence, reported as warnings.
func (p *Pipeline) Run(ctx context.Context, req Request) (*common.ExtractionResult, error) {
	state := &State{
		Text:      req.Text,
		Labels:    req.Labels,
		Threshold: req.Threshold,
	}
	if len(state.Labels) == 0 {
		state.Labels = DefaultLabels
	}
	if state.Threshold <= 0 {
		state.Threshold = DefaultThreshold
	}

	start := time.Now()
	for _, stage := range p.stages {
		stageStart := time.Now()
		next, err := stage.Run(ctx, state)
		if err != nil {
			return nil, fmt.Errorf("%s stage failed: %w", stage.Name(), err)
		}
		state = next
		logger.Debug("[Pipeline] Stage finished", "stage", stage.Name(), "duration", time.Since(stageStart))
	}

	if p.client != nil {
		m := p.client.aiClient.GetMetrics()
		logger.Info("[Pipeline] AI usage since last reset",
			"input_tokens", m.InputTokens,
			"output_tokens", m.OutputTokens,
			"total_tokens", m.TotalTokens,
			"requests", m.Requests,
			"duration_ms", m.DurationMs,
		)
	}
	logger.Info("[Pipeline] Extraction finished",
		"entities", len(state.Entities),
		"relationships", len(state.Relationships),
		"warnings", len(state.Warnings),
		"duration", time.Since(start),
	)

	return &common.ExtractionResult{
		Entities:      nonNil(state.Entities),
		Relationships: nonNil(state.Relationships),
		Warnings:      state.Warnings,
	}, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type cleanStage struct{}

func (cleanStage) Name() string { return "clean" }

func (cleanStage) Run(_ context.Context, state *State) (*State, error) {
	state.Text = loader.CleanText(state.Text)
	return state, nil
}

type entityStage struct {
	client *GraphClient
}

func (entityStage) Name() string { return "entities" }

func (s entityStage) Run(ctx context.Context, state *State) (*State, error) {
	entities, err := s.client.CollectEntities(ctx, state.Text, state.Labels)
	if err != nil {
		return nil, err
	}
	logger.Info("[Entities] Collected entities", "count", len(entities))
	state.Entities = entities
	return state, nil
}

type relationshipStage struct {
	client *GraphClient
}

func (relationshipStage) Name() string { return "relationships" }

func (s relationshipStage) Run(ctx context.Context, state *State) (*State, error) {
	if len(state.Entities) == 0 {
		state.Relationships = []common.Relationship{}
		return state, nil
	}
	rels, err := s.client.ResolveRelationships(ctx, state.Text, state.Entities, state.Threshold)
	if err != nil {
		return nil, err
	}
	logger.Info("[Relationships] Resolved relationships", "count", len(rels))
	state.Relationships = rels
	return state, nil
}

type persistStage struct {
	writer store.GraphWriter
}

func (persistStage) Name() string { return "persist" }

func (s persistStage) Run(ctx context.Context, state *State) (*State, error) {
	if err := s.writer.SaveGraph(ctx, state.Entities, state.Relationships); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("[Store] Failed to persist graph, continuing", "err", err)
		state.Warnings = append(state.Warnings, fmt.Sprintf("graph persistence failed: %v", err))
	}
	return state, nil
}
