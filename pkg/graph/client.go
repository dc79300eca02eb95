package graph

import (
	"errors"
	"time"

	"github.com/OFFIS-RIT/relgraph/pkg/ai"
	"github.com/OFFIS-RIT/relgraph/pkg/ner"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultLabels are used when a request does not configure any entity labels.
var DefaultLabels = []string{"PRODUCT", "FEATURE", "CUSTOM_BRAND", "JOB", "TECHNOLOGY"}

// DefaultThreshold is applied when a request sends no threshold or 0.
const DefaultThreshold = 0.5

// Blend weights for relationship confidence.
const (
	rawWeight       = 0.7
	proximityWeight = 0.3
)

// GraphClient runs entity and relationship extraction over a document.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	aiClient   ai.GraphAIClient
	recognizer ner.Recognizer

	entityModel   string
	relationModel string

	parallelAiRequests int
	maxRetries         int
	timeout            time.Duration
	maxResponseTokens  int

	localChunks    ChunkOptions
	entityChunks   ChunkOptions
	relationChunks ChunkOptions

	recheckBlended bool

	reasoningEffort string
	temperature     *float64

	newID func() (string, error)
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// AIClient and Recognizer are required. EntityModel and RelationModel
// override the AI client's model per stage when set. Zero values of the
// remaining fields select the defaults.
type NewGraphClientParams struct {
	AIClient   ai.GraphAIClient
	Recognizer ner.Recognizer

	EntityModel   string
	RelationModel string

	ParallelAiRequests int
	MaxRetries         int
	Timeout            time.Duration
	MaxResponseTokens  int

	LocalChunks    ChunkOptions
	EntityChunks   ChunkOptions
	RelationChunks ChunkOptions

	RecheckBlended bool

	// ReasoningEffort and Temperature override the adapter defaults when set.
	ReasoningEffort string
	Temperature     *float64
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient:           aiClient,
//		Recognizer:         ner.NewProseRecognizer(),
//		ParallelAiRequests: 8,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.AIClient == nil {
		return nil, errors.New("ai client is required")
	}
	if params.Recognizer == nil {
		return nil, errors.New("recognizer is required")
	}

	g := &GraphClient{
		aiClient:           params.AIClient,
		recognizer:         params.Recognizer,
		entityModel:        params.EntityModel,
		relationModel:      params.RelationModel,
		parallelAiRequests: orDefault(params.ParallelAiRequests, 8),
		maxRetries:         orDefault(params.MaxRetries, 2),
		timeout:            params.Timeout,
		maxResponseTokens:  orDefault(params.MaxResponseTokens, 32000),
		localChunks:        chunkOrDefault(params.LocalChunks, LocalChunkOptions),
		entityChunks:       chunkOrDefault(params.EntityChunks, EntityChunkOptions),
		relationChunks:     chunkOrDefault(params.RelationChunks, RelationChunkOptions),
		recheckBlended:     params.RecheckBlended,
		reasoningEffort:    params.ReasoningEffort,
		temperature:        params.Temperature,
		newID:              func() (string, error) { return gonanoid.New() },
	}
	if g.timeout <= 0 {
		g.timeout = 120 * time.Second
	}

	return g, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func chunkOrDefault(o, def ChunkOptions) ChunkOptions {
	if o.Size <= 0 {
		return def
	}
	return o
}

// generateOptions returns the per stage options shared by every oracle call.
func (g *GraphClient) generateOptions(model string) []ai.GenerateOption {
	var opts []ai.GenerateOption
	if model != "" {
		opts = append(opts, ai.WithModel(model))
	}
	if g.reasoningEffort != "" {
		opts = append(opts, ai.WithThinking(g.reasoningEffort))
	}
	if g.temperature != nil {
		opts = append(opts, ai.WithTemperature(*g.temperature))
	}
	return opts
}
