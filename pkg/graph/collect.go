package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/relgraph/internal/util"
	"github.com/OFFIS-RIT/relgraph/pkg/ai"
	"github.com/OFFIS-RIT/relgraph/pkg/common"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type entityEnvelope struct {
	Entities []entityItem `json:"entities" jsonschema:"description=Entities found in the document"`
}

type entityItem struct {
	Text   string `json:"text" jsonschema:"description=Exact entity span from the document"`
	Label  string `json:"label" jsonschema:"description=One of the allowed labels"`
	Source string `json:"source" jsonschema:"enum=document,enum=pre_found"`
}

type candidate struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// CollectEntities extracts entities from text with the local recognizer
// and the generative model and merges them into one entity per exact text.
//
// Recognizer or model failures on a chunk are logged and skip that chunk.
// Only cancellation of ctx is returned as an error.
func (g *GraphClient) CollectEntities(
	ctx context.Context,
	text string,
	labels []string,
) ([]common.MergedEntity, error) {
	local, err := g.localEntities(ctx, text)
	if err != nil {
		return nil, err
	}

	generative, err := g.generativeEntities(ctx, text, labels, local)
	if err != nil {
		return nil, err
	}

	return mergeEntities(local, generative, g.newID)
}

func (g *GraphClient) localEntities(ctx context.Context, text string) ([]common.RawEntity, error) {
	chunks := SplitText(text, g.localChunks)
	logger.Debug("[Entities] Local chunks", "count", len(chunks))

	out := make([]common.RawEntity, 0)
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ents, err := g.recognizer.Recognize(chunk)
		if err != nil {
			logger.Warn("[Entities] Local recognizer failed, skipping chunk", "chunk", i, "err", err)
			continue
		}
		for _, e := range ents {
			if e.Text == "" || e.Label == "" {
				continue
			}
			e.Source = common.SourceLocal
			out = append(out, e)
		}
	}
	return out, nil
}

func (g *GraphClient) generativeEntities(
	ctx context.Context,
	text string,
	labels []string,
	local []common.RawEntity,
) ([][]common.RawEntity, error) {
	chunks := SplitText(text, g.entityChunks)

	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("failed to encode labels: %w", err)
	}
	candidatesJSON, err := json.Marshal(preFound(local))
	if err != nil {
		return nil, fmt.Errorf("failed to encode pre-found entities: %w", err)
	}
	prompt := fmt.Sprintf(ai.EntityPrompt, labelsJSON, candidatesJSON)

	allowed := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		allowed[l] = struct{}{}
	}

	results := make([][]common.RawEntity, len(chunks))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, chunk := range chunks {
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
				env, err := util.RetryWithTimeout(gCtx, g.maxRetries, g.timeout, func(ctx context.Context) (entityEnvelope, error) {
					var out entityEnvelope
					err := g.aiClient.GenerateCompletionWithFormat(
						ctx,
						"entities",
						"Named entities found in the document",
						chunk,
						&out,
						append(
							g.generateOptions(g.entityModel),
							ai.WithSystemPrompts(prompt),
							ai.WithMaxTokens(g.maxResponseTokens),
						)...,
					)
					return out, err
				})
				if err != nil {
					if gCtx.Err() != nil {
						return nil
					}
					logger.Warn("[Entities] Generative extraction failed, dropping chunk", "chunk", i, "err", err)
					return nil
				}

				results[i] = filterEntities(env.Entities, allowed, i)
				return nil
			}
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// preFound returns the distinct (text, label) pairs of the local entities.
func preFound(local []common.RawEntity) []candidate {
	seen := make(map[candidate]struct{}, len(local))
	out := make([]candidate, 0, len(local))
	for _, e := range local {
		c := candidate{Text: e.Text, Label: e.Label}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func filterEntities(items []entityItem, allowed map[string]struct{}, chunk int) []common.RawEntity {
	out := make([]common.RawEntity, 0, len(items))
	for _, item := range items {
		source := common.EntitySource(item.Source)
		if item.Text == "" || !source.Valid() || source == common.SourceLocal {
			logger.Debug("[Entities] Discarding malformed entity", "chunk", chunk, "text", item.Text, "source", item.Source)
			continue
		}
		if _, ok := allowed[item.Label]; !ok {
			logger.Debug("[Entities] Discarding entity with unknown label", "chunk", chunk, "text", item.Text, "label", item.Label)
			continue
		}
		out = append(out, common.RawEntity{Text: item.Text, Label: item.Label, Source: source})
	}
	return out
}

// mergeEntities groups raw entities by exact text. Local entities are
// visited before generative ones, both in chunk order, so ids, entity order
// and label order only depend on the inputs.
func mergeEntities(
	local []common.RawEntity,
	generative [][]common.RawEntity,
	newID func() (string, error),
) ([]common.MergedEntity, error) {
	merged := make([]common.MergedEntity, 0)
	byText := make(map[string]int)

	add := func(e common.RawEntity) error {
		idx, ok := byText[e.Text]
		if !ok {
			id, err := newID()
			if err != nil {
				return fmt.Errorf("failed to generate entity id: %w", err)
			}
			merged = append(merged, common.MergedEntity{ID: id, Text: e.Text, Labels: []string{}})
			idx = len(merged) - 1
			byText[e.Text] = idx
		}
		if !merged[idx].HasLabel(e.Label) {
			merged[idx].Labels = append(merged[idx].Labels, e.Label)
		}
		return nil
	}

	for _, e := range local {
		if err := add(e); err != nil {
			return nil, err
		}
	}
	for _, chunk := range generative {
		for _, e := range chunk {
			if err := add(e); err != nil {
				return nil, err
			}
		}
	}

	return merged, nil
}
