package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/relgraph/internal/util"
	"github.com/OFFIS-RIT/relgraph/pkg/ai"
	"github.com/OFFIS-RIT/relgraph/pkg/common"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

type relationshipItem struct {
	Subject    string       `json:"subject"`
	Predicate  string       `json:"predicate"`
	Object     string       `json:"object"`
	FromID     string       `json:"from_id"`
	ToID       string       `json:"to_id"`
	Confidence ai.FlexFloat `json:"confidence"`
}

// ResolveRelationships asks the model for relationships between the given
// entities chunk by chunk and scores them.
//
// Relationships whose raw model confidence is below threshold are dropped.
// Endpoint ids are re-resolved from subject and object, and the stored
// confidence blends the raw score with the proximity of subject and object
// in text. Chunks whose response cannot be obtained or parsed are skipped.
func (g *GraphClient) ResolveRelationships(
	ctx context.Context,
	text string,
	entities []common.MergedEntity,
	threshold float64,
) ([]common.Relationship, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	chunks := SplitText(text, g.relationChunks)
	results := make([][]relationshipItem, len(chunks))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, chunk := range chunks {
		candidates := entitiesInChunk(entities, chunk)
		if len(candidates) == 0 {
			logger.Debug("[Relationships] No entities in chunk, skipping", "chunk", i)
			continue
		}

		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
				items, err := g.extractRelationships(gCtx, chunk, candidates)
				if err != nil {
					if gCtx.Err() != nil {
						return nil
					}
					logger.Warn("[Relationships] Extraction failed, dropping chunk", "chunk", i, "err", err)
					return nil
				}
				results[i] = items
				return nil
			}
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scorer := NewProximityScorer(text)
	resolver := NewEntityResolver(entities)

	out := make([]common.Relationship, 0)
	for _, items := range results {
		for _, item := range items {
			if rel, ok := g.scoreRelationship(item, threshold, scorer, resolver); ok {
				out = append(out, rel)
			}
		}
	}
	return out, nil
}

func (g *GraphClient) extractRelationships(
	ctx context.Context,
	chunk string,
	candidates []common.MergedEntity,
) ([]relationshipItem, error) {
	candidatesJSON, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entities: %w", err)
	}
	prompt := fmt.Sprintf(ai.RelationshipPrompt, candidatesJSON)

	return util.RetryWithTimeout(ctx, g.maxRetries, g.timeout, func(ctx context.Context) ([]relationshipItem, error) {
		raw, err := g.aiClient.GenerateCompletion(
			ctx,
			chunk,
			append(
				g.generateOptions(g.relationModel),
				ai.WithSystemPrompts(prompt),
				ai.WithMaxTokens(g.maxResponseTokens),
			)...,
		)
		if err != nil {
			return nil, err
		}
		items, err := ai.DecodeArray[relationshipItem](raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse relationships: %w", err)
		}
		return items, nil
	})
}

// scoreRelationship applies, in order: predicate normalization, the raw
// confidence range check and threshold, endpoint re-resolution and confidence blending.
func (g *GraphClient) scoreRelationship(
	item relationshipItem,
	threshold float64,
	scorer *ProximityScorer,
	resolver *EntityResolver,
) (common.Relationship, bool) {
	predicate := NormalizePredicate(item.Predicate)

	raw := float64(item.Confidence)
	if raw < 0 || raw > 1 {
		logger.Warn("[Relationships] Confidence outside [0,1], dropping relationship",
			"subject", item.Subject, "predicate", predicate, "object", item.Object, "confidence", raw)
		return common.Relationship{}, false
	}
	if raw < threshold {
		return common.Relationship{}, false
	}

	fromID, ok := resolver.Resolve(item.Subject)
	if !ok {
		logger.Warn("[Relationships] Subject did not match any entity, using fallback", "subject", item.Subject, "id", fromID)
	}
	toID, ok := resolver.Resolve(item.Object)
	if !ok {
		logger.Warn("[Relationships] Object did not match any entity, using fallback", "object", item.Object, "id", toID)
	}

	confidence := rawWeight*raw + proximityWeight*scorer.Score(item.Subject, item.Object)
	if g.recheckBlended && confidence < threshold {
		return common.Relationship{}, false
	}

	return common.Relationship{
		Subject:    item.Subject,
		Predicate:  predicate,
		Object:     item.Object,
		FromID:     fromID,
		ToID:       toID,
		Confidence: confidence,
	}, true
}

// NormalizePredicate replaces every whitespace run in p with an underscore
// and trims surrounding whitespace.
func NormalizePredicate(p string) string {
	return strings.Join(strings.Fields(p), "_")
}

// entitiesInChunk returns the entities whose text occurs in chunk,
// ignoring case.
func entitiesInChunk(entities []common.MergedEntity, chunk string) []common.MergedEntity {
	lowered := strings.ToLower(chunk)
	out := make([]common.MergedEntity, 0)
	for _, e := range entities {
		if e.Text != "" && strings.Contains(lowered, strings.ToLower(e.Text)) {
			out = append(out, e)
		}
	}
	return out
}
