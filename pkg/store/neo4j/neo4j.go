package neo4j

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
	"github.com/OFFIS-RIT/relgraph/pkg/logger"
	"github.com/OFFIS-RIT/relgraph/pkg/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// GraphNeo4jStorage writes extraction results into a Neo4j database.
type GraphNeo4jStorage struct {
	driver   neo4j.DriverWithContext
	database string
	mode     store.WriteMode
}

// NewGraphNeo4jStorageParams configures NewGraphNeo4jStorage.
// Database may be empty to use the server default.
type NewGraphNeo4jStorageParams struct {
	URL      string
	User     string
	Password string
	Database string
	Mode     store.WriteMode
}

// NewGraphNeo4jStorage connects to Neo4j and verifies connectivity.
func NewGraphNeo4jStorage(ctx context.Context, params NewGraphNeo4jStorageParams) (*GraphNeo4jStorage, error) {
	driver, err := neo4j.NewDriverWithContext(params.URL, neo4j.BasicAuth(params.User, params.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}

	return NewGraphNeo4jStorageWithDriver(driver, params.Database, params.Mode), nil
}

// NewGraphNeo4jStorageWithDriver uses an existing driver. The storage owns
// the driver and closes it in Close.
func NewGraphNeo4jStorageWithDriver(driver neo4j.DriverWithContext, database string, mode store.WriteMode) *GraphNeo4jStorage {
	if mode == "" {
		mode = store.WriteModeReplace
	}
	return &GraphNeo4jStorage{driver: driver, database: database, mode: mode}
}

const (
	wipeCypher = `MATCH (n) DETACH DELETE n`
	countNodes = `MATCH (n) RETURN count(n) AS c`
	countEdges = `MATCH ()-[r]->() RETURN count(r) AS c`
	nodeCypher = "MERGE (n:`%s` {id: $id, name: $name})"
	edgeCypher = "MATCH (a {id: $from}), (b {id: $to}) MERGE (a)-[r:`%s`]->(b) SET r += $props"
)

// SaveGraph writes entities and relationships in one managed write
// transaction.
func (s *GraphNeo4jStorage) SaveGraph(
	ctx context.Context,
	entities []common.MergedEntity,
	relations []common.Relationship,
) error {
	nodes, edges := store.PrepareGraph(entities, relations)

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if s.mode == store.WriteModeReplace {
			if err := run(ctx, tx, wipeCypher, nil); err != nil {
				return nil, fmt.Errorf("failed to clear graph: %w", err)
			}
		}

		for _, n := range nodes {
			err := run(ctx, tx, fmt.Sprintf(nodeCypher, n.Label), map[string]any{
				"id":   n.ID,
				"name": n.Name,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
			}
		}

		for _, e := range edges {
			err := run(ctx, tx, fmt.Sprintf(edgeCypher, e.Type), map[string]any{
				"from":  e.FromID,
				"to":    e.ToID,
				"props": e.Props(),
			})
			if err != nil {
				return nil, fmt.Errorf("failed to upsert edge %s-%s->%s: %w", e.FromID, e.Type, e.ToID, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return err
	}

	logger.Debug("[Store] Saved graph to neo4j", "nodes", len(nodes), "edges", len(edges), "mode", s.mode)
	return nil
}

func run(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, params map[string]any) error {
	res, err := tx.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// CountGraph returns the number of nodes and edges in the database.
func (s *GraphNeo4jStorage) CountGraph(ctx context.Context) (int, int, error) {
	nodes, err := s.count(ctx, countNodes)
	if err != nil {
		return 0, 0, err
	}
	edges, err := s.count(ctx, countEdges)
	if err != nil {
		return 0, 0, err
	}
	return nodes, edges, nil
}

func (s *GraphNeo4jStorage) count(ctx context.Context, cypher string) (int, error) {
	res, err := neo4j.ExecuteQuery(ctx, s.driver, cypher, nil,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count graph: %w", err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	c, _, err := neo4j.GetRecordValue[int64](res.Records[0], "c")
	if err != nil {
		return 0, err
	}
	return int(c), nil
}

// Close closes the underlying driver.
func (s *GraphNeo4jStorage) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

var _ store.GraphWriter = (*GraphNeo4jStorage)(nil)
