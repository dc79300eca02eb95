package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/relgraph/internal/util"
	"github.com/OFFIS-RIT/relgraph/pkg/graph"
	"github.com/OFFIS-RIT/relgraph/pkg/store"
)

// Config is the service configuration read from the environment.
type Config struct {
	Port        string
	Debug       bool
	MaxUploadMB int

	AIAdapter         string
	AIChatURL         string
	AIChatKey         string
	AIEntityModel     string
	AIRelationModel   string
	AIParallelReq     int
	AIMaxRetries      int
	AITimeout         time.Duration
	AIMaxResponseToks int
	AIReasoningEffort string
	// AITemperature is nil when AI_TEMPERATURE is unset or negative.
	AITemperature     *float64

	LocalChunks    graph.ChunkOptions
	EntityChunks   graph.ChunkOptions
	RelationChunks graph.ChunkOptions

	GraphStore     string
	GraphWriteMode store.WriteMode
	RecheckBlended bool

	Neo4jURL      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string
	DatabaseURL   string
	BadgerPath    string

	RabbitUser     string
	RabbitPassword string
	RabbitHost     string
	RabbitPort     string
}

const (
	AdapterOpenAI = "openai"
	AdapterOllama = "ollama"

	StoreNeo4j    = "neo4j"
	StorePostgres = "postgres"
	StoreBadger   = "badger"
)

// Load reads and validates the configuration.
func Load() (Config, error) {
	c := Config{
		Port:        util.GetEnvString("PORT", "8080"),
		Debug:       util.GetEnvBool("DEBUG", false),
		MaxUploadMB: util.GetEnvInt("MAX_UPLOAD_MB", 20),

		AIAdapter:         strings.ToLower(util.GetEnvString("AI_ADAPTER", AdapterOpenAI)),
		AIChatURL:         util.GetEnv("AI_CHAT_URL"),
		AIChatKey:         util.GetEnv("AI_CHAT_KEY"),
		AIEntityModel:     util.GetEnvString("AI_ENTITY_MODEL", "gpt-4o-mini"),
		AIRelationModel:   util.GetEnvString("AI_RELATION_MODEL", "gpt-4o"),
		AIParallelReq:     util.GetEnvInt("AI_PARALLEL_REQ", 8),
		AIMaxRetries:      util.GetEnvInt("AI_MAX_RETRIES", 2),
		AITimeout:         util.GetEnvSeconds("AI_TIMEOUT_SECONDS", 120*time.Second),
		AIMaxResponseToks: util.GetEnvInt("AI_MAX_RESPONSE_TOKENS", 32000),
		AIReasoningEffort: util.GetEnv("AI_REASONING_EFFORT"),

		LocalChunks: graph.ChunkOptions{
			Size:    util.GetEnvInt("CHUNK_LOCAL_SIZE", graph.LocalChunkOptions.Size),
			Overlap: util.GetEnvInt("CHUNK_LOCAL_OVERLAP", graph.LocalChunkOptions.Overlap),
		},
		EntityChunks: graph.ChunkOptions{
			Size:    util.GetEnvInt("CHUNK_ENTITY_SIZE", graph.EntityChunkOptions.Size),
			Overlap: util.GetEnvInt("CHUNK_ENTITY_OVERLAP", graph.EntityChunkOptions.Overlap),
		},
		RelationChunks: graph.ChunkOptions{
			Size:    util.GetEnvInt("CHUNK_RELATION_SIZE", graph.RelationChunkOptions.Size),
			Overlap: util.GetEnvInt("CHUNK_RELATION_OVERLAP", graph.RelationChunkOptions.Overlap),
		},

		GraphStore:     strings.ToLower(util.GetEnvString("GRAPH_STORE", StoreNeo4j)),
		RecheckBlended: util.GetEnvBool("GRAPH_RECHECK_BLENDED", false),

		Neo4jURL:      util.GetEnvString("NEO4J_URL", "neo4j://localhost:7687"),
		Neo4jUser:     util.GetEnvString("NEO4J_USER", "neo4j"),
		Neo4jPassword: util.GetEnv("NEO4J_PASSWORD"),
		Neo4jDatabase: util.GetEnv("NEO4J_DATABASE"),
		DatabaseURL:   util.GetEnv("DATABASE_URL"),
		BadgerPath:    util.GetEnv("BADGER_PATH"),

		RabbitUser:     util.GetEnvString("RABBITMQ_USER", "guest"),
		RabbitPassword: util.GetEnvString("RABBITMQ_PASSWORD", "guest"),
		RabbitHost:     util.GetEnvString("RABBITMQ_HOST", "localhost"),
		RabbitPort:     util.GetEnvString("RABBITMQ_PORT", "5672"),
	}

	if t := util.GetEnvFloat("AI_TEMPERATURE", -1); t >= 0 {
		c.AITemperature = &t
	}

	mode, err := store.ParseWriteMode(util.GetEnv("GRAPH_WRITE_MODE"))
	if err != nil {
		return Config{}, err
	}
	c.GraphWriteMode = mode

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.AIAdapter {
	case AdapterOpenAI, AdapterOllama:
	default:
		return fmt.Errorf("unknown AI_ADAPTER %q", c.AIAdapter)
	}

	switch c.GraphStore {
	case StoreNeo4j, StoreBadger:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("GRAPH_STORE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown GRAPH_STORE %q", c.GraphStore)
	}

	for name, o := range map[string]graph.ChunkOptions{
		"CHUNK_LOCAL":    c.LocalChunks,
		"CHUNK_ENTITY":   c.EntityChunks,
		"CHUNK_RELATION": c.RelationChunks,
	} {
		if o.Size <= 0 || o.Overlap < 0 || o.Overlap >= o.Size {
			return fmt.Errorf("%s_SIZE must be positive and larger than %s_OVERLAP", name, name)
		}
	}

	if c.AITemperature != nil && *c.AITemperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be between 0 and 2")
	}

	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	return nil
}

// RabbitURL returns the AMQP connection URL.
func (c Config) RabbitURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", c.RabbitUser, c.RabbitPassword, c.RabbitHost, c.RabbitPort)
}
