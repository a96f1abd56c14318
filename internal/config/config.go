package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port             int               `json:"port"`
	SessionSecret    string            `json:"session_secret"`
	SessionTTLHours  int               `json:"session_ttl_hours"`
	RateLimitSeconds int               `json:"rate_limit_seconds"`
	CORSAllowlist    []string          `json:"cors_allowlist"`
	LogConfig        logger.LogConfig  `json:"log_config"`
	Database         DatabaseConfig    `json:"database"`
	VectorStore      VectorStoreConfig `json:"vector_store"`
	AI               AIConfig          `json:"ai"`
	RAG              RAGConfig         `json:"rag"`
	FileStore        FileStoreConfig   `json:"file_store"`
	Jobs             JobsConfig        `json:"jobs"`
}

// DatabaseConfig points at the postgres instance used for the embedding
// cache, generated artifacts and the postgres vector store. Empty means no
// SQL database.
type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type VectorStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type ProviderEntry struct {
	Name     string      `json:"name"`
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type SpeechEntry struct {
	Name     string            `json:"name"`
	Provider string            `json:"provider"`
	Model    string            `json:"model"`
	Voices   map[string]string `json:"voices"`
	Data     interface{}       `json:"data"`
}

type AIConfig struct {
	Generators []ProviderEntry  `json:"generators"`
	Embedders  []ProviderEntry  `json:"embedders"`
	Speech     []SpeechEntry    `json:"speech"`
	Timeout    int              `json:"timeout"`
	EmbedCache EmbedCacheConfig `json:"embed_cache"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size"`
	LRUTTLSeconds int  `json:"lru_ttl_seconds"`
	DB            bool `json:"db"`
}

type RAGConfig struct {
	ChunkSize        int     `json:"chunk_size"`
	ChunkOverlap     int     `json:"chunk_overlap"`
	TopK             int     `json:"top_k"`
	MinSimilarity    float64 `json:"min_similarity"`
	RecentLimit      int     `json:"recent_limit"`
	MaxContextChars  int     `json:"max_context_chars"`
	MaxUploadBytes   int64   `json:"max_upload_bytes"`
	MaxChunks        int     `json:"max_chunks"`
	EmbedConcurrency int     `json:"embed_concurrency"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type JobsConfig struct {
	EmbeddingCacheCleanup string `json:"embedding_cache_cleanup"`
	EmbeddingCacheMaxDays int    `json:"embedding_cache_max_days"`
	ArtifactCleanup       string `json:"artifact_cleanup"`
	ArtifactMaxDays       int    `json:"artifact_max_days"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	var cfg Config
	if err := decode(path, raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// decode reads YAML by converting it to the JSON shape so both formats share
// one set of struct tags.
func decode(path string, raw []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return err
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(raw, cfg)
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("DOCRAG_SESSION_SECRET")); v != "" {
		cfg.SessionSecret = v
	}
	keys := map[string]string{
		"gemini": os.Getenv("GEMINI_API_KEY"),
		"openai": os.Getenv("OPENAI_API_KEY"),
	}
	inject := func(provider string, data interface{}) interface{} {
		key := strings.TrimSpace(keys[strings.ToLower(provider)])
		if key == "" {
			return data
		}
		m, ok := data.(map[string]interface{})
		if !ok {
			if data != nil {
				return data
			}
			m = map[string]interface{}{}
		}
		if v, _ := m["api_key"].(string); v == "" {
			m["api_key"] = key
		}
		return m
	}
	for i := range cfg.AI.Generators {
		cfg.AI.Generators[i].Data = inject(cfg.AI.Generators[i].Provider, cfg.AI.Generators[i].Data)
	}
	for i := range cfg.AI.Embedders {
		cfg.AI.Embedders[i].Data = inject(cfg.AI.Embedders[i].Provider, cfg.AI.Embedders[i].Data)
	}
	for i := range cfg.AI.Speech {
		cfg.AI.Speech[i].Data = inject(cfg.AI.Speech[i].Provider, cfg.AI.Speech[i].Data)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.SessionTTLHours == 0 {
		cfg.SessionTTLHours = 24 * 30
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 60
	}
	r := &cfg.RAG
	if r.ChunkSize == 0 {
		r.ChunkSize = 1000
	}
	if r.ChunkOverlap == 0 {
		r.ChunkOverlap = 200
	}
	if r.TopK == 0 {
		r.TopK = 5
	}
	if r.MinSimilarity == 0 {
		r.MinSimilarity = 0.3
	}
	if r.RecentLimit == 0 {
		r.RecentLimit = 50
	}
	if r.MaxContextChars == 0 {
		r.MaxContextChars = 50000
	}
	if r.MaxUploadBytes == 0 {
		r.MaxUploadBytes = 20 * 1024 * 1024
	}
	if r.MaxChunks == 0 {
		r.MaxChunks = 500
	}
	if r.EmbedConcurrency == 0 {
		r.EmbedConcurrency = 4
	}
	if cfg.Jobs.EmbeddingCacheMaxDays == 0 {
		cfg.Jobs.EmbeddingCacheMaxDays = 30
	}
	if cfg.Jobs.ArtifactMaxDays == 0 {
		cfg.Jobs.ArtifactMaxDays = 7
	}
}

func validate(cfg *Config) error {
	if cfg.SessionSecret == "" {
		return fmt.Errorf("session_secret is required")
	}
	if len(cfg.AI.Embedders) == 0 {
		return fmt.Errorf("ai.embedders is required")
	}
	for i, item := range cfg.AI.Embedders {
		if item.Provider == "" || item.Model == "" {
			return fmt.Errorf("ai.embedders[%d] provider/model are required", i)
		}
	}
	for i, item := range cfg.AI.Generators {
		if item.Provider == "" || item.Model == "" {
			return fmt.Errorf("ai.generators[%d] provider/model are required", i)
		}
	}
	if cfg.RAG.ChunkOverlap < 0 || cfg.RAG.ChunkOverlap >= cfg.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap must be in [0, chunk_size)")
	}
	if cfg.RAG.MinSimilarity < -1 || cfg.RAG.MinSimilarity >= 1 {
		return fmt.Errorf("rag.min_similarity must be in [-1, 1)")
	}
	switch strings.ToLower(cfg.VectorStore.Type) {
	case "postgres":
		if !cfg.Database.Enabled() {
			return fmt.Errorf("database is required for the postgres vector store")
		}
	}
	if cfg.AI.EmbedCache.DB && !cfg.Database.Enabled() {
		return fmt.Errorf("database is required for ai.embed_cache.db")
	}
	return nil
}
