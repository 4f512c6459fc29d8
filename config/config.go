// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads service settings from YAML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/poiesic/lore/ai"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	PathEnv           = "LORE_CONFIG"
	AIHostEnv         = "LORE_AI_HOST"
	AITokenEnv        = "LORE_AI_TOKEN"
	ChatModelEnv      = "LORE_CHAT_MODEL"
	EmbeddingModelEnv = "LORE_EMBEDDING_MODEL"
	DataDirEnv        = "LORE_DATA_DIR"
	AddrEnv           = "LORE_ADDR"
	InventoryURLEnv   = "LORE_INVENTORY_URL"
	ConcurrencyEnv    = "LORE_CONCURRENCY"
)

// Config holds every setting the service consumes.
type Config struct {
	Addr      string          `yaml:"addr"`
	DataDir   string          `yaml:"dataDir"`
	AI        AIConfig        `yaml:"ai"`
	Cache     CacheConfig     `yaml:"cache"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Inventory InventoryConfig `yaml:"inventory"`
}

// AIConfig describes the OpenAI-compatible endpoints. Host applies to both
// endpoints unless EmbeddingHost or ChatHost is set.
type AIConfig struct {
	Host           string        `yaml:"host"`
	EmbeddingHost  string        `yaml:"embeddingHost"`
	ChatHost       string        `yaml:"chatHost"`
	Token          string        `yaml:"token"`
	EmbeddingModel string        `yaml:"embeddingModel"`
	ChatModel      string        `yaml:"chatModel"`
	Temperature    float64       `yaml:"temperature"`
	MaxTokens      int           `yaml:"maxTokens"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	TTL            time.Duration `yaml:"ttl"`
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	// Disabled skips the persistent backend and uses the in-process cache.
	Disabled bool `yaml:"disabled"`
}

type RetrievalConfig struct {
	TopK int `yaml:"topK"`
}

// IngestionConfig controls fetching, chunking and batch parallelism.
type IngestionConfig struct {
	Concurrency      int           `yaml:"concurrency"`
	ChunkSize        int           `yaml:"chunkSize"`
	ChunkOverlap     int           `yaml:"chunkOverlap"`
	MinContentLength int           `yaml:"minContentLength"`
	JobTimeout       time.Duration `yaml:"jobTimeout"`
	FetchAttempts    int           `yaml:"fetchAttempts"`
	UserAgent        string        `yaml:"userAgent"`
}

// InventoryConfig lists the article inventory sources. URL is the live
// endpoint; SnapshotPath, relative to DataDir unless absolute, is the static
// fallback rewritten after every batch.
type InventoryConfig struct {
	URL          string `yaml:"url"`
	SnapshotPath string `yaml:"snapshotPath"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	return &Config{
		Addr:    ":8080",
		DataDir: "./data",
		AI: AIConfig{
			Host:           aiDefaults.ChatHost,
			Token:          aiDefaults.Token,
			EmbeddingModel: aiDefaults.EmbeddingModel,
			ChatModel:      aiDefaults.ChatModel,
			Temperature:    aiDefaults.Temperature,
			RequestTimeout: aiDefaults.RequestTimeout,
		},
		Cache: CacheConfig{
			TTL:            24 * time.Hour,
			ConnectTimeout: 5 * time.Second,
		},
		Retrieval: RetrievalConfig{TopK: 4},
		Ingestion: IngestionConfig{
			Concurrency:      3,
			ChunkSize:        1000,
			ChunkOverlap:     200,
			MinContentLength: 200,
			JobTimeout:       60 * time.Second,
			FetchAttempts:    3,
		},
		Inventory: InventoryConfig{SnapshotPath: "inventory.yaml"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides and validates the result. An empty path falls back
// to $LORE_CONFIG; if that is empty too, only defaults and environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(PathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(AIHostEnv); v != "" {
		c.AI.Host = v
	}
	if v := os.Getenv(AITokenEnv); v != "" {
		c.AI.Token = v
	}
	if v := os.Getenv(ChatModelEnv); v != "" {
		c.AI.ChatModel = v
	}
	if v := os.Getenv(EmbeddingModelEnv); v != "" {
		c.AI.EmbeddingModel = v
	}
	if v := os.Getenv(DataDirEnv); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(AddrEnv); v != "" {
		c.Addr = v
	}
	if v := os.Getenv(InventoryURLEnv); v != "" {
		c.Inventory.URL = v
	}
	if v := os.Getenv(ConcurrencyEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", ConcurrencyEnv, err)
		}
		c.Ingestion.Concurrency = n
	}
	return nil
}

// Validate checks ranges and required values.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("dataDir is required"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, errors.New("cache.ttl must be positive"))
	}
	if c.Cache.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("cache.connectTimeout must be positive"))
	}
	if c.Retrieval.TopK < 1 {
		errs = append(errs, errors.New("retrieval.topK must be at least 1"))
	}
	in := c.Ingestion
	if in.Concurrency < 1 {
		errs = append(errs, errors.New("ingestion.concurrency must be at least 1"))
	}
	if in.ChunkSize < 1 {
		errs = append(errs, errors.New("ingestion.chunkSize must be at least 1"))
	}
	if in.ChunkOverlap < 0 || in.ChunkOverlap >= in.ChunkSize {
		errs = append(errs, errors.New("ingestion.chunkOverlap must be in [0, chunkSize)"))
	}
	if in.MinContentLength < 0 {
		errs = append(errs, errors.New("ingestion.minContentLength cannot be negative"))
	}
	if in.JobTimeout <= 0 {
		errs = append(errs, errors.New("ingestion.jobTimeout must be positive"))
	}
	if in.FetchAttempts < 1 {
		errs = append(errs, errors.New("ingestion.fetchAttempts must be at least 1"))
	}
	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// AIConfig converts the AI section into the provider configuration.
func (c *Config) AIConfig() *ai.Config {
	embeddingHost, chatHost := c.AI.EmbeddingHost, c.AI.ChatHost
	if embeddingHost == "" {
		embeddingHost = c.AI.Host
	}
	if chatHost == "" {
		chatHost = c.AI.Host
	}
	return ai.NewConfig(
		ai.WithEmbeddingHost(embeddingHost),
		ai.WithChatHost(chatHost),
		ai.WithToken(c.AI.Token),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithChatModel(c.AI.ChatModel),
		ai.WithTemperature(c.AI.Temperature),
		ai.WithMaxTokens(c.AI.MaxTokens),
		ai.WithRequestTimeout(c.AI.RequestTimeout),
	)
}

// IndexDir is where the chunk index is stored.
func (c *Config) IndexDir() string {
	return filepath.Join(c.DataDir, "index")
}

// CacheDir is where the persistent response cache is stored.
func (c *Config) CacheDir() string {
	return filepath.Join(c.DataDir, "cache")
}

// SnapshotPath resolves the inventory snapshot location.
func (c *Config) SnapshotPath() string {
	p := c.Inventory.SnapshotPath
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
