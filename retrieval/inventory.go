package retrieval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/lore/core"
	"gopkg.in/yaml.v3"
)

// Inventory lists the documents of the corpus.
type Inventory interface {
	Documents(ctx context.Context) ([]core.DocumentInfo, error)
}

// ErrNoInventory is returned when every inventory source failed.
var ErrNoInventory = errors.New("no inventory source available")

// HTTPInventory reads a live inventory endpoint returning a JSON array of
// documents, or an object with an "articles" array.
type HTTPInventory struct {
	url    string
	client *http.Client
}

// NewHTTPInventory creates an inventory reading url. A nil client gets a 5s timeout.
func NewHTTPInventory(url string, client *http.Client) *HTTPInventory {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPInventory{url: url, client: client}
}

func (h *HTTPInventory) Documents(ctx context.Context) ([]core.DocumentInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request inventory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inventory returned %s", resp.Status)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}

	var docs []core.DocumentInfo
	if err := json.Unmarshal(raw, &docs); err == nil {
		return docs, nil
	}
	var wrapped struct {
		Articles []core.DocumentInfo `json:"articles"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode inventory: %w", err)
	}
	return wrapped.Articles, nil
}

// DocumentLister is implemented by the similarity index.
type DocumentLister interface {
	Documents(ctx context.Context) ([]core.DocumentInfo, error)
}

// IndexInventory lists documents straight from the index.
type IndexInventory struct {
	index DocumentLister
}

// NewIndexInventory wraps index.
func NewIndexInventory(index DocumentLister) *IndexInventory {
	return &IndexInventory{index: index}
}

func (i *IndexInventory) Documents(ctx context.Context) ([]core.DocumentInfo, error) {
	if i.index == nil {
		return nil, core.ErrServiceNotInitialized
	}
	return i.index.Documents(ctx)
}

// snapshotFile is the on-disk form of a SnapshotInventory.
type snapshotFile struct {
	GeneratedAt time.Time           `yaml:"generatedAt"`
	Articles    []core.DocumentInfo `yaml:"articles"`
}

// SnapshotInventory is a static YAML inventory file.
type SnapshotInventory struct {
	path string
}

// NewSnapshotInventory reads and writes the snapshot at path.
func NewSnapshotInventory(path string) *SnapshotInventory {
	return &SnapshotInventory{path: path}
}

func (s *SnapshotInventory) Documents(ctx context.Context) ([]core.DocumentInfo, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var f snapshotFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", s.path, err)
	}
	return f.Articles, nil
}

// Save replaces the snapshot with docs. The file is written atomically.
func (s *SnapshotInventory) Save(docs []core.DocumentInfo) error {
	data, err := yaml.Marshal(snapshotFile{GeneratedAt: time.Now().UTC(), Articles: docs})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Chain tries inventories in order. The first source returning documents
// wins; a source returning none defers to the next. If every source fails,
// the error wraps ErrNoInventory.
type Chain struct {
	sources []Inventory
	logger  *slog.Logger
}

// NewChain builds a chain over sources, skipping nil entries.
func NewChain(logger *slog.Logger, sources ...Inventory) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{logger: logger.With("component", "inventory")}
	for _, s := range sources {
		if s != nil {
			c.sources = append(c.sources, s)
		}
	}
	return c
}

func (c *Chain) Documents(ctx context.Context) ([]core.DocumentInfo, error) {
	var errs []error
	succeeded := false
	for i, s := range c.sources {
		docs, err := s.Documents(ctx)
		if err != nil {
			c.logger.Warn("inventory source failed", "source", i, "err", err)
			errs = append(errs, err)
			continue
		}
		succeeded = true
		if len(docs) > 0 {
			return docs, nil
		}
	}
	if succeeded {
		return nil, nil
	}
	if len(errs) == 0 {
		return nil, ErrNoInventory
	}
	return nil, fmt.Errorf("%w: %w", ErrNoInventory, errors.Join(errs...))
}
