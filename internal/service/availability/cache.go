package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ougirez/aedsync/internal/domain"
	"github.com/ougirez/aedsync/internal/pkg/logger"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

// Cache is the on-disk map from raw text to its extraction. The file is
// always rewritten whole.
type Cache struct {
	path string
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

func (c *Cache) Path() string {
	return c.path
}

// Load never fails: a missing or unreadable snapshot is an empty cache, and
// an entry that no longer decodes is dropped on its own.
func (c *Cache) Load(ctx context.Context) map[string]domain.Availability {
	entries := make(map[string]domain.Availability)

	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return entries
	}
	if err != nil {
		logger.Warnf(ctx, "cache %s unreadable, starting empty: %s", c.path, err.Error())
		return entries
	}

	var raw map[string]json.RawMessage
	if err = utils.JSON.Unmarshal(data, &raw); err != nil {
		logger.Warnf(ctx, "cache %s is corrupt, starting empty: %s", c.path, err.Error())
		return entries
	}

	// одна испорченная запись не должна стоить остальных
	var skipped int
	for text, value := range raw {
		var av domain.Availability
		if err = utils.JSON.Unmarshal(value, &av); err != nil {
			skipped++
			logger.Warnf(ctx, "cache entry %q is unreadable, will extract again: %s", text, err.Error())
			continue
		}
		entries[text] = av
	}

	logger.Infof(ctx, "loaded %d cached entries from %s (%d unreadable)", len(entries), c.path, skipped)
	return entries
}

// Save replaces the snapshot atomically: readers see the old or the new file,
// never a partial one.
func (c *Cache) Save(entries map[string]domain.Availability) error {
	data, err := utils.MarshalPretty(entries)
	if err != nil {
		return fmt.Errorf("marshal cache: %w", err)
	}

	if err = utils.WriteFileAtomic(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// Lookup returns the entry for text if it is present and valid. The snapshot
// is re-read on every call so a running batch's progress is visible.
func (c *Cache) Lookup(ctx context.Context, text string) (domain.Availability, bool) {
	entries := c.Load(ctx)
	if !cached(entries, text) {
		return domain.Availability{}, false
	}
	return entries[text], true
}
