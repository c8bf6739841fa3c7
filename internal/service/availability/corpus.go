package availability

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

type corpusRecord struct {
	Availability interface{} `json:"availability"`
}

// LoadCorpus returns the distinct trimmed, non-empty availability texts of a
// published dataset, sorted so runs are reproducible.
func LoadCorpus(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", constants.ErrMissingInputFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	var records []corpusRecord
	if err = utils.JSON.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(records))
	texts := make([]string, 0, len(records))
	for _, r := range records {
		raw, ok := r.Availability.(string)
		if !ok {
			continue
		}
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		texts = append(texts, text)
	}

	slices.Sort(texts)
	return texts, nil
}
