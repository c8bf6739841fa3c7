package utils

import (
	"github.com/bytedance/sonic"
)

// JSON is the codec used for every payload the service writes: keys are sorted
// so snapshots are byte-stable, and non-ASCII text is emitted literally.
var JSON = sonic.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

func MarshalPretty(v interface{}) ([]byte, error) {
	return JSON.MarshalIndent(v, "", "  ")
}
