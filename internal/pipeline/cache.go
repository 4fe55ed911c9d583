package pipeline

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/bankpipe-dev/bankpipe/internal/config"
	"github.com/bankpipe-dev/bankpipe/internal/detect"
)

// Cache memoizes parsed source rows for one pipeline run, keyed by file
// content hash. It is owned by a single Run invocation and passed by
// reference, so nothing leaks across runs and tests stay independent.
type Cache struct {
	rows map[string][]map[string]string
}

// NewCache creates an empty per-run cache.
func NewCache() *Cache {
	return &Cache{rows: make(map[string][]map[string]string)}
}

// Rows returns the parsed data rows of a file under its detection rule,
// parsing at most once per distinct content.
func (c *Cache) Rows(data []byte, rule config.DetectionRule) ([]map[string]string, error) {
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])
	if rows, ok := c.rows[key]; ok {
		return rows, nil
	}

	rows, err := detect.Rows(data, rule)
	if err != nil {
		return nil, err
	}
	c.rows[key] = rows
	return rows, nil
}
