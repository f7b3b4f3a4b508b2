package sqlshard

import (
	"fmt"
	"sort"
	"sync"

	"shard-federator/internal/common/errors"
)

// Catalog maps statement names to SQL text.
type Catalog struct {
	mu         sync.RWMutex
	statements map[string]string
}

// NewCatalog creates a catalog from statements
func NewCatalog(statements map[string]string) (*Catalog, error) {
	c := &Catalog{statements: make(map[string]string, len(statements))}
	for name, text := range statements {
		if err := c.Add(name, text); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Add registers a statement. Empty names or text and duplicates are config errors.
func (c *Catalog) Add(name, text string) error {
	if name == "" {
		return errors.ConfigError("statement name is empty")
	}
	if text == "" {
		return errors.ConfigError(fmt.Sprintf("statement %s has no SQL", name))
	}
	if _, err := parseNamed(text); err != nil {
		return errors.ConfigError(fmt.Sprintf("statement %s: %v", name, err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.statements[name]; exists {
		return errors.ConfigError(fmt.Sprintf("statement %s is already defined", name))
	}
	c.statements[name] = text
	return nil
}

// Lookup returns the SQL text of a statement
func (c *Catalog) Lookup(name string) (string, error) {
	c.mu.RLock()
	text, ok := c.statements[name]
	c.mu.RUnlock()

	if !ok {
		return "", errors.NotFoundError(fmt.Sprintf("statement %s", name))
	}
	return text, nil
}

// Names returns every statement name in sorted order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.statements))
	for n := range c.statements {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
