package core

import (
	"fmt"
	"strings"
	"sync"
)

// ToolSchema describes the column layout of one tool's export.
// SignatureColumns earn the detection bonus when any header contains one
// of them.
type ToolSchema struct {
	Tool             ToolSource           `json:"tool"`
	DisplayName      string               `json:"displayName"`
	RequiredColumns  []string             `json:"requiredColumns"`
	OptionalColumns  []string             `json:"optionalColumns"`
	SignatureColumns []string             `json:"signatureColumns"`
	ColumnMappings   []ColumnMapping      `json:"columnMappings"`
	ValueValidators  map[string]Validator `json:"valueValidators"`
}

// Catalog holds the known tool schemas in registration order. Detection
// ties go to the schema registered first.
type Catalog struct {
	mu      sync.RWMutex
	order   []ToolSource
	schemas map[ToolSource]ToolSchema
}

func NewCatalog() *Catalog {
	return &Catalog{schemas: make(map[ToolSource]ToolSchema)}
}

// Register adds a schema. It panics on a duplicate tool or a schema that
// does not require the keyword column, both programming errors.
func (c *Catalog) Register(s ToolSchema) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.schemas[s.Tool]; exists {
		panic(fmt.Sprintf("tool schema already registered: %s", s.Tool))
	}
	if !containsFold(s.RequiredColumns, FieldKeyword) {
		panic(fmt.Sprintf("tool schema %s does not require a keyword column", s.Tool))
	}
	if s.ValueValidators == nil {
		s.ValueValidators = DefaultValidators()
	}

	c.order = append(c.order, s.Tool)
	c.schemas[s.Tool] = s
}

// Get returns the schema for tool.
func (c *Catalog) Get(tool ToolSource) (ToolSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.schemas[tool]
	return s, ok
}

// All returns every schema in registration order.
func (c *Catalog) All() []ToolSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ToolSchema, 0, len(c.order))
	for _, t := range c.order {
		out = append(out, c.schemas[t])
	}
	return out
}

// Len returns the number of registered schemas.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}
