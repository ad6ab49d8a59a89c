package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"gorm.io/datatypes"
)

// Record is one row of a projected model, reduced to what the node
// tree needs: identity, display name, optional parent and the raw
// column values.
type Record struct {
	ID       uint
	Name     string
	ParentID *uint
	Fields   map[string]interface{}
}

// Condition is one [field, operator, value] domain triple.
// Supported operators: = != > >= < <= like ilike in.
type Condition struct {
	Field string
	Op    string
	Value interface{}
}

// Source answers search queries over one projected model.
type Source interface {
	// Model returns the model identifier, e.g. "res.partner".
	Model() string
	// NameField returns the column used as display name.
	NameField() string
	// ParentField returns the column holding the parent record id, or
	// empty if the model is flat.
	ParentField() string
	// Search returns records matching all conditions. Order is stable
	// within a call.
	Search(conds []Condition) ([]Record, error)
	// ByID returns one record or nil if it does not exist.
	ByID(id uint) (*Record, error)
}

// Registry maps model identifiers to their sources. Projected models
// are registered at startup; an unregistered model simply yields no
// children.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register adds or replaces the source for a model.
func (r *Registry) Register(s Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[s.Model()] = s
}

// Get returns the source for a model, if registered.
func (r *Registry) Get(model string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[model]
	return s, ok
}

// ParseDomain decodes a stored JSON domain expression into conditions.
// The stored form is a list of [field, operator, value] triples.
func ParseDomain(raw datatypes.JSON) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var triples [][]interface{}
	if err := json.Unmarshal(raw, &triples); err != nil {
		return nil, fmt.Errorf("malformed domain expression: %w", err)
	}
	conds := make([]Condition, 0, len(triples))
	for _, t := range triples {
		if len(t) != 3 {
			return nil, fmt.Errorf("domain triple must have 3 elements, got %d", len(t))
		}
		field, ok := t[0].(string)
		if !ok {
			return nil, fmt.Errorf("domain field must be a string")
		}
		op, ok := t[1].(string)
		if !ok {
			return nil, fmt.Errorf("domain operator must be a string")
		}
		conds = append(conds, Condition{Field: field, Op: op, Value: t[2]})
	}
	return conds, nil
}

// BindDomain substitutes "$name" string values with the corresponding
// dynamic-context variable. A condition whose variable is absent from
// the context is dropped rather than matched against nil.
func BindDomain(conds []Condition, vars map[string]interface{}) []Condition {
	bound := make([]Condition, 0, len(conds))
	for _, c := range conds {
		if s, ok := c.Value.(string); ok && strings.HasPrefix(s, "$") {
			v, present := vars[strings.TrimPrefix(s, "$")]
			if !present {
				continue
			}
			c.Value = v
		}
		bound = append(bound, c)
	}
	return bound
}
