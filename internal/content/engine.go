package content

import (
	"sync"

	"github.com/docvault/docfs/internal/models"
	"github.com/docvault/docfs/internal/registry"
	"github.com/docvault/docfs/internal/types"
	"gorm.io/gorm"
)

// Generator renders the bytes of a synthesized file for one record.
// It returns the content and a reported mime type ("" to fall back to
// the extension's registered type).
type Generator func(resModel string, resID uint) ([]byte, string, error)

// Writeback applies bytes written to a synthesized file back to the
// underlying record.
type Writeback func(resModel string, resID uint, data []byte) error

// Engine turns (ContentDefinition, record) pairs into virtual file
// names and byte streams. It is stateless: every render invokes the
// generator again.
type Engine struct {
	db *gorm.DB

	mu         sync.RWMutex
	generators map[string]Generator
	writebacks map[string]Writeback
}

// NewEngine creates a content engine bound to the database (for
// extension mime lookups).
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{
		db:         db,
		generators: make(map[string]Generator),
		writebacks: make(map[string]Writeback),
	}
}

// RegisterGenerator registers a report generator under a key
// referenced by ContentDefinition.Report.
func (e *Engine) RegisterGenerator(key string, g Generator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generators[key] = g
}

// RegisterWriteback registers a writeback hook under a key referenced
// by ContentDefinition.Writeback.
func (e *Engine) RegisterWriteback(key string, w Writeback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writebacks[key] = w
}

// SynthesizeName composes the virtual file name for a definition and
// record. Path separators and other reserved characters in the result
// are substituted.
func SynthesizeName(def *models.ContentDefinition, recordName string) string {
	name := def.Prefix + def.Extension
	if def.IncludeName {
		name = recordName + name
	}
	return registry.SubstituteName(name)
}

// Render produces the bytes and mime type of a synthesized file.
func (e *Engine) Render(def *models.ContentDefinition, resModel string, resID uint) ([]byte, string, error) {
	e.mu.RLock()
	g, ok := e.generators[def.Report]
	e.mu.RUnlock()
	if !ok {
		return nil, "", types.NotSupported("content definition %q has no generator %q", def.Name, def.Report)
	}
	data, mime, err := g(resModel, resID)
	if err != nil {
		return nil, "", types.Internal(err, "report generator %q failed", def.Report)
	}
	if mime == "" {
		mime = e.extensionMime(def.Extension)
	}
	return data, mime, nil
}

// Write delegates to the definition's writeback hook, if any.
func (e *Engine) Write(def *models.ContentDefinition, resModel string, resID uint, data []byte) error {
	if def.Writeback == "" {
		return types.NotSupported("content definition %q is read-only", def.Name)
	}
	e.mu.RLock()
	w, ok := e.writebacks[def.Writeback]
	e.mu.RUnlock()
	if !ok {
		return types.NotSupported("content definition %q has no writeback hook %q", def.Name, def.Writeback)
	}
	if err := w(resModel, resID, data); err != nil {
		return types.Internal(err, "writeback %q failed", def.Writeback)
	}
	return nil
}

// extensionMime returns the registered mime type of an extension code,
// or a generic default.
func (e *Engine) extensionMime(code string) string {
	var ext models.ExtensionType
	if err := e.db.Where("code = ?", code).First(&ext).Error; err != nil || ext.Mimetype == "" {
		return "application/octet-stream"
	}
	return ext.Mimetype
}
