package node

import (
	"log"
	"time"

	"github.com/docvault/docfs/internal/content"
	"github.com/docvault/docfs/internal/models"
	"github.com/docvault/docfs/internal/records"
	"github.com/docvault/docfs/internal/storage"
	"github.com/expr-lang/expr"
	"gorm.io/gorm"
)

// Context carries everything a request needs to materialize nodes:
// collaborators, the acting user and the dynamic variable bag. It is
// request-scoped and never shared across requests.
type Context struct {
	DB      *gorm.DB
	Storage *storage.Backend
	Engine  *content.Engine
	Models  *records.Registry

	// DBName tags etags of the database root.
	DBName string
	UID    uint
	GIDs   []uint
	Lang   string

	// Vars is the dynamic context inherited by every node.
	Vars map[string]interface{}
}

// NewContext creates a request context. The variable bag starts with
// the acting user id under "uid".
func NewContext(db *gorm.DB, st *storage.Backend, eng *content.Engine, reg *records.Registry, dbName string, uid uint, gids []uint) *Context {
	return &Context{
		DB:      db,
		Storage: st,
		Engine:  eng,
		Models:  reg,
		DBName:  dbName,
		UID:     uid,
		GIDs:    gids,
		Vars:    map[string]interface{}{"uid": uid},
	}
}

// Identity returns the acting user for storage access checks.
func (c *Context) Identity() storage.Identity {
	return storage.Identity{UID: c.UID, GIDs: c.GIDs}
}

// extendVars copies the parent variable bag and merges extra entries.
func extendVars(base, extra map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// evalDctx evaluates a directory's dynamic-context expressions against
// the fixed environment. A failing expression is logged and skipped;
// it never aborts enumeration.
func evalDctx(entries []models.DirectoryDctx, env map[string]interface{}) map[string]interface{} {
	if len(entries) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(entries))
	for _, entry := range entries {
		program, err := expr.Compile(entry.Expr, expr.Env(env), expr.AllowUndefinedVariables())
		if err != nil {
			log.Printf("dctx %q on directory %d does not compile: %v", entry.Field, entry.DirectoryID, err)
			continue
		}
		value, err := expr.Run(program, env)
		if err != nil {
			log.Printf("dctx %q on directory %d failed: %v", entry.Field, entry.DirectoryID, err)
			continue
		}
		out[entry.Field] = value
	}
	return out
}

// dctxEnv builds the fixed, enumerated environment a directory dctx
// expression may reference.
func dctxEnv(c *Context, dir *models.Directory, vars map[string]interface{}) map[string]interface{} {
	env := map[string]interface{}{
		"uid":       c.UID,
		"dir_id":    dir.DirectoryID,
		"res_model": dir.ResModel,
		"res_id":    uint(0),
		"active_id": nil,
		"today":     time.Now().Format("2006-01-02"),
	}
	if v, ok := vars["active_id"]; ok {
		env["active_id"] = v
		env["res_id"] = v
	}
	return env
}
