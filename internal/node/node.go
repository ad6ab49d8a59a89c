package node

import (
	"bytes"
	"io"
	"log"
	"time"

	"github.com/docvault/docfs/internal/content"
	"github.com/docvault/docfs/internal/models"
	"github.com/docvault/docfs/internal/records"
	"github.com/docvault/docfs/internal/registry"
	"github.com/docvault/docfs/internal/types"
)

// Kind tags the node variant.
type Kind string

const (
	KindDatabase    Kind = "database"
	KindDirectory   Kind = "directory"
	KindResourceDir Kind = "resource_directory"
	KindResourceObj Kind = "resource_object"
	KindFile        Kind = "file"
	KindContent     Kind = "content"
)

// Node is one transient entry of the virtual document tree. Shared
// fields live on the struct; variant-specific state on the payload
// pointers selected by Kind. Nodes are cheap request-scoped values
// re-creatable from (path, context).
type Node struct {
	Kind   Kind
	Ctx    *Context
	Parent *Node
	Name   string
	Path   []string

	Mimetype  string
	WriteDate time.Time
	Size      int64

	// Vars is the dynamic context at this node, inherited from the
	// parent and optionally extended by the directory's dctx entries.
	Vars map[string]interface{}

	// Dir is set for directory, resource-directory and resource-object
	// nodes (the owning Directory row).
	Dir *models.Directory
	// Record is the projected record of a resource-object node, or the
	// record a content node is bound to (nil for the empty context).
	Record *records.Record
	// Att is the attachment of a file node.
	Att *models.Attachment
	// Def is the content definition of a content node.
	Def *models.ContentDefinition

	rendered []byte // content node render cache, request-scoped
}

// Root returns the database-root node for a context.
func Root(ctx *Context) *Node {
	return &Node{
		Kind: KindDatabase,
		Ctx:  ctx,
		Path: []string{},
		Vars: ctx.Vars,
	}
}

// FullPath returns the name components from the root to this node.
func (n *Node) FullPath() []string {
	return n.Path
}

// IsLeaf reports whether the node is a file or content node.
func (n *Node) IsLeaf() bool {
	return n.Kind == KindFile || n.Kind == KindContent
}

// Children enumerates the node's child nodes. A child that cannot be
// constructed is skipped, never surfaced as an error. Leaves have no
// children.
func (n *Node) Children() ([]*Node, error) {
	switch n.Kind {
	case KindDatabase:
		return n.databaseChildren("")
	case KindDirectory:
		return n.directoryChildren("")
	case KindResourceDir:
		return n.resourceDirChildren("")
	case KindResourceObj:
		return n.resourceObjChildren("")
	default:
		return nil, nil
	}
}

// Child returns the child with the given name, or nil when absent. The
// returned node is always one that Children would also produce.
func (n *Node) Child(name string) (*Node, error) {
	var children []*Node
	var err error
	switch n.Kind {
	case KindDatabase:
		children, err = n.databaseChildren(name)
	case KindDirectory:
		children, err = n.directoryChildren(name)
	case KindResourceDir:
		children, err = n.resourceDirChildren(name)
	case KindResourceObj:
		children, err = n.resourceObjChildren(name)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, nil
}

// databaseChildren lists top-level static directories, top-level
// resource directories without a resource parent model, and root
// attachments.
func (n *Node) databaseChildren(name string) ([]*Node, error) {
	seen := map[string]bool{}
	var out []*Node

	noParentModel := ""
	dirs, err := registry.ChildrenOf(n.Ctx.DB, registry.DirectoryFilter{
		ParentID: nil,
		Name:     name,
		Kind:     models.DirKindStatic,
	})
	if err != nil {
		return nil, err
	}
	resDirs, err := registry.ChildrenOf(n.Ctx.DB, registry.DirectoryFilter{
		ParentID:       nil,
		ParentResModel: &noParentModel,
		Name:           name,
		Kind:           models.DirKindResource,
	})
	if err != nil {
		return nil, err
	}
	for _, dir := range append(dirs, resDirs...) {
		child := n.newDirChild(dir)
		if child != nil && !seen[child.Name] {
			seen[child.Name] = true
			out = append(out, child)
		}
	}

	atts, err := registry.AttachmentsOf(n.Ctx.DB, nil, name, "", 0)
	if err != nil {
		return nil, err
	}
	for _, att := range atts {
		if !seen[att.Name] {
			seen[att.Name] = true
			out = append(out, n.newFileChild(att))
		}
	}
	return out, nil
}

// directoryChildren lists sub-directories filtered by the directory's
// domain, content nodes evaluated against the empty record context,
// and the directory's attachments.
func (n *Node) directoryChildren(name string) ([]*Node, error) {
	seen := map[string]bool{}
	var out []*Node

	conds, err := records.ParseDomain(n.Dir.Domain)
	if err != nil {
		return nil, types.Validation("directory %d: %v", n.Dir.DirectoryID, err)
	}
	conds = records.BindDomain(conds, n.Vars)

	noParentModel := ""
	dirs, err := registry.ChildrenOf(n.Ctx.DB, registry.DirectoryFilter{
		ParentID:       &n.Dir.DirectoryID,
		ParentResModel: &noParentModel,
		Name:           name,
		Conditions:     conds,
	})
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		child := n.newDirChild(dir)
		if child != nil && !seen[child.Name] {
			seen[child.Name] = true
			out = append(out, child)
		}
	}

	defs, err := registry.ContentDefinitionsOf(n.Ctx.DB, n.Dir.DirectoryID)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		child := n.newContentChild(def, nil)
		if (name == "" || child.Name == name) && !seen[child.Name] {
			seen[child.Name] = true
			out = append(out, child)
		}
	}

	atts, err := registry.AttachmentsOf(n.Ctx.DB, &n.Dir.DirectoryID, name, "", 0)
	if err != nil {
		return nil, err
	}
	for _, att := range atts {
		if !seen[att.Name] {
			seen[att.Name] = true
			out = append(out, n.newFileChild(att))
		}
	}
	return out, nil
}

// resourceDirChildren projects the records of the directory's model as
// resource-object nodes. Records without a usable name are skipped.
func (n *Node) resourceDirChildren(name string) ([]*Node, error) {
	recs, err := n.searchRecords(nil)
	if err != nil {
		return nil, err
	}
	var out []*Node
	seen := map[string]bool{}
	for i := range recs {
		child := n.newResObjChild(n.Dir, &recs[i])
		if child == nil {
			continue
		}
		if name != "" && child.Name != name {
			continue
		}
		if seen[child.Name] {
			continue
		}
		seen[child.Name] = true
		out = append(out, child)
	}
	return out, nil
}

// searchRecords runs the projected-model query of a resource
// directory: the stored domain bound to the dynamic context, the
// pinned resource id, and the tree-mode parent restriction.
func (n *Node) searchRecords(parentOf *uint) ([]records.Record, error) {
	src, ok := n.Ctx.Models.Get(n.Dir.ResModel)
	if !ok {
		log.Printf("No source registered for projected model %q", n.Dir.ResModel)
		return nil, nil
	}
	conds, err := records.ParseDomain(n.Dir.Domain)
	if err != nil {
		return nil, types.Validation("directory %d: %v", n.Dir.DirectoryID, err)
	}
	conds = records.BindDomain(conds, n.Vars)
	if n.Dir.ResourceID != 0 {
		conds = append(conds, records.Condition{Field: "id", Op: "=", Value: n.Dir.ResourceID})
	}
	if n.Dir.TreeEnabled && src.ParentField() != "" {
		switch {
		case parentOf != nil:
			conds = append(conds, records.Condition{Field: src.ParentField(), Op: "=", Value: *parentOf})
		case n.Vars["active_id"] != nil:
			conds = append(conds, records.Condition{Field: src.ParentField(), Op: "=", Value: n.Vars["active_id"]})
		default:
			conds = append(conds, records.Condition{Field: src.ParentField(), Op: "=", Value: nil})
		}
	}
	recs, err := src.Search(conds)
	if err != nil {
		return nil, types.Internal(err, "search on %s failed", n.Dir.ResModel)
	}
	return recs, nil
}

// resourceObjChildren lists the specialized sub-directories, the
// resource directories keyed on this model, the record's attachments,
// the directory's content nodes bound to the record, and (in tree
// mode) the record's child records.
func (n *Node) resourceObjChildren(name string) ([]*Node, error) {
	seen := map[string]bool{}
	var out []*Node

	// (a) static sub-directories of the owning directory.
	noParentModel := ""
	dirs, err := registry.ChildrenOf(n.Ctx.DB, registry.DirectoryFilter{
		ParentID:       &n.Dir.DirectoryID,
		ParentResModel: &noParentModel,
		Name:           name,
		Kind:           models.DirKindStatic,
	})
	if err != nil {
		return nil, err
	}
	// (b) resource directories whose parent model is this model,
	// pinned to any record or to this one.
	model := n.Dir.ResModel
	resDirs, err := registry.ChildrenOf(n.Ctx.DB, registry.DirectoryFilter{
		AnyParent:      true,
		ParentResModel: &model,
		ResourceIDs:    []uint{0, n.Record.ID},
		Name:           name,
	})
	if err != nil {
		return nil, err
	}
	for _, dir := range append(dirs, resDirs...) {
		child := n.newDirChild(dir)
		if child != nil && !seen[child.Name] {
			seen[child.Name] = true
			out = append(out, child)
		}
	}

	// (c) content definitions bound to the record. Content names win
	// over attachment names.
	defs, err := registry.ContentDefinitionsOf(n.Ctx.DB, n.Dir.DirectoryID)
	if err != nil {
		return nil, err
	}
	for _, def := range defs {
		child := n.newContentChild(def, n.Record)
		if (name == "" || child.Name == name) && !seen[child.Name] {
			seen[child.Name] = true
			out = append(out, child)
		}
	}

	// (d) attachments of the record filed under the owning directory
	// or at the root.
	for _, parent := range []*uint{&n.Dir.DirectoryID, nil} {
		atts, err := registry.AttachmentsOf(n.Ctx.DB, parent, name, n.Dir.ResModel, n.Record.ID)
		if err != nil {
			return nil, err
		}
		for _, att := range atts {
			if !seen[att.Name] {
				seen[att.Name] = true
				out = append(out, n.newFileChild(att))
			}
		}
	}

	// (e) tree mode: the record's child records.
	if n.Dir.TreeEnabled {
		recs, err := n.searchRecords(&n.Record.ID)
		if err != nil {
			return nil, err
		}
		for i := range recs {
			child := n.newResObjChild(n.Dir, &recs[i])
			if child == nil || (name != "" && child.Name != name) || seen[child.Name] {
				continue
			}
			seen[child.Name] = true
			out = append(out, child)
		}
	}
	return out, nil
}

// newDirChild wraps a directory row as a child node, extending the
// dynamic context with the directory's dctx entries.
func (n *Node) newDirChild(dir models.Directory) *Node {
	d := dir
	kind := KindDirectory
	if d.Kind == models.DirKindResource {
		kind = KindResourceDir
	}
	vars := n.Vars
	if len(d.Dctx) > 0 {
		vars = extendVars(vars, evalDctx(d.Dctx, dctxEnv(n.Ctx, &d, vars)))
	}
	return &Node{
		Kind:      kind,
		Ctx:       n.Ctx,
		Parent:    n,
		Name:      d.Name,
		Path:      appendPath(n.Path, d.Name),
		WriteDate: d.UpdatedAt,
		Vars:      vars,
		Dir:       &d,
	}
}

// newResObjChild wraps one projected record. Records with an empty
// display name cannot be addressed by path and yield nil.
func (n *Node) newResObjChild(dir *models.Directory, rec *records.Record) *Node {
	raw := recordDisplayName(dir, rec)
	if raw == "" {
		return nil
	}
	name := registry.SubstituteName(raw)
	vars := extendVars(n.Vars, map[string]interface{}{"active_id": rec.ID})
	return &Node{
		Kind:   KindResourceObj,
		Ctx:    n.Ctx,
		Parent: n,
		Name:   name,
		Path:   appendPath(n.Path, name),
		Vars:   vars,
		Dir:    dir,
		Record: rec,
	}
}

// recordDisplayName reads the record field the directory is configured
// to show, falling back to the source's own name column when the row
// does not carry that field.
func recordDisplayName(dir *models.Directory, rec *records.Record) string {
	if dir.NameField != "" {
		if v, ok := rec.Fields[dir.NameField]; ok {
			s, _ := v.(string)
			return s
		}
	}
	return rec.Name
}

// newFileChild wraps an attachment row.
func (n *Node) newFileChild(att models.Attachment) *Node {
	a := att
	return &Node{
		Kind:      KindFile,
		Ctx:       n.Ctx,
		Parent:    n,
		Name:      a.Name,
		Path:      appendPath(n.Path, a.Name),
		Mimetype:  a.Mimetype,
		WriteDate: a.UpdatedAt,
		Size:      a.FileSize,
		Vars:      n.Vars,
		Att:       &a,
	}
}

// newContentChild wraps a content definition bound to rec (nil for the
// empty record context).
func (n *Node) newContentChild(def models.ContentDefinition, rec *records.Record) *Node {
	d := def
	recName := ""
	if rec != nil {
		recName = recordDisplayName(n.Dir, rec)
	}
	name := content.SynthesizeName(&d, recName)
	return &Node{
		Kind:   KindContent,
		Ctx:    n.Ctx,
		Parent: n,
		Name:   name,
		Path:   appendPath(n.Path, name),
		Vars:   n.Vars,
		Dir:    n.Dir,
		Record: rec,
		Def:    &d,
	}
}

// Open returns a read handle on a leaf's bytes.
func (n *Node) Open() (io.Reader, error) {
	if !n.IsLeaf() {
		return nil, types.NotSupported("%s node %q cannot be opened", n.Kind, n.Name)
	}
	data, err := n.GetData()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// GetData returns the full bytes of a leaf node. File nodes read from
// the storage backend; content nodes render through the content
// engine.
func (n *Node) GetData() ([]byte, error) {
	switch n.Kind {
	case KindFile:
		return n.Ctx.Storage.Read(n.Att, n.Ctx.Identity())
	case KindContent:
		if n.rendered != nil {
			return n.rendered, nil
		}
		resID := uint(0)
		if n.Record != nil {
			resID = n.Record.ID
		}
		data, mime, err := n.Ctx.Engine.Render(n.Def, n.contentModel(), resID)
		if err != nil {
			return nil, err
		}
		n.rendered = data
		n.Size = int64(len(data))
		if n.Mimetype == "" {
			n.Mimetype = mime
		}
		return data, nil
	default:
		return nil, types.NotSupported("%s node %q has no byte content", n.Kind, n.Name)
	}
}

// SetData replaces the bytes of a leaf node. Content nodes require a
// writeback hook on their definition.
func (n *Node) SetData(data []byte) error {
	switch n.Kind {
	case KindFile:
		if err := n.Ctx.Storage.Write(n.Att, data, n.Name, n.Ctx.Identity()); err != nil {
			return err
		}
		n.Size = n.Att.FileSize
		n.WriteDate = n.Att.UpdatedAt
		n.Mimetype = n.Att.Mimetype
		return nil
	case KindContent:
		resID := uint(0)
		if n.Record != nil {
			resID = n.Record.ID
		}
		if err := n.Ctx.Engine.Write(n.Def, n.contentModel(), resID, data); err != nil {
			return err
		}
		n.rendered = nil
		return nil
	default:
		return types.NotSupported("%s node %q cannot be written", n.Kind, n.Name)
	}
}

// CreateChildDir creates a new child directory under a directory-like
// node.
func (n *Node) CreateChildDir(name string) (*Node, error) {
	dir := &models.Directory{Name: name, Kind: models.DirKindStatic}
	switch n.Kind {
	case KindDatabase:
	case KindDirectory:
		dir.ParentID = &n.Dir.DirectoryID
	case KindResourceObj:
		dir.ParentID = &n.Dir.DirectoryID
		dir.ParentResModel = n.Dir.ResModel
		dir.ResourceID = n.Record.ID
	default:
		return nil, types.NotSupported("cannot create a directory under a %s node", n.Kind)
	}
	if err := registry.CreateDirectory(n.Ctx.DB, dir); err != nil {
		return nil, err
	}
	return n.newDirChild(*dir), nil
}

// CreateChildFile creates a new attachment with initial bytes under a
// directory-like node and returns the file node.
func (n *Node) CreateChildFile(name string, data []byte) (*Node, error) {
	att := &models.Attachment{Name: name}
	switch n.Kind {
	case KindDatabase:
	case KindDirectory:
		att.ParentID = &n.Dir.DirectoryID
	case KindResourceObj:
		att.ParentID = &n.Dir.DirectoryID
		att.ResModel = n.Dir.ResModel
		att.ResID = n.Record.ID
	default:
		return nil, types.NotSupported("cannot create a file under a %s node", n.Kind)
	}
	if err := n.Ctx.Storage.Create(att, data, n.Ctx.Identity()); err != nil {
		return nil, err
	}
	return n.newFileChild(*att), nil
}

// contentModel returns the projected model a content node renders
// against ("" when the definition sits on a static directory).
func (n *Node) contentModel() string {
	if n.Dir != nil {
		return n.Dir.ResModel
	}
	return ""
}

func appendPath(base []string, name string) []string {
	path := make([]string, 0, len(base)+1)
	path = append(path, base...)
	return append(path, name)
}
