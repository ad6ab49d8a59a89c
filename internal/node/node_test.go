package node_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/docvault/docfs/internal/config"
	"github.com/docvault/docfs/internal/content"
	"github.com/docvault/docfs/internal/models"
	"github.com/docvault/docfs/internal/node"
	"github.com/docvault/docfs/internal/records"
	"github.com/docvault/docfs/internal/registry"
	"github.com/docvault/docfs/internal/storage"
	"github.com/docvault/docfs/internal/types"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type project struct {
	ID       uint `gorm:"primaryKey"`
	Name     string
	Code     string
	ParentID *uint
}

func (project) TableName() string { return "projects" }

type testEnv struct {
	db  *gorm.DB
	ctx *node.Context
}

// setupTree builds a small document tree:
//
//	/docs            static directory
//	/docs/reports    static directory
//	/docs/readme.txt attachment
//	/root.txt        root attachment
//	/projects        resource directory over the projects table
//	    summary.txt  content definition
//	    notes.txt    attachment filed under project 1
func setupTree(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Directory{},
		&models.DirectoryDctx{},
		&models.ContentDefinition{},
		&models.ExtensionType{},
		&models.Attachment{},
		&project{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	db.Create(&models.ExtensionType{Code: ".txt", Mimetype: "text/plain", Active: true})

	st, err := storage.New(db, &config.Config{StorageMethod: models.StoreDB}, storage.TextIndexer)
	if err != nil {
		t.Fatalf("Failed to create storage backend: %v", err)
	}

	eng := content.NewEngine(db)
	eng.RegisterGenerator("project-summary", func(resModel string, resID uint) ([]byte, string, error) {
		return []byte(fmt.Sprintf("project %d report", resID)), "", nil
	})

	reg := records.NewRegistry()
	reg.Register(records.NewTableSource(db, "project.project", "projects", "name", "parent_id"))

	ctx := node.NewContext(db, st, eng, reg, "testdb", 1, []uint{10})

	docs := &models.Directory{Name: "docs", Kind: models.DirKindStatic}
	if err := registry.CreateDirectory(db, docs); err != nil {
		t.Fatalf("Failed to create docs: %v", err)
	}
	if err := registry.CreateDirectory(db, &models.Directory{
		Name: "reports", Kind: models.DirKindStatic, ParentID: &docs.DirectoryID,
	}); err != nil {
		t.Fatalf("Failed to create reports: %v", err)
	}

	projects := &models.Directory{
		Name: "projects", Kind: models.DirKindResource, ResModel: "project.project",
	}
	if err := registry.CreateDirectory(db, projects); err != nil {
		t.Fatalf("Failed to create projects: %v", err)
	}
	if err := registry.CreateContentDefinition(db, &models.ContentDefinition{
		DirectoryID: projects.DirectoryID, Name: "summary",
		Prefix: "summary", Extension: ".txt", Report: "project-summary",
	}); err != nil {
		t.Fatalf("Failed to create content definition: %v", err)
	}

	db.Create(&[]project{
		{ID: 1, Name: "Alpha"},
		{ID: 2, Name: "Beta/Gamma"},
		{ID: 3, Name: ""},
	})

	who := storage.Identity{UID: 1}
	seedFile := func(att *models.Attachment, data string) {
		if err := st.Create(att, []byte(data), who); err != nil {
			t.Fatalf("Failed to create attachment %q: %v", att.Name, err)
		}
	}
	seedFile(&models.Attachment{Name: "root.txt"}, "top level")
	seedFile(&models.Attachment{Name: "readme.txt", ParentID: &docs.DirectoryID}, "read me")
	seedFile(&models.Attachment{
		Name: "notes.txt", ParentID: &projects.DirectoryID,
		ResModel: "project.project", ResID: 1,
	}, "alpha notes")

	return &testEnv{db: db, ctx: ctx}
}

func childNames(t *testing.T, n *node.Node) map[string]node.Kind {
	t.Helper()
	children, err := n.Children()
	if err != nil {
		t.Fatalf("Children failed: %v", err)
	}
	out := make(map[string]node.Kind, len(children))
	for _, c := range children {
		out[c.Name] = c.Kind
	}
	return out
}

func mustResolve(t *testing.T, env *testEnv, path string) *node.Node {
	t.Helper()
	n, err := node.Resolve(env.ctx, path)
	if err != nil {
		t.Fatalf("Failed to resolve %q: %v", path, err)
	}
	return n
}

func TestDatabaseChildren(t *testing.T) {
	env := setupTree(t)

	kinds := childNames(t, node.Root(env.ctx))
	want := map[string]node.Kind{
		"docs":     node.KindDirectory,
		"projects": node.KindResourceDir,
		"root.txt": node.KindFile,
	}
	if len(kinds) != len(want) {
		t.Errorf("Expected %d root children, got %v", len(want), kinds)
	}
	for name, kind := range want {
		if kinds[name] != kind {
			t.Errorf("Expected %q to be %s, got %s", name, kind, kinds[name])
		}
	}
}

func TestDirectoryChildren(t *testing.T) {
	env := setupTree(t)

	kinds := childNames(t, mustResolve(t, env, "/docs"))
	if kinds["reports"] != node.KindDirectory {
		t.Errorf("Expected reports directory, got %v", kinds)
	}
	if kinds["readme.txt"] != node.KindFile {
		t.Errorf("Expected readme.txt file, got %v", kinds)
	}
	if len(kinds) != 2 {
		t.Errorf("Expected 2 children of /docs, got %v", kinds)
	}
}

func TestResourceDirChildren(t *testing.T) {
	env := setupTree(t)

	kinds := childNames(t, mustResolve(t, env, "/projects"))
	if kinds["Alpha"] != node.KindResourceObj {
		t.Errorf("Expected Alpha resource object, got %v", kinds)
	}
	// Reserved characters in the record name are substituted.
	if kinds["Beta__Gamma"] != node.KindResourceObj {
		t.Errorf("Expected Beta__Gamma resource object, got %v", kinds)
	}
	// The unnamed record is not addressable and is skipped.
	if len(kinds) != 2 {
		t.Errorf("Expected 2 children of /projects, got %v", kinds)
	}
}

func TestResourceObjChildren(t *testing.T) {
	env := setupTree(t)

	kinds := childNames(t, mustResolve(t, env, "/projects/Alpha"))
	if kinds["notes.txt"] != node.KindFile {
		t.Errorf("Expected notes.txt file, got %v", kinds)
	}
	if kinds["summary.txt"] != node.KindContent {
		t.Errorf("Expected summary.txt content node, got %v", kinds)
	}

	// Beta/Gamma has no attachment, only the synthesized file.
	kinds = childNames(t, mustResolve(t, env, "/projects/Beta__Gamma"))
	if kinds["summary.txt"] != node.KindContent {
		t.Errorf("Expected summary.txt content node, got %v", kinds)
	}
	if _, ok := kinds["notes.txt"]; ok {
		t.Error("Expected notes.txt to be scoped to project 1")
	}
}

func TestContentNameWinsOverAttachment(t *testing.T) {
	env := setupTree(t)

	// An attachment colliding with a synthesized name is shadowed.
	projects := mustResolve(t, env, "/projects")
	att := &models.Attachment{
		Name: "summary.txt", ParentID: &projects.Dir.DirectoryID,
		ResModel: "project.project", ResID: 1,
	}
	if err := env.ctx.Storage.Create(att, []byte("stored summary"), env.ctx.Identity()); err != nil {
		t.Fatalf("Failed to create attachment: %v", err)
	}

	n := mustResolve(t, env, "/projects/Alpha/summary.txt")
	if n.Kind != node.KindContent {
		t.Errorf("Expected the content node to win, got %s", n.Kind)
	}
}

func TestChildConsistency(t *testing.T) {
	env := setupTree(t)

	for _, path := range []string{"/", "/docs", "/projects", "/projects/Alpha"} {
		parent := mustResolve(t, env, path)
		children, err := parent.Children()
		if err != nil {
			t.Fatalf("Children of %q failed: %v", path, err)
		}
		for _, child := range children {
			got, err := parent.Child(child.Name)
			if err != nil {
				t.Fatalf("Child(%q) under %q failed: %v", child.Name, path, err)
			}
			if got == nil {
				t.Errorf("Child(%q) under %q returned nil for an enumerated child", child.Name, path)
				continue
			}
			if got.Kind != child.Kind || got.Name != child.Name {
				t.Errorf("Child(%q) under %q returned %s/%s, want %s/%s",
					child.Name, path, got.Kind, got.Name, child.Kind, child.Name)
			}
		}
		if got, err := parent.Child("no-such-child"); err != nil || got != nil {
			t.Errorf("Expected nil for a missing child of %q, got %v, %v", path, got, err)
		}
	}
}

func TestFileReadWrite(t *testing.T) {
	env := setupTree(t)

	n := mustResolve(t, env, "/docs/readme.txt")
	data, err := n.GetData()
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if !bytes.Equal(data, []byte("read me")) {
		t.Errorf("Expected %q, got %q", "read me", data)
	}

	if err := n.SetData([]byte("rewritten")); err != nil {
		t.Fatalf("SetData failed: %v", err)
	}
	if n.Size != int64(len("rewritten")) {
		t.Errorf("Expected size to track the write, got %d", n.Size)
	}

	// A fresh resolution sees the new content.
	again := mustResolve(t, env, "/docs/readme.txt")
	data, err = again.GetData()
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if !bytes.Equal(data, []byte("rewritten")) {
		t.Errorf("Expected %q, got %q", "rewritten", data)
	}
}

func TestContentRender(t *testing.T) {
	env := setupTree(t)

	n := mustResolve(t, env, "/projects/Alpha/summary.txt")
	data, err := n.GetData()
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if !bytes.Equal(data, []byte("project 1 report")) {
		t.Errorf("Unexpected render output: %q", data)
	}
	if n.Size != int64(len(data)) {
		t.Errorf("Expected size %d after render, got %d", len(data), n.Size)
	}
	if n.Mimetype != "text/plain" {
		t.Errorf("Expected text/plain from the extension type, got %q", n.Mimetype)
	}

	// Without a writeback hook the node is read-only.
	if err := n.SetData([]byte("x")); !types.IsKind(err, types.KindNotSupported) {
		t.Errorf("Expected not_supported writing a read-only content node, got %v", err)
	}

	// Reading a non-leaf is refused.
	if _, err := mustResolve(t, env, "/docs").GetData(); !types.IsKind(err, types.KindNotSupported) {
		t.Errorf("Expected not_supported reading a directory, got %v", err)
	}
}

func TestCreateChildDir(t *testing.T) {
	env := setupTree(t)

	// Under the root.
	if _, err := node.Root(env.ctx).CreateChildDir("inbox"); err != nil {
		t.Fatalf("Failed to create root directory: %v", err)
	}
	mustResolve(t, env, "/inbox")

	// Under a static directory.
	if _, err := mustResolve(t, env, "/docs").CreateChildDir("archive"); err != nil {
		t.Fatalf("Failed to create nested directory: %v", err)
	}
	mustResolve(t, env, "/docs/archive")

	// Under a resource object the directory is scoped to the record.
	alpha := mustResolve(t, env, "/projects/Alpha")
	if _, err := alpha.CreateChildDir("attachments"); err != nil {
		t.Fatalf("Failed to create record directory: %v", err)
	}
	mustResolve(t, env, "/projects/Alpha/attachments")
	if n, err := mustResolve(t, env, "/projects/Beta__Gamma").Child("attachments"); err != nil || n != nil {
		t.Errorf("Expected record-scoped directory to be invisible elsewhere, got %v, %v", n, err)
	}

	// Not under a file.
	_, err := mustResolve(t, env, "/docs/readme.txt").CreateChildDir("sub")
	if !types.IsKind(err, types.KindNotSupported) {
		t.Errorf("Expected not_supported under a file, got %v", err)
	}
}

func TestCreateChildFile(t *testing.T) {
	env := setupTree(t)

	child, err := mustResolve(t, env, "/docs").CreateChildFile("new.txt", []byte("fresh"))
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	if child.Kind != node.KindFile {
		t.Errorf("Expected a file node, got %s", child.Kind)
	}

	n := mustResolve(t, env, "/docs/new.txt")
	data, err := n.GetData()
	if err != nil {
		t.Fatalf("GetData failed: %v", err)
	}
	if !bytes.Equal(data, []byte("fresh")) {
		t.Errorf("Expected %q, got %q", "fresh", data)
	}

	// Under a resource object the attachment is bound to the record.
	if _, err := mustResolve(t, env, "/projects/Alpha").CreateChildFile("plan.txt", []byte("plan")); err != nil {
		t.Fatalf("Failed to create record file: %v", err)
	}
	fileNode := mustResolve(t, env, "/projects/Alpha/plan.txt")
	if fileNode.Att.ResModel != "project.project" || fileNode.Att.ResID != 1 {
		t.Errorf("Expected record binding, got %s/%d", fileNode.Att.ResModel, fileNode.Att.ResID)
	}
}

func TestResourceDirNameField(t *testing.T) {
	env := setupTree(t)

	env.db.Model(&project{}).Where("id = ?", 1).Update("code", "P-001")
	env.db.Model(&project{}).Where("id = ?", 2).Update("code", "P-002")

	dir := &models.Directory{
		Name: "bycode", Kind: models.DirKindResource, ResModel: "project.project",
		NameField: "code",
	}
	if err := registry.CreateDirectory(env.db, dir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	kinds := childNames(t, mustResolve(t, env, "/bycode"))
	if kinds["P-001"] != node.KindResourceObj || kinds["P-002"] != node.KindResourceObj {
		t.Errorf("Expected records named by their code, got %v", kinds)
	}
	if _, ok := kinds["Alpha"]; ok {
		t.Error("Expected the configured field to replace the default name")
	}
	// The record without a code is not addressable and is skipped.
	if len(kinds) != 2 {
		t.Errorf("Expected 2 children of /bycode, got %v", kinds)
	}

	mustResolve(t, env, "/bycode/P-001")
}

func TestStaticDirectoryDomain(t *testing.T) {
	env := setupTree(t)

	docs := mustResolve(t, env, "/docs")
	if _, err := docs.CreateChildDir("drafts"); err != nil {
		t.Fatalf("Failed to create drafts: %v", err)
	}
	env.db.Model(&models.Directory{}).Where("directory_id = ?", docs.Dir.DirectoryID).
		Update("domain", datatypes.JSON([]byte(`[["name","=","reports"]]`)))

	kinds := childNames(t, mustResolve(t, env, "/docs"))
	if kinds["reports"] != node.KindDirectory {
		t.Errorf("Expected reports to match the domain, got %v", kinds)
	}
	if _, ok := kinds["drafts"]; ok {
		t.Error("Expected the domain to filter out drafts")
	}
	// The domain restricts sub-directories only.
	if kinds["readme.txt"] != node.KindFile {
		t.Errorf("Expected the attachment to stay visible, got %v", kinds)
	}
}

func TestDctxBoundDomain(t *testing.T) {
	env := setupTree(t)

	// A directory whose dctx pins the variable the domain references.
	dir := &models.Directory{
		Name: "mine", Kind: models.DirKindResource, ResModel: "project.project",
		Domain: datatypes.JSON([]byte(`[["name","=","$wanted"]]`)),
		Dctx:   []models.DirectoryDctx{{Field: "wanted", Expr: `"Alpha"`}},
	}
	if err := registry.CreateDirectory(env.db, dir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	kinds := childNames(t, mustResolve(t, env, "/mine"))
	if len(kinds) != 1 || kinds["Alpha"] != node.KindResourceObj {
		t.Errorf("Expected the domain to restrict to Alpha, got %v", kinds)
	}
}

func TestDctxFailureIsSkipped(t *testing.T) {
	env := setupTree(t)

	dir := &models.Directory{
		Name: "broken", Kind: models.DirKindResource, ResModel: "project.project",
		Domain: datatypes.JSON([]byte(`[["name","=","$wanted"]]`)),
		Dctx:   []models.DirectoryDctx{{Field: "wanted", Expr: `1 +`}},
	}
	if err := registry.CreateDirectory(env.db, dir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	// The broken expression leaves $wanted unbound, so the condition is
	// dropped and every named record shows up.
	kinds := childNames(t, mustResolve(t, env, "/broken"))
	if len(kinds) != 2 {
		t.Errorf("Expected the failing dctx to be skipped, got %v", kinds)
	}
}

func TestTreeMode(t *testing.T) {
	env := setupTree(t)

	one := uint(1)
	env.db.Create(&project{ID: 4, Name: "Alpha Child", ParentID: &one})

	dir := &models.Directory{
		Name: "tree", Kind: models.DirKindResource, ResModel: "project.project",
		TreeEnabled: true,
	}
	if err := registry.CreateDirectory(env.db, dir); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	// Top level lists only root records.
	kinds := childNames(t, mustResolve(t, env, "/tree"))
	if len(kinds) != 2 || kinds["Alpha"] != node.KindResourceObj {
		t.Errorf("Expected only root records at the top, got %v", kinds)
	}
	if _, ok := kinds["Alpha Child"]; ok {
		t.Error("Expected child records to be hidden at the top level")
	}

	// The child record appears under its parent.
	kinds = childNames(t, mustResolve(t, env, "/tree/Alpha"))
	if kinds["Alpha Child"] != node.KindResourceObj {
		t.Errorf("Expected Alpha Child under Alpha, got %v", kinds)
	}
}

func TestETags(t *testing.T) {
	env := setupTree(t)

	// The identity part is stable across resolutions.
	first := mustResolve(t, env, "/docs")
	second := mustResolve(t, env, "/docs")
	if first.TypeTag() != second.TypeTag() {
		t.Errorf("Expected stable type tag, got %q and %q", first.TypeTag(), second.TypeTag())
	}

	// Different variants carry distinct tags.
	tags := map[string]bool{}
	for _, path := range []string{"/", "/docs", "/projects", "/projects/Alpha", "/docs/readme.txt", "/projects/Alpha/summary.txt"} {
		tag := mustResolve(t, env, path).TypeTag()
		if tags[tag] {
			t.Errorf("Duplicate type tag %q for %q", tag, path)
		}
		tags[tag] = true
	}

	// The etag combines identity and write time.
	n := mustResolve(t, env, "/docs/readme.txt")
	etag := n.ETag()
	if etag == "" || etag[:len(n.TypeTag())] != n.TypeTag() {
		t.Errorf("Expected etag to start with the type tag, got %q", etag)
	}
}

func TestDavProperties(t *testing.T) {
	env := setupTree(t)

	props := mustResolve(t, env, "/docs").DavProperties()
	if props["resourcetype"] != "collection" {
		t.Errorf("Expected collection resourcetype, got %q", props["resourcetype"])
	}

	props = mustResolve(t, env, "/docs/readme.txt").DavProperties()
	if props["resourcetype"] != "" {
		t.Errorf("Expected empty resourcetype for a file, got %q", props["resourcetype"])
	}
	if props["getcontentlength"] != fmt.Sprint(len("read me")) {
		t.Errorf("Expected content length %d, got %q", len("read me"), props["getcontentlength"])
	}
	if props["getetag"] == "" || props["getlastmodified"] == "" {
		t.Errorf("Expected etag and last-modified, got %v", props)
	}

	// Content nodes render so the reported length is accurate.
	props = mustResolve(t, env, "/projects/Alpha/summary.txt").DavProperties()
	if props["getcontentlength"] != fmt.Sprint(len("project 1 report")) {
		t.Errorf("Expected rendered length, got %q", props["getcontentlength"])
	}
}

func TestCalendarCollectionProperty(t *testing.T) {
	env := setupTree(t)

	env.db.Create(&models.ExtensionType{Code: ".ics", Mimetype: "text/calendar", Active: true})
	projects := mustResolve(t, env, "/projects")
	if err := registry.CreateContentDefinition(env.db, &models.ContentDefinition{
		DirectoryID: projects.Dir.DirectoryID, Name: "calendar",
		Prefix: "calendar", Extension: ".ics", Report: "project-summary",
	}); err != nil {
		t.Fatalf("Failed to create calendar definition: %v", err)
	}

	props := mustResolve(t, env, "/projects/Alpha").DavProperties()
	if props["{http://groupdav.org/}resourcetype"] != "vevent-collection" {
		t.Errorf("Expected groupdav vevent-collection, got %v", props)
	}
}
