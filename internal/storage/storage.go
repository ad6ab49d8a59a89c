package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/docvault/docfs/internal/config"
	"github.com/docvault/docfs/internal/models"
	"github.com/docvault/docfs/internal/types"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Indexer extracts a plain-text excerpt from file content. It is best
// effort: failures are logged and ignored, and returning "" is valid.
type Indexer func(data []byte, filename, declaredMime string) (string, error)

// Identity is the acting user for access checks.
type Identity struct {
	UID  uint
	GIDs []uint
}

// Backend persists and retrieves attachment byte content. The db
// method stores bytes in the attachment row, the fs method under a
// configured root with bounded fan-out per subdirectory.
type Backend struct {
	db      *gorm.DB
	method  string
	root    string
	fanout  int
	indexer Indexer
}

// New creates a storage backend from the configuration. The fs root is
// created on first use.
func New(db *gorm.DB, cfg *config.Config, indexer Indexer) (*Backend, error) {
	b := &Backend{
		db:      db,
		method:  cfg.StorageMethod,
		root:    cfg.StorageRoot,
		fanout:  cfg.StorageFanout,
		indexer: indexer,
	}
	if b.fanout <= 0 {
		b.fanout = 4000
	}
	if b.method == models.StoreFS {
		if err := os.MkdirAll(b.root, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create storage root %s: %w", b.root, err)
		}
	}
	return b, nil
}

// Method returns the default storage method for new attachments.
func (b *Backend) Method() string { return b.method }

// Read returns the full content of an attachment.
func (b *Backend) Read(att *models.Attachment, who Identity) ([]byte, error) {
	if err := b.checkAccess(att, who); err != nil {
		return nil, err
	}
	switch att.StoreMethod {
	case models.StoreDB:
		if att.DBDatas == nil {
			return nil, types.NotFound("attachment %d has no stored bytes", att.AttachmentID)
		}
		return att.DBDatas, nil
	case models.StoreFS:
		if att.StoreFname == "" {
			return nil, types.NotFound("attachment %d has no stored file", att.AttachmentID)
		}
		data, err := os.ReadFile(filepath.Join(b.root, att.StoreFname))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, types.NotFound("backing file for attachment %d is missing", att.AttachmentID)
			}
			return nil, types.Internal(err, "failed to read attachment %d", att.AttachmentID)
		}
		return data, nil
	case models.StoreLink:
		return nil, types.NotSupported("attachment %d is a link (%s)", att.AttachmentID, att.LinkURL)
	default:
		return nil, types.Internal(nil, "attachment %d has unknown storage method %q", att.AttachmentID, att.StoreMethod)
	}
}

// Write stores new content for an attachment and updates size,
// checksum, mimetype and the indexed text excerpt. The fs variant
// writes the new physical file before the row pointer is moved, so an
// interrupted write leaves at most an orphan file.
func (b *Backend) Write(att *models.Attachment, data []byte, filename string, who Identity) error {
	if err := b.checkAccess(att, who); err != nil {
		return err
	}
	if att.StoreMethod == "" {
		att.StoreMethod = b.method
	}
	if filename == "" {
		filename = att.Name
	}

	oldFname := att.StoreFname

	switch att.StoreMethod {
	case models.StoreDB:
		att.DBDatas = data
		att.StoreFname = ""
	case models.StoreFS:
		fname, err := b.storePhysical(data)
		if err != nil {
			return err
		}
		att.DBDatas = nil
		att.StoreFname = fname
	case models.StoreLink:
		return types.NotSupported("attachment %d is a link and cannot be written", att.AttachmentID)
	default:
		return types.Internal(nil, "attachment %d has unknown storage method %q", att.AttachmentID, att.StoreMethod)
	}

	att.FileSize = int64(len(data))
	sum := sha1.Sum(data)
	att.Checksum = hex.EncodeToString(sum[:])
	if mt := mimetype.Detect(data); mt != nil {
		att.Mimetype = mt.String()
	}
	b.index(att, data, filename)

	if err := b.db.Save(att).Error; err != nil {
		// Leave the freshly written physical file as an orphan; the
		// row still points at the previous content.
		return types.Internal(err, "failed to update attachment %d", att.AttachmentID)
	}

	if att.StoreMethod == models.StoreFS && oldFname != "" && oldFname != att.StoreFname {
		if err := os.Remove(filepath.Join(b.root, oldFname)); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to unlink replaced file %s: %v", oldFname, err)
		}
	}
	return nil
}

// Create inserts a new attachment row and stores its initial bytes.
func (b *Backend) Create(att *models.Attachment, data []byte, who Identity) error {
	if att.StoreMethod == "" {
		att.StoreMethod = b.method
	}
	if att.UserID == 0 {
		att.UserID = who.UID
	}
	var count int64
	query := b.db.Model(&models.Attachment{}).
		Where("name = ? AND res_model = ? AND res_id = ?", att.Name, att.ResModel, att.ResID)
	if att.ParentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *att.ParentID)
	}
	if err := query.Count(&count).Error; err != nil {
		return types.Internal(err, "uniqueness check failed")
	}
	if count > 0 {
		return types.Validation("attachment %q already exists at this location", att.Name)
	}
	if err := b.db.Create(att).Error; err != nil {
		return types.Internal(err, "failed to create attachment %q", att.Name)
	}
	return b.Write(att, data, att.Name, who)
}

// Delete removes the attachment row, then the stored bytes. Unlink
// failures on the fs variant are logged, not surfaced; a sweeper can
// collect leftovers.
func (b *Backend) Delete(att *models.Attachment) error {
	if err := b.db.Delete(&models.Attachment{}, att.AttachmentID).Error; err != nil {
		return types.Internal(err, "failed to delete attachment %d", att.AttachmentID)
	}
	if att.StoreMethod == models.StoreFS && att.StoreFname != "" {
		if err := os.Remove(filepath.Join(b.root, att.StoreFname)); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("Failed to unlink file %s for attachment %d: %v", att.StoreFname, att.AttachmentID, err)
		}
	}
	att.DBDatas = nil
	att.StoreFname = ""
	return nil
}

// storePhysical writes data under a fresh random name inside a
// subdirectory that still has room, creating a new one when all are
// full. Concurrent creation of the same subdirectory is tolerated.
func (b *Backend) storePhysical(data []byte) (string, error) {
	subdir, err := b.pickSubdir()
	if err != nil {
		return "", err
	}
	fname := uuid.NewString()
	rel := filepath.Join(subdir, fname)
	if err := os.WriteFile(filepath.Join(b.root, rel), data, 0o644); err != nil {
		return "", types.Internal(err, "failed to write storage file %s", rel)
	}
	return rel, nil
}

// pickSubdir returns the first subdirectory under the fan-out limit,
// or creates a new one with a random name.
func (b *Backend) pickSubdir() (string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return "", types.Internal(err, "failed to list storage root")
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		inner, err := os.ReadDir(filepath.Join(b.root, e.Name()))
		if err != nil {
			continue
		}
		if len(inner) < b.fanout {
			return e.Name(), nil
		}
	}
	name := uuid.NewString()[:8]
	if err := os.MkdirAll(filepath.Join(b.root, name), 0o755); err != nil {
		return "", types.Internal(err, "failed to create storage subdirectory %s", name)
	}
	return name, nil
}

// index runs the pluggable text indexer, best effort.
func (b *Backend) index(att *models.Attachment, data []byte, filename string) {
	if b.indexer == nil {
		return
	}
	excerpt, err := b.indexer(data, filename, att.Mimetype)
	if err != nil {
		log.Printf("Indexer failed for attachment %q: %v", att.Name, err)
		return
	}
	att.IndexContent = excerpt
}

// checkAccess enforces the attachment's owner/group restriction. An
// attachment without groups is accessible to everyone; otherwise the
// owner and members of any listed group pass.
func (b *Backend) checkAccess(att *models.Attachment, who Identity) error {
	if len(att.GroupIDs) == 0 {
		return nil
	}
	var groups []uint
	if err := json.Unmarshal(att.GroupIDs, &groups); err != nil || len(groups) == 0 {
		return nil
	}
	if att.UserID != 0 && att.UserID == who.UID {
		return nil
	}
	for _, g := range groups {
		for _, mine := range who.GIDs {
			if g == mine {
				return nil
			}
		}
	}
	return types.AccessDenied("user %d may not access attachment %d", who.UID, att.AttachmentID)
}
