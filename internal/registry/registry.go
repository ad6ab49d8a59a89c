package registry

import (
	"errors"
	"log"
	"strings"

	"github.com/docvault/docfs/internal/models"
	"github.com/docvault/docfs/internal/records"
	"github.com/docvault/docfs/internal/types"
	"gorm.io/gorm"
)

// ReservedChars are rejected in directory names and substituted when
// record names are projected into the tree.
const ReservedChars = `/\*|:"<>?`

// MaxDepth bounds the parent chain of the directory tree.
const MaxDepth = 100

// CheckName validates a directory or content-definition name.
func CheckName(name string) error {
	if name == "" {
		return types.Validation("name must not be empty")
	}
	if strings.ContainsAny(name, ReservedChars) {
		return types.Validation("name %q contains a reserved character (one of %s)", name, ReservedChars)
	}
	return nil
}

// SubstituteName replaces reserved characters in a projected record
// name so the result is addressable as a path component. The path
// separator maps to "__", the remaining reserved characters to "_".
func SubstituteName(name string) string {
	name = strings.ReplaceAll(name, "/", "__")
	for _, c := range `\*|:"<>?` {
		name = strings.ReplaceAll(name, string(c), "_")
	}
	return name
}

// DirectoryFilter selects directories for ChildrenOf.
type DirectoryFilter struct {
	// ParentID filters on the parent directory; nil matches root-level
	// directories unless AnyParent is set.
	ParentID  *uint
	AnyParent bool
	// ParentResModel filters on the resource-parent model; nil skips
	// the filter, a pointer to "" matches directories without one.
	ParentResModel *string
	// ResourceIDs restricts to directories pinned to one of the given
	// record ids (0 meaning "not pinned"); nil skips the filter.
	ResourceIDs []uint
	Name        string
	Kind        string
	// Conditions are extra domain conditions over directory columns,
	// already bound to the dynamic context.
	Conditions []records.Condition
}

// CreateDirectory validates and inserts a directory.
func CreateDirectory(db *gorm.DB, dir *models.Directory) error {
	if err := validateDirectory(db, dir, 0); err != nil {
		return err
	}
	if err := db.Create(dir).Error; err != nil {
		return types.Internal(err, "failed to create directory %q", dir.Name)
	}
	return nil
}

// UpdateDirectory validates and persists changes to an existing
// directory. The passed value must carry the directory id.
func UpdateDirectory(db *gorm.DB, dir *models.Directory) error {
	if dir.DirectoryID == 0 {
		return types.Validation("directory id is required for update")
	}
	var existing models.Directory
	if err := db.First(&existing, dir.DirectoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFound("directory %d does not exist", dir.DirectoryID)
		}
		return types.Internal(err, "failed to load directory %d", dir.DirectoryID)
	}
	if err := validateDirectory(db, dir, dir.DirectoryID); err != nil {
		return err
	}
	if existing.Kind != dir.Kind {
		var count int64
		if err := db.Model(&models.Directory{}).Where("parent_id = ?", dir.DirectoryID).Count(&count).Error; err != nil {
			return types.Internal(err, "failed to count children of directory %d", dir.DirectoryID)
		}
		if count == 0 {
			if err := db.Model(&models.Attachment{}).Where("parent_id = ?", dir.DirectoryID).Count(&count).Error; err != nil {
				return types.Internal(err, "failed to count attachments of directory %d", dir.DirectoryID)
			}
		}
		if count > 0 {
			return types.Validation("directory %d is not empty, its kind cannot change", dir.DirectoryID)
		}
	}
	if err := db.Save(dir).Error; err != nil {
		return types.Internal(err, "failed to update directory %d", dir.DirectoryID)
	}
	return nil
}

// DeleteDirectory removes a directory that has no children, no
// attachments and no content definitions.
func DeleteDirectory(db *gorm.DB, id uint) error {
	var count int64
	if err := db.Model(&models.Directory{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
		return types.Internal(err, "failed to count children of directory %d", id)
	}
	if count > 0 {
		return types.InUse("directory %d still has %d child directories", id, count)
	}
	if err := db.Model(&models.Attachment{}).Where("parent_id = ?", id).Count(&count).Error; err != nil {
		return types.Internal(err, "failed to count attachments of directory %d", id)
	}
	if count > 0 {
		return types.InUse("directory %d still has %d attachments", id, count)
	}
	if err := db.Model(&models.ContentDefinition{}).Where("directory_id = ?", id).Count(&count).Error; err != nil {
		return types.Internal(err, "failed to count content definitions of directory %d", id)
	}
	if count > 0 {
		return types.InUse("directory %d still has %d content definitions", id, count)
	}

	result := db.Delete(&models.Directory{}, id)
	if result.Error != nil {
		return types.Internal(result.Error, "failed to delete directory %d", id)
	}
	if result.RowsAffected == 0 {
		return types.NotFound("directory %d does not exist", id)
	}
	// Dctx entries go with their directory.
	if err := db.Where("directory_id = ?", id).Delete(&models.DirectoryDctx{}).Error; err != nil {
		log.Printf("Failed to delete dctx entries of directory %d: %v", id, err)
	}
	return nil
}

// ChildrenOf returns the directories matching the filter, ordered by
// name then id for a stable result within a call.
func ChildrenOf(db *gorm.DB, f DirectoryFilter) ([]models.Directory, error) {
	query := db.Model(&models.Directory{}).Preload("Dctx")
	if !f.AnyParent {
		if f.ParentID == nil {
			query = query.Where("parent_id IS NULL")
		} else {
			query = query.Where("parent_id = ?", *f.ParentID)
		}
	}
	if f.ParentResModel != nil {
		if *f.ParentResModel == "" {
			query = query.Where("(parent_res_model = '' OR parent_res_model IS NULL)")
		} else {
			query = query.Where("parent_res_model = ?", *f.ParentResModel)
		}
	}
	if f.ResourceIDs != nil {
		query = query.Where("resource_id IN ?", f.ResourceIDs)
	}
	if f.Name != "" {
		query = query.Where("name = ?", f.Name)
	}
	if f.Kind != "" {
		query = query.Where("kind = ?", f.Kind)
	}
	for _, c := range f.Conditions {
		clause, arg, err := records.BuildClause(c)
		if err != nil {
			return nil, types.Validation("directory domain: %v", err)
		}
		if arg == nil {
			query = query.Where(clause)
		} else {
			query = query.Where(clause, arg)
		}
	}

	var dirs []models.Directory
	if err := query.Order("name, directory_id").Find(&dirs).Error; err != nil {
		return nil, types.Internal(err, "directory query failed")
	}
	return dirs, nil
}

// AttachmentsOf returns attachments matching the given location.
// parentID nil matches root-level attachments.
func AttachmentsOf(db *gorm.DB, parentID *uint, name, resModel string, resID uint) ([]models.Attachment, error) {
	query := db.Model(&models.Attachment{})
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	query = query.Where("res_model = ? AND res_id = ?", resModel, resID)
	if name != "" {
		query = query.Where("name = ?", name)
	}

	var atts []models.Attachment
	if err := query.Order("name, attachment_id").Find(&atts).Error; err != nil {
		return nil, types.Internal(err, "attachment query failed")
	}
	return atts, nil
}

// ContentDefinitionsOf returns the content definitions of a directory
// in their declared order.
func ContentDefinitionsOf(db *gorm.DB, directoryID uint) ([]models.ContentDefinition, error) {
	var defs []models.ContentDefinition
	if err := db.Where("directory_id = ?", directoryID).
		Order("sequence, content_id").Find(&defs).Error; err != nil {
		return nil, types.Internal(err, "content definition query failed")
	}
	return defs, nil
}

// CreateContentDefinition validates and inserts a content definition.
// The extension must reference an active extension type.
func CreateContentDefinition(db *gorm.DB, def *models.ContentDefinition) error {
	if err := CheckName(def.Name); err != nil {
		return err
	}
	var ext models.ExtensionType
	err := db.Where("code = ? AND active = ?", def.Extension, true).First(&ext).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.Validation("extension %q is not an active extension type", def.Extension)
		}
		return types.Internal(err, "extension lookup failed")
	}
	var dir models.Directory
	if err := db.First(&dir, def.DirectoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NotFound("directory %d does not exist", def.DirectoryID)
		}
		return types.Internal(err, "directory lookup failed")
	}
	if err := db.Create(def).Error; err != nil {
		return types.Internal(err, "failed to create content definition %q", def.Name)
	}
	return nil
}

// ResolveFullPath returns the name components from the root to the
// directory. When resModel/resID name a record, its display name is
// appended (with reserved characters substituted).
func ResolveFullPath(db *gorm.DB, reg *records.Registry, directoryID uint, resModel string, resID uint) ([]string, error) {
	var names []string
	var target models.Directory
	id := directoryID
	for depth := 0; ; depth++ {
		if depth >= MaxDepth {
			return nil, types.Validation("directory %d exceeds the maximum tree depth of %d", directoryID, MaxDepth)
		}
		var dir models.Directory
		if err := db.First(&dir, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, types.NotFound("directory %d does not exist", id)
			}
			return nil, types.Internal(err, "failed to load directory %d", id)
		}
		if depth == 0 {
			target = dir
		}
		names = append([]string{dir.Name}, names...)
		if dir.ParentID == nil {
			break
		}
		id = *dir.ParentID
	}

	if resModel != "" && resID != 0 && reg != nil {
		if src, ok := reg.Get(resModel); ok {
			rec, err := src.ByID(resID)
			if err != nil {
				return nil, types.Internal(err, "record lookup on %s failed", resModel)
			}
			if rec != nil {
				display := rec.Name
				// The target directory picks the field shown as the
				// record name.
				if target.NameField != "" {
					if v, ok := rec.Fields[target.NameField]; ok {
						display, _ = v.(string)
					}
				}
				if display != "" {
					names = append(names, SubstituteName(display))
				}
			}
		}
	}
	return names, nil
}

// validateDirectory enforces the directory invariants shared between
// create and update. selfID is non-zero on update so the row does not
// collide with itself.
func validateDirectory(db *gorm.DB, dir *models.Directory, selfID uint) error {
	if err := CheckName(dir.Name); err != nil {
		return err
	}
	switch dir.Kind {
	case models.DirKindStatic:
		if dir.ResModel != "" {
			return types.Validation("static directory %q may not reference a projected model", dir.Name)
		}
	case models.DirKindResource:
		if dir.ResModel == "" {
			return types.Validation("resource directory %q must reference a projected model", dir.Name)
		}
	default:
		return types.Validation("unknown directory kind %q", dir.Kind)
	}

	// Uniqueness over (name, parent, parent-res-model, resource-id).
	query := db.Model(&models.Directory{}).
		Where("name = ? AND parent_res_model = ? AND resource_id = ?",
			dir.Name, dir.ParentResModel, dir.ResourceID)
	if dir.ParentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *dir.ParentID)
	}
	if selfID != 0 {
		query = query.Where("directory_id != ?", selfID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return types.Internal(err, "uniqueness check failed")
	}
	if count > 0 {
		return types.Validation("directory %q already exists at this location", dir.Name)
	}

	// Cycle and depth check on the parent chain.
	if dir.ParentID != nil {
		seen := map[uint]bool{}
		if selfID != 0 {
			seen[selfID] = true
		}
		id := *dir.ParentID
		for depth := 1; ; depth++ {
			if depth >= MaxDepth {
				return types.Validation("directory %q would exceed the maximum tree depth of %d", dir.Name, MaxDepth)
			}
			if seen[id] {
				return types.Validation("directory %q would create a cycle in the tree", dir.Name)
			}
			seen[id] = true
			var parent models.Directory
			if err := db.First(&parent, id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return types.Validation("parent directory %d does not exist", id)
				}
				return types.Internal(err, "failed to load parent directory %d", id)
			}
			if parent.ParentID == nil {
				break
			}
			id = *parent.ParentID
		}
	}
	return nil
}
