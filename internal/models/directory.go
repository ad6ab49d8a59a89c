package models

import (
	"time"

	"gorm.io/datatypes"
)

// Directory kinds.
const (
	DirKindStatic   = "static"
	DirKindResource = "resource"
)

// Directory represents one named collection in the virtual filesystem.
// Static directories hold sub-directories, attachments and content
// definitions. Resource directories project the records of an external
// model as virtual sub-directories.
type Directory struct {
	DirectoryID uint   `gorm:"primaryKey;autoIncrement"`
	Name        string `gorm:"size:255;not null;uniqueIndex:idx_dir_identity"`
	Kind        string `gorm:"size:16;not null;default:static"`
	ParentID    *uint  `gorm:"uniqueIndex:idx_dir_identity"`

	// ResModel is the projected model of a resource directory.
	ResModel string `gorm:"size:128"`
	// ParentResModel scopes this directory to resource-object nodes of
	// the given model instead of the plain directory tree.
	ParentResModel string `gorm:"size:128;uniqueIndex:idx_dir_identity"`
	// ResourceID pins a resource directory to one specific record;
	// zero means any record.
	ResourceID uint `gorm:"uniqueIndex:idx_dir_identity"`

	// TreeEnabled restricts resource enumeration to records whose
	// parent field equals the current resource.
	TreeEnabled bool

	// Domain is a JSON list of [field, operator, value] conditions
	// applied to the projected model. String values may reference
	// dynamic-context variables as "$name".
	Domain datatypes.JSON `gorm:"type:json"`

	// NameField is the record field used as the child node name.
	NameField string `gorm:"size:64;default:name"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Dctx        []DirectoryDctx     `gorm:"foreignKey:DirectoryID"`
	Definitions []ContentDefinition `gorm:"foreignKey:DirectoryID"`
}

// DirectoryDctx is one dynamic-context entry of a directory: an
// expression evaluated per request and exposed to child nodes under
// Field.
type DirectoryDctx struct {
	DctxID      uint   `gorm:"primaryKey;autoIncrement"`
	DirectoryID uint   `gorm:"index;not null"`
	Field       string `gorm:"size:64;not null"`
	Expr        string `gorm:"size:512;not null"`
}

// ContentDefinition synthesizes a virtual file from a record by
// invoking a registered report generator.
type ContentDefinition struct {
	ContentID   uint   `gorm:"primaryKey;autoIncrement"`
	DirectoryID uint   `gorm:"index;not null"`
	Name        string `gorm:"size:255;not null"`
	// Prefix is appended to the record name (or used alone) when the
	// virtual file name is composed.
	Prefix    string `gorm:"size:64"`
	Extension string `gorm:"size:16;not null"`
	// IncludeName prepends the record's display name to the file name.
	IncludeName bool
	// Report is the key of the registered report generator.
	Report string `gorm:"size:128"`
	// Writeback is the key of the registered writeback hook; empty
	// means the synthesized file is read-only.
	Writeback string `gorm:"size:128"`
	Sequence  int    `gorm:"default:10"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ExtensionType is one allowed virtual-file extension.
type ExtensionType struct {
	Code     string `gorm:"primaryKey;size:16"`
	Mimetype string `gorm:"size:128"`
	Active   bool   `gorm:"default:true"`
}

// TableName overrides the table name for Directory
func (Directory) TableName() string {
	return "document_directories"
}

// TableName overrides the table name for DirectoryDctx
func (DirectoryDctx) TableName() string {
	return "document_directory_dctx"
}

// TableName overrides the table name for ContentDefinition
func (ContentDefinition) TableName() string {
	return "document_directory_contents"
}

// TableName overrides the table name for ExtensionType
func (ExtensionType) TableName() string {
	return "document_content_types"
}
