package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attachment storage methods.
const (
	StoreDB   = "db"
	StoreFS   = "fs"
	StoreLink = "link"
)

// Attachment represents a stored file, optionally filed under a
// directory and optionally back-referencing an external record.
// Exactly one of DBDatas / StoreFname / LinkURL is populated,
// according to StoreMethod.
type Attachment struct {
	AttachmentID uint   `gorm:"primaryKey;autoIncrement"`
	Name         string `gorm:"size:255;not null;uniqueIndex:idx_att_identity"`
	ParentID     *uint  `gorm:"uniqueIndex:idx_att_identity"`
	ResModel     string `gorm:"size:128;uniqueIndex:idx_att_identity"`
	ResID        uint   `gorm:"uniqueIndex:idx_att_identity"`

	StoreMethod string `gorm:"size:8;not null;default:db"`
	// DBDatas holds the bytes for the db storage method.
	DBDatas []byte `gorm:"type:blob"`
	// StoreFname is the physical path, relative to the storage root,
	// for the fs storage method.
	StoreFname string `gorm:"size:255"`
	LinkURL    string `gorm:"size:1024"`

	FileSize int64
	Mimetype string `gorm:"size:128"`
	// IndexContent is the plain-text excerpt produced by the indexer.
	IndexContent string `gorm:"type:text"`
	// Checksum is the sha1 hex digest of the stored bytes.
	Checksum string `gorm:"size:40"`

	UserID   uint
	GroupIDs datatypes.JSON `gorm:"type:json"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides the table name for Attachment
func (Attachment) TableName() string {
	return "document_attachments"
}
