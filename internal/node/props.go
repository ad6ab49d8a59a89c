package node

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/docvault/docfs/internal/registry"
)

// writeTagFormat is the compact timestamp used as the etag write tag.
const writeTagFormat = "20060102150405"

// TypeTag returns the stable per-variant identity part of the etag.
// Two nodes resolving to the same (variant, identity) produce the same
// tag.
func (n *Node) TypeTag() string {
	switch n.Kind {
	case KindDatabase:
		return "db-" + n.Ctx.DBName
	case KindDirectory:
		return fmt.Sprintf("dir-%d", n.Dir.DirectoryID)
	case KindResourceDir:
		return fmt.Sprintf("rdir-%d", n.Dir.DirectoryID)
	case KindResourceObj:
		return fmt.Sprintf("rodir-%d-%d", n.Dir.DirectoryID, n.Record.ID)
	case KindFile:
		return fmt.Sprintf("file-%d", n.Att.AttachmentID)
	case KindContent:
		if n.Record != nil {
			return fmt.Sprintf("cnt-%d-%d", n.Def.ContentID, n.Record.ID)
		}
		return fmt.Sprintf("cnt-%d", n.Def.ContentID)
	default:
		return "node"
	}
}

// ETag identifies (node identity, last write). Synthetic nodes without
// a stored write time use the current time.
func (n *Node) ETag() string {
	write := n.WriteDate
	if write.IsZero() {
		write = time.Now()
	}
	return n.TypeTag() + ":" + write.UTC().Format(writeTagFormat)
}

// DavProperties returns the protocol-visible property map of the node.
// Content nodes render on demand so getcontentlength is accurate.
func (n *Node) DavProperties() map[string]string {
	props := map[string]string{}
	if n.IsLeaf() {
		props["resourcetype"] = ""
		if n.Kind == KindContent && n.rendered == nil {
			// Render so the reported length is accurate; a failing
			// render leaves the size at 0.
			n.GetData()
		}
		props["getcontentlength"] = strconv.FormatInt(n.Size, 10)
	} else {
		props["resourcetype"] = "collection"
		props["getcontentlength"] = "0"
	}

	write := n.WriteDate
	if write.IsZero() {
		write = time.Now()
	}
	props["getlastmodified"] = write.UTC().Format(http.TimeFormat)
	props["getetag"] = n.ETag()

	// Resource objects whose directory carries a calendar content
	// definition advertise themselves as a vevent collection.
	if n.Kind == KindResourceObj && n.hasCalendarContent() {
		props["{http://groupdav.org/}resourcetype"] = "vevent-collection"
	}
	return props
}

func (n *Node) hasCalendarContent() bool {
	defs, err := registry.ContentDefinitionsOf(n.Ctx.DB, n.Dir.DirectoryID)
	if err != nil {
		return false
	}
	for _, def := range defs {
		if def.Extension == ".ics" || def.Extension == ".vcs" {
			return true
		}
	}
	return false
}
