package handlers

import (
	"strings"

	"github.com/docvault/docfs/internal/content"
	"github.com/docvault/docfs/internal/middleware"
	"github.com/docvault/docfs/internal/node"
	"github.com/docvault/docfs/internal/records"
	"github.com/docvault/docfs/internal/storage"
	"github.com/docvault/docfs/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// NodeHandler serves the virtual document tree
type NodeHandler struct {
	DB      *gorm.DB
	Storage *storage.Backend
	Engine  *content.Engine
	Models  *records.Registry
	DBName  string
}

// context builds the request-scoped node context from the fiber request
func (h *NodeHandler) context(c *fiber.Ctx) *node.Context {
	return node.NewContext(h.DB, h.Storage, h.Engine, h.Models, h.DBName,
		middleware.UID(c), middleware.GIDs(c))
}

// nodeBody renders a node as the API metadata shape
func nodeBody(n *node.Node) utils.NodeResponseStruct {
	return utils.NodeResponseStruct{
		Kind:       string(n.Kind),
		Name:       n.Name,
		Path:       node.JoinPath(n.FullPath()),
		Mimetype:   n.Mimetype,
		Size:       n.Size,
		ETag:       n.ETag(),
		Properties: n.DavProperties(),
	}
}

// GetNode handles GET /api/nodes/*
// @Summary Resolve a node
// @Description Resolve a path to node metadata; pass children=1 to list the node's children
// @Tags Nodes
// @Produce json
// @Param path path string true "Node path"
// @Param children query bool false "List children instead of the node itself"
// @Success 200 {object} utils.NodeResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /nodes/{path} [get]
func (h *NodeHandler) GetNode(c *fiber.Ctx) error {
	ctx := h.context(c)
	path := c.Params("*")

	n, err := node.Resolve(ctx, path)
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}

	if c.QueryBool("children") {
		children, err := n.Children()
		if err != nil {
			return utils.CoreErrorResponse(c, err)
		}
		out := make([]utils.NodeResponseStruct, 0, len(children))
		for _, child := range children {
			out = append(out, nodeBody(child))
		}
		return c.Status(fiber.StatusOK).JSON(out)
	}

	return c.Status(fiber.StatusOK).JSON(nodeBody(n))
}

// GetFile handles GET /api/files/*
// @Summary Read file bytes
// @Description Return the raw content of a file or content node
// @Tags Files
// @Produce octet-stream
// @Param path path string true "Node path"
// @Success 200 {string} binary
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 405 {object} utils.ErrorResponseStruct
// @Router /files/{path} [get]
func (h *NodeHandler) GetFile(c *fiber.Ctx) error {
	ctx := h.context(c)

	n, err := node.Resolve(ctx, c.Params("*"))
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	data, err := n.GetData()
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	if n.Mimetype != "" {
		c.Set(fiber.HeaderContentType, n.Mimetype)
	}
	c.Set(fiber.HeaderETag, n.ETag())
	return c.Status(fiber.StatusOK).Send(data)
}

// PutFile handles PUT /api/files/*
// @Summary Write file bytes
// @Description Replace the content of a file node, or invoke the writeback hook of a content node
// @Tags Files
// @Accept octet-stream
// @Produce json
// @Param path path string true "Node path"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 405 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /files/{path} [put]
func (h *NodeHandler) PutFile(c *fiber.Ctx) error {
	ctx := h.context(c)

	n, err := node.Resolve(ctx, c.Params("*"))
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	if err := n.SetData(c.Body()); err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return utils.MutationSuccessResponse(c, node.JoinPath(n.FullPath()), n.ETag())
}

// PostFile handles POST /api/files/*
// @Summary Create a file
// @Description Create a new file under the parent path with the request body as content
// @Tags Files
// @Accept octet-stream
// @Produce json
// @Param path path string true "New file path"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 405 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /files/{path} [post]
func (h *NodeHandler) PostFile(c *fiber.Ctx) error {
	ctx := h.context(c)

	parentPath, name, ok := splitLast(c.Params("*"))
	if !ok {
		return utils.ErrorResponse(c, "file name is required", fiber.StatusBadRequest, "createFile")
	}
	parent, err := node.Resolve(ctx, parentPath)
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	child, err := parent.CreateChildFile(name, c.Body())
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return utils.MutationSuccessResponse(c, node.JoinPath(child.FullPath()), child.ETag())
}

// PostDir handles POST /api/dirs/*
// @Summary Create a directory
// @Description Create a new child directory under the parent path
// @Tags Nodes
// @Produce json
// @Param path path string true "New directory path"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 405 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /dirs/{path} [post]
func (h *NodeHandler) PostDir(c *fiber.Ctx) error {
	ctx := h.context(c)

	parentPath, name, ok := splitLast(c.Params("*"))
	if !ok {
		return utils.ErrorResponse(c, "directory name is required", fiber.StatusBadRequest, "createDir")
	}
	parent, err := node.Resolve(ctx, parentPath)
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	child, err := parent.CreateChildDir(name)
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return utils.MutationSuccessResponse(c, node.JoinPath(child.FullPath()), child.ETag())
}

// splitLast splits a path into parent path and final component
func splitLast(path string) (string, string, bool) {
	parts := node.SplitPath(path)
	if len(parts) == 0 {
		return "", "", false
	}
	return "/" + strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], true
}
