package handlers

import (
	"github.com/docvault/docfs/internal/models"
	"github.com/docvault/docfs/internal/records"
	"github.com/docvault/docfs/internal/registry"
	"github.com/docvault/docfs/internal/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminHandler exposes the directory registry administration routes
type AdminHandler struct {
	DB     *gorm.DB
	Models *records.Registry
}

// DirectoryInput is the request body for directory create/update
type DirectoryInput struct {
	Name           string         `json:"name"`
	Kind           string         `json:"kind"`
	ParentID       *uint          `json:"parentId,omitempty"`
	ResModel       string         `json:"resModel,omitempty"`
	ParentResModel string         `json:"parentResModel,omitempty"`
	ResourceID     uint           `json:"resourceId,omitempty"`
	TreeEnabled    bool           `json:"treeEnabled,omitempty"`
	Domain         datatypes.JSON `json:"domain,omitempty"`
	NameField      string         `json:"nameField,omitempty"`
}

// ContentDefinitionInput is the request body for content definition create
type ContentDefinitionInput struct {
	DirectoryID uint   `json:"directoryId"`
	Name        string `json:"name"`
	Prefix      string `json:"prefix,omitempty"`
	Extension   string `json:"extension"`
	IncludeName bool   `json:"includeName,omitempty"`
	Report      string `json:"report"`
	Writeback   string `json:"writeback,omitempty"`
	Sequence    int    `json:"sequence,omitempty"`
}

func (in *DirectoryInput) toModel() *models.Directory {
	kind := in.Kind
	if kind == "" {
		kind = models.DirKindStatic
	}
	return &models.Directory{
		Name:           in.Name,
		Kind:           kind,
		ParentID:       in.ParentID,
		ResModel:       in.ResModel,
		ParentResModel: in.ParentResModel,
		ResourceID:     in.ResourceID,
		TreeEnabled:    in.TreeEnabled,
		Domain:         in.Domain,
		NameField:      in.NameField,
	}
}

// CreateDirectory handles POST /api/admin/directories
// @Summary Create a directory
// @Tags Admin
// @Accept json
// @Produce json
// @Param directory body DirectoryInput true "Directory"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/directories [post]
func (h *AdminHandler) CreateDirectory(c *fiber.Ctx) error {
	var in DirectoryInput
	if err := c.BodyParser(&in); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "createDirectory")
	}
	dir := in.toModel()
	if err := registry.CreateDirectory(h.DB, dir); err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":          true,
		"directoryId": dir.DirectoryID,
	})
}

// UpdateDirectory handles PUT /api/admin/directories/:id
// @Summary Update a directory
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path int true "Directory ID"
// @Param directory body DirectoryInput true "Directory"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/directories/{id} [put]
func (h *AdminHandler) UpdateDirectory(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.ErrorResponse(c, "invalid directory id", fiber.StatusBadRequest, "updateDirectory")
	}
	var in DirectoryInput
	if err := c.BodyParser(&in); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "updateDirectory")
	}
	dir := in.toModel()
	dir.DirectoryID = uint(id)
	if err := registry.UpdateDirectory(h.DB, dir); err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// DeleteDirectory handles DELETE /api/admin/directories/:id
// @Summary Delete a directory
// @Tags Admin
// @Produce json
// @Param id path int true "Directory ID"
// @Success 200 {object} map[string]interface{}
// @Failure 409 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/directories/{id} [delete]
func (h *AdminHandler) DeleteDirectory(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.ErrorResponse(c, "invalid directory id", fiber.StatusBadRequest, "deleteDirectory")
	}
	if err := registry.DeleteDirectory(h.DB, uint(id)); err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true})
}

// GetDirectoryPath handles GET /api/admin/directories/:id/path
// @Summary Resolve a directory's full path
// @Tags Admin
// @Produce json
// @Param id path int true "Directory ID"
// @Param resModel query string false "Record model to append"
// @Param resId query int false "Record id to append"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/directories/{id}/path [get]
func (h *AdminHandler) GetDirectoryPath(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return utils.ErrorResponse(c, "invalid directory id", fiber.StatusBadRequest, "directoryPath")
	}
	names, err := registry.ResolveFullPath(h.DB, h.Models, uint(id),
		c.Query("resModel"), uint(c.QueryInt("resId")))
	if err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"path": names})
}

// CreateContentDefinition handles POST /api/admin/contents
// @Summary Create a content definition
// @Tags Admin
// @Accept json
// @Produce json
// @Param content body ContentDefinitionInput true "Content definition"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Security CookieAuth
// @Router /admin/contents [post]
func (h *AdminHandler) CreateContentDefinition(c *fiber.Ctx) error {
	var in ContentDefinitionInput
	if err := c.BodyParser(&in); err != nil {
		return utils.ErrorResponse(c, "invalid request body", fiber.StatusBadRequest, "createContent")
	}
	def := &models.ContentDefinition{
		DirectoryID: in.DirectoryID,
		Name:        in.Name,
		Prefix:      in.Prefix,
		Extension:   in.Extension,
		IncludeName: in.IncludeName,
		Report:      in.Report,
		Writeback:   in.Writeback,
		Sequence:    in.Sequence,
	}
	if err := registry.CreateContentDefinition(h.DB, def); err != nil {
		return utils.CoreErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":        true,
		"contentId": def.ContentID,
	})
}
