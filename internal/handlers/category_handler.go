package handlers

import (
	"net/url"

	"minimarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CategoryHandler handles HTTP requests for categories.
type CategoryHandler struct {
	categoryService *services.CategoryService
}

func NewCategoryHandler(categoryService *services.CategoryService) *CategoryHandler {
	return &CategoryHandler{categoryService: categoryService}
}

func (h *CategoryHandler) RegisterRoutes(router fiber.Router, mw Middlewares) {
	categoryRoutes := router.Group("/categories")
	categoryRoutes.Get("/getCategories", mw.public(h.GetCategories)...)
	categoryRoutes.Post("/new", mw.gated(h.CreateCategory)...)
	categoryRoutes.Put("/update", mw.gated(h.RenameCategory)...)
	categoryRoutes.Delete("/delete/:categoryName", mw.gated(h.DeleteCategory)...)
}

func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.categoryService.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "categories": categories})
}

func (h *CategoryHandler) CreateCategory(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	category, err := h.categoryService.Create(c.UserContext(), req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":       true,
		"category": category,
		"msg":      "category created",
	})
}

func (h *CategoryHandler) RenameCategory(c *fiber.Ctx) error {
	var req struct {
		OldName string `json:"oldName"`
		NewName string `json:"newName"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	category, err := h.categoryService.Rename(c.UserContext(), req.OldName, req.NewName)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ok":       true,
		"category": category,
		"msg":      "category updated",
	})
}

func (h *CategoryHandler) DeleteCategory(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("categoryName"))
	if err != nil {
		name = c.Params("categoryName")
	}
	if err := h.categoryService.Delete(c.UserContext(), name); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "msg": "category deleted"})
}
