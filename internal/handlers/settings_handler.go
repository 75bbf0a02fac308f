package handlers

import (
	"encoding/json"

	"minimarket/internal/services"

	"github.com/gofiber/fiber/v2"
)

// AppConfigHandler serves the storefront settings.
type AppConfigHandler struct {
	service *services.AppConfigService
}

func NewAppConfigHandler(service *services.AppConfigService) *AppConfigHandler {
	return &AppConfigHandler{service: service}
}

func (h *AppConfigHandler) RegisterRoutes(router fiber.Router, mw Middlewares) {
	configRoutes := router.Group("/app-config")
	configRoutes.Get("/public", mw.public(h.GetConfig)...)
	configRoutes.Get("/", mw.gated(h.GetConfig)...)
	configRoutes.Put("/", mw.gated(h.UpdateConfig)...)
}

func (h *AppConfigHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.service.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "config": cfg})
}

func (h *AppConfigHandler) UpdateConfig(c *fiber.Ctx) error {
	var patch services.AppConfigPatch
	if err := parseBody(c, &patch); err != nil {
		return err
	}
	cfg, err := h.service.Update(c.UserContext(), patch)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "msg": "configuration updated", "config": cfg})
}

// FeaturedHandler serves the curated product lists.
type FeaturedHandler struct {
	service *services.FeaturedService
}

func NewFeaturedHandler(service *services.FeaturedService) *FeaturedHandler {
	return &FeaturedHandler{service: service}
}

func (h *FeaturedHandler) RegisterRoutes(router fiber.Router, mw Middlewares) {
	featuredRoutes := router.Group("/featured-products")
	featuredRoutes.Get("/public", mw.public(h.GetFeatured)...)
	featuredRoutes.Get("/", mw.gated(h.GetFeatured)...)
	featuredRoutes.Post("/", mw.gated(h.SaveFeatured)...)
}

func (h *FeaturedHandler) GetFeatured(c *fiber.Ctx) error {
	featured, err := h.service.Get(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "popular": featured.Popular, "onSale": featured.OnSale})
}

func (h *FeaturedHandler) SaveFeatured(c *fiber.Ctx) error {
	var req struct {
		Popular json.RawMessage `json:"popular"`
		OnSale  json.RawMessage `json:"onSale"`
	}
	if err := parseBody(c, &req); err != nil {
		return err
	}
	featured, err := h.service.Save(c.UserContext(), req.Popular, req.OnSale)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ok":      true,
		"msg":     "featured products saved",
		"popular": featured.Popular,
		"onSale":  featured.OnSale,
	})
}
