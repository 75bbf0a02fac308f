package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"minimarket/internal/apperrors"
	"minimarket/internal/images"
	"minimarket/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// ImageField is the multipart field carrying a product photo.
const ImageField = "image"

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	productService *services.ProductService
	maxImageBytes  int64
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(productService *services.ProductService) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		maxImageBytes:  images.MaxUploadBytes,
	}
}

// RegisterRoutes registers the product routes.
func (h *ProductHandler) RegisterRoutes(router fiber.Router, mw Middlewares) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/getProducts", mw.public(h.GetAllProducts)...)
	productRoutes.Post("/new", mw.gated(h.CreateProduct)...)
	productRoutes.Put("/update/:id", mw.gated(h.UpdateProduct)...)
	productRoutes.Delete("/delete/:id", mw.gated(h.DeleteProduct)...)
	productRoutes.Get("/:id", mw.public(h.GetProductByID)...)
}

// productRequest accepts both JSON and multipart form bodies.
type productRequest struct {
	Name          *string  `json:"name" form:"name"`
	Description   *string  `json:"description" form:"description"`
	Price         *float64 `json:"price" form:"price"`
	CategoryID    *string  `json:"category_id" form:"category_id"`
	Status        *string  `json:"status" form:"status"`
	StockQuantity *int     `json:"stock_quantity" form:"stock_quantity"`
}

func (r productRequest) patch() services.ProductPatch {
	return services.ProductPatch{
		Name:          r.Name,
		Description:   r.Description,
		Price:         r.Price,
		CategoryID:    r.CategoryID,
		Status:        r.Status,
		StockQuantity: r.StockQuantity,
	}
}

func (r productRequest) input() (services.ProductInput, error) {
	missing := map[string]string{}
	if r.Name == nil {
		missing["name"] = "required"
	}
	if r.Price == nil {
		missing["price"] = "required"
	}
	if r.CategoryID == nil {
		missing["category_id"] = "required"
	}
	if len(missing) > 0 {
		return services.ProductInput{}, apperrors.Validation("Validation failed", missing)
	}
	in := services.ProductInput{
		Name:       *r.Name,
		Price:      *r.Price,
		CategoryID: *r.CategoryID,
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	if r.Status != nil {
		in.Status = *r.Status
	}
	if r.StockQuantity != nil {
		in.StockQuantity = *r.StockQuantity
	}
	return in, nil
}

// GetAllProducts lists every product, newest first.
func (h *ProductHandler) GetAllProducts(c *fiber.Ctx) error {
	products, err := h.productService.GetAllProducts(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "products": products, "count": len(products)})
}

// GetProductByID returns one product.
func (h *ProductHandler) GetProductByID(c *fiber.Ctx) error {
	product, err := h.productService.GetProductByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "product": product})
}

// CreateProduct creates a product from a multipart or JSON body.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	img, err := h.readImage(c)
	if err != nil {
		return err
	}
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}

	product, err := h.productService.CreateProduct(c.UserContext(), in, img)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ok":      true,
		"product": product,
		"msg":     "product created",
	})
}

// UpdateProduct applies a partial update and optionally replaces the image.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	img, err := h.readImage(c)
	if err != nil {
		return err
	}
	var req productRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	product, err := h.productService.UpdateProduct(c.UserContext(), c.Params("id"), req.patch(), img)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"ok":      true,
		"product": product,
		"msg":     "product updated",
	})
}

// DeleteProduct removes a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	if err := h.productService.DeleteProduct(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"ok": true, "msg": "product deleted"})
}

// readImage returns the uploaded image, or nil when the request has none. The
// declared size is checked before any byte is read.
func (h *ProductHandler) readImage(c *fiber.Ctx) (*services.ImageUpload, error) {
	fh, err := c.FormFile(ImageField)
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil
		}
		return nil, apperrors.Validation("invalid multipart body", nil)
	}
	if fh.Size > h.maxImageBytes {
		return nil, apperrors.New(apperrors.KindPayloadTooLarge,
			fmt.Sprintf("image exceeds the %d MiB limit", h.maxImageBytes>>20))
	}
	data, err := readAll(fh, h.maxImageBytes)
	if err != nil {
		return nil, err
	}
	return &services.ImageUpload{ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

func readAll(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.Internal("failed to open uploaded file", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, apperrors.Internal("failed to read uploaded file", err)
	}
	if int64(len(data)) > limit {
		return nil, apperrors.New(apperrors.KindPayloadTooLarge, "image exceeds the upload limit")
	}
	return data, nil
}
