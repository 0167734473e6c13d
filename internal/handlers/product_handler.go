package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"productsapi/internal/repositories"
	"productsapi/internal/services"
	"productsapi/internal/validation"
)

// Response messages.
const (
	msgInvalidID           = "ID no válido"
	msgNameRequired        = "El nombre no puede ir vacio"
	msgPriceRequired       = "El precio no puede ir vacio"
	msgPriceGreaterThan0   = "El Precio debe ser mayor a 0"
	msgInvalidAvailability = "Disponibilidad no valida"
	msgProductNotFound     = "Producto no encontrado"
	msgDeleteFailed        = "Error al borrar producto"
	msgProductDeleted      = "Producto Eliminado"
	msgPriceOutOfRange     = "El precio está fuera de rango"
)

// ProductHandler handles HTTP requests for products.
type ProductHandler struct {
	service   *services.ProductService
	validator *validation.Validator

	getRules    validation.Chain
	createRules validation.Chain
	updateRules validation.Chain
	idRules     validation.Chain
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(service *services.ProductService) *ProductHandler {
	v := validation.New()

	bodyRules := validation.Chain{
		validation.Body("name", v.Tag("required"), msgNameRequired),
		validation.Body("price", v.Tag("numeric"), validation.DefaultMessage),
		validation.Body("price", v.Tag("required"), msgPriceRequired),
		validation.Body("price", validation.GreaterThan(0), msgPriceGreaterThan0),
	}
	idRule := validation.Param("id", v.Tag("integer"), msgInvalidID)

	updateRules := validation.Chain{idRule}
	updateRules = append(updateRules, bodyRules...)
	updateRules = append(updateRules, validation.Body("availability", v.Tag("strictbool"), msgInvalidAvailability))

	return &ProductHandler{
		service:     service,
		validator:   v,
		getRules:    validation.Chain{validation.Param("id", v.Tag("numeric"), msgInvalidID)},
		createRules: bodyRules,
		updateRules: updateRules,
		idRules:     validation.Chain{idRule},
	}
}

// RegisterRoutes registers the product routes with the Fiber app.
func (h *ProductHandler) RegisterRoutes(router fiber.Router) {
	productRoutes := router.Group("/products")
	productRoutes.Get("/", h.HandleGetProducts)
	productRoutes.Get("/:id", h.validator.Middleware(h.getRules), h.HandleGetProductByID)
	productRoutes.Post("/", h.validator.Middleware(h.createRules), h.HandleCreateProduct)
	productRoutes.Put("/:id", h.validator.Middleware(h.updateRules), h.HandleUpdateProduct)
	productRoutes.Patch("/:id", h.validator.Middleware(h.idRules), h.HandleUpdateAvailability)
	productRoutes.Delete("/:id", h.validator.Middleware(h.idRules), h.HandleDeleteProduct)
}

// HandleGetProducts lists every product.
func (h *ProductHandler) HandleGetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetAllProducts(c.UserContext())
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	return c.JSON(fiber.Map{"data": products})
}

// HandleGetProductByID returns a single product.
func (h *ProductHandler) HandleGetProductByID(c *fiber.Ctx) error {
	id, ok := productID(c)
	if !ok {
		return notFound(c, msgProductNotFound)
	}

	product, err := h.service.GetProductByID(c.UserContext(), id)
	if errors.Is(err, repositories.ErrProductNotFound) {
		return notFound(c, msgProductNotFound)
	}
	if err != nil {
		return fmt.Errorf("get product %d: %w", id, err)
	}
	return c.JSON(fiber.Map{"data": product})
}

// HandleCreateProduct creates an available product from name and price.
func (h *ProductHandler) HandleCreateProduct(c *fiber.Ctx) error {
	in := validation.FromContext(c)
	price, err := parsePrice(in)
	if err != nil {
		return err
	}

	product, err := h.service.CreateProduct(c.UserContext(), in.String("name"), price)
	if err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": product})
}

// HandleUpdateProduct overwrites name, price and availability.
func (h *ProductHandler) HandleUpdateProduct(c *fiber.Ctx) error {
	id, ok := productID(c)
	if !ok {
		return notFound(c, msgProductNotFound)
	}

	in := validation.FromContext(c)
	price, err := parsePrice(in)
	if err != nil {
		return err
	}
	availability, err := in.Bool("availability")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	product, err := h.service.UpdateProduct(c.UserContext(), id, in.String("name"), price, availability)
	if errors.Is(err, repositories.ErrProductNotFound) {
		return notFound(c, msgProductNotFound)
	}
	if err != nil {
		return fmt.Errorf("update product %d: %w", id, err)
	}
	return c.JSON(fiber.Map{"data": product})
}

// HandleUpdateAvailability flips the product's availability.
func (h *ProductHandler) HandleUpdateAvailability(c *fiber.Ctx) error {
	id, ok := productID(c)
	if !ok {
		return notFound(c, msgProductNotFound)
	}

	product, err := h.service.ToggleAvailability(c.UserContext(), id)
	if errors.Is(err, repositories.ErrProductNotFound) {
		return notFound(c, msgProductNotFound)
	}
	if err != nil {
		return fmt.Errorf("toggle availability of product %d: %w", id, err)
	}
	return c.JSON(fiber.Map{"data": product})
}

// HandleDeleteProduct removes a product.
func (h *ProductHandler) HandleDeleteProduct(c *fiber.Ctx) error {
	id, ok := productID(c)
	if !ok {
		return notFound(c, msgDeleteFailed)
	}

	err := h.service.DeleteProduct(c.UserContext(), id)
	if errors.Is(err, repositories.ErrProductNotFound) {
		return notFound(c, msgDeleteFailed)
	}
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return c.JSON(fiber.Map{"data": msgProductDeleted})
}

// productID parses the :id segment. Validated ids that cannot name a row
// (negative, fractional) report false.
func productID(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimPrefix(c.Params("id"), "+"), 10, strconv.IntSize)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// parsePrice reads the validated price; numbers beyond float64 are rejected.
func parsePrice(in validation.Input) (float64, error) {
	price, err := in.Float("price")
	if errors.Is(err, validation.ErrOutOfRange) {
		return 0, fiber.NewError(fiber.StatusBadRequest, msgPriceOutOfRange)
	}
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return price, nil
}

func notFound(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": message})
}
