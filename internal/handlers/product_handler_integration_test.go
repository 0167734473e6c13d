package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"productsapi/internal/handlers"
	"productsapi/internal/models"
	"productsapi/internal/repositories"
	"productsapi/internal/server"
	"productsapi/internal/services"
)

const frontendURL = "http://localhost:5173"

func TestMain(m *testing.M) {
	// Keep test output clean.
	zerolog.SetGlobalLevel(zerolog.Disabled)
	m.Run()
}

// setupApp builds the full app over a fresh in-memory SQLite database.
func setupApp(t *testing.T) *fiber.App {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return newApp(t, repositories.NewGORMProductRepository(db))
}

func newApp(t *testing.T, repo repositories.ProductRepository) *fiber.App {
	t.Helper()
	productHandler := handlers.NewProductHandler(services.NewProductService(repo, nil))
	app, err := server.New(server.Options{FrontendURL: frontendURL}, productHandler)
	require.NoError(t, err)
	return app
}

type response struct {
	Status int
	Header http.Header
	Body   map[string]any
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Origin", frontendURL)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := response{Status: resp.StatusCode, Header: resp.Header}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), "body: %s", raw)
	}
	return out
}

func createProduct(t *testing.T, app *fiber.App, name string, price float64) uint {
	t.Helper()
	res := doRequest(t, app, http.MethodPost, "/api/products", map[string]any{"name": name, "price": price})
	require.Equal(t, http.StatusCreated, res.Status)
	return uint(res.Body["data"].(map[string]any)["id"].(float64))
}

func errorCount(res response) int {
	errs, _ := res.Body["errors"].([]any)
	return len(errs)
}

func TestCreateProduct(t *testing.T) {
	app := setupApp(t)

	t.Run("displays validation errors", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPost, "/api/products", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Contains(t, res.Body, "errors")
		assert.Equal(t, 4, errorCount(res))
	})

	t.Run("validates that price is greater than 0", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPost, "/api/products", map[string]any{"name": "Monitor curvo", "price": -500})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		require.Equal(t, 1, errorCount(res))
		first := res.Body["errors"].([]any)[0].(map[string]any)
		assert.Equal(t, "El Precio debe ser mayor a 0", first["msg"])
		assert.Equal(t, "price", first["path"])
		assert.Equal(t, "body", first["location"])
	})

	t.Run("validates that price is a number greater than 0", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPost, "/api/products", map[string]any{"name": "Monitor curvo", "price": "Hola"})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 2, errorCount(res))
	})

	t.Run("creates a new product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPost, "/api/products", map[string]any{"name": "Mouse - testing", "price": 50})
		assert.Equal(t, http.StatusCreated, res.Status)
		require.Contains(t, res.Body, "data")

		data := res.Body["data"].(map[string]any)
		assert.Equal(t, "Mouse - testing", data["name"])
		assert.Equal(t, 50.0, data["price"])
		assert.Equal(t, true, data["availability"])
		assert.NotZero(t, data["id"])
	})

	t.Run("reports a price too large to store as out of range", func(t *testing.T) {
		huge := "1" + strings.Repeat("0", 400)
		res := doRequest(t, app, http.MethodPost, "/api/products", map[string]any{"name": "Monitor curvo", "price": huge})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.NotContains(t, res.Body, "errors")
		assert.Equal(t, "El precio está fuera de rango", res.Body["error"])
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/products", strings.NewReader("{"))
		req.Header.Set("Origin", frontendURL)
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetProducts(t *testing.T) {
	app := setupApp(t)

	res := doRequest(t, app, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Header.Get("Content-Type"), "json")
	assert.Equal(t, []any{}, res.Body["data"])

	createProduct(t, app, "Monitor Curvo", 300)

	res = doRequest(t, app, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Len(t, res.Body["data"], 1)
	assert.NotContains(t, res.Body, "errors")
}

func TestGetProductByID(t *testing.T) {
	app := setupApp(t)
	id := createProduct(t, app, "Monitor Curvo", 300)

	t.Run("returns 404 for a non-existent product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodGet, "/api/products/10000", nil)
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Equal(t, "Producto no encontrado", res.Body["error"])
	})

	t.Run("validates that ID is a number", func(t *testing.T) {
		res := doRequest(t, app, http.MethodGet, "/api/products/not-valid-id", nil)
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 1, errorCount(res))
	})

	t.Run("returns a single product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodGet, fmt.Sprintf("/api/products/%d", id), nil)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, "Monitor Curvo", res.Body["data"].(map[string]any)["name"])
	})

	t.Run("treats a fractional id as not found", func(t *testing.T) {
		res := doRequest(t, app, http.MethodGet, "/api/products/1.5", nil)
		assert.Equal(t, http.StatusNotFound, res.Status)
	})
}

func TestUpdateProduct(t *testing.T) {
	app := setupApp(t)
	id := createProduct(t, app, "Monitor", 300)
	path := fmt.Sprintf("/api/products/%d", id)

	t.Run("validates that ID is a number", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPut, "/api/products/not-valid-id", map[string]any{"name": "Monitor Curvo", "availability": true, "price": 300})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 1, errorCount(res))
	})

	t.Run("displays every validation error", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPut, path, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 5, errorCount(res))
		assert.NotContains(t, res.Body, "data")
	})

	t.Run("counts id and body errors together", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPut, "/api/products/abc", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 6, errorCount(res))
	})

	t.Run("validates that price is greater than 0", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPut, path, map[string]any{"name": "Monitor Curvo", "availability": true, "price": 0})
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 1, errorCount(res))
	})

	t.Run("accepts only true, false, 1 and 0 as availability", func(t *testing.T) {
		for _, value := range []any{"t", "TRUE", "yes", 2} {
			res := doRequest(t, app, http.MethodPut, path, map[string]any{"name": "Monitor", "availability": value, "price": 300})
			assert.Equal(t, http.StatusBadRequest, res.Status, "availability %v", value)
			require.Equal(t, 1, errorCount(res))
			assert.Equal(t, "Disponibilidad no valida", res.Body["errors"].([]any)[0].(map[string]any)["msg"])
		}

		res := doRequest(t, app, http.MethodPut, path, map[string]any{"name": "Monitor", "availability": "0", "price": 300})
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, false, res.Body["data"].(map[string]any)["availability"])
	})

	t.Run("returns 404 for a non-existent product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPut, "/api/products/3000", map[string]any{"name": "Monitor Curvo", "price": 3000, "availability": true})
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Equal(t, "Producto no encontrado", res.Body["error"])
		assert.NotContains(t, res.Body, "data")
	})

	t.Run("updates an existing product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPut, path, map[string]any{"name": "Monitor Curvo", "availability": false, "price": 3000})
		assert.Equal(t, http.StatusOK, res.Status)
		assert.NotContains(t, res.Body, "errors")

		data := res.Body["data"].(map[string]any)
		assert.Equal(t, "Monitor Curvo", data["name"])
		assert.Equal(t, 3000.0, data["price"])
		assert.Equal(t, false, data["availability"])

		res = doRequest(t, app, http.MethodGet, path, nil)
		assert.Equal(t, false, res.Body["data"].(map[string]any)["availability"])
	})
}

func TestUpdateAvailability(t *testing.T) {
	app := setupApp(t)
	id := createProduct(t, app, "Monitor", 300)
	path := fmt.Sprintf("/api/products/%d", id)

	t.Run("returns 404 for a non-existent product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPatch, "/api/products/2000", nil)
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Equal(t, "Producto no encontrado", res.Body["error"])
	})

	t.Run("validates that ID is a number", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPatch, "/api/products/not-valid", nil)
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 1, errorCount(res))
	})

	t.Run("toggles the availability", func(t *testing.T) {
		res := doRequest(t, app, http.MethodPatch, path, nil)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, false, res.Body["data"].(map[string]any)["availability"])

		res = doRequest(t, app, http.MethodPatch, path, nil)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, true, res.Body["data"].(map[string]any)["availability"])
	})
}

func TestDeleteProduct(t *testing.T) {
	app := setupApp(t)
	id := createProduct(t, app, "Monitor", 300)
	path := fmt.Sprintf("/api/products/%d", id)

	t.Run("checks a valid ID", func(t *testing.T) {
		res := doRequest(t, app, http.MethodDelete, "/api/products/not-valid", nil)
		assert.Equal(t, http.StatusBadRequest, res.Status)
		assert.Equal(t, 1, errorCount(res))
	})

	t.Run("returns 404 for a non-existent product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodDelete, "/api/products/2000", nil)
		assert.Equal(t, http.StatusNotFound, res.Status)
		assert.Equal(t, "Error al borrar producto", res.Body["error"])
	})

	t.Run("deletes a product", func(t *testing.T) {
		res := doRequest(t, app, http.MethodDelete, path, nil)
		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, "Producto Eliminado", res.Body["data"])

		res = doRequest(t, app, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, res.Status)
	})
}

func TestCORSRejectsForeignOrigin(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "http://evil.example")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "CORS Error")
}

func TestHealthAndDocs(t *testing.T) {
	app := setupApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	res := doRequest(t, app, http.MethodGet, "/docs", nil)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, res.Body, "paths")
}

// failingRepository simulates a broken database.
type failingRepository struct{}

var errDatabaseDown = errors.New("database down")

func (failingRepository) GetAll(context.Context) ([]models.Product, error) {
	return nil, errDatabaseDown
}
func (failingRepository) GetByID(context.Context, uint) (*models.Product, error) {
	return nil, errDatabaseDown
}
func (failingRepository) Create(context.Context, *models.Product) error { return errDatabaseDown }
func (failingRepository) Update(context.Context, *models.Product) error { return errDatabaseDown }
func (failingRepository) Delete(context.Context, uint) error            { return errDatabaseDown }

func TestPersistenceFailureIsInternalError(t *testing.T) {
	app := newApp(t, failingRepository{})

	res := doRequest(t, app, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Error interno del servidor", res.Body["error"])

	res = doRequest(t, app, http.MethodPost, "/api/products", map[string]any{"name": "Monitor", "price": 10})
	assert.Equal(t, http.StatusInternalServerError, res.Status)
}
