package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"candle-shop/middleware"
	"candle-shop/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func setupProductTest(t *testing.T) (*ProductHandler, sqlmock.Sqlmock, *gin.Engine) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	handler := NewProductHandler(db, nil, logger)

	router := newRouter(t)
	router.GET("/products", handler.GetProducts)
	router.GET("/products/featured", handler.GetFeatured)
	router.GET("/products/:id", handler.GetProduct)

	authed := router.Group("/products", middleware.RequireAuth(testTokens))
	authed.POST("/:id/reviews", handler.CreateReview)
	authed.POST("", middleware.RequireAdmin(), handler.CreateProduct)
	authed.PUT("/:id", middleware.RequireAdmin(), handler.UpdateProduct)
	authed.DELETE("/:id", middleware.RequireAdmin(), handler.DeleteProduct)

	return handler, mock, router
}

func productRows() *sqlmock.Rows {
	return sqlmock.NewRows(strings.Split(productColumns, ", "))
}

func addProduct(rows *sqlmock.Rows, id int, name string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, name, "Hand poured soy wax", 24.5, "{/img/a.jpg,/img/b.jpg}", "scented", "lavender",
		10, 4.5, 2, true, 10.0, 8.0, 0.4, 40, now, now)
}

func validInput() models.ProductInput {
	return models.ProductInput{
		Name:        "Lavender Jar",
		Description: "Hand poured soy wax",
		Price:       24.5,
		Images:      []string{"/img/a.jpg"},
		Category:    models.CategoryScented,
		Scent:       "lavender",
		Stock:       10,
		BurnTime:    40,
	}
}

func TestProductHandler_GetProducts_FiltersAndPaginates(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM products WHERE name ILIKE \\$1 ESCAPE (.+) AND category = \\$2 AND price >= \\$3").
		WithArgs("%lav%", "scented", 10.0).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(13))
	mock.ExpectQuery("SELECT (.+) FROM products WHERE (.+) ORDER BY created_at DESC, id DESC LIMIT \\$4 OFFSET \\$5").
		WithArgs("%lav%", "scented", 10.0, ProductPageSize, ProductPageSize).
		WillReturnRows(addProduct(productRows(), 13, "Lavender Jar"))

	w := doRequest(router, "GET", "/products?keyword=lav&category=scented&minPrice=10&page=2", nil, "")

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
	}
	env := decodeEnvelope(t, w)
	if env.Page != 2 || env.Pages != 2 || env.Total != 13 {
		t.Errorf("Unexpected pagination: page=%d pages=%d total=%d", env.Page, env.Pages, env.Total)
	}

	var products []models.Product
	if err := json.Unmarshal(env.Data, &products); err != nil {
		t.Fatalf("Failed to decode products: %v", err)
	}
	if len(products) != 1 || len(products[0].Images) != 2 {
		t.Errorf("Unexpected products: %+v", products)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestWhereClause_EscapesLikeWildcards(t *testing.T) {
	where, args := whereClause(models.ProductFilter{Keyword: `50%_off\`, Scent: "v_nilla"})

	if want := ` WHERE name ILIKE $1 ESCAPE '\' AND scent ILIKE $2 ESCAPE '\'`; where != want {
		t.Errorf("Expected %q, got %q", want, where)
	}
	if len(args) != 2 || args[0] != `%50\%\_off\\%` || args[1] != `v\_nilla` {
		t.Errorf("Unexpected args: %q", args)
	}
}

func TestProductHandler_GetProducts_InvalidQuery(t *testing.T) {
	_, _, router := setupProductTest(t)

	for _, query := range []string{"?category=beeswax", "?page=0", "?maxPrice=cheap"} {
		w := doRequest(router, "GET", "/products"+query, nil, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status %d, got %d", query, http.StatusBadRequest, w.Code)
		}
	}
}

func TestProductHandler_GetFeatured(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectQuery("SELECT (.+) FROM products WHERE featured = TRUE ORDER BY created_at DESC, id DESC LIMIT \\$1").
		WithArgs(6).
		WillReturnRows(addProduct(productRows(), 1, "Lavender Jar"))

	w := doRequest(router, "GET", "/products/featured", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestProductHandler_GetProduct(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
		WithArgs(1).
		WillReturnRows(addProduct(productRows(), 1, "Lavender Jar"))
	mock.ExpectQuery("SELECT (.+) FROM reviews WHERE product_id = \\$1").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "user_id", "name", "rating", "comment", "created_at"}).
			AddRow(1, 1, 2, "Ravi", 5, "Lovely", time.Now()))

	w := doRequest(router, "GET", "/products/1", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	var product models.Product
	json.Unmarshal(decodeEnvelope(t, w).Data, &product)
	if product.Scent != "lavender" || len(product.Reviews) != 1 {
		t.Errorf("Unexpected product: %+v", product)
	}
}

func TestProductHandler_GetProduct_NotFound(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
		WithArgs(999).
		WillReturnRows(productRows())

	w := doRequest(router, "GET", "/products/999", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}

	w = doRequest(router, "GET", "/products/abc", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}

func TestProductHandler_GetProduct_CircuitOpen(t *testing.T) {
	handler, mock, router := setupProductTest(t)
	core, logs := observer.New(zapcore.WarnLevel)
	handler.logger = zap.New(core)

	for i := 0; i < 5; i++ {
		mock.ExpectQuery("SELECT (.+) FROM products WHERE id = \\$1").
			WithArgs(7).
			WillReturnError(errors.New("connection refused"))
		if w := doRequest(router, "GET", "/products/7", nil, ""); w.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	}

	w := doRequest(router, "GET", "/products/7", nil, "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusServiceUnavailable, w.Code, w.Body.String())
	}

	entries := logs.FilterField(zap.String("breaker", "products-db")).All()
	if len(entries) != 1 {
		t.Errorf("Expected one breaker warning, got %d", len(entries))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_CreateProduct(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectQuery("INSERT INTO products").
		WithArgs("Lavender Jar", "Hand poured soy wax", 24.5, sqlmock.AnyArg(), models.CategoryScented, "lavender",
			10, false, 0.0, 0.0, 0.0, 40).
		WillReturnRows(addProduct(productRows(), 5, "Lavender Jar"))

	w := doRequest(router, "POST", "/products", validInput(), tokenFor(t, admin))
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_CreateProduct_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.ProductInput)
	}{
		{"scented without scent", func(in *models.ProductInput) { in.Scent = "" }},
		{"unknown category", func(in *models.ProductInput) { in.Category = "beeswax" }},
		{"no images", func(in *models.ProductInput) { in.Images = nil }},
		{"negative price", func(in *models.ProductInput) { in.Price = -1 }},
		{"negative stock", func(in *models.ProductInput) { in.Stock = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mock, router := setupProductTest(t)
			in := validInput()
			tt.mutate(&in)

			w := doRequest(router, "POST", "/products", in, tokenFor(t, admin))
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("Database expectations were not met: %v", err)
			}
		})
	}
}

func TestProductHandler_CreateProduct_UnscentedNeedsNoScent(t *testing.T) {
	_, mock, router := setupProductTest(t)

	in := validInput()
	in.Category = models.CategoryUnscented
	in.Scent = ""

	mock.ExpectQuery("INSERT INTO products").
		WillReturnRows(addProduct(productRows(), 6, "Plain Pillar"))

	w := doRequest(router, "POST", "/products", in, tokenFor(t, admin))
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d", http.StatusCreated, w.Code)
	}
}

func TestProductHandler_AdminRoutes(t *testing.T) {
	_, _, router := setupProductTest(t)

	w := doRequest(router, "POST", "/products", validInput(), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status %d without token, got %d", http.StatusUnauthorized, w.Code)
	}

	w = doRequest(router, "DELETE", "/products/1", nil, tokenFor(t, customer))
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected status %d for non-admin, got %d", http.StatusForbidden, w.Code)
	}
}

func TestProductHandler_UpdateProduct_NotFound(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectQuery("UPDATE products SET").
		WillReturnRows(productRows())

	w := doRequest(router, "PUT", "/products/42", validInput(), tokenFor(t, admin))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status %d, got %d", http.StatusNotFound, w.Code)
	}
}

func TestProductHandler_DeleteProduct(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectExec("DELETE FROM products WHERE id = \\$1").
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(router, "DELETE", "/products/3", nil, tokenFor(t, admin))
	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestProductHandler_CreateReview(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(1, customer.ID, 5, "Smells great").
		WillReturnRows(sqlmock.NewRows([]string{"id", "product_id", "user_id", "name", "rating", "comment", "created_at"}).
			AddRow(3, 1, customer.ID, "Asha", 5, "Smells great", time.Now()))
	mock.ExpectExec("UPDATE products SET\\s+rating = \\(SELECT COALESCE\\(AVG\\(rating\\), 0\\)").
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := doRequest(router, "POST", "/products/1/reviews",
		models.ReviewRequest{Rating: 5, Comment: "Smells great"}, tokenFor(t, customer))

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_CreateReview_Duplicate(t *testing.T) {
	_, mock, router := setupProductTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO reviews").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	w := doRequest(router, "POST", "/products/1/reviews",
		models.ReviewRequest{Rating: 4, Comment: "Again"}, tokenFor(t, customer))

	if w.Code != http.StatusConflict {
		t.Errorf("Expected status %d, got %d", http.StatusConflict, w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Database expectations were not met: %v", err)
	}
}

func TestProductHandler_CreateReview_InvalidRating(t *testing.T) {
	_, _, router := setupProductTest(t)

	w := doRequest(router, "POST", "/products/1/reviews",
		models.ReviewRequest{Rating: 6, Comment: "Too good"}, tokenFor(t, customer))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, w.Code)
	}
}
