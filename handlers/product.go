package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"candle-shop/apperrors"
	"candle-shop/cache"
	"candle-shop/circuitbreaker"
	"candle-shop/middleware"
	"candle-shop/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	ProductPageSize   = 12
	featuredLimit     = 6
	productColumns    = "id, name, description, price, images, category, scent, stock, rating, num_reviews, featured, height, width, weight, burn_time, created_at, updated_at"
	reviewColumns     = "id, product_id, user_id, name, rating, comment, created_at"
	productTracerName = "product-service"
)

type ProductHandler struct {
	db             *sql.DB
	cache          *cache.ProductCache
	logger         *zap.Logger
	circuitBreaker *circuitbreaker.CircuitBreaker
}

// NewProductHandler accepts a nil cache.
func NewProductHandler(db *sql.DB, productCache *cache.ProductCache, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		db:     db,
		cache:  productCache,
		logger: logger,
		circuitBreaker: circuitbreaker.NewCircuitBreaker("products-db", 5, 30*time.Second,
			circuitbreaker.WithFailurePredicate(func(err error) bool {
				return !errors.Is(err, sql.ErrNoRows)
			}),
		),
	}
}

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, pq.Array(&p.Images), &p.Category, &p.Scent,
		&p.Stock, &p.Rating, &p.NumReviews, &p.Featured,
		&p.Dimensions.Height, &p.Dimensions.Width, &p.Dimensions.Weight,
		&p.BurnTime, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()
	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// parseFilter reads keyword, category, scent, minPrice, maxPrice and page.
func parseFilter(c *gin.Context) (models.ProductFilter, error) {
	filter := models.ProductFilter{
		Keyword:  strings.TrimSpace(c.Query("keyword")),
		Category: c.Query("category"),
		Scent:    c.Query("scent"),
		Page:     1,
	}
	if filter.Category != "" && !models.Category(filter.Category).Valid() {
		return filter, fmt.Errorf("invalid category %q", filter.Category)
	}
	for key, dst := range map[string]**float64{"minPrice": &filter.MinPrice, "maxPrice": &filter.MaxPrice} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return filter, fmt.Errorf("invalid %s %q", key, raw)
		}
		*dst = &v
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return filter, fmt.Errorf("invalid page %q", raw)
		}
		filter.Page = page
	}
	return filter, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereClause builds the filter conditions and their positional arguments.
func whereClause(f models.ProductFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.Keyword != "" {
		add(`name ILIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(f.Keyword)+"%")
	}
	if f.Category != "" {
		add("category = ?", f.Category)
	}
	if f.Scent != "" {
		add(`scent ILIKE ? ESCAPE '\'`, likeEscaper.Replace(f.Scent))
	}
	if f.MinPrice != nil {
		add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("price <= ?", *f.MaxPrice)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (h *ProductHandler) GetProducts(c *gin.Context) {
	ctx, span := otel.Tracer(productTracerName).Start(c.Request.Context(), "GetProducts")
	defer span.End()

	filter, err := parseFilter(c)
	if err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	where, args := whereClause(filter)

	var total int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products"+where, args...).Scan(&total); err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to count products: %w", err)))
		return
	}

	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM products%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		productColumns, where, n+1, n+2)
	rows, err := h.db.QueryContext(ctx, query, append(args, ProductPageSize, (filter.Page-1)*ProductPageSize)...)
	if err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to fetch products: %w", err)))
		return
	}
	products, err := scanProducts(rows)
	if err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(err))
		return
	}

	span.SetAttributes(attribute.Int("products.count", len(products)))
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    products,
		"page":    filter.Page,
		"pages":   int(math.Ceil(float64(total) / ProductPageSize)),
		"total":   total,
	})
}

func (h *ProductHandler) GetFeatured(c *gin.Context) {
	ctx, span := otel.Tracer(productTracerName).Start(c.Request.Context(), "GetFeaturedProducts")
	defer span.End()

	if products, err := h.cache.GetFeatured(ctx); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		respond(c, http.StatusOK, products)
		return
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	rows, err := h.db.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE featured = TRUE ORDER BY created_at DESC, id DESC LIMIT $1",
		featuredLimit)
	if err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to fetch featured products: %w", err)))
		return
	}
	products, err := scanProducts(rows)
	if err != nil {
		fail(c, apperrors.Internal(err))
		return
	}

	if err := h.cache.SetFeatured(ctx, products); err != nil {
		h.logger.Warn("Failed to cache featured products", zap.Error(err))
	}
	respond(c, http.StatusOK, products)
}

func (h *ProductHandler) loadProduct(ctx context.Context, id int) (models.Product, error) {
	var product models.Product
	err := h.circuitBreaker.Execute(ctx, func() error {
		var err error
		product, err = scanProduct(h.db.QueryRowContext(ctx,
			"SELECT "+productColumns+" FROM products WHERE id = $1", id))
		if err != nil {
			return err
		}

		rows, err := h.db.QueryContext(ctx,
			"SELECT "+reviewColumns+" FROM reviews WHERE product_id = $1 ORDER BY created_at DESC, id DESC", id)
		if err != nil {
			return err
		}
		defer rows.Close()
		product.Reviews = []models.Review{}
		for rows.Next() {
			var r models.Review
			if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.Name, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
				return err
			}
			product.Reviews = append(product.Reviews, r)
		}
		return rows.Err()
	})
	return product, err
}

func (h *ProductHandler) GetProduct(c *gin.Context) {
	ctx, span := otel.Tracer(productTracerName).Start(c.Request.Context(), "GetProduct")
	defer span.End()

	id, ok := pathID(c, "product")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	if product, err := h.cache.GetProduct(ctx, id); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		h.logger.Debug("Cache hit", zap.Int("product_id", id))
		respond(c, http.StatusOK, product)
		return
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	product, err := h.loadProduct(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, circuitbreaker.ErrCircuitOpen):
			span.SetAttributes(
				attribute.String("circuit.name", h.circuitBreaker.Name()),
				attribute.String("circuit.state", "open"),
			)
			h.logger.Warn("Circuit breaker open, rejecting product read",
				zap.String("trace_id", middleware.GetTraceID(ctx)),
				zap.String("breaker", h.circuitBreaker.Name()),
				zap.Int("product_id", id),
			)
			fail(c, apperrors.Wrap(err, http.StatusServiceUnavailable, "Service temporarily unavailable"))
		case errors.Is(err, sql.ErrNoRows):
			fail(c, apperrors.NotFound("Product not found"))
		default:
			span.RecordError(err)
			fail(c, apperrors.Internal(fmt.Errorf("failed to fetch product: %w", err)))
		}
		return
	}

	if err := h.cache.SetProduct(ctx, &product); err != nil {
		h.logger.Warn("Failed to cache product", zap.Int("product_id", id), zap.Error(err))
	}
	respond(c, http.StatusOK, product)
}

func validateProduct(in models.ProductInput) error {
	if !in.Category.Valid() {
		return fmt.Errorf("invalid category %q", in.Category)
	}
	if in.Category == models.CategoryScented && strings.TrimSpace(in.Scent) == "" {
		return errors.New("scent is required for scented candles")
	}
	for _, img := range in.Images {
		if strings.TrimSpace(img) == "" {
			return errors.New("image urls must not be empty")
		}
	}
	return nil
}

func (h *ProductHandler) CreateProduct(c *gin.Context) {
	ctx, span := otel.Tracer(productTracerName).Start(c.Request.Context(), "CreateProduct")
	defer span.End()

	var in models.ProductInput
	if !bindJSON(c, &in) {
		return
	}
	if err := validateProduct(in); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	product, err := scanProduct(h.db.QueryRowContext(ctx,
		`INSERT INTO products (name, description, price, images, category, scent, stock, featured, height, width, weight, burn_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING `+productColumns,
		in.Name, in.Description, in.Price, pq.Array(in.Images), in.Category, in.Scent, in.Stock, in.Featured,
		in.Dimensions.Height, in.Dimensions.Width, in.Dimensions.Weight, in.BurnTime,
	))
	if err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to create product: %w", err)))
		return
	}

	if in.Featured {
		h.invalidate(ctx, product.ID)
	}

	span.SetAttributes(attribute.Int("product.id", product.ID))
	h.logger.Info("Product created",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("product_id", product.ID),
	)
	respond(c, http.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	ctx, span := otel.Tracer(productTracerName).Start(c.Request.Context(), "UpdateProduct")
	defer span.End()

	id, ok := pathID(c, "product")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	var in models.ProductInput
	if !bindJSON(c, &in) {
		return
	}
	if err := validateProduct(in); err != nil {
		fail(c, apperrors.BadRequest(err.Error()))
		return
	}

	product, err := scanProduct(h.db.QueryRowContext(ctx,
		`UPDATE products SET name = $1, description = $2, price = $3, images = $4, category = $5, scent = $6,
		stock = $7, featured = $8, height = $9, width = $10, weight = $11, burn_time = $12, updated_at = CURRENT_TIMESTAMP
		WHERE id = $13 RETURNING `+productColumns,
		in.Name, in.Description, in.Price, pq.Array(in.Images), in.Category, in.Scent, in.Stock, in.Featured,
		in.Dimensions.Height, in.Dimensions.Width, in.Dimensions.Weight, in.BurnTime, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		fail(c, apperrors.NotFound("Product not found"))
		return
	}
	if err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to update product: %w", err)))
		return
	}

	h.invalidate(ctx, id)

	h.logger.Info("Product updated",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("product_id", id),
	)
	respond(c, http.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	ctx, span := otel.Tracer(productTracerName).Start(c.Request.Context(), "DeleteProduct")
	defer span.End()

	id, ok := pathID(c, "product")
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int("product.id", id))

	result, err := h.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to delete product: %w", err)))
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		fail(c, apperrors.NotFound("Product not found"))
		return
	}

	h.invalidate(ctx, id)

	h.logger.Info("Product deleted",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("product_id", id),
	)
	respond(c, http.StatusOK, gin.H{"message": "Product removed"})
}

// CreateReview adds the caller's review and recomputes rating and
// num_reviews in the same transaction. A second review by the same user is
// rejected by the unique (product_id, user_id) constraint.
func (h *ProductHandler) CreateReview(c *gin.Context) {
	ctx, span := otel.Tracer(productTracerName).Start(c.Request.Context(), "CreateReview")
	defer span.End()

	id, ok := pathID(c, "product")
	if !ok {
		return
	}
	var req models.ReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	userID := claims(c).UserID
	span.SetAttributes(attribute.Int("product.id", id), attribute.Int("user.id", userID))

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to begin transaction: %w", err)))
		return
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", id).Scan(&exists); err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to look up product: %w", err)))
		return
	}
	if !exists {
		fail(c, apperrors.NotFound("Product not found"))
		return
	}

	var review models.Review
	err = tx.QueryRowContext(ctx,
		`INSERT INTO reviews (product_id, user_id, name, rating, comment)
		SELECT $1::int, id, name, $3::int, $4::text FROM users WHERE id = $2
		RETURNING `+reviewColumns,
		id, userID, req.Rating, req.Comment,
	).Scan(&review.ID, &review.ProductID, &review.UserID, &review.Name, &review.Rating, &review.Comment, &review.CreatedAt)
	switch {
	case pqCode(err) == pqUniqueViolation:
		fail(c, apperrors.Conflict("Product already reviewed"))
		return
	case errors.Is(err, sql.ErrNoRows):
		fail(c, apperrors.Unauthorized("User not found"))
		return
	case err != nil:
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to insert review: %w", err)))
		return
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE products SET
			rating = (SELECT COALESCE(AVG(rating), 0) FROM reviews WHERE product_id = $1),
			num_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = $1),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`, id); err != nil {
		span.RecordError(err)
		fail(c, apperrors.Internal(fmt.Errorf("failed to update rating: %w", err)))
		return
	}

	if err := tx.Commit(); err != nil {
		fail(c, apperrors.Internal(fmt.Errorf("failed to commit review: %w", err)))
		return
	}

	h.invalidate(ctx, id)

	h.logger.Info("Review added",
		zap.String("trace_id", middleware.GetTraceID(ctx)),
		zap.Int("product_id", id),
		zap.Int("user_id", userID),
	)
	respond(c, http.StatusCreated, review)
}

func (h *ProductHandler) invalidate(ctx context.Context, id int) {
	if err := h.cache.Invalidate(ctx, id); err != nil {
		h.logger.Warn("Failed to invalidate product cache", zap.Int("product_id", id), zap.Error(err))
	}
}
