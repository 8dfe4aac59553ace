package commands

import (
	"context"
	"database/sql"
	"fmt"

	"candle-shop/auth"
	"candle-shop/database"
	"candle-shop/models"

	"github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedAdminName     string
	seedAdminEmail    string
	seedAdminPassword string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert a sample candle catalog and an admin user",
	Long: `seed creates the admin account (if its email is free) and, when the catalog
is empty, a handful of sample candles. Running it twice changes nothing.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVar(&seedAdminName, "admin-name", "Shop Admin", "name of the seeded admin")
	seedCmd.Flags().StringVar(&seedAdminEmail, "admin-email", "admin@candleshop.local", "email of the seeded admin")
	seedCmd.Flags().StringVar(&seedAdminPassword, "admin-password", "admin123", "password of the seeded admin")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.InitDB(cfg.DB, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	if err := database.Migrate(ctx, db, logger); err != nil {
		return err
	}

	admin := models.User{Name: seedAdminName, Email: seedAdminEmail, Role: models.RoleAdmin}
	if err := seedAdmin(ctx, db, admin, seedAdminPassword, logger); err != nil {
		return err
	}
	return seedCatalog(ctx, db, sampleCandles, logger)
}

func seedAdmin(ctx context.Context, db *sql.DB, admin models.User, password string, logger *zap.Logger) error {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING`,
		admin.Name, admin.Email, hash, admin.Role,
	)
	if err != nil {
		return fmt.Errorf("failed to seed admin: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		logger.Info("Admin already present", zap.String("email", admin.Email))
		return nil
	}
	logger.Info("Admin created", zap.String("email", admin.Email))
	return nil
}

// seedCatalog inserts products only into an empty catalog.
func seedCatalog(ctx context.Context, db *sql.DB, products []models.ProductInput, logger *zap.Logger) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		logger.Info("Catalog already populated", zap.Int("products", count))
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range products {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO products (name, description, price, images, category, scent, stock, featured, height, width, weight, burn_time)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			p.Name, p.Description, p.Price, pq.Array(p.Images), p.Category, p.Scent, p.Stock, p.Featured,
			p.Dimensions.Height, p.Dimensions.Width, p.Dimensions.Weight, p.BurnTime,
		)
		if err != nil {
			return fmt.Errorf("failed to seed product %q: %w", p.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	logger.Info("Catalog seeded", zap.Int("products", len(products)))
	return nil
}

var sampleCandles = []models.ProductInput{
	{
		Name:        "Lavender Fields",
		Description: "Hand-poured soy candle with calming French lavender.",
		Price:       24.99,
		Images:      []string{"/images/lavender-fields.jpg"},
		Category:    models.CategoryScented,
		Scent:       "Lavender",
		Stock:       40,
		Featured:    true,
		Dimensions:  models.Dimensions{Height: 9, Width: 8, Weight: 340},
		BurnTime:    50,
	},
	{
		Name:        "Vanilla Bean Jar",
		Description: "Warm Madagascar vanilla in a reusable amber jar.",
		Price:       19.5,
		Images:      []string{"/images/vanilla-bean.jpg"},
		Category:    models.CategoryScented,
		Scent:       "Vanilla",
		Stock:       55,
		Featured:    true,
		Dimensions:  models.Dimensions{Height: 8, Width: 7.5, Weight: 280},
		BurnTime:    45,
	},
	{
		Name:        "Classic Ivory Pillar",
		Description: "Unscented beeswax pillar for dinner tables.",
		Price:       14,
		Images:      []string{"/images/ivory-pillar.jpg"},
		Category:    models.CategoryUnscented,
		Stock:       80,
		Dimensions:  models.Dimensions{Height: 15, Width: 7, Weight: 450},
		BurnTime:    70,
	},
	{
		Name:        "Twisted Taper Pair",
		Description: "Two spiral tapers in sage green.",
		Price:       12.75,
		Images:      []string{"/images/twisted-taper.jpg"},
		Category:    models.CategoryDecorative,
		Stock:       30,
		Featured:    true,
		Dimensions:  models.Dimensions{Height: 25, Width: 2.2, Weight: 120},
		BurnTime:    8,
	},
	{
		Name:        "Winter Spice",
		Description: "Cinnamon, clove and orange peel for the holidays.",
		Price:       27,
		Images:      []string{"/images/winter-spice.jpg", "/images/winter-spice-lit.jpg"},
		Category:    models.CategorySeasonal,
		Scent:       "Cinnamon & Clove",
		Stock:       25,
		Dimensions:  models.Dimensions{Height: 10, Width: 9, Weight: 400},
		BurnTime:    60,
	},
}
