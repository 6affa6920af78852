// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/config"
	"github.com/your-org/nutrition-store/internal/domain/cart"
	"github.com/your-org/nutrition-store/internal/domain/product"
	"github.com/your-org/nutrition-store/internal/domain/user"
	"github.com/your-org/nutrition-store/internal/pkg/auth"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db        *gorm.DB
	log       logrus.FieldLogger
	passwords *auth.PasswordManager
	seed      config.SeedConfig
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB, cfg *config.Config, log logrus.FieldLogger) *Migration {
	return &Migration{
		db:        db,
		log:       log,
		passwords: auth.NewPasswordManager(cfg),
		seed:      cfg.Seed,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	m.log.Info("running database auto-migrations")

	// Dependency order
	models := []interface{}{
		&user.User{},
		&product.Category{},
		&product.Product{},
		&product.ProductImage{},
		&product.ProductReview{},
		&cart.CartLine{},
	}

	for _, model := range models {
		m.log.Debugf("migrating model %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	m.log.Info("database auto-migrations completed")
	return nil
}

// CreateIndexes creates indexes the model tags do not express
func (m *Migration) CreateIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_email_active ON users(email, is_active)",

		"CREATE INDEX IF NOT EXISTS idx_products_category_stock ON products(category_id, in_stock)",
		"CREATE INDEX IF NOT EXISTS idx_products_featured ON products(is_featured, in_stock)",
		"CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_categories_active_sort ON categories(is_active, sort_order)",

		"CREATE INDEX IF NOT EXISTS idx_product_images_sort_order ON product_images(product_id, sort_order)",
		"CREATE INDEX IF NOT EXISTS idx_product_reviews_product_approved ON product_reviews(product_id, is_approved, created_at DESC)",

		"CREATE INDEX IF NOT EXISTS idx_cart_lines_owner_created ON cart_lines(user_id, created_at DESC, id DESC)",
	}

	failed := 0
	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			m.log.WithError(err).WithField("sql", indexSQL).Warn("failed to create index")
			failed++
		}
	}

	m.log.WithFields(logrus.Fields{
		"created": len(indexes) - failed,
		"failed":  failed,
	}).Info("additional indexes processed")

	if failed > 0 {
		return fmt.Errorf("%d of %d indexes failed", failed, len(indexes))
	}
	return nil
}

// SeedInitialData inserts the starter catalog and accounts. It is idempotent.
func (m *Migration) SeedInitialData() error {
	m.log.Info("seeding initial data")

	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}

	if err := m.seedUser(m.seed.AdminEmail, m.seed.AdminPassword, "Admin", true); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := m.seedUser("test1@example.com", "Test@12345", "Test", false); err != nil {
		return fmt.Errorf("failed to seed test user: %w", err)
	}

	if err := m.seedProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	m.log.Info("initial data seeded")
	return nil
}

func (m *Migration) seedCategories() error {
	categories := []product.Category{
		{Name: "Protein", Slug: "protein", Description: "Whey, casein and plant proteins", SortOrder: 1, IsActive: true},
		{Name: "Pre Workout", Slug: "pre-workout", Description: "Energy and focus before training", SortOrder: 2, IsActive: true},
		{Name: "Vitamins", Slug: "vitamins", Description: "Daily vitamins and minerals", SortOrder: 3, IsActive: true},
		{Name: "Creatine", Slug: "creatine", Description: "Strength and power support", SortOrder: 4, IsActive: true},
		{Name: "Accessories", Slug: "accessories", Description: "Shakers, bottles and gear", SortOrder: 5, IsActive: true},
	}

	for _, c := range categories {
		c := c
		err := m.db.Where("slug = ?", c.Slug).FirstOrCreate(&c).Error
		if err != nil {
			return fmt.Errorf("category %s: %w", c.Slug, err)
		}
	}

	m.log.WithField("count", len(categories)).Debug("categories seeded")
	return nil
}

func (m *Migration) seedUser(email, password, firstName string, isAdmin bool) error {
	var existing user.User
	err := m.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		m.log.WithField("email", email).Debug("user already exists")
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hashed, err := m.passwords.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	u := user.User{
		Email:     email,
		Password:  hashed,
		FirstName: firstName,
		LastName:  "User",
		IsActive:  true,
		IsAdmin:   isAdmin,
	}
	if err := m.db.Create(&u).Error; err != nil {
		return err
	}

	m.log.WithFields(logrus.Fields{
		"email":    email,
		"is_admin": isAdmin,
	}).Info("seeded user")
	return nil
}

type seedProduct struct {
	category      string
	name          string
	slug          string
	description   string
	price         int64
	originalPrice int64
	sizes         []string
	featured      bool
	tags          string
}

func (m *Migration) seedProducts() error {
	products := []seedProduct{
		{"protein", "Whey Protein Isolate", "whey-protein-isolate", "Fast absorbing isolate with 27g protein per scoop.", 2499, 2999, []string{"1kg", "2kg"}, true, "whey,isolate,protein"},
		{"protein", "Plant Protein Blend", "plant-protein-blend", "Pea and brown rice protein, unflavoured.", 1899, 0, []string{"500g", "1kg"}, false, "vegan,plant,protein"},
		{"pre-workout", "Pump Pre Workout", "pump-pre-workout", "Citrulline and beta-alanine formula.", 1499, 1799, []string{"30 servings"}, true, "pre-workout,energy"},
		{"vitamins", "Vitamin D3 + K2", "vitamin-d3-k2", "60 softgels.", 499, 0, nil, false, "vitamins,d3"},
		{"creatine", "Creatine Monohydrate", "creatine-monohydrate", "Micronised creatine, 5g per serving.", 799, 999, []string{"250g", "500g"}, true, "creatine,strength"},
		{"accessories", "Steel Shaker Bottle", "steel-shaker-bottle", "750ml stainless steel shaker.", 599, 0, nil, false, "shaker,bottle"},
	}

	for _, sp := range products {
		var count int64
		if err := m.db.Model(&product.Product{}).Unscoped().Where("slug = ?", sp.slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		var category product.Category
		if err := m.db.Where("slug = ?", sp.category).First(&category).Error; err != nil {
			return fmt.Errorf("category %s: %w", sp.category, err)
		}

		p := product.Product{
			Name:        sp.name,
			Slug:        sp.slug,
			Description: sp.description,
			Price:       sp.price,
			InStock:     true,
			IsFeatured:  sp.featured,
			Sizes:       sp.sizes,
			Tags:        sp.tags,
			CategoryID:  category.ID,
			Images: []product.ProductImage{
				{URL: "https://cdn.example.com/products/" + sp.slug + ".jpg", AltText: sp.name},
			},
		}
		if sp.originalPrice > 0 {
			original := sp.originalPrice
			p.OriginalPrice = &original
		}

		if err := m.db.Create(&p).Error; err != nil {
			return fmt.Errorf("product %s: %w", sp.slug, err)
		}
		m.log.WithField("slug", sp.slug).Debug("seeded product")
	}

	return nil
}
