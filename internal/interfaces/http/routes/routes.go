// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/nutrition-store/internal/config"
	"github.com/your-org/nutrition-store/internal/domain/cart"
	"github.com/your-org/nutrition-store/internal/domain/product"
	"github.com/your-org/nutrition-store/internal/domain/user"
	"github.com/your-org/nutrition-store/internal/interfaces/http/handlers"
	"github.com/your-org/nutrition-store/internal/interfaces/http/middleware"
	"github.com/your-org/nutrition-store/internal/pkg/auth"
	"gorm.io/gorm"
)

// SetupRoutes wires every API route under rg
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logrus.FieldLogger) {
	jwtManager := auth.NewJWTManager(cfg)

	productHandler := handlers.NewProductHandler(product.NewService(db), log)
	categoryHandler := handlers.NewCategoryHandler(product.NewCategoryService(db), log)
	reviewHandler := handlers.NewReviewHandler(product.NewReviewService(db), log)
	userAdminHandler := handlers.NewUserAdminHandler(user.NewAdminService(db), log)

	var counts cart.CountCache
	if redisClient != nil {
		counts = cart.NewRedisCountCache(redisClient, cfg.Cache.CartCountTTL)
	}
	cartService := cart.NewService(
		cart.NewGormRepository(db),
		cart.NewCatalogReader(db),
		counts,
		log.WithField("component", "cart"),
	)

	SetupAuthRoutes(rg, handlers.NewAuthHandler(user.NewService(db, cfg), log), jwtManager)
	SetupCatalogRoutes(rg, productHandler, categoryHandler)
	SetupReviewRoutes(rg, reviewHandler, jwtManager)
	SetupCartRoutes(rg, handlers.NewCartHandler(cartService, log), jwtManager)
	SetupAdminRoutes(rg, productHandler, categoryHandler, reviewHandler, userAdminHandler, jwtManager)
}

// SetupAuthRoutes sets up authentication related routes
func SetupAuthRoutes(rg *gin.RouterGroup, authHandler *handlers.AuthHandler, jwtManager *auth.JWTManager) {
	authGroup := rg.Group("/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.RefreshToken)

		protected := authGroup.Group("")
		protected.Use(middleware.AuthMiddleware(jwtManager))
		{
			protected.POST("/logout", authHandler.Logout)
			protected.GET("/profile", authHandler.GetProfile)
		}
	}
}

// SetupCatalogRoutes sets up public product and category routes
func SetupCatalogRoutes(rg *gin.RouterGroup, productHandler *handlers.ProductHandler, categoryHandler *handlers.CategoryHandler) {
	products := rg.Group("/products")
	{
		products.GET("", productHandler.GetProducts)
		products.GET("/:id", productHandler.GetProduct)
		products.GET("/slug/:slug", productHandler.GetProductBySlug)
	}

	categories := rg.Group("/categories")
	{
		categories.GET("", categoryHandler.GetCategories)
		categories.GET("/:slug", categoryHandler.GetCategoryBySlug)
	}
}

// SetupReviewRoutes sets up product review routes. Reading is public, writing needs a login.
func SetupReviewRoutes(rg *gin.RouterGroup, reviewHandler *handlers.ReviewHandler, jwtManager *auth.JWTManager) {
	rg.GET("/products/:id/reviews", reviewHandler.GetProductReviews)

	protected := rg.Group("")
	protected.Use(middleware.AuthMiddleware(jwtManager))
	{
		protected.POST("/products/:id/reviews", reviewHandler.CreateReview)
		protected.DELETE("/reviews/:id", reviewHandler.DeleteReview)
	}
}

// SetupCartRoutes sets up cart routes. Authentication is optional at the router;
// the cart service itself rejects anonymous callers.
func SetupCartRoutes(rg *gin.RouterGroup, cartHandler *handlers.CartHandler, jwtManager *auth.JWTManager) {
	cartGroup := rg.Group("/cart")
	cartGroup.Use(middleware.OptionalAuthMiddleware(jwtManager))
	{
		cartGroup.GET("", cartHandler.GetCart)
		cartGroup.POST("", cartHandler.AddItem)
		cartGroup.PUT("", cartHandler.UpdateItem)
		cartGroup.DELETE("", cartHandler.RemoveItem)
		cartGroup.DELETE("/all", cartHandler.ClearCart)
		cartGroup.GET("/count", cartHandler.GetCount)
		cartGroup.GET("/validate", cartHandler.ValidateCart)
	}
}

// SetupAdminRoutes sets up admin related routes
func SetupAdminRoutes(
	rg *gin.RouterGroup,
	productHandler *handlers.ProductHandler,
	categoryHandler *handlers.CategoryHandler,
	reviewHandler *handlers.ReviewHandler,
	userAdminHandler *handlers.UserAdminHandler,
	jwtManager *auth.JWTManager,
) {
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager))
	admin.Use(middleware.AdminMiddleware())
	{
		products := admin.Group("/products")
		{
			products.GET("", productHandler.GetProducts)
			products.GET("/:id", productHandler.GetProduct)
			products.POST("", productHandler.AdminCreateProduct)
			products.PUT("/:id", productHandler.AdminUpdateProduct)
			products.DELETE("/:id", productHandler.AdminDeleteProduct)
			products.PUT("/:id/stock", productHandler.AdminUpdateStock)
		}

		categories := admin.Group("/categories")
		{
			categories.GET("", categoryHandler.AdminGetCategories)
			categories.POST("", categoryHandler.AdminCreateCategory)
			categories.PUT("/:id", categoryHandler.AdminUpdateCategory)
			categories.DELETE("/:id", categoryHandler.AdminDeleteCategory)
		}

		users := admin.Group("/users")
		{
			users.GET("", userAdminHandler.GetUsers)
			users.GET("/:id", userAdminHandler.GetUser)
			users.PUT("/:id/status", userAdminHandler.UpdateUserStatus)
			users.PUT("/:id/role", userAdminHandler.UpdateUserRole)
		}

		reviews := admin.Group("/reviews")
		{
			reviews.GET("", reviewHandler.AdminGetReviews)
			reviews.PUT("/:id/moderate", reviewHandler.AdminModerateReview)
			reviews.DELETE("/:id", reviewHandler.DeleteReview)
		}
	}
}
