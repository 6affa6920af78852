package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/nutrition-store/internal/config"
	"github.com/your-org/nutrition-store/internal/domain/cart"
	"github.com/your-org/nutrition-store/internal/domain/product"
	"github.com/your-org/nutrition-store/internal/infrastructure/database/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	handler http.Handler
	db      *gorm.DB
	redis   *miniredis.Miniredis
	logs    *logtest.Hook
}

func testConfig() *config.Config {
	return &config.Config{
		App:    config.AppConfig{Name: "Nutrition Store API", Version: "test", Environment: "test"},
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second, MaxBodyBytes: 1 << 20},
		JWT: config.JWTConfig{
			Secret:             "test-secret-that-is-at-least-32-characters",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{
			BcryptCost:            4,
			RateLimitPerMinute:    1000,
			FrameOptions:          "DENY",
			ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		},
		Cache: config.CacheConfig{CartCountTTL: time.Minute},
		Seed:  config.SeedConfig{Enabled: true, AdminEmail: "admin@example.com", AdminPassword: "Admin@12345"},
	}
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	cfg := testConfig()

	migration := postgres.NewMigration(db, cfg, log)
	require.NoError(t, migration.RunAutoMigrations())
	require.NoError(t, migration.SeedInitialData())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { client.Close() })

	return &testEnv{
		handler: NewServer(cfg, db, client, log).Handler(),
		db:      db,
		redis:   mr,
		logs:    hook,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			AccessToken string `json:"accessToken"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.AccessToken)
	return resp.Data.AccessToken
}

// register signs up a new customer and returns their access token
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":           email,
		"password":        "Str0ngPass!",
		"confirmPassword": "Str0ngPass!",
		"firstName":       "Guest",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return e.login(t, email, "Str0ngPass!")
}

func (e *testEnv) productID(t *testing.T, slug string) uint {
	t.Helper()

	w := e.do(t, http.MethodGet, "/api/v1/products/slug/"+slug, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data struct {
			ID uint `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

type itemResponse struct {
	Message string     `json:"message"`
	Item    *cart.Item `json:"item"`
}

func TestCart_AnonymousIsRejected(t *testing.T) {
	env := setupServer(t)

	for _, tc := range []struct {
		method, path string
		body         interface{}
	}{
		{http.MethodGet, "/api/v1/cart", nil},
		{http.MethodPost, "/api/v1/cart", "{not json"},
		{http.MethodPut, "/api/v1/cart", gin.H{"cartItemId": 1, "quantity": 1}},
		{http.MethodDelete, "/api/v1/cart?itemId=1", nil},
		{http.MethodDelete, "/api/v1/cart/all", nil},
		{http.MethodGet, "/api/v1/cart/count", nil},
		{http.MethodGet, "/api/v1/cart/validate", nil},
	} {
		w := env.do(t, tc.method, tc.path, "", tc.body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
		assert.NotEmpty(t, errorOf(t, w))
	}

	w := env.do(t, http.MethodGet, "/api/v1/cart", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCart_EmptyCart(t *testing.T) {
	env := setupServer(t)
	token := env.login(t, "test1@example.com", "Test@12345")

	w := env.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"items": [],
		"summary": {"itemCount":0,"subtotal":0,"shippingCost":99,"shippingThreshold":2000,"tax":0,"taxRate":0.18,"total":99}
	}`, w.Body.String())
}

func TestCart_AddMergeUpdateRemove(t *testing.T) {
	env := setupServer(t)
	token := env.login(t, "test1@example.com", "Test@12345")
	whey := env.productID(t, "whey-protein-isolate")

	w := env.do(t, http.MethodPost, "/api/v1/cart", token, gin.H{"productId": whey})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	added := decode[itemResponse](t, w)
	assert.Equal(t, "1kg", added.Item.Size)
	assert.Equal(t, 1, added.Item.Quantity)
	require.NotNil(t, added.Item.Product)
	assert.Equal(t, "whey-protein-isolate", added.Item.Product.Slug)

	w = env.do(t, http.MethodPost, "/api/v1/cart", token, gin.H{"productId": whey, "quantity": 2, "size": "1kg"})
	require.Equal(t, http.StatusOK, w.Code)
	merged := decode[itemResponse](t, w)
	assert.Equal(t, added.Item.ID, merged.Item.ID)
	assert.Equal(t, 3, merged.Item.Quantity)

	w = env.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	c := decode[cart.Cart](t, w)
	require.Len(t, c.Items, 1)
	assert.Equal(t, int64(7497), c.Items[0].Subtotal)
	assert.Equal(t, cart.Summary{
		ItemCount:         3,
		Subtotal:          7497,
		ShippingCost:      0,
		ShippingThreshold: 2000,
		Tax:               1349,
		TaxRate:           0.18,
		Total:             8846,
	}, c.Summary)

	w = env.do(t, http.MethodGet, "/api/v1/cart/count", token, nil)
	assert.JSONEq(t, `{"count":3}`, w.Body.String())

	w = env.do(t, http.MethodPut, "/api/v1/cart", token, gin.H{"cartItemId": added.Item.ID, "quantity": 1})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[itemResponse](t, w).Item.Quantity)

	w = env.do(t, http.MethodGet, "/api/v1/cart/count", token, nil)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())

	w = env.do(t, http.MethodPut, "/api/v1/cart", token, gin.H{"cartItemId": added.Item.ID, "quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode[itemResponse](t, w).Item)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/cart?itemId=%d", added.Item.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/cart/count", token, nil)
	assert.JSONEq(t, `{"count":0}`, w.Body.String())
}

func TestCart_InputErrors(t *testing.T) {
	env := setupServer(t)
	token := env.login(t, "test1@example.com", "Test@12345")
	whey := env.productID(t, "whey-protein-isolate")

	cases := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"malformed json", http.MethodPost, "/api/v1/cart", "{", http.StatusBadRequest},
		{"missing product", http.MethodPost, "/api/v1/cart", gin.H{}, http.StatusBadRequest},
		{"negative product id", http.MethodPost, "/api/v1/cart", `{"productId":-1}`, http.StatusBadRequest},
		{"zero quantity", http.MethodPost, "/api/v1/cart", gin.H{"productId": whey, "quantity": 0}, http.StatusBadRequest},
		{"size too long", http.MethodPost, "/api/v1/cart", gin.H{"productId": whey, "size": strings.Repeat("k", cart.MaxSizeLength+1)}, http.StatusBadRequest},
		{"quantity too large", http.MethodPost, "/api/v1/cart", gin.H{"productId": whey, "quantity": int64(9_000_000_000_000_000)}, http.StatusBadRequest},
		{"unknown product", http.MethodPost, "/api/v1/cart", gin.H{"productId": 99999}, http.StatusNotFound},
		{"update without id", http.MethodPut, "/api/v1/cart", gin.H{"quantity": 1}, http.StatusBadRequest},
		{"update negative", http.MethodPut, "/api/v1/cart", gin.H{"cartItemId": 1, "quantity": -1}, http.StatusBadRequest},
		{"update missing line", http.MethodPut, "/api/v1/cart", gin.H{"cartItemId": 424242, "quantity": 2}, http.StatusNotFound},
		{"remove without id", http.MethodDelete, "/api/v1/cart", nil, http.StatusBadRequest},
		{"remove bad id", http.MethodDelete, "/api/v1/cart?itemId=abc", nil, http.StatusBadRequest},
		{"remove missing line", http.MethodDelete, "/api/v1/cart?itemId=424242", nil, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, tc.method, tc.path, token, tc.body)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.NotEmpty(t, errorOf(t, w))
		})
	}

	w := env.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"items":[]`)
}

func TestCart_LinesAreOwnerScoped(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")
	other := env.login(t, "admin@example.com", "Admin@12345")
	creatine := env.productID(t, "creatine-monohydrate")

	w := env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": creatine})
	require.Equal(t, http.StatusOK, w.Code)
	line := decode[itemResponse](t, w).Item

	w = env.do(t, http.MethodPut, "/api/v1/cart", other, gin.H{"cartItemId": line.ID, "quantity": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/cart?itemId=%d", line.ID), other, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/cart", other, nil)
	assert.Empty(t, decode[cart.Cart](t, w).Items)

	w = env.do(t, http.MethodGet, "/api/v1/cart/count", customer, nil)
	assert.JSONEq(t, `{"count":1}`, w.Body.String())
}

func TestCart_OutOfStockAndValidate(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")
	admin := env.login(t, "admin@example.com", "Admin@12345")
	pump := env.productID(t, "pump-pre-workout")
	vitamin := env.productID(t, "vitamin-d3-k2")

	w := env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": pump})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": vitamin})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, cart.DefaultSize, decode[itemResponse](t, w).Item.Size)

	w = env.do(t, http.MethodGet, "/api/v1/cart/validate", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[cart.Validation](t, w).Valid)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/products/%d/stock", pump), admin, gin.H{"inStock": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": pump})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Product is out of stock", errorOf(t, w))

	w = env.do(t, http.MethodGet, "/api/v1/cart/validate", customer, nil)
	v := decode[cart.Validation](t, w)
	assert.False(t, v.Valid)
	require.Len(t, v.Problems, 1)
	assert.Equal(t, pump, v.Problems[0].ProductID)
	assert.Equal(t, cart.ProblemOutOfStock, v.Problems[0].Reason)

	// the failed add changed nothing
	w = env.do(t, http.MethodGet, "/api/v1/cart/count", customer, nil)
	assert.JSONEq(t, `{"count":2}`, w.Body.String())

	w = env.do(t, http.MethodDelete, "/api/v1/cart/all", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Cart cleared","removed":2}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/v1/cart", customer, nil)
	assert.Empty(t, decode[cart.Cart](t, w).Items)
}

func TestCart_DeletedProductIsOmitted(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")
	admin := env.login(t, "admin@example.com", "Admin@12345")
	shaker := env.productID(t, "steel-shaker-bottle")
	creatine := env.productID(t, "creatine-monohydrate")

	for _, id := range []uint{shaker, creatine} {
		w := env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": id})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/products/%d", shaker), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/cart", customer, nil)
	c := decode[cart.Cart](t, w)
	require.Len(t, c.Items, 1)
	assert.Equal(t, creatine, c.Items[0].ProductID)
	assert.Equal(t, int64(799), c.Summary.Subtotal)

	w = env.do(t, http.MethodGet, "/api/v1/cart/validate", customer, nil)
	v := decode[cart.Validation](t, w)
	require.Len(t, v.Problems, 1)
	assert.Equal(t, cart.ProblemUnavailable, v.Problems[0].Reason)
}

func TestCart_CountSurvivesRedisOutage(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")
	creatine := env.productID(t, "creatine-monohydrate")

	w := env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": creatine, "quantity": 4})
	require.Equal(t, http.StatusOK, w.Code)

	env.redis.Close()

	w = env.do(t, http.MethodGet, "/api/v1/cart/count", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"count":4}`, w.Body.String())
}

func TestAdmin_ProductLifecycle(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")
	admin := env.login(t, "admin@example.com", "Admin@12345")

	w := env.do(t, http.MethodGet, "/api/v1/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	categories := decode[struct {
		Data []struct {
			ID   uint   `json:"id"`
			Slug string `json:"slug"`
		} `json:"data"`
	}](t, w).Data
	require.NotEmpty(t, categories)
	assert.Equal(t, "protein", categories[0].Slug)

	form := gin.H{
		"name":          "Casein Night Protein",
		"price":         2199,
		"originalPrice": 2499,
		"sizes":         []string{"1kg"},
		"images":        []string{"https://cdn.example.com/casein.jpg"},
		"categoryId":    categories[0].ID,
	}

	w = env.do(t, http.MethodPost, "/api/v1/admin/products", customer, form)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/admin/products", "", form)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/admin/products", admin, form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[struct {
		Data struct {
			ID   uint   `json:"id"`
			Slug string `json:"slug"`
		} `json:"data"`
	}](t, w).Data
	assert.Equal(t, "casein-night-protein", created.Slug)

	bad := gin.H{"name": "X", "price": 0, "sizes": []string{"1kg", "1kg"}, "categoryId": categories[0].ID}
	w = env.do(t, http.MethodPost, "/api/v1/admin/products", admin, bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "price must be greater than 0")

	form["slug"] = "whey-protein-isolate"
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/products/%d", created.ID), admin, form)
	assert.Equal(t, http.StatusConflict, w.Code)

	delete(form, "slug")
	form["price"] = 1999
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/products/%d", created.ID), admin, form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": created.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1999), decode[itemResponse](t, w).Item.Subtotal)

	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/categories/%d", categories[0].ID), admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/products?category=protein&sortBy=price&sortOrder=asc", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_RegisterAndProfile(t *testing.T) {
	env := setupServer(t)

	register := gin.H{
		"email":           "new.buyer@example.com",
		"password":        "Str0ngPass!",
		"confirmPassword": "Str0ngPass!",
		"firstName":       "New",
	}
	w := env.do(t, http.MethodPost, "/api/v1/auth/register", "", register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, w.Code)

	weak := gin.H{"email": "weak@example.com", "password": "short", "confirmPassword": "short", "firstName": "Weak"}
	w = env.do(t, http.MethodPost, "/api/v1/auth/register", "", weak)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "new.buyer@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := env.login(t, "new.buyer@example.com", "Str0ngPass!")
	w = env.do(t, http.MethodGet, "/api/v1/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	profile := decode[struct {
		Data map[string]interface{} `json:"data"`
	}](t, w).Data
	assert.Equal(t, "new.buyer@example.com", profile["email"])
	assert.NotContains(t, profile, "password")

	w = env.do(t, http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": token})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReviews_SubmitModerateAndList(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")
	admin := env.login(t, "admin@example.com", "Admin@12345")
	whey := env.productID(t, "whey-protein-isolate")
	path := fmt.Sprintf("/api/v1/products/%d/reviews", whey)

	body := gin.H{"rating": 4, "title": "Mixes well", "content": "No clumps even in cold milk."}
	w := env.do(t, http.MethodPost, path, "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, path, customer, gin.H{"rating": 9, "content": "No clumps even in cold milk."})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "rating must be at most 5")

	w = env.do(t, http.MethodPost, path, customer, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	review := decode[struct {
		Data product.ProductReview `json:"data"`
	}](t, w).Data
	assert.False(t, review.IsApproved)
	assert.NotEmpty(t, review.AuthorName)

	w = env.do(t, http.MethodPost, path, customer, body)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(t, http.MethodPost, "/api/v1/products/99999/reviews", customer, body)
	assert.Equal(t, http.StatusNotFound, w.Code)

	type listResponse struct {
		Data product.ReviewListResponse `json:"data"`
	}

	// Pending reviews stay off the storefront
	w = env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[listResponse](t, w).Data.Reviews)

	w = env.do(t, http.MethodGet, "/api/v1/admin/reviews?status=pending", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/admin/reviews?status=pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[listResponse](t, w).Data.Pagination.Total)

	moderate := fmt.Sprintf("/api/v1/admin/reviews/%d/moderate", review.ID)
	w = env.do(t, http.MethodPut, moderate, admin, gin.H{"action": "hide"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, moderate, admin, gin.H{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[listResponse](t, w).Data
	require.Len(t, list.Reviews, 1)
	assert.Equal(t, "Mixes well", list.Reviews[0].Title)
	require.NotNil(t, list.Summary)
	assert.Equal(t, int64(1), list.Summary.TotalReviews)
	assert.InDelta(t, 4.0, list.Summary.AverageRating, 1e-9)

	// Only the author or an admin may delete
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/reviews/%d", review.ID), env.register(t, "other@example.com"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/reviews/%d", review.ID), customer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/admin/reviews/%d", review.ID), admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdmin_UserManagement(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")
	admin := env.login(t, "admin@example.com", "Admin@12345")

	w := env.do(t, http.MethodGet, "/api/v1/admin/users", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	type usersResponse struct {
		Data struct {
			Users []struct {
				ID    uint   `json:"id"`
				Email string `json:"email"`
			} `json:"users"`
			Total int64 `json:"total"`
		} `json:"data"`
	}
	w = env.do(t, http.MethodGet, "/api/v1/admin/users?search=test1", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	found := decode[usersResponse](t, w).Data
	require.Equal(t, int64(1), found.Total)
	customerID := found.Users[0].ID
	assert.NotContains(t, w.Body.String(), "password")

	w = env.do(t, http.MethodGet, "/api/v1/admin/users?role=admin", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	admins := decode[usersResponse](t, w).Data
	require.Len(t, admins.Users, 1)
	adminID := admins.Users[0].ID

	w = env.do(t, http.MethodGet, "/api/v1/admin/users?status=banned", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	creatine := env.productID(t, "creatine-monohydrate")
	w = env.do(t, http.MethodPost, "/api/v1/cart", customer, gin.H{"productId": creatine, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/users/%d", customerID), admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[struct {
		Data struct {
			Email         string `json:"email"`
			CartItemCount int64  `json:"cartItemCount"`
			ReviewCount   int64  `json:"reviewCount"`
		} `json:"data"`
	}](t, w).Data
	assert.Equal(t, "test1@example.com", detail.Email)
	assert.Equal(t, int64(2), detail.CartItemCount)
	assert.Zero(t, detail.ReviewCount)

	w = env.do(t, http.MethodGet, "/api/v1/admin/users/99999", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/status", customerID), admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/status", adminID), admin, gin.H{"isActive": false})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/role", adminID), admin, gin.H{"isAdmin": false})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/status", customerID), admin, gin.H{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Deactivated users can no longer sign in
	w = env.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "test1@example.com", "password": "Test@12345"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPut, fmt.Sprintf("/api/v1/admin/users/%d/role", customerID), admin, gin.H{"isAdmin": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"isAdmin":true`)
}

func TestHealthAndReady(t *testing.T) {
	env := setupServer(t)

	w := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode[map[string]interface{}](t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "Nutrition Store API", w.Header().Get("Server"))

	w = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	env.redis.Close()
	w = env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCart_StoreFailureIsLoggedNotLeaked(t *testing.T) {
	env := setupServer(t)
	customer := env.login(t, "test1@example.com", "Test@12345")

	require.NoError(t, env.db.Migrator().DropTable(&cart.CartLine{}))
	env.logs.Reset()

	w := env.do(t, http.MethodGet, "/api/v1/cart", customer, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to retrieve cart", errorOf(t, w))
	assert.NotContains(t, w.Body.String(), "cart_lines")

	var logged *logrus.Entry
	for _, e := range env.logs.AllEntries() {
		if e.Message == "Failed to retrieve cart" {
			logged = e
		}
	}
	require.NotNil(t, logged)
	assert.Equal(t, w.Header().Get("X-Request-ID"), logged.Data["request_id"])
	assert.NotNil(t, logged.Data["user_id"])
}
