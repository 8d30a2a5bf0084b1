package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toko/internal/app"
	"toko/internal/config"
	"toko/internal/database"
	"toko/internal/log"
	"toko/internal/models"
	"toko/internal/repositories"
)

type testEnv struct {
	t          *testing.T
	app        *app.App
	products   repositories.ProductRepository
	user       *models.User
	admin      *models.User
	userToken  string
	adminToken string
}

// setupApp builds the application on a private in-memory SQLite database
// with one regular user and one admin.
func setupApp(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(config.DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	repos := database.FromDB(db)
	t.Cleanup(func() { repos.Close() })

	a, err := app.New(app.Options{
		Products:  repos.Products,
		Users:     repos.Users,
		Logger:    log.Discard(),
		JWTSecret: "test_jwt_secret",
		JWTTTL:    time.Hour,
	})
	require.NoError(t, err)

	ctx := context.Background()
	user := &models.User{FirstName: "Regular", LastName: "Customer", Email: "user@example.com", Password: "password123"}
	require.NoError(t, a.Auth.RegisterUser(ctx, user))
	admin, err := a.Auth.EnsureAdmin(ctx, config.AdminSeed{
		FirstName: "Grace", LastName: "Admin", Email: "admin@example.com", Password: "password123",
	})
	require.NoError(t, err)

	userToken, err := a.Auth.IssueToken(user)
	require.NoError(t, err)
	adminToken, err := a.Auth.IssueToken(admin)
	require.NoError(t, err)

	return &testEnv{
		t:          t,
		app:        a,
		products:   repos.Products,
		user:       user,
		admin:      admin,
		userToken:  userToken,
		adminToken: adminToken,
	}
}

func (e *testEnv) do(method, path, token string, form url.Values, cookies ...*http.Cookie) *http.Response {
	e.t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	resp, err := e.app.Fiber.Test(req, -1)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) createProduct(name, price string) *models.Product {
	e.t.Helper()
	p := &models.Product{Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(e.t, e.products.Create(context.Background(), p))
	return p
}

func (e *testEnv) count() int64 {
	e.t.Helper()
	n, err := e.products.Count(context.Background())
	require.NoError(e.t, err)
	return n
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func productForm(name, price string) url.Values {
	return url.Values{"name": {name}, "price": {price}}
}

func TestProductsPageRequiresAuthentication(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodGet, "/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(http.MethodPost, "/products", "", productForm("Product test", "19.99"))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, env.count())
}

func TestUserCanAccessProductsPage(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodGet, "/products", env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.Contains(t, body, "Products")
	assert.Contains(t, body, env.user.FirstName)
	assert.Contains(t, body, env.user.LastName)
}

func TestProductsPageDoesNotContainProducts(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodGet, "/products", env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "No products found")
}

func TestProductsPageContainsProducts(t *testing.T) {
	env := setupApp(t)
	env.createProduct("Product test", "19.99")

	resp := env.do(http.MethodGet, "/products", env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.NotContains(t, body, "No products found")
	assert.Contains(t, body, "Product test")
}

func TestProductsPageDoesNotContainTheSixthRecord(t *testing.T) {
	env := setupApp(t)
	names := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot"}
	for _, name := range names {
		env.createProduct(name, "10")
	}

	resp := env.do(http.MethodGet, "/products", env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := readBody(t, resp)
	assert.NotContains(t, body, "No products found")
	for _, name := range names[:5] {
		assert.Contains(t, body, name)
	}
	assert.NotContains(t, body, "Foxtrot")
	assert.Contains(t, body, "/products?page=2")

	resp = env.do(http.MethodGet, "/products?page=2", env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Foxtrot")
}

func TestCreateProductPageAccess(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodGet, "/products/create", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodGet, "/products/create", env.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Add product")
}

func TestProductSaveFailsAndRedirectsBack(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodPost, "/products", env.adminToken, productForm("Pr", ""))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products/create", resp.Header.Get("Location"))
	assert.Zero(t, env.count())

	// The form shows the flashed errors once.
	cookies := resp.Cookies()
	require.NotEmpty(t, cookies)
	for _, c := range cookies {
		assert.True(t, c.HttpOnly, "cookie %s must be HttpOnly", c.Name)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite, "cookie %s SameSite", c.Name)
	}
	resp = env.do(http.MethodGet, "/products/create", env.adminToken, nil, cookies...)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "The name field must be at least 3 characters.")
	assert.Contains(t, body, "The price field is required.")
	assert.Contains(t, body, `value="Pr"`)

	resp = env.do(http.MethodGet, "/products/create", env.adminToken, nil, cookies...)
	assert.NotContains(t, readBody(t, resp), "The price field is required.")
}

func TestProductSaveRejectsPricesTheColumnCannotHold(t *testing.T) {
	env := setupApp(t)

	for _, price := range []string{"100000000", "1e9", "19.999"} {
		t.Run(price, func(t *testing.T) {
			resp := env.do(http.MethodPost, "/products", env.adminToken, productForm("Product test", price))
			require.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/products/create", resp.Header.Get("Location"))
		})
	}
	assert.Zero(t, env.count())

	product := env.createProduct("Product test", "19.99")
	resp := env.do(http.MethodPut, "/products/"+product.ID, env.adminToken, productForm("Product test", "19.999"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products/"+product.ID+"/edit", resp.Header.Get("Location"))

	stored, err := env.products.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("19.99").Equal(stored.Price))
}

func TestUserCannotSaveProduct(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodPost, "/products", env.userToken, productForm("Product test", "19.99"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Zero(t, env.count())
}

func TestProductSavedSuccessfully(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodPost, "/products", env.adminToken, productForm("Product test", "19.99"))
	require.Equal(t, http.StatusFound, resp.StatusCode)

	page, err := env.products.Paginate(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	last := page.Items[0]

	assert.Equal(t, "/products/show/"+last.ID, resp.Header.Get("Location"))
	assert.Equal(t, "Product test", last.Name)
	assert.True(t, decimal.RequireFromString("19.99").Equal(last.Price))

	resp = env.do(http.MethodGet, "/products/show/"+last.ID, env.userToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Product test")
}

func TestProductSavedFromJSON(t *testing.T) {
	env := setupApp(t)

	payload, _ := json.Marshal(map[string]any{"name": "Json product", "price": 24.99})
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+env.adminToken)

	resp, err := env.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, int64(1), env.count())
}

func TestEditProductPage(t *testing.T) {
	env := setupApp(t)
	product := env.createProduct("Product test", "19.99")

	resp := env.do(http.MethodGet, "/products/"+product.ID+"/edit", env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodGet, "/products/"+product.ID+"/edit", env.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Update product informations")
	assert.Contains(t, body, `value="Product test"`)
	assert.Contains(t, body, `value="19.99"`)

	resp = env.do(http.MethodGet, "/products/"+uuid.NewString()+"/edit", env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProductUpdateFailsAndRedirectsBack(t *testing.T) {
	env := setupApp(t)
	product := env.createProduct("Product test", "19.99")

	resp := env.do(http.MethodPut, "/products/"+product.ID, env.adminToken, productForm("Pr", ""))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products/"+product.ID+"/edit", resp.Header.Get("Location"))

	stored, err := env.products.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Product test", stored.Name)

	resp = env.do(http.MethodGet, "/products/"+product.ID+"/edit", env.adminToken, nil, resp.Cookies()...)
	body := readBody(t, resp)
	assert.Contains(t, body, "The name field must be at least 3 characters.")
	assert.Contains(t, body, "The price field is required.")
}

func TestProductUpdatedSuccessfully(t *testing.T) {
	env := setupApp(t)
	product := env.createProduct("Product test", "19.99")

	resp := env.do(http.MethodPut, "/products/"+product.ID, env.adminToken, productForm("Product test edited", "24.99"))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products/show/"+product.ID, resp.Header.Get("Location"))

	stored, err := env.products.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Product test edited", stored.Name)
	assert.True(t, decimal.RequireFromString("24.99").Equal(stored.Price))
}

func TestProductUpdateRules(t *testing.T) {
	env := setupApp(t)
	product := env.createProduct("Product test", "19.99")

	resp := env.do(http.MethodPut, "/products/"+product.ID, env.userToken, productForm("Hijacked", "1"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(http.MethodPut, "/products/"+uuid.NewString(), env.adminToken, productForm("Product test", "1"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// HTML forms tunnel PUT through POST.
	form := productForm("Overridden name", "5")
	form.Set("_method", "PUT")
	resp = env.do(http.MethodPost, "/products/"+product.ID, env.adminToken, form)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	stored, err := env.products.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Overridden name", stored.Name)
}

func TestUserCannotDeleteProduct(t *testing.T) {
	env := setupApp(t)
	product := env.createProduct("Product test", "19.99")

	resp := env.do(http.MethodDelete, "/products/"+product.ID, env.userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, int64(1), env.count())
}

func TestProductDeletedSuccessfully(t *testing.T) {
	env := setupApp(t)
	product := env.createProduct("Product test", "19.99")

	resp := env.do(http.MethodDelete, "/products/"+product.ID, env.adminToken, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/products", resp.Header.Get("Location"))
	assert.Zero(t, env.count())

	_, err := env.products.GetByID(context.Background(), product.ID)
	assert.ErrorIs(t, err, repositories.ErrProductNotFound)

	resp = env.do(http.MethodDelete, "/products/"+product.ID, env.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupApp(t)

	resp := env.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"status":"healthy"`)

	env.do(http.MethodGet, "/products", env.userToken, nil)
	resp = env.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "product_operations_total")
	assert.Contains(t, body, "http_requests_total")
}

func TestAuthRegisterLoginAndCookieSession(t *testing.T) {
	env := setupApp(t)

	register := func(email string) *http.Response {
		body, _ := json.Marshal(map[string]string{
			"first_name": "Test", "last_name": "Buyer", "email": email, "password": "password123",
		})
		req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := env.app.Fiber.Test(req, -1)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusCreated, register("buyer@example.com").StatusCode)
	assert.Equal(t, http.StatusConflict, register("buyer@example.com").StatusCode)
	assert.Equal(t, http.StatusUnprocessableEntity, register("not-an-email").StatusCode)

	body, _ := json.Marshal(map[string]string{"email": "buyer@example.com", "password": "password123"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := env.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	assert.NotEmpty(t, loginResp.Token)

	var tokenCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "token" {
			tokenCookie = c
		}
	}
	require.NotNil(t, tokenCookie)

	list := env.do(http.MethodGet, "/products", "", nil, tokenCookie)
	assert.Equal(t, http.StatusOK, list.StatusCode)
	assert.Contains(t, readBody(t, list), "Buyer")

	// Self-registered accounts are never admins.
	create := env.do(http.MethodGet, "/products/create", "", nil, tokenCookie)
	assert.Equal(t, http.StatusForbidden, create.StatusCode)

	body, _ = json.Marshal(map[string]string{"email": "buyer@example.com", "password": "wrong"})
	req = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	bad, err := env.app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)
}

func TestNonAdminActionsNeverMutate(t *testing.T) {
	env := setupApp(t)
	product := env.createProduct("Product test", "19.99")

	requests := []struct {
		method string
		path   string
		form   url.Values
	}{
		{http.MethodGet, "/products/create", nil},
		{http.MethodPost, "/products", productForm("New product", "1")},
		{http.MethodGet, "/products/" + product.ID + "/edit", nil},
		{http.MethodPut, "/products/" + product.ID, productForm("Changed", "2")},
		{http.MethodDelete, "/products/" + product.ID, nil},
	}

	for _, r := range requests {
		t.Run(fmt.Sprintf("%s %s", r.method, r.path), func(t *testing.T) {
			resp := env.do(r.method, r.path, env.userToken, r.form)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}

	assert.Equal(t, int64(1), env.count())
	stored, err := env.products.GetByID(context.Background(), product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Product test", stored.Name)
}
