package handlers_test

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"strings"
	"testing"

	"printwerk/internal/handlers"
	"printwerk/internal/models"
	"printwerk/internal/repositories"
	"printwerk/internal/services"
	"printwerk/internal/storage"
	"printwerk/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

// testEnv bundles the Fiber app with the services the tests poke directly.
type testEnv struct {
	app    *fiber.App
	orders *services.OrderService
}

// setupApp builds the full handler stack over an in-memory repository and a
// temp upload directory.
func setupApp(t *testing.T) *testEnv {
	return setupAppWithLimit(t, 10)
}

func setupAppWithLimit(t *testing.T, maxUploadMB int) *testEnv {
	t.Helper()

	orderRepo := repositories.NewMemoryOrderRepository()
	orderService := services.NewOrderService(orderRepo, nil, "EUR")
	authService := services.NewAuthService("admin", "s3cret", "test_session_secret")
	uploadStore := storage.NewUploadStore(t.TempDir(), maxUploadMB)

	app := fiber.New(fiber.Config{
		Views:        views.NewEngine(),
		BodyLimit:    (maxUploadMB + 1) * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler("Testwerk", maxUploadMB),
	})

	handlers.NewPublicHandler(orderService, uploadStore, "Testwerk").RegisterRoutes(app)
	handlers.NewAdminHandler(orderService, authService, "Testwerk").RegisterRoutes(app)

	return &testEnv{app: app, orders: orderService}
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

// submitForm posts the intake form, optionally with an image part.
func submitForm(t *testing.T, app *fiber.App, fields map[string]string, imageName, imageType string, image []byte) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		assert.NoError(t, w.WriteField(k, v))
	}
	if image != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, imageName))
		h.Set("Content-Type", imageType)
		part, err := w.CreatePart(h)
		assert.NoError(t, err)
		_, err = part.Write(image)
		assert.NoError(t, err)
	}
	assert.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/submit", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func validFields(name string) map[string]string {
	return map[string]string{
		"customer_name":  name,
		"customer_email": strings.ToLower(name) + "@example.com",
		"description":    "one benchy in orange PLA",
		"model_link":     "https://example.com/benchy.stl",
	}
}

// adminLogin logs in and returns the session cookie.
func adminLogin(t *testing.T, app *fiber.App, username, password string) (*http.Cookie, *http.Response) {
	t.Helper()

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)

	for _, c := range resp.Cookies() {
		if c.Name == "admin_session" && c.Value != "" {
			return c, resp
		}
	}
	return nil, resp
}

// postForm posts url-encoded form fields, optionally with the session cookie.
func postForm(t *testing.T, app *fiber.App, path string, fields map[string]string, cookie *http.Cookie) *http.Response {
	t.Helper()

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func get(t *testing.T, app *fiber.App, path string, cookie *http.Cookie) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()
	return string(data)
}

func TestSubmitAndPublicView(t *testing.T) {
	env := setupApp(t)

	resp := submitForm(t, env.app, validFields("Alice"), "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "/r/")

	orders, err := env.orders.ListOrders("alice", "")
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	order := orders[0]
	assert.Equal(t, models.StatusNew, order.Status)
	assert.Len(t, order.Token, 24)
	assert.Regexp(t, `^[A-Za-z0-9_-]+$`, order.Token)

	resp = get(t, env.app, "/r/"+order.Token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Alice")

	// Unknown tokens get the not-found view, not an error page.
	resp = get(t, env.app, "/r/does-not-exist-token-xx", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "nicht gefunden")
}

func TestSubmitValidation(t *testing.T) {
	env := setupApp(t)

	// Missing email re-renders the form; nothing is persisted.
	fields := validFields("Bob")
	fields["customer_email"] = ""
	resp := submitForm(t, env.app, fields, "", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	readBody(t, resp)

	// Non-image uploads are refused.
	fields = validFields("Bob")
	resp = submitForm(t, env.app, fields, "notes.pdf", "application/pdf", []byte("%PDF-"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "Bilder")

	orders, err := env.orders.ListOrders("bob", "")
	assert.NoError(t, err)
	assert.Empty(t, orders)
}

func TestSubmitOversizedImage(t *testing.T) {
	env := setupAppWithLimit(t, 1)

	// Over the image limit but within the body headroom: the handler
	// re-renders the form.
	resp := submitForm(t, env.app, validFields("Mallory"), "big.png", "image/png",
		bytes.Repeat([]byte{0x42}, 1536*1024))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "zu groß")

	// Beyond the body limit the request never reaches the handler; the
	// error handler answers with the same re-rendered form.
	resp = submitForm(t, env.app, validFields("Mallory"), "huge.png", "image/png",
		bytes.Repeat([]byte{0x42}, 2560*1024))
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "zu groß")

	orders, err := env.orders.ListOrders("mallory", "")
	assert.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCustomerDecisionGuard(t *testing.T) {
	env := setupApp(t)

	token, err := services.NewToken()
	assert.NoError(t, err)
	order, err := env.orders.CreateOrder(services.CreateOrderInput{
		Token:         token,
		CustomerName:  "Carol",
		CustomerEmail: "carol@example.com",
		Description:   "lithophane",
	})
	assert.NoError(t, err)

	// A decision before any quote exists must not change the status.
	resp := postForm(t, env.app, "/r/"+token+"/decision", map[string]string{"decision": "accept"}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	current, err := env.orders.GetByToken(token)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusNew, current.Status)

	// Quote the order, then the decision sticks.
	_, err = env.orders.SetPrice(order.ID, "12,50")
	assert.NoError(t, err)

	resp = postForm(t, env.app, "/r/"+token+"/decision",
		map[string]string{"decision": "accept", "note": "please go ahead"}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	current, err = env.orders.GetByToken(token)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPriceAccepted, current.Status)
	assert.Equal(t, "please go ahead", current.CustomerDecisionNote)

	// Repeating the decision is an idempotent no-op.
	resp = postForm(t, env.app, "/r/"+token+"/decision", map[string]string{"decision": "reject"}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	current, err = env.orders.GetByToken(token)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPriceAccepted, current.Status)
}

func TestUploadPathCheck(t *testing.T) {
	env := setupApp(t)

	content := []byte("secret image bytes")
	resp := submitForm(t, env.app, validFields("Dave"), "evil.png", "image/png", content)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)

	orders, err := env.orders.ListOrders("dave", "")
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	token := orders[0].Token
	assert.Equal(t, "uploads/"+token+"/evil.png", orders[0].ImagePath)

	// The recorded path serves the file.
	resp = get(t, env.app, "/uploads/"+token+"/evil.png", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, string(content), readBody(t, resp))

	// A different filename on the same token must not leak the stored file.
	resp = get(t, env.app, "/uploads/"+token+"/other.png", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	// Unknown tokens redirect as well.
	resp = get(t, env.app, "/uploads/unknowntoken/evil.png", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestAdminAuth(t *testing.T) {
	env := setupApp(t)

	// The dashboard is gated.
	resp := get(t, env.app, "/admin", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin/login", resp.Header.Get("Location"))

	// Wrong credentials re-render the login form with 401.
	cookie, resp := adminLogin(t, env.app, "admin", "wrong")
	assert.Nil(t, cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "fehlgeschlagen")

	// Correct credentials set the session cookie and redirect to the list.
	cookie, resp = adminLogin(t, env.app, "admin", "s3cret")
	assert.NotNil(t, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))

	resp = get(t, env.app, "/admin", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// A tampered cookie is rejected.
	bad := &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}
	resp = get(t, env.app, "/admin", bad)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestAdminLifecycle(t *testing.T) {
	env := setupApp(t)

	cookie, _ := adminLogin(t, env.app, "admin", "s3cret")
	assert.NotNil(t, cookie)

	token, err := services.NewToken()
	assert.NoError(t, err)
	order, err := env.orders.CreateOrder(services.CreateOrderInput{
		Token:         token,
		CustomerName:  "Erin",
		CustomerEmail: "erin@example.com",
		Description:   "spare part",
	})
	assert.NoError(t, err)
	orderPath := fmt.Sprintf("/admin/order/%d", order.ID)

	// Accept for pricing.
	resp := postForm(t, env.app, orderPath+"/accept", map[string]string{"admin_note": "checking filament"}, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, orderPath, resp.Header.Get("Location"))

	current, _ := env.orders.GetByID(order.ID)
	assert.Equal(t, models.StatusAwaitingPrice, current.Status)
	assert.Equal(t, "checking filament", current.AdminNote)

	// Accepting again from AWAITING_PRICE is silently ignored.
	resp = postForm(t, env.app, orderPath+"/accept", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	current, _ = env.orders.GetByID(order.ID)
	assert.Equal(t, models.StatusAwaitingPrice, current.Status)

	// Completing before the quote was accepted is silently ignored.
	resp = postForm(t, env.app, orderPath+"/complete", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	current, _ = env.orders.GetByID(order.ID)
	assert.Equal(t, models.StatusAwaitingPrice, current.Status)

	// Send the quote.
	resp = postForm(t, env.app, orderPath+"/set_price", map[string]string{"price_eur": "12,50"}, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	current, _ = env.orders.GetByID(order.ID)
	assert.Equal(t, models.StatusPriceSent, current.Status)
	assert.Equal(t, int64(1250), *current.PriceCents)

	// A bad price string leaves the order unchanged.
	resp = postForm(t, env.app, orderPath+"/set_price", map[string]string{"price_eur": "dreifuffzig"}, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	current, _ = env.orders.GetByID(order.ID)
	assert.Equal(t, int64(1250), *current.PriceCents)

	// The detail view renders the localized price.
	resp = get(t, env.app, orderPath, cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "12,50 €")

	// Customer accepts, admin completes.
	resp = postForm(t, env.app, "/r/"+token+"/decision", map[string]string{"decision": "accept"}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = postForm(t, env.app, orderPath+"/complete", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	current, _ = env.orders.GetByID(order.ID)
	assert.Equal(t, models.StatusCompleted, current.Status)

	// Unknown order ids bounce back to the list.
	resp = postForm(t, env.app, "/admin/order/9999/complete", nil, cookie)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))
}

func TestAdminDashboardFilters(t *testing.T) {
	env := setupApp(t)

	cookie, _ := adminLogin(t, env.app, "admin", "s3cret")
	assert.NotNil(t, cookie)

	for _, name := range []string{"Frank", "Grace"} {
		token, err := services.NewToken()
		assert.NoError(t, err)
		_, err = env.orders.CreateOrder(services.CreateOrderInput{
			Token:         token,
			CustomerName:  name,
			CustomerEmail: strings.ToLower(name) + "@example.com",
			Description:   "something printable",
		})
		assert.NoError(t, err)
	}

	resp := get(t, env.app, "/admin?q=grace", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Grace")
	assert.NotContains(t, body, "Frank")

	resp = get(t, env.app, "/admin?status_filter=COMPLETED", cookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body = readBody(t, resp)
	assert.NotContains(t, body, "Grace")
	assert.NotContains(t, body, "Frank")
}
