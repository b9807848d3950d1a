package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"assetbook/internal/config"
	"assetbook/internal/database"
	"assetbook/internal/events"
	"assetbook/internal/models"
	"assetbook/internal/repository"
	"assetbook/internal/security"
	"assetbook/internal/service"
	"assetbook/internal/storage"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type outbox struct {
	mu   sync.Mutex
	sent []models.Email
}

func (o *outbox) Enqueue(msg models.Email) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

type testAPI struct {
	ts           *httptest.Server
	db           *database.DB
	tokens       *security.TokenManager
	verification *security.VerificationTokens
	mail         *outbox
	asset        *models.Asset

	adminToken string
	aliceToken string
	bobToken   string
}

func newTestAPI(t *testing.T, rl config.APIRateLimitConfig) *testAPI {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := storage.NewLocalStore(t.TempDir(), 1, &logger)
	require.NoError(t, err)

	a := &testAPI{
		db:           db,
		tokens:       security.NewTokenManager("test-secret", time.Hour, 24*time.Hour),
		verification: security.NewVerificationTokens("verify-secret", nil, 24*time.Hour),
		mail:         &outbox{},
	}

	bus := events.NewEventBus()
	svc := Services{
		Bookings: service.NewBookingService(db, db, db, images, repository.NewMemoryStore(), bus,
			config.BookingConfig{MaxRequestsPerWindow: 50, RequestWindow: time.Hour}, &logger),
		Assets: service.NewAssetService(db, db, images, &logger),
		Auth:   service.NewAuthService(db, a.tokens, a.verification, a.mail, "http://localhost/verify", &logger),
		Export: service.NewExportService(db, db, "", &logger),
		Images: images,
	}

	cfg := config.APIConfig{RateLimit: rl}
	server := NewHTTPServer(cfg, config.StorageConfig{MaxFileSizeMB: 1}, svc, &logger)
	a.ts = httptest.NewServer(server.Handler())
	t.Cleanup(a.ts.Close)

	a.adminToken = a.createUser(t, "admin", true)
	a.aliceToken = a.createUser(t, "alice", false)
	a.bobToken = a.createUser(t, "bob", false)

	a.asset = &models.Asset{Name: "Sony FX3", Available: true}
	require.NoError(t, svc.Assets.Create(ctx, a.asset))
	return a
}

func (a *testAPI) createUser(t *testing.T, username string, staff bool) string {
	t.Helper()
	ctx := context.Background()
	hash, err := security.HashPassword("password123")
	require.NoError(t, err)
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		FirstName:    strings.ToUpper(username[:1]) + username[1:],
		IsStaff:      staff,
	}
	require.NoError(t, a.db.CreateUser(ctx, user))
	require.NoError(t, a.db.MarkEmailVerified(ctx, user.ID, time.Now()))

	token, err := a.tokens.GenerateAccessToken(user.ID, staff)
	require.NoError(t, err)
	return token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, a.ts.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(t, req, token)
}

func (a *testAPI) upload(t *testing.T, method, path, token string, image []byte) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if image != nil {
		part, err := mw.CreateFormFile("image", "photo.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("note", "handover"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(method, a.ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.send(t, req, token)
}

func (a *testAPI) send(t *testing.T, req *http.Request, token string) (*http.Response, map[string]any) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (a *testAPI) createBooking(t *testing.T, token string, start time.Time) int64 {
	t.Helper()
	resp, body := a.do(t, http.MethodPost, "/api/v1/bookings", token, map[string]any{
		"asset":          a.asset.ID,
		"start_datetime": start.Format(time.RFC3339),
		"end_datetime":   start.Add(2 * time.Hour).Format(time.RFC3339),
		"purpose":        "shoot",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return int64(body["id"].(float64))
}

func futureStart() time.Time {
	return time.Now().UTC().Add(72 * time.Hour).Truncate(time.Hour)
}

func TestHealthzAndRequestID(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})

	resp, body := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req, err := http.NewRequest(http.MethodGet, a.ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "fixed-id")
	resp, _ = a.send(t, req, "")
	assert.Equal(t, "fixed-id", resp.Header.Get(requestIDHeader))

	resp, body = a.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not found", body["detail"])

	resp, body = a.do(t, http.MethodDelete, "/api/v1/assets", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "method not allowed", body["detail"])

	resp, _ = a.do(t, http.MethodPut, "/api/v1/bookings/1", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})

	resp, body := a.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username":   "carol",
		"password":   "longenough",
		"email":      "carol@example.com",
		"first_name": "Carol",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "carol", body["username"])
	require.Len(t, a.mail.sent, 1)
	assert.Contains(t, a.mail.sent[0].Text, "http://localhost/verify?token=")

	resp, body = a.do(t, http.MethodPost, "/api/v1/auth/signup", "", map[string]string{
		"username": "carol", "password": "longenough", "email": "other@example.com", "first_name": "C",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["detail"], "username")

	creds := map[string]string{"username": "carol", "password": "longenough"}
	resp, _ = a.do(t, http.MethodPost, "/api/v1/auth/token", "", creds)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "inactive account")

	token, err := a.verification.Generate("carol")
	require.NoError(t, err)

	resp, body = a.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"token": token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	resp, body = a.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"token": token})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_verified", body["status"])

	resp, _ = a.do(t, http.MethodPost, "/api/v1/auth/verify-email", "", map[string]string{"token": "garbage"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = a.do(t, http.MethodPost, "/api/v1/auth/token", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	access, refresh := body["access"].(string), body["refresh"].(string)
	assert.NotEmpty(t, access)

	resp, body = a.do(t, http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access"])

	resp, _ = a.do(t, http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": access})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "access token is not a refresh token")

	resp, _ = a.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"username": "carol", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"username": "carol"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAuthenticationMiddleware(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})

	resp, body := a.do(t, http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body["detail"])

	resp, _ = a.do(t, http.MethodGet, "/api/v1/bookings", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, a.ts.URL+"/api/v1/bookings", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic abc")
	resp, _ = a.send(t, req, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/bookings", a.aliceToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAssetEndpoints(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})
	ctx := context.Background()

	studio := &models.Location{Name: "Studio"}
	require.NoError(t, a.db.CreateLocation(ctx, studio))
	cameras := &models.Category{Name: "Cameras"}
	require.NoError(t, a.db.CreateCategory(ctx, cameras))
	cinema := &models.SubCategory{CategoryID: cameras.ID, Name: "Cinema"}
	require.NoError(t, a.db.CreateSubCategory(ctx, cinema))

	t.Run("PublicList", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, a.ts.URL+"/api/v1/assets", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var assets []models.Asset
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&assets))
		require.Len(t, assets, 1)
		assert.Equal(t, models.DisplayAvailable, assets[0].Status)
	})

	t.Run("CreateRequiresAdmin", func(t *testing.T) {
		payload := map[string]any{"name": "Tripod", "subcategory": cinema.ID, "location": studio.ID}

		resp, _ := a.do(t, http.MethodPost, "/api/v1/assets", "", payload)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = a.do(t, http.MethodPost, "/api/v1/assets", a.aliceToken, payload)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		resp, body := a.do(t, http.MethodPost, "/api/v1/assets", a.adminToken, payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode, body)
		assert.Equal(t, "Tripod", body["name"])
		assert.Equal(t, float64(cameras.ID), body["category"])
		assert.Equal(t, true, body["available"])
		assert.Equal(t, models.DisplayAvailable, body["status"])

		resp, _ = a.do(t, http.MethodPost, "/api/v1/assets", a.adminToken, map[string]any{"name": " "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("PatchMoveHistory", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/assets/%d", a.asset.ID)

		resp, body := a.do(t, http.MethodPatch, path, a.adminToken, map[string]any{"details": "body only", "available": false})
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Equal(t, "body only", body["details"])
		assert.Equal(t, models.DisplayOutOfStock, body["status"])

		resp, _ = a.do(t, http.MethodPost, path+"/move", a.adminToken, map[string]any{"location": studio.ID, "note": "unpacked"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, _ = a.do(t, http.MethodPost, path+"/move", a.adminToken, map[string]any{"location": 999})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		req, err := http.NewRequest(http.MethodGet, a.ts.URL+path+"/history", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+a.adminToken)
		httpResp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer httpResp.Body.Close()
		var history []models.LocationHistory
		require.NoError(t, json.NewDecoder(httpResp.Body).Decode(&history))
		require.Len(t, history, 1)
		assert.Equal(t, "unpacked", history[0].Note)

		resp, _ = a.do(t, http.MethodGet, "/api/v1/assets/999", "", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Image", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/assets/%d/image", a.asset.ID)

		resp, _ := a.upload(t, http.MethodPut, path, a.adminToken, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, body := a.upload(t, http.MethodPut, path, a.adminToken, pngBytes)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		key := body["image"].(string)
		assert.True(t, strings.HasPrefix(key, storage.PrefixAssets+"/"))

		media, err := http.Get(a.ts.URL + "/media/" + key)
		require.NoError(t, err)
		defer media.Body.Close()
		assert.Equal(t, http.StatusOK, media.StatusCode)
		assert.Equal(t, "image/png", media.Header.Get("Content-Type"))
		got, err := io.ReadAll(media.Body)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, got)

		missing, err := http.Get(a.ts.URL + "/media/assets/none.png")
		require.NoError(t, err)
		missing.Body.Close()
		assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	})

	t.Run("Catalog", func(t *testing.T) {
		resp, _ := a.do(t, http.MethodGet, "/api/v1/categories", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/subcategories?category=%d", cameras.ID), "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp, _ = a.do(t, http.MethodGet, "/api/v1/subcategories?category=abc", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		resp, _ = a.do(t, http.MethodGet, "/api/v1/locations", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})
	start := futureStart()

	id := a.createBooking(t, a.aliceToken, start)
	path := fmt.Sprintf("/api/v1/bookings/%d", id)

	// пересечение с учётом буфера
	resp, body := a.do(t, http.MethodPost, "/api/v1/bookings", a.bobToken, map[string]any{
		"asset":          a.asset.ID,
		"start_datetime": start.Add(150 * time.Minute).Format(time.RFC3339),
		"end_datetime":   start.Add(4 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["detail"])

	resp, _ = a.do(t, http.MethodGet, path, a.bobToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "foreign booking is hidden")

	resp, body = a.do(t, http.MethodGet, path, a.aliceToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "alice@example.com", body["contact_email"])

	resp, body = a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/assets/%d", a.asset.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.DisplayAvailable, body["status"], "booking has not started yet")

	resp, _ = a.do(t, http.MethodPost, path+"/accept", a.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = a.do(t, http.MethodPost, path+"/accept", a.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "accepted", body["status"])

	resp, body = a.do(t, http.MethodPost, path+"/accept", a.adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "accept is idempotent")
	assert.Equal(t, "accepted", body["status"])

	resp, _ = a.do(t, http.MethodPatch, path, a.aliceToken, map[string]any{"purpose": "changed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "only pending bookings can be edited")

	resp, _ = a.do(t, http.MethodPost, path+"/return_asset", a.aliceToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "state is checked before the image")

	resp, body = a.upload(t, http.MethodPost, path+"/receive", a.aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "image is required", body["detail"])

	resp, body = a.upload(t, http.MethodPost, path+"/receive", a.aliceToken, pngBytes)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "received", body["status"])
	assert.NotNil(t, body["received_at"])
	assert.True(t, strings.HasPrefix(body["received_image"].(string), storage.PrefixReceived+"/"))

	resp, _ = a.upload(t, http.MethodPost, path+"/receive", a.aliceToken, pngBytes)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = a.upload(t, http.MethodPost, path+"/return_asset", a.aliceToken, pngBytes)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "returned", body["status"])
	assert.NotNil(t, body["returned_at"])

	// returned bookings do not block the same window
	a.createBooking(t, a.bobToken, start)
}

func TestBookingCancelAndList(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})
	start := futureStart()

	aliceID := a.createBooking(t, a.aliceToken, start)
	bobID := a.createBooking(t, a.bobToken, start.Add(24*time.Hour))

	path := fmt.Sprintf("/api/v1/bookings/%d", aliceID)
	resp, body := a.do(t, http.MethodPatch, path, a.aliceToken, map[string]any{"purpose": "rehearsal"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "rehearsal", body["purpose"])

	resp, body = a.do(t, http.MethodPost, path+"/cancel", a.aliceToken, map[string]string{"reason": "sick"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "cancellation_requested", body["status"])
	assert.Equal(t, "sick", body["cancellation_reason"])

	resp, _ = a.do(t, http.MethodPost, path+"/cancel_approve", a.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = a.do(t, http.MethodPost, path+"/cancel_approve", a.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])

	resp, _ = a.do(t, http.MethodPost, path+"/cancel_approve", a.adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	list := func(token, query string) []models.Booking {
		req, err := http.NewRequest(http.MethodGet, a.ts.URL+"/api/v1/bookings"+query, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []models.Booking
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	mine := list(a.aliceToken, "")
	require.Len(t, mine, 1)
	assert.Equal(t, aliceID, mine[0].ID)

	assert.Len(t, list(a.adminToken, ""), 2)
	pending := list(a.adminToken, "?status=pending")
	require.Len(t, pending, 1)
	assert.Equal(t, bobID, pending[0].ID)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/bookings?status=bogus", a.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodPost, "/api/v1/bookings/999/accept", a.adminToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBookingValidation(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})
	start := futureStart()

	resp, body := a.do(t, http.MethodPost, "/api/v1/bookings", a.aliceToken, map[string]any{
		"asset":          a.asset.ID,
		"start_datetime": start.Format(time.RFC3339),
		"end_datetime":   start.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "end must be after start", body["detail"])

	past := time.Now().Add(-48 * time.Hour)
	resp, _ = a.do(t, http.MethodPost, "/api/v1/bookings", a.aliceToken, map[string]any{
		"asset":          a.asset.ID,
		"start_datetime": past.Format(time.RFC3339),
		"end_datetime":   past.Add(time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, a.ts.URL+"/api/v1/bookings", strings.NewReader("{broken"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, body = a.send(t, req, a.aliceToken)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid JSON body", body["detail"])
}

func TestAvailabilityEndpoint(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})
	start := futureStart()
	a.createBooking(t, a.aliceToken, start)

	check := func(from, to time.Time) bool {
		path := fmt.Sprintf("/api/v1/assets/%d/availability?start=%s&end=%s",
			a.asset.ID, from.Format(time.RFC3339), to.Format(time.RFC3339))
		resp, body := a.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		return body["available"].(bool)
	}

	assert.False(t, check(start.Add(30*time.Minute), start.Add(90*time.Minute)))
	assert.False(t, check(start.Add(150*time.Minute), start.Add(4*time.Hour)), "inside the buffer")
	assert.True(t, check(start.Add(3*time.Hour), start.Add(4*time.Hour)), "buffer edge touches")

	resp, _ := a.do(t, http.MethodGet, fmt.Sprintf("/api/v1/assets/%d/availability", a.asset.ID), "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportEndpoint(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{})
	start := futureStart()
	a.createBooking(t, a.aliceToken, start)

	from := start.Format(dateLayout)
	to := start.Add(24 * time.Hour).Format(dateLayout)
	path := "/api/v1/admin/bookings/export?from=" + from + "&to=" + to

	resp, _ := a.do(t, http.MethodGet, path, a.aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, "/api/v1/admin/bookings/export?from="+from, a.adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = a.do(t, http.MethodGet, path, a.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "spreadsheetml")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), ".xlsx")
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, config.APIRateLimitConfig{RPS: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		resp, _ := a.do(t, http.MethodGet, "/healthz", "", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := a.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate limit exceeded", body["detail"])
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{database.ErrNotAvailable, http.StatusConflict},
		{database.ErrBookingNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", database.ErrConcurrentModification), http.StatusConflict},
		{storage.ErrUnsupportedType, http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestHTTPServer_StartStop(t *testing.T) {
	logger := zerolog.Nop()
	s := NewHTTPServer(config.APIConfig{HTTP: config.APIHTTPConfig{Port: 0}}, config.StorageConfig{}, Services{}, &logger)
	assert.Equal(t, ":0", s.Addr())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}
