package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/internal/importer"
	"storefront-service/internal/middleware"
	"storefront-service/internal/models"
	"storefront-service/internal/session"
)

type stubRepo struct {
	existing map[string]bool
	upserts  []*models.Product
}

func (s *stubRepo) ExistingSKUs(merchantID string, skus []string) (map[string]bool, error) {
	out := make(map[string]bool)
	for _, sku := range skus {
		if s.existing[sku] {
			out[sku] = true
		}
	}
	return out, nil
}

func (s *stubRepo) UpsertBySKU(merchantID string, product *models.Product, updateExisting bool) (bool, error) {
	s.upserts = append(s.upserts, product)
	if s.existing[product.SKU] {
		return false, nil
	}
	s.existing[product.SKU] = true
	return true, nil
}

type stubUploader struct{}

func (stubUploader) Upload(ctx context.Context, key string, content []byte) (string, error) {
	return "https://assets.example.com/" + key, nil
}

type stubCategories struct {
	names     map[string]string
	defaultID string
	err       error
}

func (s *stubCategories) CategoryNames(merchantID string) (map[string]string, error) {
	return s.names, s.err
}

func (s *stubCategories) DefaultCategoryID(merchantID string) (string, error) {
	return s.defaultID, s.err
}

type importTestEnv struct {
	router *gin.Engine
	repo   *stubRepo
	store  *session.MemoryStore
}

func newImportTestEnv(t *testing.T, categories *stubCategories) *importTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	repo := &stubRepo{existing: make(map[string]bool)}
	store := session.NewMemoryStore(0)
	t.Cleanup(store.Close)

	engine := importer.NewEngine(repo, stubUploader{}, logger)
	handler := NewImportHandler(repo, store, engine, categories, nil, ImportOptions{
		SessionTTL:   time.Minute,
		CleanupGrace: time.Hour, // keep the session around for assertions
	}, logger)

	router := gin.New()
	api := router.Group("/api/v1")
	api.Use(middleware.AuthContextMiddleware())
	api.Use(middleware.MerchantMiddleware())
	api.GET("/products/import/template", handler.GetImportTemplate)
	api.POST("/products/import", handler.StageImport)
	api.GET("/products/import/:sessionId", handler.GetImportSession)
	api.POST("/products/import/:sessionId/commit", handler.CommitImport)
	api.POST("/products/import/failures/report", handler.FailuresReport)

	return &importTestEnv{router: router, repo: repo, store: store}
}

type caller struct {
	merchantID string
	userID     string
	role       string
}

var owner = caller{merchantID: "m-1", userID: "u-1", role: "merchant"}

func (env *importTestEnv) do(t *testing.T, as caller, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Merchant-ID", as.merchantID)
	req.Header.Set("X-User-ID", as.userID)
	req.Header.Set("X-User-Role", as.role)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func multipartCSV(t *testing.T, csv string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "products.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (env *importTestEnv) stage(t *testing.T, csv string, fields map[string]string) StageImportResponse {
	t.Helper()
	body, contentType := multipartCSV(t, csv, fields)
	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import", body, contentType)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp StageImportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

const importCSV = "sku,name,price,currency,category,stock\n" +
	"A1,Shirt,10,USD,Clothing,5\n" +
	"B2,Mug,12.50,USD,Kitchen,3\n"

func TestStageImport(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	resp := env.stage(t, importCSV, nil)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 2, resp.TotalRows)
	assert.Equal(t, 2, resp.ValidRows)
	assert.Equal(t, 0, resp.InvalidRows)
	assert.Equal(t, models.ImportModeURL, resp.Mode)
	assert.Len(t, resp.Preview, 2)
	assert.True(t, resp.ExpiresAt.After(time.Now()))
}

func TestStageImportRejectsMissingFile(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import", nil, "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "FILE_REQUIRED")
}

func TestStageImportRejectsEmptyFile(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	body, contentType := multipartCSV(t, "sku,name,price\n", nil)
	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import", body, contentType)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "EMPTY_FILE")
}

func TestStageImportRequiresMerchantHeader(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	body, contentType := multipartCSV(t, importCSV, nil)
	w := env.do(t, caller{userID: "u-1", role: "merchant"}, http.MethodPost, "/api/v1/products/import", body, contentType)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetImportSession(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})
	staged := env.stage(t, importCSV, nil)

	w := env.do(t, owner, http.MethodGet, "/api/v1/products/import/"+staged.SessionID, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(session.StatusStaged), resp["status"])
	assert.Equal(t, float64(2), resp["totalRows"])
}

func TestGetImportSessionForeignUserForbidden(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})
	staged := env.stage(t, importCSV, nil)

	other := caller{merchantID: "m-1", userID: "u-2", role: "merchant"}
	w := env.do(t, other, http.MethodGet, "/api/v1/products/import/"+staged.SessionID, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin role bypasses ownership
	admin := caller{merchantID: "m-9", userID: "u-9", role: "admin"}
	w = env.do(t, admin, http.MethodGet, "/api/v1/products/import/"+staged.SessionID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGetImportSessionUnknownID(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	w := env.do(t, owner, http.MethodGet, "/api/v1/products/import/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommitImport(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{
		names: map[string]string{"clothing": "cat-1", "kitchen": "cat-2"},
	})
	staged := env.stage(t, importCSV, nil)

	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import/"+staged.SessionID+"/commit", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool                `json:"success"`
		Result  models.CommitResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Result.InsertedCount)
	assert.Equal(t, 0, resp.Result.FailedCount)
	require.Len(t, env.repo.upserts, 2)
	assert.Equal(t, "cat-2", env.repo.upserts[1].CategoryID)
}

func TestCommitImportDoubleCommitConflicts(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{
		names: map[string]string{"clothing": "cat-1", "kitchen": "cat-2"},
	})
	staged := env.stage(t, importCSV, nil)
	path := "/api/v1/products/import/" + staged.SessionID + "/commit"

	w := env.do(t, owner, http.MethodPost, path, nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, owner, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_COMMITTED")

	// The catalog saw the batch exactly once
	assert.Len(t, env.repo.upserts, 2)
}

func TestCommitImportCategoryOutageLeavesSessionStaged(t *testing.T) {
	categories := &stubCategories{err: assert.AnError}
	env := newImportTestEnv(t, categories)
	staged := env.stage(t, importCSV, nil)
	path := "/api/v1/products/import/" + staged.SessionID + "/commit"

	w := env.do(t, owner, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	// The outage must not burn the session; a retry succeeds
	categories.err = nil
	categories.names = map[string]string{"clothing": "cat-1", "kitchen": "cat-2"}
	w = env.do(t, owner, http.MethodPost, path, nil, "")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestCommitImportUpdateExistingFlag(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{
		names: map[string]string{"clothing": "cat-1", "kitchen": "cat-2"},
	})
	env.repo.existing["A1"] = true

	staged := env.stage(t, importCSV, map[string]string{"updateExisting": "true"})
	require.NotEmpty(t, staged.Warnings) // will-update warning for A1

	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import/"+staged.SessionID+"/commit", nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result models.CommitResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Result.UpdatedCount)
	assert.Equal(t, 1, resp.Result.InsertedCount)
}

func TestFailuresReportCSVAttachment(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	payload := `{"failures":[{"rowIndex":2,"sku":"C3","name":"Lamp","reason":"validation failed",` +
		`"errors":[{"field":"price","message":"price must be a valid number"}]}]}`
	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import/failures/report",
		bytes.NewBufferString(payload), "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "import_failures.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "row,sku,name,reason,errors", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "3,C3,"))
}

func TestFailuresReportJSONFormat(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	payload := `{"failures":[],"format":"json"}`
	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import/failures/report",
		bytes.NewBufferString(payload), "application/json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "import_failures.json")
	assert.Contains(t, w.Body.String(), `"count": 0`)
}

func TestFailuresReportRejectsUnknownFormat(t *testing.T) {
	env := newImportTestEnv(t, &stubCategories{})

	payload := `{"failures":[],"format":"xml"}`
	w := env.do(t, owner, http.MethodPost, "/api/v1/products/import/failures/report",
		bytes.NewBufferString(payload), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
