package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"poster-studio-server/modules/common/apperr"
	"poster-studio-server/modules/common/utils"
	"poster-studio-server/modules/history"
)

func newTestRouter(t *testing.T, svc *Service, store HistoryLister, uploads FileStore) *mux.Router {
	t.Helper()
	r := mux.NewRouter()
	NewHandler(svc, store, uploads).RegisterRoutes(r)
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestGenerateJSON(t *testing.T) {
	f := newFixture(t)
	store, err := history.NewStore(context.Background(), nil)
	require.NoError(t, err)
	router := newTestRouter(t, f.service(func(d *Deps) { d.History = store }), store, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(`{"prompt":"Diwali family poster","aspect_ratio":"9:16"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	poster := body["poster"].(map[string]interface{})
	assert.NotEmpty(t, poster["base64"])
	assert.Equal(t, "image/png", poster["mimeType"])
	run := body["run"].(map[string]interface{})
	assert.Equal(t, "target_reached", run["outcome"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decodeBody(t, rec)["runs"].([]interface{})
	require.Len(t, runs, 1)
	assert.Equal(t, "Diwali family poster", runs[0].(map[string]interface{})["prompt"])
}

func TestGenerateFailureMessage(t *testing.T) {
	f := newFixture(t)
	f.engine.err = &apperr.GenerationFailure{Engine: "stub", Err: errors.New("down")}
	router := newTestRouter(t, f.service(nil), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(`{"prompt":"x"}`)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, UserFailureMessage, body["errorMessage"])
}

func TestGenerateRejectsBadInput(t *testing.T) {
	router := newTestRouter(t, newFixture(t).service(nil), nil, nil)

	for _, payload := range []string{`{"prompt":""}`, `not json`, `{"prompt":"x","logos":["bm90IGFuIGltYWdl"]}`} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/generate", bytes.NewBufferString(payload)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, payload)
	}
}

func TestGenerateMultipartStoresUploads(t *testing.T) {
	f := newFixture(t)
	files := &stubFiles{}
	overlay := testPoster(t, 99)
	svc := f.service(func(d *Deps) { d.Assets = stubAssets{out: overlay} })
	router := newTestRouter(t, svc, nil, files)

	logo, err := utils.EncodePNG(image.NewNRGBA(image.Rect(0, 0, 4, 2)))
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("prompt", "bakery opening"))
	require.NoError(t, mw.WriteField("aspect_ratio", "4:3"))
	part, err := mw.CreateFormFile("logo", "brand.png")
	require.NoError(t, err)
	_, err = part.Write(logo)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/generate", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"logo"}, files.saved)
	assert.Equal(t, "4:3", f.engine.lastReq.AspectRatio)
	poster := decodeBody(t, rec)["poster"].(map[string]interface{})
	assert.Equal(t, overlay.ID, poster["id"], "uploads enable the asset overlay")
}

func TestEnhanceEndpoint(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(t, f.service(nil), nil, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enhance", bytes.NewBufferString(`{"prompt":"tea festival","variants":3}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Len(t, body["candidates"], 3)
	assert.Equal(t, "v1", body["best"].(map[string]interface{})["text"])

	f.ranker.err = &apperr.RankingIntegrityError{Judged: "?"}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/enhance", bytes.NewBufferString(`{"prompt":"tea festival"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
