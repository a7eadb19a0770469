package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/umbradev/umbra/internal/manifest"
	"github.com/umbradev/umbra/internal/model"
	"github.com/umbradev/umbra/pkg/darknet"
)

const testManifest = `{
	"name": "tiny",
	"channels": 3,
	"layers": [
		{"type": "conv", "filters": 2, "size": 1, "batch_normalize": true},
		{"type": "maxpool", "size": 2},
		{"type": "conv", "filters": 4, "size": 1}
	]
}`

// testManifest totals 26 elements: 8 norm params + 6 weights in conv0,
// 4 biases + 8 weights in conv2.
const testManifestElements = 26

var testHeader = darknet.Header{Major: 0, Minor: 2, Revision: 5, Seen: 32013312}

func newTestEcho(modelsDir string) *echo.Echo {
	server := NewServer(modelsDir)
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func writeTestManifest(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tiny.json")
	if err := os.WriteFile(path, []byte(testManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func buildTestNetwork(t *testing.T) *model.Network {
	t.Helper()
	man, err := manifest.Parse([]byte(testManifest))
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	net := man.Build()
	fillNetwork(net)
	return net
}

func fillNetwork(net *model.Network) {
	v := float32(1)
	for _, d := range net.Descriptors() {
		for _, dst := range []darknet.TensorDest{d.NormBias, d.NormWeight, d.NormMean, d.NormVar, d.Bias, d.Weight} {
			for i := range dst.Data {
				dst.Data[i] = v
				v++
			}
		}
	}
}

func writeTestWeights(t *testing.T, dir, name string, m darknet.Model) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := darknet.SaveWeights(path, testHeader, m); err != nil {
		t.Fatalf("save weights: %v", err)
	}
	return path
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEcho(t.TempDir())
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("health status field: got %q want %q", resp.Status, "ok")
	}
	if resp.Version == "" {
		t.Fatal("expected a version string")
	}
}

func TestListModelsEndpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	net := buildTestNetwork(t)
	writeTestWeights(t, dir, "alpha.weights", net)
	writeTestWeights(t, dir, "beta.weights", net)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write decoy: %v", err)
	}

	e := newTestEcho(dir)
	rec := doJSON(t, e, http.MethodGet, "/v1/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp ModelList
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if resp.Object != "list" {
		t.Fatalf("list object: got %q want %q", resp.Object, "list")
	}
	if len(resp.Data) != 2 {
		t.Fatalf("model count: got %d want 2", len(resp.Data))
	}
	if resp.Data[0].ID != "alpha" || resp.Data[1].ID != "beta" {
		t.Fatalf("model ids: got %q, %q", resp.Data[0].ID, resp.Data[1].ID)
	}
	for _, m := range resp.Data {
		if m.Object != "model" {
			t.Fatalf("model object: got %q want %q", m.Object, "model")
		}
		if m.SizeBytes != 20+testManifestElements*4 {
			t.Fatalf("model size: got %d want %d", m.SizeBytes, 20+testManifestElements*4)
		}
	}
}

func TestInspectEndpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeTestWeights(t, dir, "tiny.weights", buildTestNetwork(t))

	e := newTestEcho(dir)
	rec := doJSON(t, e, http.MethodPost, "/v1/inspect", `{"file":"tiny"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("inspect status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp InspectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode inspect response: %v", err)
	}
	if resp.Model != "tiny" {
		t.Fatalf("model name: got %q want %q", resp.Model, "tiny")
	}
	if resp.Version != "v0.2.5-32013312" {
		t.Fatalf("version: got %q want %q", resp.Version, "v0.2.5-32013312")
	}
	if resp.Elements != testManifestElements {
		t.Fatalf("elements: got %d want %d", resp.Elements, testManifestElements)
	}
	if resp.PayloadBytes != testManifestElements*4 {
		t.Fatalf("payload bytes: got %d want %d", resp.PayloadBytes, testManifestElements*4)
	}
	if resp.Seen != 32013312 {
		t.Fatalf("seen: got %d want 32013312", resp.Seen)
	}
}

func TestInspectErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "corrupt.weights"), make([]byte, 10), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	e := newTestEcho(dir)

	rec := doJSON(t, e, http.MethodPost, "/v1/inspect", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty file: got %d want 400", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/inspect", `{"file":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing model: got %d want 404", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/inspect", `{"file":"corrupt"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("corrupt file: got %d want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "truncated") {
		t.Fatalf("corrupt file body: %s", rec.Body.String())
	}
}

func TestVerifyEndpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifestPath := writeTestManifest(t, dir)
	writeTestWeights(t, dir, "tiny.weights", buildTestNetwork(t))

	e := newTestEcho(dir)
	body := `{"manifest":` + quoteJSON(manifestPath) + `,"weights":"tiny"}`
	rec := doJSON(t, e, http.MethodPost, "/v1/verify", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if !resp.OK {
		t.Fatalf("expected ok report, got problem %q", resp.Problem)
	}
	if !strings.HasPrefix(resp.ID, "ver_") {
		t.Fatalf("verification id: got %q", resp.ID)
	}
	if resp.Object != "weights.verification" {
		t.Fatalf("verification object: got %q", resp.Object)
	}
	if resp.ExpectedElements != testManifestElements || resp.PayloadElements != testManifestElements {
		t.Fatalf("element counts: expected=%d payload=%d want %d both",
			resp.ExpectedElements, resp.PayloadElements, testManifestElements)
	}
	if resp.CreatedAt == 0 {
		t.Fatal("expected created_at to be set")
	}
}

func TestVerifyMismatch(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifestPath := writeTestManifest(t, dir)
	small := &model.Network{Name: "small", Modules: []model.Module{
		model.NewConv("conv0", 3, 2, 1, 1, 0, false),
	}}
	writeTestWeights(t, dir, "small.weights", small)

	e := newTestEcho(dir)
	body := `{"manifest":` + quoteJSON(manifestPath) + `,"weights":"small"}`
	rec := doJSON(t, e, http.MethodPost, "/v1/verify", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if resp.OK {
		t.Fatal("expected mismatch report")
	}
	if !strings.Contains(resp.Problem, "mismatch") {
		t.Fatalf("problem: got %q", resp.Problem)
	}
	if resp.ExpectedElements != testManifestElements {
		t.Fatalf("expected elements: got %d want %d", resp.ExpectedElements, testManifestElements)
	}
	if resp.PayloadElements != 8 {
		t.Fatalf("payload elements: got %d want 8", resp.PayloadElements)
	}
}

func TestVerifyTruncatedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifestPath := writeTestManifest(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "stub.weights"), make([]byte, 10), 0o644); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	e := newTestEcho(dir)
	body := `{"manifest":` + quoteJSON(manifestPath) + `,"weights":"stub"}`
	rec := doJSON(t, e, http.MethodPost, "/v1/verify", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status: got %d body=%s", rec.Code, rec.Body.String())
	}
	var resp VerifyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode verify response: %v", err)
	}
	if resp.OK {
		t.Fatal("expected truncation report")
	}
	if !strings.Contains(resp.Problem, "truncated") {
		t.Fatalf("problem: got %q", resp.Problem)
	}
}

func TestVerifyValidationErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	e := newTestEcho(dir)

	rec := doJSON(t, e, http.MethodPost, "/v1/verify", `{"weights":"tiny"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing manifest: got %d want 400", rec.Code)
	}

	manifestPath := writeTestManifest(t, dir)
	rec = doJSON(t, e, http.MethodPost, "/v1/verify", `{"manifest":`+quoteJSON(manifestPath)+`}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing weights: got %d want 400", rec.Code)
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/verify", `{"manifest":`+quoteJSON(manifestPath)+`,"weights":"missing"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing weights file: got %d want 404", rec.Code)
	}
}

// quoteJSON quotes a path for inline JSON bodies.
func quoteJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
