package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
)

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)
	tmp := t.TempDir()
	t.Setenv("DB_DSN", "sqlite:"+filepath.Join(tmp, "emisor_test.db"))
	t.Setenv("OUTPUT_BASE", filepath.Join(tmp, "salidas"))
	jwtSecret = []byte("test-secret")
	initDB()
	// keep the pool on one connection so worker goroutines serialize on sqlite
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	r := gin.Default()
	setupRoutes(r)
	return r
}

func loginAs(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(body), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login %s failed status=%d body=%s", username, resp.Code, resp.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("login response: %v", err)
	}
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatal("login returned no token")
	}
	return token
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	fw, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(fileContent)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestFullEmissionFlow(t *testing.T) {
	r := setupTestServer(t)
	admin := loginAs(t, r, "admin", "admin123")

	// 1. Create project with its padron schema
	projBody, _ := json.Marshal(map[string]any{
		"nombre":      "predial-2026",
		"descripcion": "requerimientos de pago",
		"esquema": []map[string]any{
			{"nombre": "cuenta", "tipo": "VARCHAR(50)", "es_obligatorio": true, "es_unico": true},
			{"nombre": "nombre", "tipo": "VARCHAR(255)", "es_obligatorio": true},
			{"nombre": "monto_adeudo", "tipo": "NUMERIC(12,2)"},
		},
	})
	resp := performRequest(r, http.MethodPost, "/proyectos", bytes.NewBuffer(projBody), admin, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create project status=%d body=%s", resp.Code, resp.Body.String())
	}
	var proj map[string]any
	json.Unmarshal(resp.Body.Bytes(), &proj)
	projectID := int(proj["id"].(float64))

	// 2. Load the padron
	padronCSV := "cuenta,nombre,monto_adeudo\nC-001,Juan Perez,1523.50\nC-002,Ana Lopez,80.00\n"
	body, ct := multipartBody(t, map[string]string{"merge": "false"}, "file", "padron.csv", padronCSV)
	resp = performRequest(r, http.MethodPost, "/proyectos/1/padron", body, admin, ct)
	if resp.Code != 200 {
		t.Fatalf("upload padron status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 3. Sample must show the loaded rows
	resp = performRequest(r, http.MethodGet, "/proyectos/1/padron/muestra?limite=5", nil, admin, "")
	if resp.Code != 200 || !bytes.Contains(resp.Body.Bytes(), []byte("C-001")) {
		t.Fatalf("sample status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 4. Create template
	tplBody, _ := json.Marshal(map[string]any{
		"proyecto_id": projectID,
		"nombre":      "requerimiento",
		"campos": []map[string]any{
			{"campo_padron": "nombre", "x": 2, "y": 3, "ancho": 12, "alto": 1, "tamano": 10},
			{"campo_padron": "monto_adeudo", "x": 2, "y": 5, "ancho": 6, "alto": 1, "tamano": 10, "formato": "moneda"},
			{"campo_padron": "codigo_barras", "x": 2, "y": 8, "ancho": 8, "alto": 2, "es_codigo_barras": true},
		},
	})
	resp = performRequest(r, http.MethodPost, "/plantillas", bytes.NewBuffer(tplBody), admin, "application/json")
	if resp.Code != 200 {
		t.Fatalf("create template status=%d body=%s", resp.Code, resp.Body.String())
	}

	// 5. Run an emission
	runCSV := "cuenta,orden_impresion\nC-001,1\nC-002,2\nC-404,3\n"
	body, ct = multipartBody(t, map[string]string{
		"proyecto_id":  "1",
		"plantilla_id": "1",
		"documento":    "N",
		"fecha":        "2026-08-30",
	}, "file", "emision.csv", runCSV)
	resp = performRequest(r, http.MethodPost, "/emisiones", body, admin, ct)
	if resp.Code != 200 {
		t.Fatalf("run emission status=%d body=%s", resp.Code, resp.Body.String())
	}
	var summary map[string]any
	json.Unmarshal(resp.Body.Bytes(), &summary)
	if got := summary["pdfs_generados"].(float64); got != 2 {
		t.Fatalf("pdfs_generados=%v body=%s", got, resp.Body.String())
	}
	unmatched := summary["cuentas_no_encontradas"].([]any)
	if len(unmatched) != 1 || unmatched[0] != "C-404" {
		t.Fatalf("unmatched=%v", unmatched)
	}
	outPath := summary["ruta_salida"].(string)
	if _, err := os.Stat(filepath.Join(outPath, "C-001.pdf")); err != nil {
		t.Fatalf("expected PDF missing: %v", err)
	}

	// 6. Audit rows for the session
	sessionID := summary["sesion_id"].(string)
	resp = performRequest(r, http.MethodGet, "/emisiones/"+sessionID, nil, admin, "")
	if resp.Code != 200 {
		t.Fatalf("list emissions status=%d body=%s", resp.Code, resp.Body.String())
	}
	var rows []map[string]any
	json.Unmarshal(resp.Body.Bytes(), &rows)
	if len(rows) != 2 {
		t.Fatalf("audit rows=%d body=%s", len(rows), resp.Body.String())
	}

	// 7. Non-admin cannot create projects
	regBody, _ := json.Marshal(map[string]string{"username": "analista1", "password": "secreto"})
	resp = performRequest(r, http.MethodPost, "/register", bytes.NewBuffer(regBody), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("register status=%d body=%s", resp.Code, resp.Body.String())
	}
	analyst := loginAs(t, r, "analista1", "secreto")
	resp = performRequest(r, http.MethodPost, "/proyectos", bytes.NewBuffer(projBody), analyst, "application/json")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("analyst created a project: status=%d", resp.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	r := setupTestServer(t)
	resp := performRequest(r, http.MethodGet, "/proyectos", nil, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", resp.Code)
	}
}
