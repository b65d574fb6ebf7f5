package genai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"drainsentry-backend/internal/config"
	"drainsentry-backend/internal/logging"
	"drainsentry-backend/internal/models"
)

func modelServer(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") == "" {
			t.Error("missing api key")
		}
		w.WriteHeader(status)
		resp := map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": reply}},
				}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(endpoint string) *Client {
	var cfg config.Config
	cfg.GenAI.APIKey = "test-key"
	cfg.GenAI.Model = "test-model"
	cfg.GenAI.Endpoint = endpoint
	return NewClient(cfg, logging.NewDiscard())
}

func TestDetectTrashParsesVerdict(t *testing.T) {
	srv := modelServer(t, `{"trashDetected": true, "confidence": 0.92, "description": "plastic bags near grate"}`, http.StatusOK)
	defer srv.Close()

	det, err := newTestClient(srv.URL).DetectTrash(context.Background(), "aGVsbG8=", "image/png")
	if err != nil {
		t.Fatalf("DetectTrash: %v", err)
	}
	if !det.TrashDetected || det.Confidence != 0.92 || det.Description == "" {
		t.Fatalf("unexpected verdict %+v", det)
	}
}

func TestDetectTrashStripsCodeFence(t *testing.T) {
	srv := modelServer(t, "```json\n{\"trashDetected\": false, \"confidence\": 0.1, \"description\": \"clear\"}\n```", http.StatusOK)
	defer srv.Close()

	det, err := newTestClient(srv.URL).DetectTrash(context.Background(), "aGVsbG8=", "")
	if err != nil {
		t.Fatalf("DetectTrash: %v", err)
	}
	if det.TrashDetected {
		t.Fatalf("unexpected verdict %+v", det)
	}
}

func TestDetectTrashRejectsEmptyImage(t *testing.T) {
	if _, err := newTestClient("http://unused").DetectTrash(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty image")
	}
}

func TestGenerateHealthReport(t *testing.T) {
	srv := modelServer(t, "All devices nominal.", http.StatusOK)
	defer srv.Close()

	report, err := newTestClient(srv.URL).GenerateHealthReport(context.Background(), []models.Device{
		{ID: "devA", Name: "Alpha", WaterLevel: 40, BinFullness: 20},
	})
	if err != nil {
		t.Fatalf("GenerateHealthReport: %v", err)
	}
	if report != "All devices nominal." {
		t.Fatalf("unexpected report %q", report)
	}
}

func TestModelErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).DetectTrash(context.Background(), "aGVsbG8=", ""); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := newTestClient("http://unused")
	c.cfg.GenAI.APIKey = ""
	if _, err := c.DetectTrash(context.Background(), "aGVsbG8=", ""); err == nil {
		t.Fatal("expected error for missing api key")
	}
}
