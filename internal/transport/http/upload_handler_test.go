package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"practice-test-service/internal/infra/memory"
)

func TestUploadStoresValidDocument(t *testing.T) {
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(nil), time.Minute)
	handler := NewUploadHandler(banks)

	doc := `[{"prompt": "Pick B", "choices": ["A", "B"], "correct": "B"}]`
	req := httptest.NewRequest(http.MethodPost, "/banks", bytes.NewBufferString(doc))
	rec := httptest.NewRecorder()
	handler.ServeUpload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.BankID == "" || resp.Questions != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	stored, err := banks.GetBank(context.Background(), resp.BankID)
	if err != nil {
		t.Fatalf("expected uploaded bank retrievable: %v", err)
	}
	if stored.Questions[0].Correct[0] != 1 {
		t.Fatalf("expected text answer normalized to index 1, got %v", stored.Questions[0].Correct)
	}
}

func TestUploadMultipart(t *testing.T) {
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(nil), time.Minute)
	handler := NewUploadHandler(banks)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "questions.json")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(`[{"prompt": "p", "choices": ["A"], "correct": 0}]`)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/banks", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeUpload(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadRejectsMalformedAndKeepsExistingBanks(t *testing.T) {
	banks := memory.NewBankRepository(memory.NewStaticBankLoader(sampleBanks()), time.Minute)
	handler := NewUploadHandler(banks)

	// correct index out of range
	doc := `[{"prompt": "p", "choices": ["A", "B"], "correct": 5}]`
	req := httptest.NewRequest(http.MethodPost, "/banks", bytes.NewBufferString(doc))
	rec := httptest.NewRecorder()
	handler.ServeUpload(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	// The previously loaded bank is still served.
	stored, err := banks.GetBank(context.Background(), "bank-1")
	if err != nil {
		t.Fatalf("expected existing bank untouched: %v", err)
	}
	if len(stored.Questions) != 2 {
		t.Fatalf("expected existing bank intact, got %d questions", len(stored.Questions))
	}
}

func TestUploadRejectsWrongMethod(t *testing.T) {
	handler := NewUploadHandler(memory.NewBankRepository(memory.NewStaticBankLoader(nil), time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/banks", nil)
	rec := httptest.NewRecorder()
	handler.ServeUpload(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}
