package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"practice-test-service/internal/app"
	"practice-test-service/internal/bank"
	"practice-test-service/internal/domain"

	"github.com/google/uuid"
)

const maxUploadBytes = 4 << 20

// UploadHandler accepts user question documents. The raw bytes are parsed
// and validated before anything is written; a malformed document leaves all
// previously stored banks untouched.
type UploadHandler struct {
	banks app.BankRepository
}

func NewUploadHandler(banks app.BankRepository) *UploadHandler {
	return &UploadHandler{banks: banks}
}

type uploadResponse struct {
	BankID    string `json:"bankId"`
	Title     string `json:"title,omitempty"`
	Questions int    `json:"questions"`
}

// ServeUpload handles POST /banks with either a multipart "file" field or a
// raw JSON body.
func (h *UploadHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, err := readDocument(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	parsed, err := bank.Parse(data)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedDocument) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if parsed.ID == "" {
		parsed.ID = uuid.NewString()
	}
	if err := h.banks.SaveBank(r.Context(), parsed); err != nil {
		log.Printf("save uploaded bank: %v", err)
		http.Error(w, "failed to store document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(uploadResponse{
		BankID:    parsed.ID,
		Title:     parsed.Title,
		Questions: len(parsed.Questions),
	})
}

func readDocument(r *http.Request) ([]byte, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, errors.New("missing file field")
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxUploadBytes))
	}
	return io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
}
