package bank

import (
	_ "embed"
	"fmt"
	"os"

	"practice-test-service/internal/domain"
)

// DefaultBankID is the ID the bundled bank is stored under.
const DefaultBankID = "default"

//go:embed default_bank.json
var defaultBankJSON []byte

// Default returns the bundled question bank. The embedded document goes
// through the same validation as uploads.
func Default() (domain.Bank, error) {
	b, err := Parse(defaultBankJSON)
	if err != nil {
		return domain.Bank{}, fmt.Errorf("bundled bank: %w", err)
	}
	b.ID = DefaultBankID
	return b, nil
}

// LoadFile parses a question document from disk. Used to override the
// bundled bank via config.
func LoadFile(path string) (domain.Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Bank{}, err
	}
	b, err := Parse(data)
	if err != nil {
		return domain.Bank{}, err
	}
	if b.ID == "" {
		b.ID = DefaultBankID
	}
	return b, nil
}
