package encryption

import (
	"fmt"

	"github.com/DoctaneDMS/dms-service-sql/internal/config"
	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
)

// NewEncryptorFromConfig creates the Encryptor selected by cfg. Type "none"
// (or empty) returns nil: blobs are stored in plaintext.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (dms.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
