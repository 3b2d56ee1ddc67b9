package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Secrets holds credentials that come only from the process environment.
type Secrets struct {
	PrivateKey string `envconfig:"PRIVATE_KEY" required:"true"`
}

// String keeps the key out of logs and error messages.
func (s Secrets) String() string {
	return "Secrets{PrivateKey:<redacted>}"
}

// GoString redacts %#v output too.
func (s Secrets) GoString() string {
	return s.String()
}

// LoadSecrets reads envFile into the environment if it exists and then decodes the
// secret variables. Variables already set in the environment win over the file.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Secrets{}, fmt.Errorf("load env file: %w", err)
		}
	}

	var s Secrets
	if err := envconfig.Process("", &s); err != nil {
		return Secrets{}, fmt.Errorf("process secrets: %w", err)
	}
	return s, nil
}

// Key parses the private key. A 0x prefix is accepted.
func (s Secrets) Key() (*ecdsa.PrivateKey, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s.PrivateKey), "0x")
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		// The parse error can echo input bytes.
		return nil, fmt.Errorf("invalid private key")
	}
	return key, nil
}
