package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptConfig holds the bcrypt cost factor.
type BcryptConfig struct {
	Cost int
}

func DefaultBcryptConfig() *BcryptConfig {
	return &BcryptConfig{
		Cost: bcrypt.DefaultCost,
	}
}

type BcryptHasher struct {
	config *BcryptConfig
}

// NewBcryptHasher creates a bcrypt hasher. A nil config means DefaultBcryptConfig.
// The cost is clamped to the range bcrypt accepts.
func NewBcryptHasher(config *BcryptConfig) *BcryptHasher {
	if config == nil {
		config = DefaultBcryptConfig()
	}
	if config.Cost < bcrypt.MinCost {
		config.Cost = bcrypt.MinCost
	}
	if config.Cost > bcrypt.MaxCost {
		config.Cost = bcrypt.MaxCost
	}

	return &BcryptHasher{config: config}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.config.Cost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

func (h *BcryptHasher) Verify(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (h *BcryptHasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}

	return cost != h.config.Cost
}

var _ Hasher = (*BcryptHasher)(nil)
