package auth

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordSimilarity is the QuickRatio at or above which a password is
// rejected for resembling an account attribute.
const MaxPasswordSimilarity = 0.7

// PasswordHasher hashes and compares passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hashedPassword.
	Compare(hashedPassword, password string) error
}

// BcryptHasher implements PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher. Out-of-range costs fall back to
// bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// CheckPasswordSimilarity rejects a password whose character overlap with
// any attribute reaches MaxPasswordSimilarity. For emails only the local
// part is compared.
func CheckPasswordSimilarity(password string, attrs ...string) error {
	pwd := strings.ToLower(password)
	for _, attr := range attrs {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if at := strings.IndexByte(attr, '@'); at > 0 {
			attr = attr[:at]
		}
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(pwd, ""), strings.Split(attr, "")).QuickRatio()
		if ratio >= MaxPasswordSimilarity {
			return ErrPasswordTooSimilar
		}
	}
	return nil
}
