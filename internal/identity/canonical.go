package identity

import (
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/domain"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,16}$`)

// Canonicalize turns a 32-character or hyphenated UUID into 32 lower-case hex
// characters. Any other shape fails with domain.ErrInvalidIdentity.
func Canonicalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 32 && len(raw) != 36 {
		return "", domain.ErrInvalidIdentity
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", domain.ErrInvalidIdentity
	}
	return hex.EncodeToString(id[:]), nil
}

// ValidName reports whether raw is an acceptable player name.
func ValidName(raw string) bool {
	return namePattern.MatchString(raw)
}
