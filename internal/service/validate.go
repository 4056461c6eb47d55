package service

import (
	"strings"

	apperrors "github.com/allinone-studio/remote-support-server/internal/errors"
	"github.com/allinone-studio/remote-support-server/internal/model"
)

// NormalizeCode trims surrounding whitespace from a caller-supplied
// connection code.
func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}

// ValidateCode rejects malformed codes before any store access.
func ValidateCode(code string) *apperrors.AppError {
	if code == "" {
		return apperrors.MissingRequired("code")
	}
	if len(code) != model.PairingCodeLength {
		return apperrors.InvalidCode("must be exactly 6 characters")
	}
	return nil
}
