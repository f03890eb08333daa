package impl

import (
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"anichat/internal/domain"
	"anichat/internal/dto"
)

const (
	minFullNameLen = 3
	minPasswordLen = 6
	maxImageBytes  = 5 << 20
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func validEmail(email string) bool { return emailPattern.MatchString(email) }

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func validateSignup(r dto.SignupRequest) error {
	if r.FullName == "" || r.Email == "" || r.Password == "" {
		return domain.Invalid("Please provide all required fields")
	}
	if !validEmail(r.Email) {
		return domain.Invalid("Invalid email format")
	}
	if runeLen(r.Password) < minPasswordLen {
		return domain.Invalid("Password must be at least 6 characters")
	}
	if runeLen(r.FullName) < minFullNameLen {
		return domain.Invalid("Full name must be at least 3 characters")
	}
	return nil
}

// validateImage checks an uploaded file is a non-empty image of acceptable
// size and fills in its content type when the client did not send one.
func validateImage(up *dto.Upload) error {
	if up == nil {
		return nil
	}
	if len(up.Data) == 0 {
		return domain.Invalid("Uploaded image is empty")
	}
	if len(up.Data) > maxImageBytes {
		return domain.Invalid("Uploaded image must be at most 5MB")
	}
	sniffed := http.DetectContentType(up.Data)
	if !strings.HasPrefix(sniffed, "image/") {
		return domain.Invalid("Uploaded file must be an image")
	}
	up.ContentType = sniffed
	return nil
}
