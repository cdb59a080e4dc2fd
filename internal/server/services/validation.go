package services

import (
	"errors"
	"regexp"
	"unicode"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/go-playground/validator/v10"
)

// Caller-facing validation messages.
const (
	msgInvalidEmail     = "value is not a valid email address"
	msgPasswordLength   = "Password must be between 8 and 32 characters."
	msgPasswordNoLetter = "Password must contain at least one letter."
	msgNicknameLength   = "Nickname must be between 4 and 32 characters."
	msgNicknameCharset  = "Nickname can only contain letters, digits, dash (-), underscore (_) and dot (.) characters."
)

const (
	emailRules    = "required,email"
	passwordRules = "min=8,max=32,hasletter"
	nicknameRules = "min=4,max=32,nickname"

	tagHasLetter = "hasletter"
	tagNickname  = "nickname"

	fieldEmail    = "email"
	fieldPassword = "password"
	fieldNickname = "nickname"
)

var nicknamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// newValidator returns a validator that knows the hasletter and nickname
// tags. Lengths are counted in characters, not bytes.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails on an empty tag name or a nil func.
	_ = v.RegisterValidation(tagHasLetter, func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			if unicode.IsLetter(r) {
				return true
			}
		}
		return false
	})
	_ = v.RegisterValidation(tagNickname, func(fl validator.FieldLevel) bool {
		return nicknamePattern.MatchString(fl.Field().String())
	})
	return v
}

func (s *UserService) validateEmail(email string) error {
	if err := s.validate.Var(email, emailRules); err != nil {
		return common.InvalidInput(fieldEmail, msgInvalidEmail)
	}
	return nil
}

func (s *UserService) validatePassword(password string) error {
	switch failedTag(s.validate.Var(password, passwordRules)) {
	case "":
		return nil
	case tagHasLetter:
		return common.InvalidInput(fieldPassword, msgPasswordNoLetter)
	default:
		return common.InvalidInput(fieldPassword, msgPasswordLength)
	}
}

func (s *UserService) validateNickname(nickname string) error {
	switch failedTag(s.validate.Var(nickname, nicknameRules)) {
	case "":
		return nil
	case tagNickname:
		return common.InvalidInput(fieldNickname, msgNicknameCharset)
	default:
		return common.InvalidInput(fieldNickname, msgNicknameLength)
	}
}

// failedTag returns the first rule err reports as broken, or "" for nil.
func failedTag(err error) string {
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Tag()
	}
	return "invalid"
}
