package handler

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/ticketflow/internal/apperror"
)

// signupRequest is the body of POST /api/auth/signup.
type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// loginRequest is the body of POST /api/auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

const msgInvalidEmail = "Please enter a valid email address"

// normalize trims name and email and checks every field, reporting all
// problems at once. Passwords are never trimmed.
func (req *signupRequest) normalize() error {
	var problems []apperror.FieldError
	add := func(field, msg string) {
		problems = append(problems, apperror.FieldError{Field: field, Message: msg})
	}

	req.Name = strings.TrimSpace(req.Name)
	switch n := utf8.RuneCountInString(req.Name); {
	case n < 2:
		add("name", "Name must be at least 2 characters")
	case n > 50:
		add("name", "Name must be less than 50 characters")
	}

	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		add("email", msgInvalidEmail)
	}

	switch n := utf8.RuneCountInString(req.Password); {
	case n < 6:
		add("password", "Password must be at least 6 characters")
	case n > 100:
		add("password", "Password must be less than 100 characters")
	}

	if req.Password != req.ConfirmPassword {
		add("confirmPassword", "Passwords don't match")
	}

	if len(problems) == 0 {
		return nil
	}
	return apperror.Invalid(problems...)
}

func (req *loginRequest) normalize() error {
	var problems []apperror.FieldError

	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) {
		problems = append(problems, apperror.FieldError{Field: "email", Message: msgInvalidEmail})
	}
	if utf8.RuneCountInString(req.Password) < 6 {
		problems = append(problems, apperror.FieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}

	if len(problems) == 0 {
		return nil
	}
	return apperror.Invalid(problems...)
}

// validEmail accepts a bare addr-spec whose domain has at least one dot.
// Display-name forms like "Ada <ada@example.com>" are rejected.
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(s, '@')
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
