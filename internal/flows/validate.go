package flows

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const (
	msgNameLength   = "Name must be between 2 and 50 characters"
	msgInvalidEmail = "Please provide a valid email"
	msgComplexity   = "Password must contain at least one uppercase letter, one lowercase letter, and one number"
)

// PasswordPolicy is applied to every new password: signup, reset, change
// and admin seed.
type PasswordPolicy struct {
	MinLength         int
	RequireComplexity bool
}

// Check returns every rule password breaks, in a stable order.
func (p PasswordPolicy) Check(password string) []string {
	var problems []string
	if utf8.RuneCountInString(password) < p.MinLength {
		problems = append(problems, fmt.Sprintf("Password must be at least %d characters long", p.MinLength))
	}
	if p.RequireComplexity && !hasUpperLowerDigit(password) {
		problems = append(problems, msgComplexity)
	}
	return problems
}

func hasUpperLowerDigit(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// validateSignup expects name and email already trimmed.
func validateSignup(name, email, password string, policy PasswordPolicy) []string {
	var problems []string
	if err := validate.Var(name, "min=2,max=50"); err != nil {
		problems = append(problems, msgNameLength)
	}
	if err := validate.Var(email, "required,email"); err != nil {
		problems = append(problems, msgInvalidEmail)
	}
	return append(problems, policy.Check(password)...)
}

func joinProblems(problems []string) string {
	return strings.Join(problems, ", ")
}
