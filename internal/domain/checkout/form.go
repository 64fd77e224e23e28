package checkout

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// validator's builtin email rule accepts domains without a TLD; the
	// storefront requires the local@domain.tld shape.
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("uszip", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(fl.Field().String())
	})
	return v
}

// Form holds the contact and shipping fields collected before payment
// confirmation. State is optional; everything else gates submission.
type Form struct {
	Name    string `validate:"required,min=2"`
	Email   string `validate:"required,emailshape"`
	Address string `validate:"required,min=5"`
	City    string `validate:"required"`
	State   string
	Zip     string `validate:"required,uszip"`
}

// FieldErrors maps form field to its first validation message. It satisfies
// error so callers can treat a failed validation as a tagged result.
type FieldErrors map[string]string

func (e FieldErrors) Error() string { return "checkout: form validation failed" }

var fieldMessages = map[string]map[string]string{
	"Name": {
		"required": "Name is required",
		"min":      "Name must be at least 2 characters",
	},
	"Email": {
		"required":   "Email is required",
		"emailshape": "Please enter a valid email address",
	},
	"Address": {
		"required": "Address is required",
		"min":      "Please enter a complete address",
	},
	"City": {
		"required": "City is required",
	},
	"Zip": {
		"required": "ZIP code is required",
		"uszip":    "Please enter a valid ZIP code (e.g., 10001 or 10001-1234)",
	},
}

// Trimmed returns the form with surrounding whitespace removed from every
// field, the shape that is validated and submitted.
func (f Form) Trimmed() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Address: strings.TrimSpace(f.Address),
		City:    strings.TrimSpace(f.City),
		State:   strings.TrimSpace(f.State),
		Zip:     strings.TrimSpace(f.Zip),
	}
}

// Validate checks the trimmed form locally. A non-nil result blocks
// submission; no network call may be made until it passes.
func (f Form) Validate() FieldErrors {
	trimmed := f.Trimmed()
	err := validate.Struct(trimmed)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{"form": err.Error()}
	}

	out := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; seen {
			continue
		}
		if msg, ok := fieldMessages[fe.Field()][fe.Tag()]; ok {
			out[fe.Field()] = msg
		} else {
			out[fe.Field()] = fe.Error()
		}
	}
	return out
}

// FirstName splits the full name the way the ledger's address record expects.
func (f Form) FirstName() string {
	parts := strings.Fields(f.Name)
	if len(parts) == 0 {
		return f.Name
	}
	return parts[0]
}

func (f Form) LastName() string {
	parts := strings.Fields(f.Name)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}
