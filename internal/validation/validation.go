package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fedutinova/minedash/internal/common"
)

const (
	MaxTextLength = 2000
)

var validate = validator.New()

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

func (e ValidationErrors) Is(target error) bool {
	return target == common.ErrValidation
}

type LoginForm struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=256"`
}

type InsightForm struct {
	Text string `validate:"required,max=2000"`
}

type MineralForm struct {
	Name        string  `validate:"required,max=120"`
	Description string  `validate:"max=2000"`
	MarketPrice float64 `validate:"gte=0"`
}

type CountryForm struct {
	Name          string  `validate:"required,max=120"`
	GDP           float64 `validate:"gte=0"`
	MiningRevenue float64 `validate:"gte=0"`
	KeyProjects   string  `validate:"max=2000"`
}

type SiteForm struct {
	Name       string  `validate:"required,max=120"`
	Country    string  `validate:"required"`
	Mineral    string  `validate:"required"`
	Latitude   float64 `validate:"latitude"`
	Longitude  float64 `validate:"longitude"`
	Production int64   `validate:"gte=0"`
}

type CoordsForm struct {
	Name      string  `validate:"required"`
	Latitude  float64 `validate:"latitude"`
	Longitude float64 `validate:"longitude"`
}

// Struct validates s and returns ValidationErrors with one entry per
// failing field.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "latitude":
		return "must be between -90 and 90"
	case "longitude":
		return "must be between -180 and 180"
	default:
		return fmt.Sprintf("failed on '%s'", fe.Tag())
	}
}

// Form reads trimmed string and numeric fields out of posted form values,
// collecting a ValidationError for every number that does not parse.
type Form struct {
	values url.Values
	errs   ValidationErrors
}

func NewForm(values url.Values) *Form {
	return &Form{values: values}
}

func (f *Form) String(field string) string {
	return strings.TrimSpace(f.values.Get(field))
}

func (f *Form) Float(field string) float64 {
	raw := f.String(field)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		f.errs = append(f.errs, ValidationError{Field: field, Message: "must be a number"})
		return 0
	}
	return v
}

func (f *Form) Int(field string) int64 {
	raw := f.String(field)
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		f.errs = append(f.errs, ValidationError{Field: field, Message: "must be a whole number"})
		return 0
	}
	return v
}

// Validate returns the parse errors, if any, otherwise the struct errors of
// s.
func (f *Form) Validate(s any) error {
	if len(f.errs) > 0 {
		return f.errs
	}
	return Struct(s)
}
