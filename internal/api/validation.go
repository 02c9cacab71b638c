package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/eugenenazirov/boxplan/internal/carton"
	"github.com/eugenenazirov/boxplan/internal/sku"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// requestValidator returns the shared validator, reporting JSON field names in errors.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

type createPlanRequest struct {
	Channel    string              `json:"channel" validate:"required"`
	Box        *boxPayload         `json:"box" validate:"required"`
	PricePerKg *float64            `json:"pricePerKg" validate:"required"`
	SKUs       [][]json.RawMessage `json:"skus" validate:"required,min=1,dive,min=1"`
}

type boxPayload struct {
	Length     float64 `json:"length" validate:"gt=0"`
	Width      float64 `json:"width" validate:"gt=0"`
	Height     float64 `json:"height" validate:"gt=0"`
	TareWeight float64 `json:"tareWeight" validate:"gte=0"`
}

func (b boxPayload) carton() carton.Box {
	return carton.Box{
		Length:     b.Length,
		Width:      b.Width,
		Height:     b.Height,
		TareWeight: b.TareWeight,
	}
}

// rows converts JSON cells to text so numbers and strings validate alike.
func (r createPlanRequest) rows() ([]sku.Row, error) {
	rows := make([]sku.Row, 0, len(r.SKUs))
	for i, cells := range r.SKUs {
		row := make(sku.Row, len(cells))
		for j, cell := range cells {
			text, err := cellText(cell)
			if err != nil {
				return nil, fmt.Errorf("skus[%d][%d]: %w", i, j, err)
			}
			row[j] = text
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var errUnsupportedCell = errors.New("cell must be a string or a number")

func cellText(raw json.RawMessage) (string, error) {
	var value any
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	decoder.UseNumber()
	if err := decoder.Decode(&value); err != nil {
		return "", err
	}
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", errUnsupportedCell
	}
}

// validationDetails flattens validator errors into a single message.
func validationDetails(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, formatFieldError(fe))
	}
	return strings.Join(parts, "; ")
}

func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "createPlanRequest.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must contain at least %s item(s)", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
