package validation

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"toko/internal/models"
)

// Errors maps a form field to its failure messages.
type Errors map[string][]string

func (e Errors) Error() string {
	fields := e.Fields()
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e[f], ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the failing field names in sorted order.
func (e Errors) Fields() []string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Has reports whether field failed.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// maxPrice is the exclusive upper bound of a decimal(10,2) price.
var maxPrice = decimal.New(1, 8)

// ProductForm is the raw product form as submitted.
type ProductForm struct {
	Name  string `form:"name" validate:"required,utf8,min=3,max=255"`
	Price string `form:"price" validate:"required,price,money"`
}

// ProductValidator checks product forms.
type ProductValidator struct {
	v *validator.Validate
}

// NewProductValidator creates a validator with the product rules registered.
func NewProductValidator() (*ProductValidator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	rules := map[string]validator.Func{
		"utf8":  validateUTF8,
		"price": validatePrice,
		"money": validateMoney,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %s validator: %w", tag, err)
		}
	}

	return &ProductValidator{v: v}, nil
}

// Validate checks the name and price fields of input. Every field is checked;
// on failure the returned error is an Errors value listing all of them.
func (pv *ProductValidator) Validate(input map[string]string) (models.ProductInput, error) {
	form := ProductForm{
		Name:  strings.TrimSpace(input["name"]),
		Price: strings.TrimSpace(input["price"]),
	}

	if err := pv.v.Struct(form); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return models.ProductInput{}, fmt.Errorf("validate product form: %w", err)
		}
		errs := make(Errors, len(validationErrs))
		for _, fe := range validationErrs {
			errs[fe.Field()] = append(errs[fe.Field()], message(fe))
		}
		return models.ProductInput{}, errs
	}

	return models.ProductInput{
		Name:  form.Name,
		Price: decimal.RequireFromString(form.Price),
	}, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", fe.Field())
	case "min":
		return fmt.Sprintf("The %s field must be at least %s characters.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("The %s field must not be greater than %s characters.", fe.Field(), fe.Param())
	case "utf8":
		return fmt.Sprintf("The %s field must be a valid string.", fe.Field())
	case "price":
		return fmt.Sprintf("The %s field must be a number greater than or equal to 0.", fe.Field())
	case "money":
		return fmt.Sprintf("The %s field must be less than %s with at most 2 decimal places.", fe.Field(), maxPrice)
	default:
		return fmt.Sprintf("The %s field is invalid.", fe.Field())
	}
}

func validatePrice(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return !d.IsNegative()
}

// validateMoney checks that the price fits the decimal(10,2) column. Trailing
// zeros past the second decimal place are accepted.
func validateMoney(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.LessThan(maxPrice) && d.Equal(d.Round(2))
}

func validateUTF8(fl validator.FieldLevel) bool {
	return utf8.ValidString(fl.Field().String())
}
