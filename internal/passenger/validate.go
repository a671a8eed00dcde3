package passenger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// FieldError describes one attribute outside its domain.
type FieldError struct {
	Field   Field
	Message string
}

// ValidationError lists every attribute that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Message))
	}
	return "invalid passenger: " + strings.Join(parts, "; ")
}

// Validate checks every attribute against its domain. It returns a
// *ValidationError or nil.
func (in Input) Validate() error {
	var fields []FieldError
	undefined := map[Field]bool{}
	for _, f := range in.Undefined() {
		undefined[f] = true
		fields = append(fields, FieldError{Field: f, Message: "is not a number"})
	}

	if err := validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			f := Field(fe.Field())
			if undefined[f] {
				continue
			}
			fields = append(fields, FieldError{Field: f, Message: describe(fe)})
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gte":
		return "must be non-negative"
	default:
		return "failed " + fe.Tag()
	}
}
