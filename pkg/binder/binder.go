package binder

import (
	"context"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	"github.com/shelfkeeper/shelfkeeper/pkg/errcodes"
)

// Binder cleans up caller-supplied input structs with mold, fills in
// defaults, and validates them. Every input that reaches the catalog or the
// ledger goes through it.
type Binder struct {
	conform  *mold.Transformer
	validate *validator.Validate
}

// New initializes a new Binder instance with the appropriate validation
// functions registered.
func New() *Binder {
	conform := modifiers.New()
	validate := validator.New()
	validate.RegisterTagNameFunc(fieldName)

	return &Binder{conform, validate}
}

// Bind modifies, defaults, and validates i, which must be a pointer to a
// struct. A validation failure comes back as an errcodes validation error
// naming the first offending field.
func (b *Binder) Bind(ctx context.Context, i interface{}) error {
	if err := b.conform.Struct(ctx, i); err != nil {
		return errors.WithStack(err)
	}

	if err := defaults.Set(i); err != nil {
		return errors.WithStack(err)
	}

	if err := b.validate.Struct(i); err != nil {
		var errs validator.ValidationErrors
		if !errors.As(err, &errs) || len(errs) == 0 {
			return errors.WithStack(err)
		}
		return errcodes.ValidationError(formatValidationError(errs[0]))
	}
	return nil
}

// fieldName reports fields by their JSON name, falling back to the snake case
// of the Go name.
func fieldName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return strcase.ToSnake(fld.Name)
	}
	return name
}
