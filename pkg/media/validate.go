package media

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// Validate checks the struct tags of an item record.
//
// Title presence is not checked here because it depends on the operation:
// gallery children and REFERENCE clones may be untitled.
func Validate(item *Item) error {
	if item == nil {
		return InvalidInputError("item is required")
	}
	if err := validate.Struct(item); err != nil {
		return formatValidationError(err)
	}
	if item.Module == ModuleGallery {
		for _, c := range item.Children {
			if c.ID == item.ID && item.ID != "" {
				return InvalidInputError("gallery cannot contain itself")
			}
		}
	}
	return nil
}

// ValidateStruct runs tag validation on any operation input.
func ValidateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError converts validator errors into InvalidInput errors.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return InvalidInputError(fmt.Sprintf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value()))
	}
	return InvalidInputError(err.Error())
}
