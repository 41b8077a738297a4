package publicapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Normalizable types canonicalize their fields after binding.
type Normalizable interface {
	Normalize()
}

// Validatable types check their fields after binding and normalization.
type Validatable interface {
	Validate() error
}

// CustomValidator runs a request type's own Validate method, turning a
// failure into a 400 instead of echo's default 500.
type CustomValidator struct{}

func NewCustomValidator() *CustomValidator {
	return &CustomValidator{}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if normalizable, ok := i.(Normalizable); ok {
		normalizable.Normalize()
	}
	if validatable, ok := i.(Validatable); ok {
		if err := validatable.Validate(); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return nil
}
