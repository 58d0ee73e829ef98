// Package validation wires go-playground/validator into Echo's Validator
// hook so handlers can call c.Validate(&req) on bound request DTOs and
// rely on struct tags for required/min checks.
package validation

import (
    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
)

// RequestValidator adapts a validator.Validate instance to echo.Validator.
type RequestValidator struct {
    validate *validator.Validate
}

// New returns a RequestValidator ready to assign to echo.Echo.Validator.
func New() *RequestValidator {
    return &RequestValidator{validate: validator.New()}
}

// Validate implements echo.Validator.  The raw validator error is
// returned as a 400 so the client sees which field failed.
func (v *RequestValidator) Validate(i interface{}) error {
    if err := v.validate.Struct(i); err != nil {
        return echo.NewHTTPError(400, err.Error())
    }
    return nil
}
