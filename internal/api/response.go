package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Response is the JSON envelope for every API reply.
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Response{Status: status, Message: http.StatusText(status), Data: data})
}

func ok(c echo.Context, data interface{}) error {
	return respond(c, http.StatusOK, data)
}

func badRequest(c echo.Context, errs []FieldError) error {
	return respond(c, http.StatusBadRequest, errs)
}

func notFound(c echo.Context, msg string) error {
	return respond(c, http.StatusNotFound, []FieldError{{Code: "ERR_NOT_FOUND", Message: msg}})
}

func internalError(c echo.Context) error {
	return respond(c, http.StatusInternalServerError, "something went wrong")
}

var validate = validator.New()

// bindRequest binds path and query parameters, applies defaults and validates.
func bindRequest(c echo.Context, req interface{}) []FieldError {
	if err := c.Bind(req); err != nil {
		return toFieldErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toFieldErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toFieldErrors(err)
	}
	return nil
}

func toFieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, FieldError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return []FieldError{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
	}
	return []FieldError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "datetime":
		return fmt.Sprintf("%s must be a date formatted as %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
