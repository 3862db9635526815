package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ronak-kumar-sing/student-nest-new-sub000/pkg/market"
)

type dataBody struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, dataBody{Success: true, Data: data})
}

// mapError translates an engine error into a status, error code and a
// message safe to show the caller. Unknown errors never leak their text.
func mapError(err error) (int, string, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := fmt.Sprint(he.Message)
		switch he.Code {
		case http.StatusUnauthorized:
			return he.Code, "unauthenticated", msg
		case http.StatusNotFound:
			return he.Code, "not_found", msg
		case http.StatusMethodNotAllowed:
			return he.Code, "method_not_allowed", msg
		case http.StatusBadRequest:
			return he.Code, "validation", msg
		}
		if he.Code < 500 {
			return he.Code, strings.ToLower(strings.ReplaceAll(http.StatusText(he.Code), " ", "_")), msg
		}
		return http.StatusInternalServerError, "internal", "internal error"
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest, "validation", describeValidation(ve)
	}

	switch {
	case errors.Is(err, market.ErrValidation):
		return http.StatusBadRequest, "validation", err.Error()
	case errors.Is(err, market.ErrAuthorization):
		return http.StatusForbidden, "authorization", err.Error()
	case errors.Is(err, market.ErrInvalidState):
		return http.StatusConflict, "invalid_state", err.Error()
	case errors.Is(err, market.ErrConflict),
		errors.Is(err, market.ErrSlotUnavailable),
		errors.Is(err, market.ErrReservationExpired):
		return http.StatusConflict, "conflict", err.Error()
	case market.IsNotFound(err):
		return http.StatusNotFound, "not_found", err.Error()
	}
	return http.StatusInternalServerError, "internal", "internal error"
}

func describeValidation(ve validator.ValidationErrors) string {
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, code, msg := mapError(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s %s failed: %v", c.Request().Method, c.Path(), err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, errorBody{Error: code, Message: msg})
	}
	if err != nil {
		log.Printf("[API] Failed to write error response: %v", err)
	}
}
