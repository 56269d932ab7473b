package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

func GlobalErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var ve *ValidationError
		if errors.As(err, &ve) {
			_ = c.JSON(http.StatusBadRequest, map[string]string{"error": ve.Message, "title": "validation error"})
			return
		}

		if errors.Is(err, ErrNotFound) {
			_ = c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}

		if errors.Is(err, ErrNotOwned) {
			_ = c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}

		if errors.Is(err, ErrLeaseHeld) {
			_ = c.JSON(http.StatusConflict, map[string]string{"error": err.Error(), "retryable": "true"})
			return
		}

		if IsFetchFailure(err) || IsParseFailure(err) {
			_ = c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error(), "retryable": "true"})
			return
		}

		if IsPersistenceFailure(err) {
			slog.Error("Persistence failure", "error", err)
			_ = c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable", "retryable": "true"})
			return
		}

		var pse *PublishStageError
		if errors.As(err, &pse) {
			_ = c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error(), "stage": string(pse.Stage)})
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := fmt.Sprintf("%v", he.Message)
			_ = c.JSON(he.Code, map[string]string{"error": msg})
			return
		}

		slog.Error("Unhandled error", "error", err)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
