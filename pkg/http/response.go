package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const mimeMarkdown = "text/markdown; charset=utf-8"

// DataResponse writes the JSON envelope. The HTTP status matches the
// envelope status, so load balancers see failing health checks.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return DataResponse(c, http.StatusOK, &ListDataResponse{
		Rows:  rows,
		Total: total,
	})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

// AcceptedResponse acknowledges work handed to the job queue.
func AcceptedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusAccepted, data)
}

// BadRequestResponse writes the validation errors of a request.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

// MarkdownResponse serves a rendered report such as the data one-pager.
func MarkdownResponse(c echo.Context, doc string) error {
	return c.Blob(http.StatusOK, mimeMarkdown, []byte(doc))
}

// AppErrorResponse writes an AppError as is. Any other error is hidden
// behind a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return DataResponse(c, http.StatusInternalServerError, []*AppError{
			NewAppError(CodeInternal, "", "something went wrong", http.StatusInternalServerError),
		})
	}
	if appErr.RetryAfter > 0 {
		c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(appErr.RetryAfter)))
	}
	return DataResponse(c, appErr.Status, []*AppError{appErr})
}
