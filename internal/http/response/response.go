package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/pkg/apperror"
)

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type PaginatedResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination Pagination  `json:"pagination"`
}

type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func Paginated(c *gin.Context, data interface{}, total, limit, offset int) {
	c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    data,
		Pagination: Pagination{
			Total:   total,
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < total,
		},
	})
}

// Error отвечает кодом и сообщением AppError. Внутренние ошибки маскируются.
func Error(c *gin.Context, err error) {
	status, info := Describe(err)
	c.JSON(status, Response{Success: false, Error: &info})
}

// Abort как Error, но прерывает цепочку обработчиков.
func Abort(c *gin.Context, err error) {
	status, info := Describe(err)
	c.AbortWithStatusJSON(status, Response{Success: false, Error: &info})
}

// Describe возвращает HTTP-статус и тело ошибки.
func Describe(err error) (int, ErrorInfo) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
		return appErr.HTTPStatus, ErrorInfo{Code: string(appErr.Code), Message: appErr.Message}
	}
	code := apperror.ErrCodeInternal
	if appErr != nil {
		code = appErr.Code
	}
	return http.StatusInternalServerError, ErrorInfo{
		Code:    string(code),
		Message: "внутренняя ошибка сервера",
	}
}

func BadRequest(c *gin.Context, message string) {
	Error(c, apperror.New(apperror.ErrCodeBadRequest, message))
}
