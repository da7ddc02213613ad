package handlers

import (
	"errors"
	"log"
	"net/http"

	"agri-price-api/pkg/models"
	"agri-price-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// statusForError はエラーをHTTPステータスとエラーコードに対応付けます。
func statusForError(err error) (int, string) {
	var (
		schemaErr   *models.SchemaValidationError
		encodingErr *models.EncodingError
	)
	switch {
	case errors.As(err, &schemaErr):
		return http.StatusBadRequest, models.ErrCodeInvalidFilters
	case errors.Is(err, models.ErrMissingInput):
		return http.StatusBadRequest, models.ErrCodeMissingInput
	case errors.Is(err, models.ErrNoData):
		return http.StatusNotFound, models.ErrCodeNoData
	case errors.Is(err, models.ErrDatasetNotLoaded), errors.As(err, &encodingErr):
		return http.StatusServiceUnavailable, models.ErrCodeServiceUnavailable
	default:
		return http.StatusInternalServerError, models.ErrCodeInternal
	}
}

// respondError はエラーをエンベロープ形式で返します。
// NO_DATAの場合はそれまでに蓄積された警告も含めます。
func respondError(c *gin.Context, err error, warnings []string) {
	status, code := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("❌ [api] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		message = "서버 내부 오류가 발생했습니다."
	}
	abortWithError(c, status, code, message, warnings)
}

func abortWithError(c *gin.Context, status int, code, message string, warnings []string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:     models.ErrorBody{Code: code, Message: message},
		Warnings:  warnings,
		RequestID: services.RequestID(c),
	})
}
