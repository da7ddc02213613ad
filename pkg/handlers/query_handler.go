package handlers

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"agri-price-api/pkg/models"
	"agri-price-api/pkg/services"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// QueryHandler は価格問い合わせのハンドラです。
type QueryHandler struct {
	pipeline *services.QueryPipeline
}

// NewQueryHandler は新しいQueryHandlerを生成します。
func NewQueryHandler(pipeline *services.QueryPipeline) *QueryHandler {
	return &QueryHandler{pipeline: pipeline}
}

// Query は自然言語の質問またはフィルタを受け取り、系列・要約・説明文を返します。
// POST /api/v1/query
func (h *QueryHandler) Query(c *gin.Context) {
	resp, ok := h.run(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Export はQueryと同じ処理を行い、結果をxlsxで返します。
// POST /api/v1/query/export
func (h *QueryHandler) Export(c *gin.Context) {
	resp, ok := h.run(c)
	if !ok {
		return
	}
	if resp.Type == services.ResponseTypeClarify {
		// 確認待ちの応答はエクスポートできないのでJSONのまま返す
		c.JSON(http.StatusOK, resp)
		return
	}

	wb, err := services.BuildExportWorkbook(resp)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	defer wb.Close()

	filename := fmt.Sprintf("agri_price_%s.xlsx", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := wb.Write(c.Writer); err != nil {
		log.Printf("❌ [export] xlsxの書き込みに失敗: %v", err)
	}
}

func (h *QueryHandler) run(c *gin.Context) (*models.QueryResponse, bool) {
	var req models.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, models.ErrCodeInvalidFilters,
			fmt.Sprintf("요청 본문을 해석할 수 없습니다: %v", err), nil)
		return nil, false
	}

	resp, err := h.pipeline.Run(c.Request.Context(), services.RequestID(c), req)
	if err != nil {
		var warnings []string
		if resp != nil {
			warnings = resp.Warnings
		}
		respondError(c, err, warnings)
		return nil, false
	}
	return resp, true
}
