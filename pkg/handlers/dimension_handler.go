package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"agri-price-api/pkg/models"
	"agri-price-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// DimensionHandler は次元一覧と市場ランキングのハンドラです。
type DimensionHandler struct {
	dataset  *services.DatasetContext
	resolver *services.FilterResolver
	engine   *services.QueryEngine
}

// NewDimensionHandler は新しいDimensionHandlerを生成します。
func NewDimensionHandler(dataset *services.DatasetContext, resolver *services.FilterResolver, engine *services.QueryEngine) *DimensionHandler {
	return &DimensionHandler{dataset: dataset, resolver: resolver, engine: engine}
}

// GetDimensions は品目・品種・市場の一覧とデータ期間を返します。
// ?item= を指定すると、その品目で観測された品種のみを返します。
func (h *DimensionHandler) GetDimensions(c *gin.Context) {
	idx, err := h.dataset.Index()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, idx.Dimensions(strings.TrimSpace(c.Query("item"))))
}

// GetTopMarkets は指標別の市場ランキングを返します。
// GET /api/v1/markets/top?item=&metric=price|volume|change&order=desc&top_n=5
func (h *DimensionHandler) GetTopMarkets(c *gin.Context) {
	f := models.DefaultFilter()
	f.ItemName = strings.TrimSpace(c.Query("item"))
	if v := c.Query("variety"); v != "" {
		f.VarietyName = models.StringPtr(v)
	}
	if v := c.Query("date_from"); v != "" {
		f.DateFrom = models.StringPtr(v)
	}
	if v := c.Query("date_to"); v != "" {
		f.DateTo = models.StringPtr(v)
	}
	if v := c.Query("granularity"); v != "" {
		f.Granularity = models.Granularity(v)
	}
	if v := c.Query("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(c, &models.SchemaValidationError{Message: "top_n は整数で指定してください"}, nil)
			return
		}
		f.TopNMarkets = n
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		respondError(c, err, nil)
		return
	}

	order := c.DefaultQuery("order", "desc")
	if order != "desc" && order != "asc" {
		respondError(c, &models.SchemaValidationError{Message: "order は desc / asc のいずれかです"}, nil)
		return
	}
	metric := c.DefaultQuery("metric", services.MetricPrice)

	resolved, warnings, err := h.resolver.CorrectDirect(f)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	markets, more, err := h.engine.TopMarkets(resolved, metric, order == "asc", resolved.TopNMarkets)
	warnings = append(warnings, more...)
	if err != nil {
		respondError(c, err, warnings)
		return
	}
	if len(markets) == 0 {
		respondError(c, models.ErrNoData, warnings)
		return
	}
	if warnings == nil {
		warnings = []string{}
	}

	c.JSON(http.StatusOK, gin.H{
		"item_name":    resolved.ItemName,
		"variety_name": resolved.VarietyName,
		"metric":       metric,
		"order":        order,
		"markets":      markets,
		"warnings":     warnings,
		"request_id":   services.RequestID(c),
	})
}
