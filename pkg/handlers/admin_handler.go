package handlers

import (
	"net/http"
	"sync/atomic"
	"time"

	config "agri-price-api/configs"
	"agri-price-api/pkg/models"
	"agri-price-api/pkg/services"

	"github.com/gin-gonic/gin"
)

// isMaintenanceMode はサーバーがメンテナンスモードかどうかを示します。
// atomic.Boolを使用して、スレッドセーフな読み書きを保証します。
var isMaintenanceMode atomic.Bool

// AdminHandler は管理者向け操作のハンドラです。
type AdminHandler struct {
	AdminUsername string
	AdminPassword string

	dataset *services.DatasetContext
	cache   *services.QueryCache
}

// NewAdminHandler は新しいAdminHandlerを生成します。cacheはnil可。
func NewAdminHandler(cfg *config.Config, dataset *services.DatasetContext, cache *services.QueryCache) *AdminHandler {
	return &AdminHandler{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		dataset:       dataset,
		cache:         cache,
	}
}

// AdminCredentials は管理者認証のためのリクエストボディです。
type AdminCredentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// authorize はボディの資格情報を検証します。失敗時はレスポンスを書いてfalseを返します。
func (h *AdminHandler) authorize(c *gin.Context) bool {
	var input AdminCredentials
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return false
	}
	// パスワード未設定の場合は管理操作自体を受け付けない
	if h.AdminPassword == "" || input.Username != h.AdminUsername || input.Password != h.AdminPassword {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return false
	}
	return true
}

// StartMaintenance はメンテナンスモードを開始します。
func (h *AdminHandler) StartMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	isMaintenanceMode.Store(true)
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode started"})
}

// StopMaintenance はメンテナンスモードを停止します。
func (h *AdminHandler) StopMaintenance(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	isMaintenanceMode.Store(false)
	c.JSON(http.StatusOK, gin.H{"message": "Maintenance mode stopped"})
}

// Reload はデータセットを再読み込みし、クエリキャッシュを破棄します。
// 失敗した場合は既存のデータセットを使い続けます。
func (h *AdminHandler) Reload(c *gin.Context) {
	if !h.authorize(c) {
		return
	}
	snap, err := h.dataset.Reload()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	h.cache.Purge()

	c.JSON(http.StatusOK, gin.H{
		"message":   "Dataset reloaded",
		"version":   snap.Version,
		"rows":      snap.Table.Len(),
		"loaded_at": snap.Table.LoadedAt.Format(time.RFC3339),
	})
}

// GetHealthStatus は現在のサーバーの状態を返します。
func (h *AdminHandler) GetHealthStatus(c *gin.Context) {
	status := gin.H{
		"isMaintenanceMode": isMaintenanceMode.Load(),
		"datasetLoaded":     h.dataset.Loaded(),
		"datasetVersion":    h.dataset.Version(),
		"cacheEnabled":      h.cache.Enabled(),
	}
	if snap := h.dataset.Current(); snap != nil {
		status["rows"] = snap.Table.Len()
		status["parseFailures"] = snap.Table.ParseFailures
		status["encoding"] = snap.Table.Encoding
	}
	c.JSON(http.StatusOK, status)
}

// HealthCheck は外部のヘルスチェッカー（例: ロードバランサー）からのリクエストに応答します。
func (h *AdminHandler) HealthCheck(c *gin.Context) {
	if isMaintenanceMode.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "message": "Server is in maintenance mode"})
		return
	}
	body := gin.H{"status": "ok", "rows": 0, "loaded_at": nil}
	if snap := h.dataset.Current(); snap != nil {
		body["rows"] = snap.Table.Len()
		body["loaded_at"] = snap.Table.LoadedAt.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, body)
}

// MaintenanceGuard はメンテナンス中の問い合わせを503で拒否するミドルウェアです。
func MaintenanceGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isMaintenanceMode.Load() {
			abortWithError(c, http.StatusServiceUnavailable, models.ErrCodeServiceUnavailable,
				"Server is in maintenance mode", nil)
			return
		}
		c.Next()
	}
}
