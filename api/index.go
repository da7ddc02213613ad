package handler

import (
	"log"
	"net/http"
	"sync"

	config "agri-price-api/configs"
	"agri-price-api/pkg/handlers"

	"github.com/gin-gonic/gin"
)

var (
	app  *gin.Engine
	once sync.Once
)

// setupApp はGinアプリケーションを初期化します。
// サーバーレス環境では、リクエストごとに初期化が走らないようsync.Onceで一度だけ実行します。
func setupApp() *gin.Engine {
	once.Do(func() {
		log.Printf("🟢 [setupApp] Initializing Gin application")

		// .envファイルはVercelの環境変数設定から読み込まれるため、ここではgodotenvを呼び出しません。
		cfg := config.LoadConfig()

		deps, err := handlers.NewDependencies(cfg)
		if err != nil {
			log.Printf("FATAL: Failed to initialize services in Vercel function: %v", err)
			app = gin.New()
			app.NoRoute(func(c *gin.Context) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "service initialization failed"})
			})
			return
		}

		// コールドスタート時にデータセットを読み込む。失敗時は初回リクエストで再試行
		if err := deps.Dataset.Init(); err != nil {
			log.Printf("❌ [setupApp] データセットの読み込みに失敗: %v", err)
		}

		app = handlers.SetupRouter(cfg, deps)
	})
	return app
}

// Handler はVercelからのすべてのリクエストを処理するエントリーポイントです。
func Handler(w http.ResponseWriter, r *http.Request) {
	log.Printf("🔵 [Handler] Request received: %s %s", r.Method, r.URL.Path)
	setupApp().ServeHTTP(w, r)
}
