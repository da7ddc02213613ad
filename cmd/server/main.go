package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "agri-price-api/configs"
	"agri-price-api/pkg/handlers"
	"agri-price-api/pkg/services"

	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	// 設定の読み込み
	cfg := config.LoadConfig()

	// サービスの初期化
	deps, err := handlers.NewDependencies(cfg)
	if err != nil {
		log.Fatalf("FATAL: サービスの初期化に失敗: %v", err)
	}
	defer deps.Close()

	// 起動時にデータセットを読み込んでおく。失敗しても初回リクエストで再試行する
	if err := deps.Dataset.Init(); err != nil {
		log.Printf("❌ [dataset] 起動時の読み込みに失敗しました: %v", err)
	}

	scheduler, err := newReloadScheduler(cfg, deps)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if scheduler != nil {
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.SetupRouter(cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting agri-price-api server on :%s (env=%s)", cfg.Port, cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}
}

// newReloadScheduler はRELOAD_CRONが設定されている場合のみスケジューラを作ります。
// 再読み込みに成功したらクエリキャッシュのメモリ段を空にします。
func newReloadScheduler(cfg *config.Config, deps handlers.Dependencies) (*services.ReloadScheduler, error) {
	if cfg.ReloadCron == "" {
		return nil, nil
	}
	return services.NewReloadScheduler(cfg.ReloadCron, deps.Dataset, func(*services.DatasetSnapshot) {
		deps.Cache.Purge()
	})
}
