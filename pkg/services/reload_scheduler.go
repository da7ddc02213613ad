package services

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Reloader はデータセットを再読み込みできるもの
type Reloader interface {
	Reload() (*DatasetSnapshot, error)
}

// ReloadScheduler はcron式に従ってデータセットを定期的に再読み込みします。
type ReloadScheduler struct {
	cron     *cron.Cron
	reloader Reloader
	onReload func(*DatasetSnapshot)
}

// NewReloadScheduler は5フィールドのcron式でスケジューラを生成します。
// onReloadは再読み込みに成功した後に呼ばれます（nil可）。
func NewReloadScheduler(spec string, reloader Reloader, onReload func(*DatasetSnapshot)) (*ReloadScheduler, error) {
	s := &ReloadScheduler{
		cron:     cron.New(),
		reloader: reloader,
		onReload: onReload,
	}
	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("cron式が不正です (%q): %w", spec, err)
	}
	return s, nil
}

func (s *ReloadScheduler) run() {
	snap, err := s.reloader.Reload()
	if err != nil {
		log.Printf("❌ [cron] データセットの定期再読み込みに失敗: %v", err)
		return
	}
	log.Printf("⏰ [cron] データセットを再読み込みしました (version=%d, rows=%d)", snap.Version, snap.Table.Len())
	if s.onReload != nil {
		s.onReload(snap)
	}
}

// Start はスケジューラを開始します。
func (s *ReloadScheduler) Start() {
	s.cron.Start()
	log.Printf("⏰ [cron] 定期再読み込みを開始しました")
}

// Stop は実行中のジョブの終了を待って停止します。
func (s *ReloadScheduler) Stop() {
	<-s.cron.Stop().Done()
}
