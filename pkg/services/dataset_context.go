package services

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"agri-price-api/pkg/models"
)

// TableLoader はデータソースからTableを読み込みます。
type TableLoader interface {
	Load() (*Table, error)
}

// DatasetSnapshot はある時点のテーブルと索引の組です。読み取り専用。
type DatasetSnapshot struct {
	Table   *Table
	Index   *DimensionIndex
	Version uint64
}

// DatasetContext はプロセス内で共有するデータセットと索引を保持します。
// 初回アクセス時に遅延ロードし、Reloadは直列化されます。
type DatasetContext struct {
	loader TableLoader

	mu       sync.RWMutex
	snapshot *DatasetSnapshot

	reloadMu sync.Mutex
	version  atomic.Uint64
}

// NewDatasetContext はloaderを使うDatasetContextを生成します（まだ読み込まない）。
func NewDatasetContext(loader TableLoader) *DatasetContext {
	return &DatasetContext{loader: loader}
}

// NewDatasetContextFromTable は読み込み済みのテーブルからコンテキストを生成します（主にテスト用）。
func NewDatasetContextFromTable(t *Table) *DatasetContext {
	dc := &DatasetContext{}
	dc.install(t)
	return dc
}

// Init は未ロードなら読み込みます。すでにロード済みなら何もしません。
func (dc *DatasetContext) Init() error {
	_, err := dc.Snapshot()
	return err
}

// Snapshot はキャッシュ済みのスナップショットを返し、未ロードなら読み込みます。
func (dc *DatasetContext) Snapshot() (*DatasetSnapshot, error) {
	dc.mu.RLock()
	if s := dc.snapshot; s != nil {
		dc.mu.RUnlock()
		return s, nil
	}
	dc.mu.RUnlock()

	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.snapshot != nil { // double-check
		return dc.snapshot, nil
	}
	if dc.loader == nil {
		return nil, models.ErrDatasetNotLoaded
	}

	t, err := dc.loader.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrDatasetNotLoaded, err)
	}
	dc.snapshot = dc.newSnapshot(t)
	return dc.snapshot, nil
}

// Table はキャッシュ済みのテーブルを返します。
func (dc *DatasetContext) Table() (*Table, error) {
	s, err := dc.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Table, nil
}

// Index はキャッシュ済みの次元索引を返します。
func (dc *DatasetContext) Index() (*DimensionIndex, error) {
	s, err := dc.Snapshot()
	if err != nil {
		return nil, err
	}
	return s.Index, nil
}

// Reload はキャッシュを無視して1回だけ再読み込みし、成功したら差し替えます。
// 失敗時は既存のテーブルを保持します。同時に呼ばれた場合は直列に実行されます。
func (dc *DatasetContext) Reload() (*DatasetSnapshot, error) {
	dc.reloadMu.Lock()
	defer dc.reloadMu.Unlock()

	if dc.loader == nil {
		return nil, models.ErrDatasetNotLoaded
	}

	t, err := dc.loader.Load()
	if err != nil {
		log.Printf("❌ [dataset] 再読み込みに失敗しました（既存データを継続使用）: %v", err)
		return nil, fmt.Errorf("データセットの再読み込みに失敗: %w", err)
	}

	s := dc.newSnapshot(t)
	dc.mu.Lock()
	dc.snapshot = s
	dc.mu.Unlock()

	log.Printf("🔄 [dataset] 再読み込み完了: %d行 (version=%d)", t.Len(), s.Version)
	return s, nil
}

// Version はデータセットの世代番号。Reloadのたびに増えます。
func (dc *DatasetContext) Version() uint64 {
	return dc.version.Load()
}

// Loaded はロード済みかどうか
func (dc *DatasetContext) Loaded() bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.snapshot != nil
}

// Current はロード済みのスナップショットを返します。未ロードでも読み込みは行いません。
func (dc *DatasetContext) Current() *DatasetSnapshot {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.snapshot
}

func (dc *DatasetContext) install(t *Table) {
	dc.mu.Lock()
	dc.snapshot = dc.newSnapshot(t)
	dc.mu.Unlock()
}

func (dc *DatasetContext) newSnapshot(t *Table) *DatasetSnapshot {
	return &DatasetSnapshot{
		Table:   t,
		Index:   BuildDimensionIndex(t),
		Version: dc.version.Add(1),
	}
}
