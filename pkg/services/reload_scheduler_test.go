package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReloadSchedulerRejectsInvalidSpec(t *testing.T) {
	_, err := NewReloadScheduler("every day", testDataset(t), nil)
	assert.Error(t, err)
}

func TestReloadSchedulerRunReloads(t *testing.T) {
	loader := &stubLoader{table: testTable(t)}
	dc := NewDatasetContext(loader)
	require.NoError(t, dc.Init())

	var reloaded *DatasetSnapshot
	s, err := NewReloadScheduler("0 3 * * *", dc, func(snap *DatasetSnapshot) { reloaded = snap })
	require.NoError(t, err)

	s.run()
	require.NotNil(t, reloaded)
	assert.Equal(t, uint64(2), reloaded.Version)
	assert.Equal(t, 2, loader.calls)

	// 失敗時はコールバックを呼ばず、既存データを維持する
	reloaded = nil
	loader.err = errors.New("boom")
	s.run()
	assert.Nil(t, reloaded)
	assert.Equal(t, uint64(2), dc.Version())

	s.Start()
	s.Stop()
}
