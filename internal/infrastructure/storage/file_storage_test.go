package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalFileStorage_SaveAndRead(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	path := filepath.Join("Kitchen", "REQ-20260101-AB12.xlsx")
	require.NoError(t, s.Save(ctx, path, []byte("workbook")))

	assert.True(t, s.Exists(ctx, path))
	content, err := s.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(content))
}

func TestLocalFileStorage_RejectsEscapes(t *testing.T) {
	s := NewLocalFileStorage(t.TempDir(), zap.NewNop())
	ctx := context.Background()

	err := s.Save(ctx, "../outside.xlsx", []byte("x"))
	assert.Error(t, err)
	assert.False(t, s.Exists(ctx, "../outside.xlsx"))
}
