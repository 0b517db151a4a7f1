package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateSKU(""))
	assert.NoError(t, ValidateSKU("RICE-25"))
	assert.Error(t, ValidateSKU("rice 25"))

	assert.NoError(t, ValidateUserID("u-hod"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("u hod"))

	assert.NoError(t, ValidateQuantity(0.5))
	assert.Error(t, ValidateQuantity(0))
	assert.Error(t, ValidateQuantity(2_000_000))

	assert.NoError(t, ValidateUnitCost(0))
	assert.Error(t, ValidateUnitCost(-1))

	assert.Equal(t, "Bath towel", SanitizeString("  Bath\x00 towel\n"))
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := NewKVLogger(zap.New(core))

	l.Info("Decision applied", "requisition_id", "r1", "completed", true, 42, "dropped", "dangling")
	l.Error("Decision failed", "error", errors.New("boom"))

	entries := logs.AllUntimed()
	assert.Len(t, entries, 2)
	assert.Equal(t, map[string]interface{}{"requisition_id": "r1", "completed": true}, entries[0].ContextMap())
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
