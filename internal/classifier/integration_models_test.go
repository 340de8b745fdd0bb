package classifier

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/testutil"
)

func TestClassify_RealModel(t *testing.T) {
	if testing.Short() {
		t.Skip("model test skipped in short mode")
	}
	modelsDir := testutil.GetModelsDir(t)
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(modelsDir, cfg.ModelPath)
	cfg.LabelsPath = filepath.Join(modelsDir, cfg.LabelsPath)
	testutil.RequireFile(t, cfg.ModelPath)
	testutil.RequireFile(t, cfg.LabelsPath)

	c := New(cfg)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Init(context.Background()); err != nil {
		t.Skipf("onnx runtime unavailable: %v", err)
	}
	require.True(t, c.Available())

	res := c.Classify(context.Background(), testutil.GradientImage(300, 200))
	assert.NotEmpty(t, res.Label)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}
