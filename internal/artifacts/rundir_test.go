// internal/artifacts/rundir_test.go
package artifacts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDir_LazyCreateAndWrite(t *testing.T) {
	base := t.TempDir()
	rd, err := NewRunDir(base)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(rd.Path()), "run-"))
	assert.Len(t, rd.ID(), 36)
	_, err = os.Stat(rd.Path())
	assert.True(t, os.IsNotExist(err), "nothing is created before the first write")

	p, err := rd.Write("shot.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(rd.Path(), "shot.png"), p)

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
}

func TestRunDir_WriteStaysInside(t *testing.T) {
	rd, err := NewRunDir(t.TempDir())
	require.NoError(t, err)

	p, err := rd.Write("../../escape.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, rd.Path(), filepath.Dir(p))
}

func TestRunDir_Name(t *testing.T) {
	rd, err := NewRunDir(t.TempDir())
	require.NoError(t, err)
	rd.now = func() time.Time { return time.UnixMilli(1700000000123) }

	assert.Equal(t, "llm-dots-1700000000123.png", rd.Name(context.Background(), "llm-dots", "png"))
	assert.Equal(t, "step-07-llm-dots-1700000000123.png", rd.Name(WithStep(context.Background(), 7), "llm-dots", "png"))
}

func TestStepFromContext(t *testing.T) {
	_, ok := StepFromContext(context.Background())
	assert.False(t, ok)

	step, ok := StepFromContext(WithStep(context.Background(), 3))
	assert.True(t, ok)
	assert.Equal(t, 3, step)
}

func TestNewRunDir_HomeExpansion(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	rd, err := NewRunDir("~/runs")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(rd.Path(), "~"))
}
