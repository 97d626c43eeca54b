package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"waste-report-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReportStore_LoadReturnsCopy(t *testing.T) {
	store := NewMemoryReportStore([]model.Report{{ID: "a", Status: model.StatusPending}})
	ctx := context.Background()

	reports, err := store.Load(ctx)
	require.NoError(t, err)
	reports[0].Status = model.StatusRejected

	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, again[0].Status)
}

func TestMemoryReportStore_UpdateCountsSaves(t *testing.T) {
	store := NewMemoryReportStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Update(ctx, func(r []model.Report) ([]model.Report, error) {
		return append(r, model.Report{ID: "a"}), nil
	}))
	err := store.Update(ctx, func(r []model.Report) ([]model.Report, error) {
		return nil, errors.New("nope")
	})
	require.Error(t, err)

	assert.Equal(t, 1, store.Saves())
	reports, _ := store.Load(ctx)
	assert.Len(t, reports, 1)
}

func TestLocalImageStore_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocalImageStore(dir, "/uploads")
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "Dump Site.JPG", strings.NewReader("fake-jpeg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "/uploads/"))
	assert.True(t, strings.HasSuffix(ref, ".jpg"))

	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(ref, "/uploads/")))
	require.NoError(t, err)
	assert.Equal(t, "fake-jpeg", string(data))
}

func TestLocalImageStore_UniqueNames(t *testing.T) {
	store, err := NewLocalImageStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	a, err := store.Save(context.Background(), "a.png", strings.NewReader("1"))
	require.NoError(t, err)
	b, err := store.Save(context.Background(), "a.png", strings.NewReader("2"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestImageExt(t *testing.T) {
	assert.Equal(t, ".png", imageExt("photo.PNG"))
	assert.Equal(t, "", imageExt("photo"))
	assert.Equal(t, ".abcdefg", imageExt("x.abcdefghijk"))
	assert.Equal(t, "", imageExt("a.p#g"))
	assert.Equal(t, "", imageExt("a.jp g"))
	assert.Equal(t, "", imageExt("a.ph?p"))
	assert.Equal(t, "", imageExt("trailing."))
	assert.Equal(t, ".mp4", imageExt("clip.MP4"))
}

func TestLocalImageStore_UnsafeExtensionDropped(t *testing.T) {
	store, err := NewLocalImageStore(t.TempDir(), "/uploads")
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "a.p#g", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, ref, "#")
	assert.NotContains(t, ref, ".")
}

func TestLocalImageStore_Delete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalImageStore(dir, "/uploads")
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "bin.png", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), ref))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Already gone.
	assert.NoError(t, store.Delete(context.Background(), ref))
	assert.Error(t, store.Delete(context.Background(), "/elsewhere/"+filepath.Base(ref)))
}
