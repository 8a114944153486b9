package dataset

import (
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscoverCategoriesIncludesLast(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 4, 2)

	cats, err := DiscoverCategories(fs, "/data", 4)
	require.NoError(t, err)
	require.Len(t, cats, 4)
	for i, c := range cats {
		assert.Equal(t, i, c.ID)
		assert.Len(t, c.Files, 2)
	}
	assert.Equal(t, 3, cats[len(cats)-1].ID)
	assert.Equal(t, 8, CountFiles(cats))
}

func TestDiscoverCategoriesSortsAndFilters(t *testing.T) {
	fs := afero.NewMemMapFs()
	mustWrite(t, fs, "/data/0/b.ppm", []byte("x"))
	mustWrite(t, fs, "/data/0/a.PNG", []byte("x"))
	mustWrite(t, fs, "/data/0/GT-00000.csv", []byte("x"))
	require.NoError(t, fs.MkdirAll("/data/0/nested", 0o755))

	cats, err := DiscoverCategories(fs, "/data", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("/data/0", "a.PNG"),
		filepath.Join("/data/0", "b.ppm"),
	}, cats[0].Files)
}

func TestDiscoverCategoriesMissingLast(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 3, 1)

	_, err := DiscoverCategories(fs, "/data", 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingCategory))
	assert.Contains(t, err.Error(), "category 3")
}

func TestDiscoverCategoriesEmptyCategory(t *testing.T) {
	fs := afero.NewMemMapFs()
	buildTree(t, fs, "/data", 2, 1)
	mustWrite(t, fs, "/data/2/README.txt", []byte("no images"))

	_, err := DiscoverCategories(fs, "/data", 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCategory))
}

func TestDiscoverCategoriesMissingRoot(t *testing.T) {
	_, err := DiscoverCategories(afero.NewMemMapFs(), "/nowhere", 3)
	assert.Error(t, err)

	fs := afero.NewMemMapFs()
	mustWrite(t, fs, "/file", []byte("x"))
	_, err = DiscoverCategories(fs, "/file", 1)
	assert.Error(t, err)

	_, err = DiscoverCategories(fs, "/", 0)
	assert.Error(t, err)
}

func TestIsImageFile(t *testing.T) {
	assert.True(t, IsImageFile("00000_00000.ppm"))
	assert.True(t, IsImageFile("x.JPEG"))
	assert.False(t, IsImageFile("GT-00000.csv"))
	assert.False(t, IsImageFile("noext"))
}
