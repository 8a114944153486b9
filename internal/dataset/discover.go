package dataset

import (
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// imageExtensions lists the file extensions decoded by the loader.
var imageExtensions = map[string]bool{
	".ppm":  true,
	".pgm":  true,
	".pbm":  true,
	".pnm":  true,
	".pam":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// Category is one category directory and the image files inside it.
type Category struct {
	ID    int
	Dir   string
	Files []string
}

// IsImageFile reports whether name carries an extension the loader decodes.
func IsImageFile(name string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// DiscoverCategories returns the categories 0 through numCategories-1 under
// root, each with its image files sorted by name. Every category in that
// inclusive range must exist and hold at least one image.
func DiscoverCategories(fs afero.Fs, root string, numCategories int) ([]Category, error) {
	if numCategories <= 0 {
		return nil, errors.Errorf("discover categories: category count must be > 0 (got %d)", numCategories)
	}
	info, err := fs.Stat(root)
	if err != nil {
		return nil, errors.Wrap(err, "discover categories")
	}
	if !info.IsDir() {
		return nil, errors.Errorf("discover categories: %s is not a directory", root)
	}

	categories := make([]Category, 0, numCategories)
	for id := 0; id <= numCategories-1; id++ {
		dir := filepath.Join(root, strconv.Itoa(id))
		info, err := fs.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, errors.Wrapf(ErrMissingCategory, "category %d (%s)", id, dir)
		}
		entries, err := afero.ReadDir(fs, dir)
		if err != nil {
			return nil, errors.Wrapf(err, "read category %d", id)
		}
		files := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !IsImageFile(e.Name()) {
				continue
			}
			files = append(files, filepath.Join(dir, e.Name()))
		}
		if len(files) == 0 {
			return nil, errors.Wrapf(ErrEmptyCategory, "category %d (%s)", id, dir)
		}
		sort.Strings(files)
		categories = append(categories, Category{ID: id, Dir: dir, Files: files})
	}
	return categories, nil
}

// CountFiles returns the number of image files across categories.
func CountFiles(categories []Category) int {
	total := 0
	for _, c := range categories {
		total += len(c.Files)
	}
	return total
}
