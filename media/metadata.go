package media

import (
	"os"

	"github.com/dhowden/tag"
)

// ReadTitle extracts the container metadata title from a media file.
// Returns empty on any failure; a missing title never blocks processing.
func ReadTitle(filePath string) string {
	file, err := os.Open(filePath)
	if err != nil {
		return ""
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		return ""
	}
	return meta.Title()
}
