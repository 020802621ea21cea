package domain

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
)

type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// DownloadRequest is one unit of work for the download pipeline. It is
// immutable once enqueued; the queue owns it until the scheduler hands it
// to exactly one fetch.
type DownloadRequest struct {
	ID string

	Kind MediaKind

	// BaseLocator is the URL before the kind/size download suffix is applied.
	BaseLocator string

	// Name is the destination file name inside the download directory.
	Name string

	// Width and Height are the size hint for images. Zero means no hint.
	Width  int64
	Height int64

	// CreatedAt is the logical timestamp reported by the source catalog.
	// Zero when the catalog did not provide one.
	CreatedAt time.Time
}

// NewImageRequest builds a request for an image or motion photo.
func NewImageRequest(locator, name string, width, height int64, createdAt time.Time) DownloadRequest {
	return DownloadRequest{
		ID:          ksuid.New().String(),
		Kind:        KindImage,
		BaseLocator: locator,
		Name:        name,
		Width:       width,
		Height:      height,
		CreatedAt:   createdAt,
	}
}

// NewVideoRequest builds a request for a video. Videos carry no size hint.
func NewVideoRequest(locator, name string, createdAt time.Time) DownloadRequest {
	return DownloadRequest{
		ID:          ksuid.New().String(),
		Kind:        KindVideo,
		BaseLocator: locator,
		Name:        name,
		CreatedAt:   createdAt,
	}
}

// ResolveLocator returns the final URL variant for the GET: images get a
// size suffix when a hint is present (`=w{W}-h{H}`), the original-bytes
// suffix (`=d`) otherwise, and videos always get `=dv`.
func (r DownloadRequest) ResolveLocator() string {
	switch r.Kind {
	case KindVideo:
		return r.BaseLocator + "=dv"
	default:
		if r.Width > 0 && r.Height > 0 {
			return fmt.Sprintf("%s=w%d-h%d", r.BaseLocator, r.Width, r.Height)
		}
		return r.BaseLocator + "=d"
	}
}

// TargetPath is the final on-disk destination for this request.
func (r DownloadRequest) TargetPath(outDir string) string {
	return filepath.Join(outDir, r.Name)
}
