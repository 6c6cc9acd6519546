package fs

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/video"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".webm": {},
	".mkv":  {},
	".mov":  {},
	".m4v":  {},
	".avi":  {},
}

// Repo catalogs the video files of a local media directory. The video id is
// the file name; the URL is where the static media route serves it.
type Repo struct {
	mediaDir  string
	urlPrefix string
}

func NewRepo(mediaDir, urlPrefix string) *Repo {
	return &Repo{
		mediaDir:  mediaDir,
		urlPrefix: urlPrefix,
	}
}

func (r Repo) Resolve(_ context.Context, videoId string) (domain.Video, error) {
	// reject anything that escapes the media dir
	if videoId == "" || videoId != filepath.Base(videoId) || strings.HasPrefix(videoId, ".") {
		return domain.Video{}, video.ErrNotFound
	}

	if _, ok := videoExtensions[strings.ToLower(filepath.Ext(videoId))]; !ok {
		return domain.Video{}, video.ErrNotFound
	}

	info, err := os.Stat(filepath.Join(r.mediaDir, videoId))
	if err != nil || info.IsDir() {
		return domain.Video{}, video.ErrNotFound
	}

	return domain.Video{
		Id:  videoId,
		URL: path.Join(r.urlPrefix, videoId),
	}, nil
}

func (r Repo) List(_ context.Context) ([]domain.Video, error) {
	entries, err := os.ReadDir(r.mediaDir)
	if err != nil {
		return nil, err
	}

	videos := make([]domain.Video, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}

		videos = append(videos, domain.Video{
			Id:  entry.Name(),
			URL: path.Join(r.urlPrefix, entry.Name()),
		})
	}

	return videos, nil
}
