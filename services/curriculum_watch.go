package services

import (
	"context"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ReloadingCurriculum wraps an immutable curriculum index and swaps in a fresh
// one when the corpus file on disk is rewritten (re-ingestion). Readers always
// see a complete index; a failed reload keeps the previous one.
type ReloadingCurriculum struct {
	path    string
	current atomic.Pointer[CurriculumService]
}

// NewReloadingCurriculum loads the corpus once. Load errors propagate so the
// caller can refuse to start.
func NewReloadingCurriculum(path string) (*ReloadingCurriculum, error) {
	idx, err := LoadCurriculum(path)
	if err != nil {
		return nil, err
	}
	r := &ReloadingCurriculum{path: path}
	r.current.Store(&idx)
	return r, nil
}

func (r *ReloadingCurriculum) Subjects() []string {
	return (*r.current.Load()).Subjects()
}

func (r *ReloadingCurriculum) RelevantExcerpts(subjectHint string, maxChars int) []string {
	return (*r.current.Load()).RelevantExcerpts(subjectHint, maxChars)
}

// Watch blocks until ctx is cancelled, reloading the index whenever the corpus
// file is created or written. The ingest command writes via rename, which some
// platforms report as Create.
func (r *ReloadingCurriculum) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error().Err(err).Msg("WATCHER: failed to create corpus watcher")
		return
	}
	defer watcher.Close()

	// Watch the directory: editors and the ingest command replace the file,
	// and a watch on the old inode would go stale.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		log.Error().Err(err).Str("path", r.path).Msg("WATCHER: failed to watch corpus directory")
		return
	}
	log.Info().Str("path", r.path).Msg("WATCHER: watching curriculum corpus")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(r.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			idx, err := LoadCurriculum(r.path)
			if err != nil {
				log.Warn().Err(err).Msg("WATCHER: corpus reload failed, keeping previous index")
				continue
			}
			r.current.Store(&idx)
			log.Info().Msg("WATCHER: curriculum corpus reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("WATCHER: corpus watcher error")
		case <-ctx.Done():
			return
		}
	}
}
