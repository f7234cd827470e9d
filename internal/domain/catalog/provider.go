package catalog

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Errors
var (
	ErrReleaseNotFound    = errors.New("release not found")
	ErrArtistNotFound     = errors.New("artist not found")
	ErrSamplePackNotFound = errors.New("sample pack not found")
)

// Provider supplies catalog data to the rest of the application.
type Provider interface {
	Releases() []Release
	GetRelease(id string) (*Release, error)
	Artists() []Artist
	GetArtist(id string) (*Artist, error)
	SamplePacks() []SamplePack
	GetSamplePack(id string) (*SamplePack, error)
	Search(query string) []Release
}

// document is the on-disk shape of the catalog file.
type document struct {
	Releases    []Release    `yaml:"releases" validate:"dive"`
	Artists     []Artist     `yaml:"artists" validate:"dive"`
	SamplePacks []SamplePack `yaml:"sample_packs" validate:"dive"`
}

// StaticProvider serves a catalog loaded from a YAML file. The file is
// re-read when it changes on disk, debounced to survive editors that
// write in multiple events.
type StaticProvider struct {
	path string

	mu          sync.RWMutex
	releases    []Release
	artists     []Artist
	samplePacks []SamplePack

	watcher      *fsnotify.Watcher
	refreshDelay time.Duration
	refreshMu    sync.Mutex
	refreshTimer *time.Timer
	done         chan struct{}
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// NewStaticProvider loads the catalog file at path and starts watching
// it for changes.
func NewStaticProvider(path string) (*StaticProvider, error) {
	p := &StaticProvider{
		path:         filepath.Clean(path),
		refreshDelay: 500 * time.Millisecond,
		done:         make(chan struct{}),
	}

	if err := p.load(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create catalog watcher")
	}
	p.watcher = watcher

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		watcher.Close()
		return nil, errors.Wrap(err, "failed to watch catalog directory")
	}

	p.wg.Add(1)
	go p.run()

	return p, nil
}

// Close stops the file watcher.
func (p *StaticProvider) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.done)

		p.refreshMu.Lock()
		if p.refreshTimer != nil {
			p.refreshTimer.Stop()
			p.refreshTimer = nil
		}
		p.refreshMu.Unlock()

		err = p.watcher.Close()
		p.wg.Wait()
	})
	return err
}

// Releases returns all releases.
func (p *StaticProvider) Releases() []Release {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Release, len(p.releases))
	copy(out, p.releases)
	return out
}

// GetRelease returns the release with the given id.
func (p *StaticProvider) GetRelease(id string) (*Release, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for i := range p.releases {
		if p.releases[i].ID == id {
			r := p.releases[i]
			return &r, nil
		}
	}
	return nil, errors.Wrapf(ErrReleaseNotFound, "id=%s", id)
}

// Artists returns all artists.
func (p *StaticProvider) Artists() []Artist {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Artist, len(p.artists))
	copy(out, p.artists)
	return out
}

// GetArtist returns the artist with the given id.
func (p *StaticProvider) GetArtist(id string) (*Artist, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for i := range p.artists {
		if p.artists[i].ID == id {
			a := p.artists[i]
			return &a, nil
		}
	}
	return nil, errors.Wrapf(ErrArtistNotFound, "id=%s", id)
}

// SamplePacks returns all sample packs.
func (p *StaticProvider) SamplePacks() []SamplePack {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]SamplePack, len(p.samplePacks))
	copy(out, p.samplePacks)
	return out
}

// GetSamplePack returns the sample pack with the given id.
func (p *StaticProvider) GetSamplePack(id string) (*SamplePack, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for i := range p.samplePacks {
		if p.samplePacks[i].ID == id {
			sp := p.samplePacks[i]
			return &sp, nil
		}
	}
	return nil, errors.Wrapf(ErrSamplePackNotFound, "id=%s", id)
}

// Search returns releases matching the free-text query.
func (p *StaticProvider) Search(query string) []Release {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []Release
	for _, r := range p.releases {
		if r.Matches(query) {
			out = append(out, r)
		}
	}
	return out
}

// load reads, validates and installs the catalog file.
func (p *StaticProvider) load() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return errors.Wrap(err, "failed to read catalog file")
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "failed to parse catalog file")
	}

	validate := validator.New()
	if err := validate.Struct(&doc); err != nil {
		return errors.Wrap(err, "catalog validation failed")
	}

	// Release ids key the whole gate ledger; duplicates are a hard error.
	seen := make(map[string]struct{}, len(doc.Releases))
	for i := range doc.Releases {
		if _, dup := seen[doc.Releases[i].ID]; dup {
			return errors.Newf("duplicate release id %q", doc.Releases[i].ID)
		}
		seen[doc.Releases[i].ID] = struct{}{}
	}

	p.mu.Lock()
	p.releases = doc.Releases
	p.artists = doc.Artists
	p.samplePacks = doc.SamplePacks
	p.mu.Unlock()

	zlog.Info().Msgf("catalog loaded: releases=%d artists=%d sample_packs=%d",
		len(doc.Releases), len(doc.Artists), len(doc.SamplePacks))
	return nil
}

func (p *StaticProvider) run() {
	defer p.wg.Done()

	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			p.handleEvent(event)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			zlog.Warn().Msgf("catalog watcher error: %v", err)
		case <-p.done:
			return
		}
	}
}

func (p *StaticProvider) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != p.path {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		p.scheduleRefresh()
	}
}

func (p *StaticProvider) scheduleRefresh() {
	select {
	case <-p.done:
		return
	default:
	}

	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	if p.refreshTimer != nil {
		p.refreshTimer.Stop()
	}

	p.refreshTimer = time.AfterFunc(p.refreshDelay, func() {
		// A reload failure keeps the previous catalog in place.
		if err := p.load(); err != nil {
			zlog.Error().Msgf("catalog reload failed: %v", err)
		}

		p.refreshMu.Lock()
		p.refreshTimer = nil
		p.refreshMu.Unlock()
	})
}
