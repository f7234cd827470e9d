// Package catalog provides the storefront catalog entities: releases,
// tracks, artists and sample packs. The catalog is read-only input for
// the rest of the application.
package catalog

import (
	"fmt"
	"strings"
)

// Track is an immutable track descriptor within a release.
type Track struct {
	Number   int     `yaml:"number" json:"number" validate:"gte=1"` // 1-based position within the release
	Title    string  `yaml:"title" json:"title" validate:"required"`
	Duration int     `yaml:"duration" json:"duration" validate:"gte=0"` // seconds
	AudioURL string  `yaml:"audio_url" json:"audioUrl" validate:"required,url"`
	Key      string  `yaml:"key" json:"key"` // musical key, opaque to the application
	Price    float64 `yaml:"price" json:"price" validate:"gte=0"`
}

// StreamingLinks holds optional external streaming service URLs.
type StreamingLinks struct {
	Spotify    string `yaml:"spotify,omitempty" json:"spotify,omitempty"`
	AppleMusic string `yaml:"apple_music,omitempty" json:"appleMusic,omitempty"`
	YouTube    string `yaml:"youtube,omitempty" json:"youtube,omitempty"`
}

// Release represents a purchasable release (album, EP or single).
type Release struct {
	ID             string         `yaml:"id" json:"id" validate:"required"`
	Title          string         `yaml:"title" json:"title" validate:"required"`
	Artist         string         `yaml:"artist" json:"artist" validate:"required"`
	ArtistID       string         `yaml:"artist_id" json:"artistId"`
	Type           string         `yaml:"type" json:"type"`   // "Album", "EP", "Single"
	Status         string         `yaml:"status" json:"status"`
	Image          string         `yaml:"image" json:"image"`
	ReleaseDate    string         `yaml:"release_date" json:"releaseDate"`
	Label          string         `yaml:"label" json:"label"`
	Description    string         `yaml:"description" json:"description"`
	Price          float64        `yaml:"price" json:"price" validate:"gte=0"`
	Tracks         []Track        `yaml:"tracks" json:"tracks" validate:"dive"`
	StreamingLinks StreamingLinks `yaml:"streaming_links" json:"streamingLinks"`
	IsNew          bool           `yaml:"is_new,omitempty" json:"isNew,omitempty"`
}

// Artist represents a catalog artist.
type Artist struct {
	ID        string `yaml:"id" json:"id" validate:"required"`
	Name      string `yaml:"name" json:"name" validate:"required"`
	Image     string `yaml:"image" json:"image"`
	Bio       string `yaml:"bio" json:"bio"`
	Genre     string `yaml:"genre" json:"genre"`
	Location  string `yaml:"location" json:"location"`
	Followers int    `yaml:"followers" json:"followers"`
}

// Sample is a single preview item within a sample pack.
type Sample struct {
	Name     string `yaml:"name" json:"name" validate:"required"`
	Duration int    `yaml:"duration" json:"duration"` // seconds
	AudioURL string `yaml:"audio_url" json:"audioUrl" validate:"required,url"`
}

// SamplePack represents a purchasable pack of samples. Sample previews
// are never play-gated.
type SamplePack struct {
	ID          string   `yaml:"id" json:"id" validate:"required"`
	Title       string   `yaml:"title" json:"title" validate:"required"`
	Producer    string   `yaml:"producer" json:"producer"`
	Image       string   `yaml:"image" json:"image"`
	Description string   `yaml:"description" json:"description"`
	Price       float64  `yaml:"price" json:"price" validate:"gte=0"`
	Samples     []Sample `yaml:"samples" json:"samples" validate:"dive"`
}

// TrackID builds the canonical track identifier used by the play-gate
// ledger and the purchase records: "{releaseId}-track-{trackNumber}".
func TrackID(releaseID string, trackNumber int) string {
	return fmt.Sprintf("%s-track-%d", releaseID, trackNumber)
}

// TrackID returns the canonical identifier of a track within a release.
func (r *Release) TrackID(t Track) string {
	return TrackID(r.ID, t.Number)
}

// TrackByNumber returns the track with the given 1-based number.
func (r *Release) TrackByNumber(number int) (Track, bool) {
	for _, t := range r.Tracks {
		if t.Number == number {
			return t, true
		}
	}
	return Track{}, false
}

// TotalDuration returns the summed duration of all tracks in seconds.
func (r *Release) TotalDuration() int {
	var total int
	for _, t := range r.Tracks {
		total += t.Duration
	}
	return total
}

// Matches reports whether the release matches a free-text query against
// title, artist and track titles. Matching is case-insensitive.
func (r *Release) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(r.Title), q) ||
		strings.Contains(strings.ToLower(r.Artist), q) {
		return true
	}
	for _, t := range r.Tracks {
		if strings.Contains(strings.ToLower(t.Title), q) {
			return true
		}
	}
	return false
}
