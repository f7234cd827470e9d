// Package spotify enriches catalog releases with Spotify streaming links.
package spotify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/numba-music/storefront/internal/domain/catalog"
)

// Client is a Spotify Web API client. Catalog enrichment only needs
// public album search, so the client-credentials flow is enough.
type Client struct {
	client     *spotify.Client
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
}

// New creates a Spotify client using the client-credentials flow.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	config := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	token, err := config.Token(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get spotify token")
	}

	httpClient := spotifyauth.New().Client(ctx, token)

	return &Client{
		client:     spotify.New(httpClient),
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// FindAlbumURL searches Spotify for an album by title and artist and
// returns its open.spotify.com URL, or "" when nothing matches.
func (c *Client) FindAlbumURL(ctx context.Context, title, artist string) (string, error) {
	query := fmt.Sprintf("album:%s artist:%s", title, artist)

	var result *spotify.SearchResult
	err := c.retry(func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeAlbum, spotify.Limit(5))
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to search albums")
	}

	if result.Albums == nil || len(result.Albums.Albums) == 0 {
		return "", nil
	}

	// Prefer an exact title match over Spotify's own ranking.
	want := strings.ToLower(strings.TrimSpace(title))
	for _, album := range result.Albums.Albums {
		if strings.ToLower(strings.TrimSpace(album.Name)) == want {
			return albumURL(string(album.ID)), nil
		}
	}
	return albumURL(string(result.Albums.Albums[0].ID)), nil
}

// Enrich fills in missing Spotify streaming links on the given releases.
// Releases that already carry a link are left alone; lookup failures skip
// the release rather than failing the batch.
func (c *Client) Enrich(ctx context.Context, releases []catalog.Release) []catalog.Release {
	out := make([]catalog.Release, len(releases))
	copy(out, releases)

	for i := range out {
		if out[i].StreamingLinks.Spotify != "" {
			continue
		}
		url, err := c.FindAlbumURL(ctx, out[i].Title, out[i].Artist)
		if err != nil {
			zlog.Warn().Msgf("spotify: lookup failed for release %s: %v", out[i].ID, err)
			continue
		}
		if url == "" {
			continue
		}
		out[i].StreamingLinks.Spotify = url
	}
	return out
}

func albumURL(id string) string {
	return fmt.Sprintf("https://open.spotify.com/album/%s", id)
}

// retry retries an operation with linear backoff.
func (c *Client) retry(fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			time.Sleep(c.retryDelay * time.Duration(i+1))
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	// Rate limit errors and server errors are retryable.
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
