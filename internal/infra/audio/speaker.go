// Package audio implements the player output on a real audio device via
// beep. Builds without a supported sound backend get a stub output that
// reports audio as unavailable.
package audio

import (
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrUnavailable is returned by the stub output when the build has no
// audio backend.
var ErrUnavailable = errors.New("audio playback is not supported in this build")

// fetchTimeout bounds how long a single source download may take.
const fetchTimeout = 30 * time.Second

// fetchSource reads the audio data behind a locator: http(s) URLs are
// downloaded, anything else is treated as a local file path.
func fetchSource(locator string) ([]byte, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		client := &http.Client{Timeout: fetchTimeout}
		resp, err := client.Get(locator)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fetch audio source")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, errors.Newf("failed to fetch audio source: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read audio source")
		}
		return data, nil
	}

	data, err := os.ReadFile(locator)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read audio file")
	}
	return data, nil
}
