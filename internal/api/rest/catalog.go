package rest

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/numba-music/storefront/internal/domain/catalog"
)

func (h *Handler) ListReleases(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Catalog.Releases())
}

func (h *Handler) GetRelease(w http.ResponseWriter, r *http.Request) {
	release, err := h.Catalog.GetRelease(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "release not found")
		return
	}
	respondJSON(w, http.StatusOK, release)
}

func (h *Handler) ListArtists(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Catalog.Artists())
}

func (h *Handler) GetArtist(w http.ResponseWriter, r *http.Request) {
	artist, err := h.Catalog.GetArtist(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "artist not found")
		return
	}
	respondJSON(w, http.StatusOK, artist)
}

func (h *Handler) ListSamplePacks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.Catalog.SamplePacks())
}

func (h *Handler) GetSamplePack(w http.ResponseWriter, r *http.Request) {
	pack, err := h.Catalog.GetSamplePack(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "sample pack not found")
		return
	}
	respondJSON(w, http.StatusOK, pack)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondJSON(w, http.StatusOK, []catalog.Release{})
		return
	}

	results := h.Catalog.Search(query)
	if results == nil {
		results = []catalog.Release{}
	}
	respondJSON(w, http.StatusOK, results)
}

// release loads a catalog release or writes a 404.
func (h *Handler) release(w http.ResponseWriter, id string) (*catalog.Release, bool) {
	release, err := h.Catalog.GetRelease(id)
	if err != nil {
		if errors.Is(err, catalog.ErrReleaseNotFound) {
			respondError(w, http.StatusNotFound, "release not found")
		} else {
			respondError(w, http.StatusInternalServerError, "catalog error")
		}
		return nil, false
	}
	return release, true
}
