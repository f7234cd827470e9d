// Package main provides a local preview player: it plays a release from
// the catalog through the system speaker with the same free-play gate the
// storefront enforces.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/numba-music/storefront/internal/app/lastplayed"
	"github.com/numba-music/storefront/internal/app/player"
	"github.com/numba-music/storefront/internal/app/playgate"
	"github.com/numba-music/storefront/internal/domain/catalog"
	"github.com/numba-music/storefront/internal/infra/audio"
	"github.com/numba-music/storefront/internal/infra/kv"
	"github.com/numba-music/storefront/internal/infra/logger"
)

var (
	app         = kingpin.New("numba-player", "Numba local preview player")
	catalogPath = app.Flag("catalog", "Path to catalog file").Default("catalog.yaml").String()
	statePath   = app.Flag("state", "Path to state file").Default("data/state.json").String()
	volume      = app.Flag("volume", "Volume (0-100)").Default("70").Int()
	verbose     = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()

	// play command
	playCmd     = app.Command("play", "Play a release").Default()
	playRelease = playCmd.Arg("release-id", "Release ID").Required().String()
	playTrack   = playCmd.Arg("track-number", "Track number to start at (default: first)").Int()

	// gate command
	gateCmd     = app.Command("gate", "Show the gate status of a release")
	gateRelease = gateCmd.Arg("release-id", "Release ID").Required().String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger.Init(logger.Config{Level: level, Pretty: true})

	if !audio.Available {
		fmt.Println("Audio playback is not supported in this build (cgo required).")
		os.Exit(1)
	}

	provider, err := catalog.NewStaticProvider(*catalogPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	state, err := kv.NewFile(*statePath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	gate := playgate.NewLedger(state, playgate.Config{})

	switch command {
	case playCmd.FullCommand():
		play(provider, state, gate)
	case gateCmd.FullCommand():
		printGate(provider, gate)
	}
}

func play(provider catalog.Provider, state kv.Store, gate *playgate.Ledger) {
	release, err := provider.GetRelease(*playRelease)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	startIndex := 0
	if *playTrack > 0 {
		startIndex = -1
		for i, t := range release.Tracks {
			if t.Number == *playTrack {
				startIndex = i
				break
			}
		}
		if startIndex < 0 {
			fmt.Printf("Error: release %s has no track %d\n", release.ID, *playTrack)
			os.Exit(1)
		}
	}

	output := audio.NewOutput()
	controller := player.NewController(output, gate, lastplayed.NewStore(state), player.Config{
		DefaultVolume: *volume,
	})
	defer controller.Close()

	err = controller.PlayRelease(player.ReleaseRef{
		ID:     release.ID,
		Title:  release.Title,
		Image:  release.Image,
		Artist: release.Artist,
	}, release.Tracks, startIndex)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Playing %s by %s (%d tracks). Ctrl-C to stop.\n",
		release.Title, release.Artist, len(release.Tracks))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case e := <-controller.Events():
			printEvent(e, gate)
		case <-sigCh:
			fmt.Println("\nStopped.")
			return
		}
	}
}

func printEvent(e player.Event, gate *playgate.Ledger) {
	switch e.Type {
	case player.EventTrackStarted:
		if e.Track != nil {
			remaining := ""
			if e.TrackID != "" && !gate.IsTrackPurchased(e.TrackID) {
				remaining = fmt.Sprintf(" [%d free plays left]", gate.GetRemainingPlays(e.TrackID))
			}
			fmt.Printf("Now playing: %d. %s%s\n", e.Track.Number, e.Track.Title, remaining)
		}
	case player.EventTrackEnded:
		if e.Track != nil {
			zlog.Debug().Msgf("track ended: %s", e.Track.Title)
		}
	case player.EventPlayBlocked:
		if e.Blocked != nil {
			fmt.Printf("Blocked: %s\n", e.Blocked.Error())
		}
	}
}

func printGate(provider catalog.Provider, gate *playgate.Ledger) {
	release, err := provider.GetRelease(*gateRelease)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s by %s\n", release.Title, release.Artist)
	for _, t := range release.Tracks {
		id := release.TrackID(t)
		switch {
		case gate.IsTrackPurchased(id):
			fmt.Printf("  %d. %-30s purchased\n", t.Number, t.Title)
		default:
			fmt.Printf("  %d. %-30s %d/%d free plays used\n",
				t.Number, t.Title, gate.GetPlayCount(id), gate.MaxFreePlays())
		}
	}
}
