// Package main provides the control CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/segue/internal/api/connect"
)

var (
	app    = kingpin.New("segctl", "segue playback control client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	statusCmd    = app.Command("status", "Show playback status")
	tracksCmd    = app.Command("tracks", "List queued tracks").Alias("ls")
	playCmd      = app.Command("play", "Start or resume playback")
	pauseCmd     = app.Command("pause", "Pause the current track")
	stopCmd      = app.Command("stop", "Stop the current track")
	nextCmd      = app.Command("next", "Show the following track without playing it")
	previousCmd  = app.Command("previous", "Show the preceding track without playing it").Alias("prev")
	skipCmd      = app.Command("skip", "Play the following track")
	backCmd      = app.Command("back", "Play the preceding track")
	playFirstCmd = app.Command("play-first", "Play from the first queued track")
	rescanCmd    = app.Command("rescan", "Import tracks added to the sources")

	playIndexCmd = app.Command("play-index", "Play the track at a queue index")
	playIndexArg = playIndexCmd.Arg("index", "Zero-based queue index").Required().Int()

	playIDCmd = app.Command("play-id", "Play the track with an ID")
	playIDArg = playIDCmd.Arg("track-id", "Track ID").Required().String()

	modeCmd     = app.Command("mode", "Switch the queue mode")
	modeArg     = modeCmd.Arg("mode", "sequential, random or loop_single").Required().Enum("sequential", "random", "shuffle", "loop_single", "loop", "repeat")
	modeRestart = modeCmd.Flag("restart", "Restart from the first track").Bool()

	watchCmd = app.Command("watch", "Print playback events as they happen")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewPlayerClient(http.DefaultClient, *server, *token)
	ctx := context.Background()

	if command == watchCmd.FullCommand() {
		watch(ctx, client)
		return
	}

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	switch command {
	case statusCmd.FullCommand():
		printStatus(call(ctx, client, apiconnect.StatusProcedure, nil))
	case tracksCmd.FullCommand():
		printTracks(call(ctx, client, apiconnect.TracksProcedure, nil))
	case playCmd.FullCommand():
		printStatus(call(ctx, client, apiconnect.PlayProcedure, nil))
	case pauseCmd.FullCommand():
		printStatus(call(ctx, client, apiconnect.PauseProcedure, nil))
	case stopCmd.FullCommand():
		printStatus(call(ctx, client, apiconnect.StopProcedure, nil))
	case nextCmd.FullCommand():
		printTrack("Next", call(ctx, client, apiconnect.NextProcedure, nil))
	case previousCmd.FullCommand():
		printTrack("Previous", call(ctx, client, apiconnect.PreviousProcedure, nil))
	case skipCmd.FullCommand():
		printTrack("Playing", call(ctx, client, apiconnect.SkipProcedure, nil))
	case backCmd.FullCommand():
		printTrack("Playing", call(ctx, client, apiconnect.BackProcedure, nil))
	case playFirstCmd.FullCommand():
		printTrack("Playing", call(ctx, client, apiconnect.PlayFirstProcedure, nil))
	case playIndexCmd.FullCommand():
		printTrack("Playing", call(ctx, client, apiconnect.PlayIndexProcedure, map[string]any{
			apiconnect.FieldIndex: *playIndexArg,
		}))
	case playIDCmd.FullCommand():
		printTrack("Playing", call(ctx, client, apiconnect.PlayIDProcedure, map[string]any{
			apiconnect.FieldTrackID: *playIDArg,
		}))
	case modeCmd.FullCommand():
		resp := call(ctx, client, apiconnect.SetModeProcedure, map[string]any{
			apiconnect.FieldMode:    *modeArg,
			apiconnect.FieldRestart: *modeRestart,
		})
		if *modeRestart {
			printTrack("Playing", resp)
		}
		printStatus(resp)
	case rescanCmd.FullCommand():
		resp := call(ctx, client, apiconnect.RescanProcedure, nil)
		fmt.Printf("Added %v tracks (%v skipped)\n", resp[apiconnect.FieldAdded], resp[apiconnect.FieldSkipped])
	}
}

func call(ctx context.Context, client *apiconnect.PlayerClient, procedure string, args map[string]any) map[string]any {
	resp, err := client.Call(ctx, procedure, args)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	return resp
}

func printStatus(resp map[string]any) {
	s, _ := resp[apiconnect.FieldStatus].(map[string]any)
	if s == nil {
		return
	}

	fmt.Println("\n=== PLAYBACK STATUS ===")
	fmt.Printf("State: %s\n", formatState(s["state"]))
	fmt.Printf("Mode: %v (end: %v)\n", s["mode"], s["end_policy"])
	fmt.Printf("Queue: %v tracks, position %v\n", s["queue_length"], s["position"])
	if id, _ := s["current_id"].(string); id != "" {
		fmt.Printf("Current: %s (%.0f seconds left)\n", id, s["remaining_seconds"])
	} else {
		fmt.Println("No current track")
	}
	if id, _ := s["fading_id"].(string); id != "" {
		fmt.Printf("Fading in: %s\n", id)
	}
	fmt.Printf("Fade window: %vs, tick: %vs, ticking: %v\n", s["fade_window_seconds"], s["tick_interval_seconds"], s["ticking"])
	fmt.Println()
}

func printTrack(label string, resp map[string]any) {
	t, _ := resp[apiconnect.FieldTrack].(map[string]any)
	if t == nil {
		fmt.Printf("%s: none\n", label)
		return
	}
	fmt.Printf("%s: %s\n", label, formatTrack(t))
}

func printTracks(resp map[string]any) {
	tracks, _ := resp[apiconnect.FieldTracks].([]any)
	fmt.Printf("Tracks (%d):\n", len(tracks))
	for i, v := range tracks {
		t, _ := v.(map[string]any)
		fmt.Printf("  %3d  %s\n", i, formatTrack(t))
	}
}

func formatTrack(t map[string]any) string {
	name, _ := t["name"].(string)
	if name == "" {
		name, _ = t["file_path"].(string)
	}
	return fmt.Sprintf("%v  %s [%.0fs]", t["id"], name, t["duration_seconds"])
}

func formatState(state any) string {
	switch state {
	case "playing":
		return "▶️  Playing"
	case "fading_in":
		return "🔀 Fading in"
	case "paused":
		return "⏸  Paused"
	case "idle":
		return "⏹  Idle"
	default:
		return "❓ Unknown"
	}
}

func watch(ctx context.Context, client *apiconnect.PlayerClient) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("Watching playback events. Press Ctrl+C to exit.")

	err := client.Subscribe(ctx, func(n map[string]any) error {
		printNotification(n)
		return nil
	})
	if err != nil {
		fmt.Printf("Stream error: %v\n", err)
		os.Exit(1)
	}
}

func printNotification(n map[string]any) {
	fmt.Printf("[Sequence: %v] ", n[apiconnect.FieldSequence])

	switch n[apiconnect.FieldType] {
	case apiconnect.InitialStateType:
		fmt.Println("=== INITIAL STATE ===")
		printStatus(n)
	case "ticked":
		fmt.Printf("tick (%s, position %v)\n", formatState(n["state"]), n["position"])
	case "tracks_added":
		fmt.Printf("tracks added: %v at %v\n", n["track_ids"], n["start_index"])
	case "queue_mode_changed":
		fmt.Printf("mode changed: %v\n", n[apiconnect.FieldMode])
	default:
		fmt.Printf("%v: %v (%s, position %v)\n", n[apiconnect.FieldType], n[apiconnect.FieldTrackID], formatState(n["state"]), n["position"])
	}
}
