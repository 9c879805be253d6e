// watchpost-agent: pushes webcam frames to a watchpost hub over WebSocket.
// Run one per remote camera; the hub exposes each agent's stream as a
// selectable frame source.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovesy/watchpost/internal/log"
	"github.com/grovesy/watchpost/pkg/camera"
	"github.com/grovesy/watchpost/pkg/ingest"
)

var (
	hubURL    = flag.String("hub", "ws://localhost:3000/ws/agent", "Hub WebSocket URL")
	agentID   = flag.String("id", "", "Stable agent ID (random when empty)")
	name      = flag.String("name", "", "Human-readable camera name")
	device    = flag.Int("device", 0, "Webcam device ID")
	preset    = flag.String("preset", "default", "Camera preset (480p, default, 1080p, 4k)")
	framerate = flag.Int("fps", 10, "Frames per second pushed to the hub")
	logLevel  = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	camCfg := camera.DefaultConfig()
	if p := camera.GetPreset(*preset); p != nil {
		camCfg = *p
	}
	camCfg.DeviceID = *device
	webcam, err := camera.OpenWebcam(camCfg)
	if err != nil {
		log.Error("camera open failed", "error", err)
		os.Exit(1)
	}
	defer webcam.Close()

	config := ingest.DefaultAgentConfig(*hubURL)
	if *agentID != "" {
		config.ID = *agentID
	}
	config.Name = *name
	config.Framerate = *framerate
	agent := ingest.NewAgent(config, webcam)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		cancel()
	}()

	log.Info("agent starting", "agent_id", agent.ID(), "hub", *hubURL, "fps", *framerate)
	if err := agent.Run(ctx); err != nil && err != context.Canceled {
		log.Error("agent exited", "error", err)
		os.Exit(1)
	}

	// Give the websocket close frame a moment to flush.
	time.Sleep(100 * time.Millisecond)
}
