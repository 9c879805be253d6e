package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/grovesy/watchpost/pkg/camera"
)

func TestNewAgentDefaults(t *testing.T) {
	agent := NewAgent(AgentConfig{HubURL: "ws://localhost:1/ws/agent"}, &camera.Mock{})

	if agent.ID() == "" {
		t.Error("agent should get a generated ID")
	}
	if agent.config.Framerate != 10 {
		t.Errorf("Framerate = %d, want 10", agent.config.Framerate)
	}
	if agent.config.RedialMin <= 0 || agent.config.RedialMax < agent.config.RedialMin {
		t.Error("redial backoff bounds should be normalized")
	}
}

func TestAgentStreamsFrames(t *testing.T) {
	hub := NewHub()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	hub.RegisterRoutes(app)

	go app.Listen(":18093")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	source := &camera.Mock{
		Frame:  []byte("agent-frame"),
		Width:  800,
		Height: 600,
	}

	config := DefaultAgentConfig("ws://localhost:18093/ws/agent")
	config.ID = "stream-test"
	config.Name = "test-cam"
	config.Framerate = 50
	agent := NewAgent(config, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go agent.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetStats().FramesReceived > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if hub.GetStats().FramesReceived == 0 {
		t.Fatal("hub should have received frames from the agent")
	}

	src := hub.Source("stream-test")
	frame, err := src.CaptureJPEG()
	if err != nil {
		t.Fatalf("CaptureJPEG error: %v", err)
	}
	if string(frame) != "agent-frame" {
		t.Errorf("frame = %q, want agent-frame", frame)
	}

	w, h := src.Resolution()
	if w != 800 || h != 600 {
		t.Errorf("Resolution = %dx%d, want 800x600", w, h)
	}
}

func TestAgentRunCancelled(t *testing.T) {
	agent := NewAgent(AgentConfig{HubURL: "ws://localhost:1/ws/agent"}, &camera.Mock{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := agent.Run(ctx); err != context.Canceled {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}
