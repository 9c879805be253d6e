// Package ingest accepts remote camera agents over WebSocket and exposes
// their latest frames as camera sources. An agent is any process that can
// encode JPEG frames and push them through the wire protocol defined here.
package ingest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Agent → Hub messages
	TypeHello  MessageType = "hello"  // Agent introduction
	TypeFrame  MessageType = "frame"  // Video frame
	TypeStatus MessageType = "status" // Periodic agent health report

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// HelloData introduces an agent to the hub.
type HelloData struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name,omitempty"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// FrameData contains a video frame
type FrameData struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Format  string `json:"format"` // "jpeg"
	Data    string `json:"data"`   // base64 encoded
	FrameID uint64 `json:"frame_id,omitempty"`
}

// Decode decodes the base64 image data.
func (f *FrameData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// NewFrameMessage creates a frame message from raw JPEG data
func NewFrameMessage(width, height int, jpegData []byte, frameID uint64) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:   width,
		Height:  height,
		Format:  "jpeg",
		Data:    base64.StdEncoding.EncodeToString(jpegData),
		FrameID: frameID,
	})
}

// StatusData is a periodic agent health report.
type StatusData struct {
	FramesSent    uint64 `json:"frames_sent"`
	CaptureErrors uint64 `json:"capture_errors"`
}

// NewStatusMessage creates an agent health report.
func NewStatusMessage(framesSent, captureErrors uint64) (*Message, error) {
	return NewMessage(TypeStatus, StatusData{
		FramesSent:    framesSent,
		CaptureErrors: captureErrors,
	})
}

// NewHelloMessage creates an agent introduction message.
func NewHelloMessage(agentID, name string, width, height int) (*Message, error) {
	return NewMessage(TypeHello, HelloData{
		AgentID: agentID,
		Name:    name,
		Width:   width,
		Height:  height,
	})
}
