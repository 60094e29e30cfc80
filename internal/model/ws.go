package model

import "encoding/json"

// WSMessageType values for realtime frames
type WSMessageType string

const (
	WSMessageTypePing  WSMessageType = "ping"
	WSMessageTypePong  WSMessageType = "pong"
	WSMessageTypeEvent WSMessageType = "event"
)

// WSMessage is the minimal frame exchanged for keep-alive
type WSMessage struct {
	Type WSMessageType `json:"type"`
}

// WSEventMessage wraps an event broadcast to a job topic
type WSEventMessage struct {
	Type  WSMessageType   `json:"type"`
	Event string          `json:"event"`
	JobID string          `json:"jobId"`
	Data  json.RawMessage `json:"data"`
}
