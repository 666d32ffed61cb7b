// Package hub fans messages out to websocket clients. The dashboard uses
// one hub for assistant status and one for camera preview frames.
package hub

// MessageType indicates the websocket message format
type MessageType int

const (
	// JSONMessage is a JSON-encoded status update
	JSONMessage MessageType = iota
	// BinaryMessage is a JPEG preview frame
	BinaryMessage
)

// Message is one broadcast payload.
type Message struct {
	Type MessageType
	Data []byte
}

// NewJSONMessage wraps pre-encoded JSON.
func NewJSONMessage(data []byte) Message {
	return Message{Type: JSONMessage, Data: data}
}

// NewBinaryMessage wraps a binary frame.
func NewBinaryMessage(data []byte) Message {
	return Message{Type: BinaryMessage, Data: data}
}

// clearFrame tells preview clients the camera went dark.
var clearFrame = NewJSONMessage([]byte(`{"type":"clear"}`))
