// Package wire defines the JSON frames exchanged over a chat connection.
// Inbound frames come from clients; outbound frames are produced by the
// router, the presence notifier, and the HTTP handlers.
package wire

import "encoding/json"

// RecipientPublic is the recipient sentinel addressing the public channel.
const RecipientPublic = "public"

// Inbound frame kinds.
const (
	KindMessage = "message"
	KindFile    = "file"
)

// Outbound frame types.
const (
	TypePublic           = "public"
	TypePrivate          = "private"
	TypePrivateSent      = "private_sent"
	TypeFile             = "file"
	TypeError            = "error"
	TypeUserConnected    = "user_connected"
	TypeUserDisconnected = "user_disconnected"
)

// Inbound is a client frame. Content, Filename, ContentType, Size and Data
// are optional depending on Kind.
type Inbound struct {
	Kind        string `json:"type"`
	Recipient   string `json:"recipient"`
	Content     string `json:"content,omitempty"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Decode parses a raw inbound frame. It returns ErrMalformed when the
// payload is not valid JSON or lacks the mandatory fields, and
// ErrUnknownKind when the frame kind is not one of the supported kinds.
func Decode(raw []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, ErrMalformed
	}
	if in.Kind == "" || in.Recipient == "" {
		return nil, ErrMalformed
	}
	if in.Kind != KindMessage && in.Kind != KindFile {
		return nil, ErrUnknownKind
	}
	return &in, nil
}

// PublicFrame is a public channel message delivered to every connection.
type PublicFrame struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	Content string `json:"content"`
}

// PrivateFrame is a point-to-point message delivered to its recipient.
type PrivateFrame struct {
	Type    string `json:"type"`
	From    string `json:"from"`
	Content string `json:"content"`
}

// PrivateSentFrame is the sender-side confirmation of a private delivery.
type PrivateSentFrame struct {
	Type    string `json:"type"`
	To      string `json:"to"`
	Content string `json:"content"`
}

// FileFrame carries file transfer metadata, never the payload bytes.
type FileFrame struct {
	Type     string `json:"type"`
	From     string `json:"from"`
	FileID   string `json:"fileId"`
	Filename string `json:"filename"`
}

// ErrorFrame reports a sender-local protocol error.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PresenceFrame announces a connection or disconnection.
type PresenceFrame struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

// Public serializes a public channel frame.
func Public(from, content string) []byte {
	return marshal(PublicFrame{Type: TypePublic, From: from, Content: content})
}

// Private serializes a private message frame.
func Private(from, content string) []byte {
	return marshal(PrivateFrame{Type: TypePrivate, From: from, Content: content})
}

// PrivateSent serializes the sender-side confirmation frame.
func PrivateSent(to, content string) []byte {
	return marshal(PrivateSentFrame{Type: TypePrivateSent, To: to, Content: content})
}

// File serializes a file metadata frame.
func File(from, fileID, filename string) []byte {
	return marshal(FileFrame{Type: TypeFile, From: from, FileID: fileID, Filename: filename})
}

// Error serializes an error frame.
func Error(message string) []byte {
	return marshal(ErrorFrame{Type: TypeError, Message: message})
}

// UserConnected serializes a join announcement.
func UserConnected(username string) []byte {
	return marshal(PresenceFrame{Type: TypeUserConnected, Username: username})
}

// UserDisconnected serializes a leave announcement.
func UserDisconnected(username string) []byte {
	return marshal(PresenceFrame{Type: TypeUserDisconnected, Username: username})
}

// marshal cannot fail for the fixed-shape frame structs above.
func marshal(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}
