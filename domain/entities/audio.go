package entities

import "encoding/base64"

// AudioChunk is a block of 16-bit PCM ready to be sent to the backend.
// Data is base64 encoded when marshalled to JSON.
type AudioChunk struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Base64 returns the chunk payload as standard base64
func (c AudioChunk) Base64() string {
	return base64.StdEncoding.EncodeToString(c.Data)
}
