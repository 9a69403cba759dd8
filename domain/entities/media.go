package entities

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MediaFile is an uploaded file sent to the backend as inline data
type MediaFile struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// Validate checks the file carries content and a type
func (f *MediaFile) Validate() error {
	if len(f.Data) == 0 {
		return errors.New("file is empty")
	}
	if f.MIMEType == "" {
		return errors.New("file type is required")
	}
	return nil
}

// IsImage reports whether the file has an image/* MIME type
func (f *MediaFile) IsImage() bool {
	return strings.HasPrefix(f.MIMEType, "image/")
}

// DataURL encodes the file as a data URL
func (f *MediaFile) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", f.MIMEType, base64.StdEncoding.EncodeToString(f.Data))
}

// RecognitionMode selects what the vision tool is asked to focus on
type RecognitionMode string

const (
	RecognitionImage    RecognitionMode = "Image"
	RecognitionVideo    RecognitionMode = "Video"
	RecognitionDocument RecognitionMode = "Document"
	RecognitionText     RecognitionMode = "Text"
	RecognitionScene    RecognitionMode = "Scene"
)

var recognitionHints = map[RecognitionMode]string{
	RecognitionImage:    "Describe this image in detail. What is the main subject?",
	RecognitionVideo:    "Provide a summary of this video's content, frame by frame.",
	RecognitionDocument: "Summarize this document. What are the main financial figures in this spreadsheet?",
	RecognitionText:     "Identify and extract all email addresses from this image.",
	RecognitionScene:    "What kind of event is happening in this scene? Describe the mood.",
}

// Hint returns the suggested prompt for the mode
func (m RecognitionMode) Hint() string {
	return recognitionHints[m]
}

// Valid reports whether the mode is one of the known modes
func (m RecognitionMode) Valid() bool {
	_, ok := recognitionHints[m]
	return ok
}

// AspectRatio of a generated video
type AspectRatio string

const (
	AspectLandscape AspectRatio = "16:9"
	AspectPortrait  AspectRatio = "9:16"
)

// Valid reports whether the aspect ratio is supported
func (a AspectRatio) Valid() bool {
	return a == AspectLandscape || a == AspectPortrait
}
