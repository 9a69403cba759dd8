package usecase

import (
	"context"
	"sync"

	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

type fakeAssistant struct {
	mu sync.Mutex

	textReqs  []repositories.TextRequest
	mediaReqs []repositories.MediaRequest
	imageReqs []repositories.ImageRequest
	videoReqs []repositories.VideoRequest
	polls     int

	textResp  *repositories.TextResponse
	textErr   error
	mediaResp string
	mediaErr  error
	image     *entities.MediaFile
	imageErr  error
	// pollsUntilDone is how many polls it takes for the video to finish
	pollsUntilDone int
	videoURI       string
	download       *entities.MediaFile
	downloadErr    error
}

func (f *fakeAssistant) GenerateText(ctx context.Context, req repositories.TextRequest) (*repositories.TextResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textReqs = append(f.textReqs, req)
	if f.textErr != nil {
		return nil, f.textErr
	}
	if f.textResp != nil {
		return f.textResp, nil
	}
	return &repositories.TextResponse{Text: "answer to " + req.Prompt}, nil
}

func (f *fakeAssistant) AnalyzeMedia(ctx context.Context, req repositories.MediaRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mediaReqs = append(f.mediaReqs, req)
	return f.mediaResp, f.mediaErr
}

func (f *fakeAssistant) GenerateImage(ctx context.Context, req repositories.ImageRequest) (*entities.MediaFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imageReqs = append(f.imageReqs, req)
	return f.image, f.imageErr
}

func (f *fakeAssistant) StartVideo(ctx context.Context, req repositories.VideoRequest) (*repositories.VideoOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videoReqs = append(f.videoReqs, req)
	return &repositories.VideoOperation{Name: "operations/1", Done: f.pollsUntilDone == 0, VideoURI: f.finishedURI(0)}, nil
}

func (f *fakeAssistant) finishedURI(polls int) string {
	if polls >= f.pollsUntilDone {
		return f.videoURI
	}
	return ""
}

func (f *fakeAssistant) PollVideo(ctx context.Context, op *repositories.VideoOperation) (*repositories.VideoOperation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	return &repositories.VideoOperation{
		Name:     op.Name,
		Done:     f.polls >= f.pollsUntilDone,
		VideoURI: f.finishedURI(f.polls),
	}, nil
}

func (f *fakeAssistant) DownloadVideo(ctx context.Context, op *repositories.VideoOperation) (*entities.MediaFile, error) {
	return f.download, f.downloadErr
}

type fakeTranscriber struct {
	text   string
	err    error
	config repositories.AudioConfig
}

func (f *fakeTranscriber) TranscribeAudio(ctx context.Context, audioData []byte, config repositories.AudioConfig) (string, error) {
	f.config = config
	return f.text, f.err
}

type fakeSpeaker struct{}

func (fakeSpeaker) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	ch := make(chan []byte, 1)
	ch <- []byte{1, 0}
	close(ch)
	return ch, nil
}

func (fakeSpeaker) SampleRate() int { return 24000 }
