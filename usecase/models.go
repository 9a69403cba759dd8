package usecase

// Backend model identifiers per interaction mode
const (
	ModelLite       = "gemini-flash-lite-latest"
	ModelSearch     = "gemini-2.5-flash"
	ModelFile       = "gemini-2.5-flash"
	ModelTranscribe = "gemini-2.5-flash"
	ModelPro        = "gemini-2.5-pro"
	ModelVision     = "gemini-2.5-pro"
	ModelImage      = "gemini-2.5-flash-image"
	ModelVideo      = "veo-3.1-fast-generate-preview"

	ProThinkingBudget int32 = 32768
	VideoResolution         = "720p"
)
