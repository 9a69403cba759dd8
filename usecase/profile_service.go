package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/entities"
	"github.com/satriahrh/drishti/domain/repositories"
)

// ProfileState is everything persisted for one profile
type ProfileState struct {
	Profile      *entities.UserProfile   `json:"userProfile"`
	Answers      *entities.SurveyAnswers `json:"surveyAnswers"`
	Instructions string                  `json:"assistantInstructions"`
	// Reset is set when stored state was unreadable and has been wiped
	Reset bool `json:"reset,omitempty"`
}

// SetupComplete reports whether a profile exists
func (s *ProfileState) SetupComplete() bool {
	return s.Profile != nil
}

// ProfileService manages the setup wizard, settings and data export
type ProfileService struct {
	store  repositories.KeyValueStore
	newID  func() string
	logger *zap.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(store repositories.KeyValueStore, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		store:  store,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Setup completes onboarding and returns the new profile id
func (s *ProfileService) Setup(ctx context.Context, profile entities.UserProfile, answers entities.SurveyAnswers) (string, error) {
	if err := profile.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	profileID := s.newID()
	if err := s.put(ctx, profileID, entities.KeySurveyAnswers, answers); err != nil {
		return "", err
	}
	if err := s.put(ctx, profileID, entities.KeyUserProfile, profile); err != nil {
		return "", err
	}

	s.logger.Info("Profile setup completed", zap.String("profileID", profileID))
	return profileID, nil
}

// Load reads the profile state. Unreadable stored data wipes the whole
// profile and is reported through ProfileState.Reset.
func (s *ProfileService) Load(ctx context.Context, profileID string) (*ProfileState, error) {
	state := &ProfileState{}

	err := errors.Join(
		s.get(ctx, profileID, entities.KeyUserProfile, &state.Profile),
		s.get(ctx, profileID, entities.KeySurveyAnswers, &state.Answers),
		s.get(ctx, profileID, entities.KeyAssistantInstructions, &state.Instructions),
	)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, domain.ErrCorruptState) {
		return nil, err
	}

	s.logger.Error("Failed to parse stored profile data, clearing", zap.String("profileID", profileID), zap.Error(err))
	if err := s.store.Clear(ctx, profileID); err != nil {
		return nil, fmt.Errorf("failed to clear corrupted profile: %w", err)
	}
	return &ProfileState{Reset: true}, nil
}

// SaveSettings stores the edited profile and the assistant instructions
func (s *ProfileService) SaveSettings(ctx context.Context, profileID string, profile entities.UserProfile, instructions string) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	if err := s.put(ctx, profileID, entities.KeyUserProfile, profile); err != nil {
		return err
	}
	return s.put(ctx, profileID, entities.KeyAssistantInstructions, instructions)
}

// Export renders the profile as the indented JSON export document
func (s *ProfileService) Export(ctx context.Context, profileID string) ([]byte, error) {
	state, err := s.Load(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if !state.SetupComplete() {
		return nil, fmt.Errorf("profile %s: %w", profileID, domain.ErrNotFound)
	}

	bundle := entities.ExportBundle{
		UserProfile:           state.Profile,
		SurveyAnswers:         state.Answers,
		AssistantInstructions: state.Instructions,
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode export: %w", err)
	}
	return data, nil
}

// Delete removes everything stored for the profile
func (s *ProfileService) Delete(ctx context.Context, profileID string) error {
	if err := s.store.Clear(ctx, profileID); err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	s.logger.Info("Profile deleted", zap.String("profileID", profileID))
	return nil
}

func (s *ProfileService) put(ctx context.Context, profileID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.store.Set(ctx, profileID, key, data); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// get decodes key into dst, leaving dst untouched when the key is absent
func (s *ProfileService) get(ctx context.Context, profileID, key string, dst any) error {
	data, err := s.store.Get(ctx, profileID, key)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%s: %w: %w", key, domain.ErrCorruptState, err)
	}
	return nil
}
