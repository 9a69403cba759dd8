package entities

import (
	"errors"
	"strings"
)

// Storage keys for the persisted profile state
const (
	KeyUserProfile           = "userProfile"
	KeySurveyAnswers         = "surveyAnswers"
	KeyAssistantInstructions = "assistantInstructions"
)

// ExportFileName is the suggested file name of a data export
const ExportFileName = "drishti_vision_ai_data.json"

// UserProfile represents the person using the assistant
type UserProfile struct {
	FirstName      string `json:"firstName" bson:"firstName"`
	LastName       string `json:"lastName" bson:"lastName"`
	Age            int    `json:"age" bson:"age"`
	Gender         string `json:"gender" bson:"gender"`
	ProfilePicture string `json:"profilePicture,omitempty" bson:"profilePicture,omitempty"`
}

// SurveyAnswers holds the onboarding survey collected during setup
type SurveyAnswers struct {
	IntroductionSource string `json:"introductionSource" bson:"introductionSource"`
	UsedBefore         string `json:"usedBefore" bson:"usedBefore"`
	IsVisuallyImpaired string `json:"isVisuallyImpaired" bson:"isVisuallyImpaired"`
}

// ExportBundle is the document produced by a data export
type ExportBundle struct {
	UserProfile           *UserProfile   `json:"userProfile"`
	SurveyAnswers         *SurveyAnswers `json:"surveyAnswers"`
	AssistantInstructions string         `json:"assistantInstructions"`
}

// Validate checks that every required profile field is filled in
func (p *UserProfile) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" {
		return errors.New("first name is required")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return errors.New("last name is required")
	}
	if p.Age <= 0 {
		return errors.New("age is required")
	}
	if strings.TrimSpace(p.Gender) == "" {
		return errors.New("gender is required")
	}
	return nil
}

// DisplayName returns the name used when greeting the user
func (p *UserProfile) DisplayName() string {
	return p.FirstName
}
