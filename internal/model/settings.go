package model

import "time"

// AccessibilitySettings are the per-user display and support preferences.
// CognitiveAlerts gates every alert raised by the alert scheduler.
type AccessibilitySettings struct {
	UserID            string    `json:"userId"`
	ComplexityLevel   string    `json:"complexityLevel"`
	FocusMode         bool      `json:"focusMode"`
	DetailedMode      bool      `json:"detailedMode"`
	ContrastLevel     string    `json:"contrastLevel"`
	FontSize          string    `json:"fontSize"`
	Spacing           string    `json:"spacing"`
	AnimationsEnabled bool      `json:"animationsEnabled"`
	CognitiveAlerts   bool      `json:"cognitiveAlerts"`
	VLibrasEnabled    bool      `json:"vlibrasEnabled"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

var (
	ComplexityLevels = []string{"simple", "moderate", "detailed"}
	ContrastLevels   = []string{"low", "medium", "high"}
	FontSizes        = []string{"small", "medium", "large", "extra-large"}
	SpacingOptions   = []string{"compact", "comfortable", "spacious"}
)

func DefaultAccessibilitySettings(userID string, now time.Time) AccessibilitySettings {
	return AccessibilitySettings{
		UserID:            userID,
		ComplexityLevel:   "moderate",
		ContrastLevel:     "medium",
		FontSize:          "medium",
		Spacing:           "comfortable",
		AnimationsEnabled: true,
		CognitiveAlerts:   true,
		UpdatedAt:         now,
	}
}
