package service

import (
	"context"
	"errors"
	"slices"

	"github.com/vivianur/hackathon-web/internal/clock"
	apperrors "github.com/vivianur/hackathon-web/internal/errors"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/repository"
)

// AlertPreferenceListener is told whenever a user's cognitiveAlerts
// preference is saved.
type AlertPreferenceListener interface {
	SetAlertsEnabled(userID string, enabled bool)
}

type SettingsService struct {
	repo     *repository.SettingsRepository
	listener AlertPreferenceListener
	clock    clock.Clock
}

// SettingsInput carries a partial settings update; nil fields are kept.
type SettingsInput struct {
	ComplexityLevel   *string
	FocusMode         *bool
	DetailedMode      *bool
	ContrastLevel     *string
	FontSize          *string
	Spacing           *string
	AnimationsEnabled *bool
	CognitiveAlerts   *bool
	VLibrasEnabled    *bool
}

func NewSettingsService(repo *repository.SettingsRepository, listener AlertPreferenceListener, clk clock.Clock) *SettingsService {
	return &SettingsService{repo: repo, listener: listener, clock: clk}
}

// Get returns the stored settings, or the defaults for a user who never
// saved any.
func (s *SettingsService) Get(ctx context.Context, userID string) (*model.AccessibilitySettings, *apperrors.APIError) {
	settings, err := s.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		defaults := model.DefaultAccessibilitySettings(userID, s.clock.Now())
		return &defaults, nil
	}
	if err != nil {
		return nil, apperrors.InternalCause("failed to get settings", err)
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, userID string, input SettingsInput) (*model.AccessibilitySettings, *apperrors.APIError) {
	settings, apiErr := s.Get(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if apiErr := applySettingsInput(settings, input); apiErr != nil {
		return nil, apiErr
	}
	return s.save(ctx, settings)
}

func (s *SettingsService) Reset(ctx context.Context, userID string) (*model.AccessibilitySettings, *apperrors.APIError) {
	defaults := model.DefaultAccessibilitySettings(userID, s.clock.Now())
	return s.save(ctx, &defaults)
}

func (s *SettingsService) save(ctx context.Context, settings *model.AccessibilitySettings) (*model.AccessibilitySettings, *apperrors.APIError) {
	settings.UpdatedAt = s.clock.Now()
	if err := s.repo.Upsert(ctx, settings); err != nil {
		return nil, apperrors.InternalCause("failed to save settings", err)
	}
	if s.listener != nil {
		s.listener.SetAlertsEnabled(settings.UserID, settings.CognitiveAlerts)
	}
	return settings, nil
}

func applySettingsInput(settings *model.AccessibilitySettings, input SettingsInput) *apperrors.APIError {
	fields := map[string]string{}
	choose := func(field string, value *string, allowed []string, target *string) {
		if value == nil {
			return
		}
		if !slices.Contains(allowed, *value) {
			fields[field] = "unsupported value"
			return
		}
		*target = *value
	}

	choose("complexityLevel", input.ComplexityLevel, model.ComplexityLevels, &settings.ComplexityLevel)
	choose("contrastLevel", input.ContrastLevel, model.ContrastLevels, &settings.ContrastLevel)
	choose("fontSize", input.FontSize, model.FontSizes, &settings.FontSize)
	choose("spacing", input.Spacing, model.SpacingOptions, &settings.Spacing)

	if len(fields) > 0 {
		return apperrors.Validation("invalid settings", fields)
	}

	for _, toggle := range []struct {
		value  *bool
		target *bool
	}{
		{input.FocusMode, &settings.FocusMode},
		{input.DetailedMode, &settings.DetailedMode},
		{input.AnimationsEnabled, &settings.AnimationsEnabled},
		{input.CognitiveAlerts, &settings.CognitiveAlerts},
		{input.VLibrasEnabled, &settings.VLibrasEnabled},
	} {
		if toggle.value != nil {
			*toggle.target = *toggle.value
		}
	}
	return nil
}
