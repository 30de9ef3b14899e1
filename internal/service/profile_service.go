package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/vivianur/hackathon-web/internal/clock"
	apperrors "github.com/vivianur/hackathon-web/internal/errors"
	"github.com/vivianur/hackathon-web/internal/model"
	"github.com/vivianur/hackathon-web/internal/repository"
)

const (
	maxSessionMinutes   = 240
	maxBreakMinutes     = 60
	maxNeurodivergences = 10
)

// ProfileService reads and edits the signed-in user's profile.
type ProfileService struct {
	repo  *repository.UserRepository
	clock clock.Clock
}

// ProfileInput carries a partial profile update; nil fields are kept.
type ProfileInput struct {
	Name               *string
	Neurodivergences   []string
	PreferredStudyTime *string
	SessionMinutes     *int
	BreakMinutes       *int
	FocusTechnique     *string
}

func NewProfileService(repo *repository.UserRepository, clk clock.Clock) *ProfileService {
	return &ProfileService{repo: repo, clock: clk}
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*model.User, *apperrors.APIError) {
	user, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("user_not_found", "user not found")
	}
	if err != nil {
		return nil, apperrors.InternalCause("failed to get profile", err)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *ProfileService) Update(ctx context.Context, userID string, input ProfileInput) (*model.User, *apperrors.APIError) {
	user, apiErr := s.Get(ctx, userID)
	if apiErr != nil {
		return nil, apiErr
	}
	if apiErr := applyProfileInput(user, input); apiErr != nil {
		return nil, apiErr
	}

	user.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("user_not_found", "user not found")
		}
		return nil, apperrors.InternalCause("failed to update profile", err)
	}
	return user, nil
}

func applyProfileInput(user *model.User, input ProfileInput) *apperrors.APIError {
	fields := map[string]string{}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		switch {
		case name == "":
			fields["name"] = "name is required"
		case utf8.RuneCountInString(name) > maxNameLength:
			fields["name"] = "name is too long"
		default:
			user.Name = name
		}
	}
	if input.Neurodivergences != nil {
		values := normalizeTags(input.Neurodivergences)
		if len(values) > maxNeurodivergences {
			fields["neurodivergences"] = "too many entries"
		} else {
			user.Neurodivergences = values
		}
	}

	routine := &user.StudyRoutine
	if input.PreferredStudyTime != nil {
		if slices.Contains(model.StudyTimes, *input.PreferredStudyTime) {
			routine.PreferredStudyTime = *input.PreferredStudyTime
		} else {
			fields["preferredStudyTime"] = "must be one of " + strings.Join(model.StudyTimes, ", ")
		}
	}
	if input.FocusTechnique != nil {
		if slices.Contains(model.FocusTechniques, *input.FocusTechnique) {
			routine.FocusTechnique = *input.FocusTechnique
		} else {
			fields["focusTechnique"] = "must be one of " + strings.Join(model.FocusTechniques, ", ")
		}
	}
	if input.SessionMinutes != nil {
		if *input.SessionMinutes < 1 || *input.SessionMinutes > maxSessionMinutes {
			fields["sessionMinutes"] = "sessionMinutes must be between 1 and 240"
		} else {
			routine.SessionMinutes = *input.SessionMinutes
		}
	}
	if input.BreakMinutes != nil {
		if *input.BreakMinutes < 1 || *input.BreakMinutes > maxBreakMinutes {
			fields["breakMinutes"] = "breakMinutes must be between 1 and 60"
		} else {
			routine.BreakMinutes = *input.BreakMinutes
		}
	}

	if len(fields) > 0 {
		return apperrors.Validation("invalid profile", fields)
	}
	return nil
}
