package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vivianur/hackathon-web/internal/model"
)

type SettingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

func (r *SettingsRepository) Get(ctx context.Context, userID string) (*model.AccessibilitySettings, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT user_id, complexity_level, focus_mode, detailed_mode, contrast_level, font_size,
			spacing, animations_enabled, cognitive_alerts, vlibras_enabled, updated_at
		 FROM accessibility_settings
		 WHERE user_id = ?`,
		userID,
	)
	return scanSettings(row)
}

func (r *SettingsRepository) Upsert(ctx context.Context, settings *model.AccessibilitySettings) error {
	return upsertSettings(ctx, r.db, settings)
}

func (r *SettingsRepository) UpsertTx(ctx context.Context, tx *sql.Tx, settings *model.AccessibilitySettings) error {
	return upsertSettings(ctx, tx, settings)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertSettings(ctx context.Context, exec execer, settings *model.AccessibilitySettings) error {
	_, err := exec.ExecContext(
		ctx,
		`INSERT INTO accessibility_settings (
			user_id, complexity_level, focus_mode, detailed_mode, contrast_level, font_size,
			spacing, animations_enabled, cognitive_alerts, vlibras_enabled, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			complexity_level = excluded.complexity_level,
			focus_mode = excluded.focus_mode,
			detailed_mode = excluded.detailed_mode,
			contrast_level = excluded.contrast_level,
			font_size = excluded.font_size,
			spacing = excluded.spacing,
			animations_enabled = excluded.animations_enabled,
			cognitive_alerts = excluded.cognitive_alerts,
			vlibras_enabled = excluded.vlibras_enabled,
			updated_at = excluded.updated_at`,
		settings.UserID,
		settings.ComplexityLevel,
		settings.FocusMode,
		settings.DetailedMode,
		settings.ContrastLevel,
		settings.FontSize,
		settings.Spacing,
		settings.AnimationsEnabled,
		settings.CognitiveAlerts,
		settings.VLibrasEnabled,
		formatTime(settings.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

func scanSettings(s scanner) (*model.AccessibilitySettings, error) {
	var settings model.AccessibilitySettings
	var updatedAt string
	err := s.Scan(
		&settings.UserID,
		&settings.ComplexityLevel,
		&settings.FocusMode,
		&settings.DetailedMode,
		&settings.ContrastLevel,
		&settings.FontSize,
		&settings.Spacing,
		&settings.AnimationsEnabled,
		&settings.CognitiveAlerts,
		&settings.VLibrasEnabled,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan settings: %w", err)
	}

	parsed, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse settings updated_at: %w", err)
	}
	settings.UpdatedAt = parsed
	return &settings, nil
}
