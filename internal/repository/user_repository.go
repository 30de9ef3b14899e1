package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vivianur/hackathon-web/internal/model"
)

const userColumns = `id, email, password_hash, name, neurodivergences,
	preferred_study_time, session_minutes, break_minutes, focus_technique,
	created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

func (r *UserRepository) CreateTx(ctx context.Context, tx *sql.Tx, user *model.User) error {
	neurodivergences, err := encodeStrings(user.Neurodivergences)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.Name,
		neurodivergences,
		user.StudyRoutine.PreferredStudyTime,
		user.StudyRoutine.SessionMinutes,
		user.StudyRoutine.BreakMinutes,
		user.StudyRoutine.FocusTechnique,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdateProfile writes the editable profile fields. Email and password are
// not touched.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *model.User) error {
	neurodivergences, err := encodeStrings(user.Neurodivergences)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(
		ctx,
		`UPDATE users
		 SET name = ?, neurodivergences = ?, preferred_study_time = ?,
		     session_minutes = ?, break_minutes = ?, focus_technique = ?, updated_at = ?
		 WHERE id = ?`,
		user.Name,
		neurodivergences,
		user.StudyRoutine.PreferredStudyTime,
		user.StudyRoutine.SessionMinutes,
		user.StudyRoutine.BreakMinutes,
		user.StudyRoutine.FocusTechnique,
		formatTime(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return requireAffected(result)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return string(raw), nil
}

func scanUser(s scanner) (*model.User, error) {
	var user model.User
	var neurodivergences, createdAt, updatedAt string
	err := s.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Name,
		&neurodivergences,
		&user.StudyRoutine.PreferredStudyTime,
		&user.StudyRoutine.SessionMinutes,
		&user.StudyRoutine.BreakMinutes,
		&user.StudyRoutine.FocusTechnique,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	if err := json.Unmarshal([]byte(neurodivergences), &user.Neurodivergences); err != nil {
		return nil, fmt.Errorf("decode user neurodivergences: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse user created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse user updated_at: %w", err)
	}

	return &user, nil
}
