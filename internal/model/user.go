package model

import "time"

type User struct {
	ID               string       `json:"id"`
	Email            string       `json:"email"`
	PasswordHash     string       `json:"-"`
	Name             string       `json:"name"`
	Neurodivergences []string     `json:"neurodivergences"`
	StudyRoutine     StudyRoutine `json:"studyRoutine"`
	CreatedAt        time.Time    `json:"createdAt"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// StudyRoutine is how the user prefers to study. Durations are minutes.
type StudyRoutine struct {
	PreferredStudyTime string `json:"preferredStudyTime"`
	SessionMinutes     int    `json:"sessionMinutes"`
	BreakMinutes       int    `json:"breakMinutes"`
	FocusTechnique     string `json:"focusTechnique"`
}

var (
	StudyTimes      = []string{"morning", "afternoon", "evening", "night"}
	FocusTechniques = []string{"pomodoro", "custom", "flexible"}
)

func DefaultStudyRoutine() StudyRoutine {
	return StudyRoutine{
		PreferredStudyTime: "afternoon",
		SessionMinutes:     DefaultFocusDurationSeconds / 60,
		BreakMinutes:       DefaultShortBreakDurationSeconds / 60,
		FocusTechnique:     "pomodoro",
	}
}
