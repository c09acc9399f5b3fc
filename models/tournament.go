package models

import (
	"time"

	"gorm.io/gorm"
)

// Tournament statuses form a one-way lifecycle; CANCELLED is reachable from
// any non-final status.
const (
	TournamentStatusPlanned      = "PLANNED"
	TournamentStatusRegistration = "REGISTRATION"
	TournamentStatusInProgress   = "IN_PROGRESS"
	TournamentStatusFinished     = "FINISHED"
	TournamentStatusCancelled    = "CANCELLED"
)

// Tournament is a single league night. Timer state lives on the row itself:
// TimerElapsedSeconds accumulates completed running intervals, while
// TimerStartedAt/TimerPausedAt describe the current interval.
// TimerPausedAt set implies not running; TimerStartedAt nil implies neither
// running nor paused.
type Tournament struct {
	ID       string `json:"id" gorm:"primaryKey"`
	SeasonID string `json:"season_id" gorm:"not null;index"`
	Name     string `json:"name" gorm:"not null"`
	Slug     string `json:"slug" gorm:"index"`
	Status   string `json:"status" gorm:"default:'PLANNED';index"`

	// CurrentLevel is a persisted snapshot for list views; the effective level
	// is always re-derived from the timer fields (see services clock model).
	CurrentLevel        int        `json:"current_level" gorm:"default:1"`
	RebuyEndLevel       int        `json:"rebuy_end_level" gorm:"default:0"`
	MaxRebuysPerPlayer  *int       `json:"max_rebuys_per_player,omitempty"` // nil = unlimited
	StartingChips       int        `json:"starting_chips" gorm:"default:0"`
	TimerStartedAt      *time.Time `json:"timer_started_at,omitempty"`
	TimerPausedAt       *time.Time `json:"timer_paused_at,omitempty"`
	TimerElapsedSeconds int64      `json:"timer_elapsed_seconds" gorm:"default:0"`

	CreatedByID string `json:"created_by_id" gorm:"index"`

	// Relationships
	Season      Season               `json:"season,omitempty" gorm:"foreignKey:SeasonID"`
	BlindLevels []BlindLevel         `json:"blind_levels,omitempty" gorm:"foreignKey:TournamentID"`
	Players     []TournamentPlayer   `json:"players,omitempty" gorm:"foreignKey:TournamentID"`
	Directors   []TournamentDirector `json:"directors,omitempty" gorm:"foreignKey:TournamentID"`

	// Calculated fields (not stored in DB)
	PlayersCount int64 `json:"players_count,omitempty" gorm:"-"`
	ActiveCount  int64 `json:"active_count,omitempty" gorm:"-"`

	Timestamps
}

// BlindLevel is immutable once the tournament is created. Levels are ordered
// ascending; Duration drives both progression and the break-after-rebuy-end
// window.
type BlindLevel struct {
	ID              string `json:"id" gorm:"primaryKey"`
	TournamentID    string `json:"tournament_id" gorm:"not null;index"`
	Level           int    `json:"level" gorm:"not null"`
	SmallBlind      int    `json:"small_blind"`
	BigBlind        int    `json:"big_blind"`
	Ante            int    `json:"ante" gorm:"default:0"`
	DurationSeconds int    `json:"duration_seconds" gorm:"not null"`
	IsBreak         bool   `json:"is_break" gorm:"default:false"`
}

// TournamentDirector grants a non-creator user the right to drive the
// tournament engine (timer, rebuys, eliminations).
type TournamentDirector struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	TournamentID string    `json:"tournament_id" gorm:"not null;index"`
	UserID       string    `json:"user_id" gorm:"not null;index"`
	AssignedByID string    `json:"assigned_by_id"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// Timestamps is embedded in mutable models for audit columns + soft delete.
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
