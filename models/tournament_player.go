package models

import "time"

// TournamentPlayer is the per-tournament scoring row of a player.
// FinalRank nil means the player is still in; once set the row is read-only
// for the play engine. TotalPoints must always equal
// RankPoints + EliminationPoints + BonusPoints + PenaltyPoints.
type TournamentPlayer struct {
	ID           string `json:"id" gorm:"primaryKey"`
	TournamentID string `json:"tournament_id" gorm:"not null;index:idx_tournament_player,unique"`
	PlayerID     string `json:"player_id" gorm:"not null;index:idx_tournament_player,unique"` // external profile id
	Nickname     string `json:"nickname"`

	FinalRank              *int `json:"final_rank,omitempty"`
	RebuysCount            int  `json:"rebuys_count" gorm:"default:0"`
	LightRebuyUsed         bool `json:"light_rebuy_used" gorm:"default:false"`
	VoluntaryFullRebuyUsed bool `json:"voluntary_full_rebuy_used" gorm:"default:false"`

	RankPoints        int `json:"rank_points" gorm:"default:0"`
	EliminationPoints int `json:"elimination_points" gorm:"default:0"`
	BonusPoints       int `json:"bonus_points" gorm:"default:0"`
	PenaltyPoints     int `json:"penalty_points" gorm:"default:0"`
	TotalPoints       int `json:"total_points" gorm:"default:0"`

	EliminationsCount int  `json:"eliminations_count" gorm:"default:0"`
	LeaderKills       int  `json:"leader_kills" gorm:"default:0"`
	CurrentStack      *int `json:"current_stack,omitempty"` // declared, only used for voluntary rebuy sizing

	Timestamps
}

// Elimination is an append-only bust record. Rows are never updated after
// creation.
type Elimination struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	TournamentID   string    `json:"tournament_id" gorm:"not null;index"`
	EliminatorID   string    `json:"eliminator_id" gorm:"index"`
	EliminatedID   string    `json:"eliminated_id" gorm:"not null;index"`
	Rank           int       `json:"rank"`
	Level          int       `json:"level"`
	IsLeaderKill   bool      `json:"is_leader_kill" gorm:"default:false"`
	RecaveApplied  bool      `json:"recave_applied" gorm:"default:false"`
	EliminatorNick string    `json:"eliminator_nick"`
	EliminatedNick string    `json:"eliminated_nick"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}
