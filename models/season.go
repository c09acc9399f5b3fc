package models

// Season carries the whole scoring configuration for a championship year:
// the placement point table, per-KO and leader-kill values, and the rebuy
// penalty rules in both their legacy (3 fixed tiers) and dynamic
// (ordered tier table) representations. When PenaltyTiers is non-empty the
// dynamic table wins.
type Season struct {
	ID     string `json:"id" gorm:"primaryKey"`
	Name   string `json:"name" gorm:"not null"`
	Slug   string `json:"slug" gorm:"index"`
	Active bool   `json:"active" gorm:"default:true"`

	TotalTournamentsCount int  `json:"total_tournaments_count" gorm:"default:0"`
	BestTournamentsCount  *int `json:"best_tournaments_count,omitempty"` // nil = count everything

	// Scoring values
	EliminationPoints int `json:"elimination_points" gorm:"default:0"`
	LeaderKillerBonus int `json:"leader_killer_bonus" gorm:"default:0"`

	// Rebuy penalties — legacy fixed tiers, superseded by PenaltyTiers when set.
	FreeRebuysCount   int `json:"free_rebuys_count" gorm:"default:0"`
	RebuyPenaltyTier1 int `json:"rebuy_penalty_tier1" gorm:"default:0"`
	RebuyPenaltyTier2 int `json:"rebuy_penalty_tier2" gorm:"default:0"`
	RebuyPenaltyTier3 int `json:"rebuy_penalty_tier3" gorm:"default:0"`

	// Placement point table
	PointsFirst      int `json:"points_first" gorm:"default:0"`
	PointsSecond     int `json:"points_second" gorm:"default:0"`
	PointsThird      int `json:"points_third" gorm:"default:0"`
	PointsFourth     int `json:"points_fourth" gorm:"default:0"`
	PointsFifth      int `json:"points_fifth" gorm:"default:0"`
	PointsSixth      int `json:"points_sixth" gorm:"default:0"`
	PointsSeventh    int `json:"points_seventh" gorm:"default:0"`
	PointsEighth     int `json:"points_eighth" gorm:"default:0"`
	PointsNinth      int `json:"points_ninth" gorm:"default:0"`
	PointsTenth      int `json:"points_tenth" gorm:"default:0"`
	PointsEleventh   int `json:"points_eleventh" gorm:"default:0"`
	PointsTwelfth    int `json:"points_twelfth" gorm:"default:0"`
	PointsThirteenth int `json:"points_thirteenth" gorm:"default:0"`
	PointsFourteenth int `json:"points_fourteenth" gorm:"default:0"`
	PointsFifteenth  int `json:"points_fifteenth" gorm:"default:0"`
	PointsSixteenth  int `json:"points_sixteenth" gorm:"default:0"`

	PenaltyTiers []SeasonPenaltyTier `json:"penalty_tiers,omitempty" gorm:"foreignKey:SeasonID"`

	Timestamps
}

// SeasonPenaltyTier is one row of the dynamic penalty table: from FromRecaves
// effective rebuys onward the player carries Points (non-positive).
type SeasonPenaltyTier struct {
	ID          string  `json:"id" gorm:"primaryKey"`
	SeasonID    string  `json:"season_id" gorm:"not null;index"`
	FromRecaves float64 `json:"from_recaves" gorm:"not null"`
	Points      int     `json:"points" gorm:"not null"`
}

// PlacementPoints returns the rank points for a final rank, 0 beyond the
// table or for rank 0/negative.
func (s *Season) PlacementPoints(rank int) int {
	table := [...]int{
		s.PointsFirst, s.PointsSecond, s.PointsThird, s.PointsFourth,
		s.PointsFifth, s.PointsSixth, s.PointsSeventh, s.PointsEighth,
		s.PointsNinth, s.PointsTenth, s.PointsEleventh, s.PointsTwelfth,
		s.PointsThirteenth, s.PointsFourteenth, s.PointsFifteenth, s.PointsSixteenth,
	}
	if rank < 1 || rank > len(table) {
		return 0
	}
	return table[rank-1]
}
