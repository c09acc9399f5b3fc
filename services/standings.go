package services

import (
	"sort"

	"poker-league-system/models"
)

// Performance is one finished-tournament result of a player.
type Performance struct {
	TournamentID string `json:"tournament_id"`
	TotalPoints  int    `json:"total_points"`
	FinalRank    int    `json:"final_rank"`
	Counted      bool   `json:"counted"`
}

// StandingRow is one line of the season leaderboard.
type StandingRow struct {
	PlayerID     string        `json:"player_id"`
	Nickname     string        `json:"nickname"`
	Rank         int           `json:"rank"`
	SeasonPoints int           `json:"season_points"`
	Played       int           `json:"played"`
	Performances []Performance `json:"performances"`
}

// ComputeStandings selects each player's best-N finished results, sums them
// and ranks descending. Input order is the tie-break: players arriving
// earlier keep the better rank on equal totals, so the sort must stay stable.
func ComputeStandings(players []models.TournamentPlayer, bestN *int) []StandingRow {
	index := make(map[string]int)
	rows := make([]StandingRow, 0)

	for _, p := range players {
		i, ok := index[p.PlayerID]
		if !ok {
			i = len(rows)
			index[p.PlayerID] = i
			rows = append(rows, StandingRow{PlayerID: p.PlayerID, Nickname: p.Nickname})
		}
		rank := 0
		if p.FinalRank != nil {
			rank = *p.FinalRank
		}
		rows[i].Performances = append(rows[i].Performances, Performance{
			TournamentID: p.TournamentID,
			TotalPoints:  p.TotalPoints,
			FinalRank:    rank,
		})
	}

	for i := range rows {
		perfs := rows[i].Performances
		sort.SliceStable(perfs, func(a, b int) bool {
			return perfs[a].TotalPoints > perfs[b].TotalPoints
		})
		counted := len(perfs)
		if bestN != nil && *bestN >= 0 && *bestN < counted {
			counted = *bestN
		}
		total := 0
		for j := range perfs {
			perfs[j].Counted = j < counted
			if perfs[j].Counted {
				total += perfs[j].TotalPoints
			}
		}
		rows[i].SeasonPoints = total
		rows[i].Played = len(perfs)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		return rows[a].SeasonPoints > rows[b].SeasonPoints
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// ValidateFinishedLeaderboard enforces the finished-tournament invariant:
// every enrolled player ranked, no rank used twice. Violations are reported,
// never repaired.
func ValidateFinishedLeaderboard(players []models.TournamentPlayer) error {
	seen := make(map[int]bool, len(players))
	for _, p := range players {
		if p.FinalRank == nil {
			return ErrLeaderboardInconsistent
		}
		if seen[*p.FinalRank] {
			return ErrLeaderboardInconsistent
		}
		seen[*p.FinalRank] = true
	}
	return nil
}
