package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/weedbox/timebank"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"poker-league-system/models"
)

const (
	RebuyStandard = "STANDARD"
	RebuyLight    = "LIGHT"

	// Delay before the timer auto-resumes after a bust rebuy.
	rebuyAutoResumeDelay = 5 * time.Second
)

// PlayService is the elimination/rebuy transaction engine. Every mutation is
// a single gorm transaction: lock the tournament row, re-read the player row,
// re-validate the preconditions against the fresh state, then write with a
// conditional update whose WHERE repeats the guarded fields. A zero-row
// update means a concurrent writer got there first and is reported as the
// matching business error, so callers cannot tell "already true" from
// "became true mid-flight".
type PlayService struct {
	DB     *gorm.DB
	Events Broadcaster
}

func NewPlayService(db *gorm.DB, events Broadcaster) *PlayService {
	return &PlayService{DB: db, Events: events}
}

func (s *PlayService) loadTournament(id string) (*models.Tournament, error) {
	var t models.Tournament
	err := s.DB.Preload("BlindLevels").First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PlayService) loadSeason(seasonID string) (*models.Season, error) {
	var season models.Season
	err := s.DB.Preload("PenaltyTiers").First(&season, "id = ?", seasonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSeasonNotFound
	}
	if err != nil {
		return nil, err
	}
	return &season, nil
}

// lockTournament re-reads the tournament row inside the transaction, taking a
// row lock where the dialect supports one. Engine writes for one tournament
// serialize on this lock, so the status check and the active-player count
// cannot race a concurrent finish or a sibling elimination. Blind levels are
// immutable and stay usable from the pre-transaction load.
func lockTournament(tx *gorm.DB, id string) (*models.Tournament, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var t models.Tournament
	err := q.First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTournamentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func loadPlayer(tx *gorm.DB, tournamentID, playerID string) (*models.TournamentPlayer, error) {
	var p models.TournamentPlayer
	err := tx.Where("tournament_id = ? AND player_id = ?", tournamentID, playerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// validateRebuyWindow is the shared gate for every rebuy flavor.
func validateRebuyWindow(t *models.Tournament, levels []models.BlindLevel, now time.Time) error {
	if t.Status != models.TournamentStatusInProgress {
		return ErrTournamentNotInProgress
	}
	if !RebuyWindowOpen(t, levels, now) {
		return ErrRebuyPeriodEnded
	}
	return nil
}

func validateStandardRebuy(t *models.Tournament, p *models.TournamentPlayer) error {
	if p.FinalRank != nil {
		return ErrPlayerEliminated
	}
	if t.MaxRebuysPerPlayer != nil && p.RebuysCount >= *t.MaxRebuysPerPlayer {
		return ErrMaxRebuysReached
	}
	return nil
}

func validateLightRebuy(p *models.TournamentPlayer) error {
	if p.FinalRank != nil {
		return ErrPlayerEliminated
	}
	if p.LightRebuyUsed {
		return ErrLightRebuyUsed
	}
	return nil
}

// classifyVoluntaryRebuy sizes a break-window top-up by the declared stack:
// at or above half the starting stack it is a LIGHT half top-up, below it a
// STANDARD refill to the starting stack.
func classifyVoluntaryRebuy(currentStack, startingChips int) string {
	if currentStack >= startingChips/2 {
		return RebuyLight
	}
	return RebuyStandard
}

// RecordRebuy applies a STANDARD or LIGHT rebuy to an active player.
func (s *PlayService) RecordRebuy(c *fiber.Ctx) error {
	type Req struct {
		Type string `json:"type"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.Type == "" {
		req.Type = RebuyStandard
	}
	if req.Type != RebuyStandard && req.Type != RebuyLight {
		return c.Status(400).JSON(fiber.Map{"error": "type must be STANDARD or LIGHT"})
	}

	t, err := s.loadTournament(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := requireDirector(c, s.DB, t); err != nil {
		return respondError(c, err)
	}
	season, err := s.loadSeason(t.SeasonID)
	if err != nil {
		return respondError(c, err)
	}
	now := time.Now()
	if err := validateRebuyWindow(t, t.BlindLevels, now); err != nil {
		return respondError(c, err)
	}

	updated, err := s.applyRebuy(t, season, c.Params("player_id"), req.Type, now)
	if err != nil {
		return respondError(c, err)
	}

	s.Events.Publish(DomainEvent{
		Name:         EventRebuyRecorded,
		TournamentID: t.ID,
		PlayerID:     updated.PlayerID,
		Nickname:     updated.Nickname,
		Kind:         req.Type,
		At:           now,
	})
	s.scheduleAutoResume(t)

	return c.JSON(fiber.Map{
		"player":         updated,
		"rebuys_count":   updated.RebuysCount,
		"penalty_points": updated.PenaltyPoints,
		"total_points":   updated.TotalPoints,
	})
}

// applyRebuy is the rebuy transaction. The tournament gate is re-asserted
// against the locked row, so a rebuy cannot slip into a tournament finished
// between the handler's pre-check and the commit.
func (s *PlayService) applyRebuy(t *models.Tournament, season *models.Season, playerID, kind string, now time.Time) (*models.TournamentPlayer, error) {
	var updated models.TournamentPlayer
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		fresh, err := lockTournament(tx, t.ID)
		if err != nil {
			return err
		}
		if err := validateRebuyWindow(fresh, t.BlindLevels, now); err != nil {
			return err
		}
		p, err := loadPlayer(tx, t.ID, playerID)
		if err != nil {
			return err
		}
		switch kind {
		case RebuyStandard:
			if err := validateStandardRebuy(fresh, p); err != nil {
				return err
			}
			if err := s.applyStandardRebuy(tx, season, p, nil); err != nil {
				return err
			}
		case RebuyLight:
			if err := validateLightRebuy(p); err != nil {
				return err
			}
			if err := s.applyLightRebuy(tx, season, p, nil); err != nil {
				return err
			}
		}
		return tx.Where("id = ?", p.ID).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// applyStandardRebuy increments the rebuy counter and rescores the player.
// The WHERE repeats final_rank and the counter value read inside the
// transaction; extra sets the stack refill for recave/voluntary paths.
func (s *PlayService) applyStandardRebuy(tx *gorm.DB, season *models.Season, p *models.TournamentPlayer, extra map[string]interface{}) error {
	result := tx.Model(&models.TournamentPlayer{}).
		Where("id = ? AND final_rank IS NULL AND rebuys_count = ?", p.ID, p.RebuysCount).
		Updates(s.standardRebuyUpdates(season, p, extra))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMaxRebuysReached
	}
	return nil
}

func (s *PlayService) applyLightRebuy(tx *gorm.DB, season *models.Season, p *models.TournamentPlayer, extra map[string]interface{}) error {
	next := *p
	next.LightRebuyUsed = true
	score := ComputeScore(season, &next)

	updates := map[string]interface{}{
		"light_rebuy_used": true,
		"penalty_points":   score.PenaltyPoints,
		"total_points":     score.TotalPoints,
	}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&models.TournamentPlayer{}).
		Where("id = ? AND final_rank IS NULL AND light_rebuy_used = false", p.ID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLightRebuyUsed
	}
	return nil
}

// VoluntaryRebuy is the one-per-player top-up during the break right after
// the rebuy cutoff. The declared stack picks the rebuy size.
func (s *PlayService) VoluntaryRebuy(c *fiber.Ctx) error {
	type Req struct {
		CurrentStack int `json:"current_stack"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.CurrentStack < 0 {
		return c.Status(400).JSON(fiber.Map{"error": "current_stack must be >= 0"})
	}

	t, err := s.loadTournament(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := requireDirector(c, s.DB, t); err != nil {
		return respondError(c, err)
	}
	season, err := s.loadSeason(t.SeasonID)
	if err != nil {
		return respondError(c, err)
	}
	if t.Status != models.TournamentStatusInProgress {
		return respondError(c, ErrTournamentNotInProgress)
	}

	now := time.Now()
	updated, kind, err := s.applyVoluntaryRebuy(t, season, c.Params("player_id"), req.CurrentStack, now)
	if err != nil {
		return respondError(c, err)
	}

	s.Events.Publish(DomainEvent{
		Name:         EventRebuyRecorded,
		TournamentID: t.ID,
		PlayerID:     updated.PlayerID,
		Nickname:     updated.Nickname,
		Kind:         "VOLUNTARY_" + kind,
		At:           now,
	})

	return c.JSON(fiber.Map{
		"player":         updated,
		"rebuy_kind":     kind,
		"penalty_points": updated.PenaltyPoints,
		"total_points":   updated.TotalPoints,
	})
}

func (s *PlayService) applyVoluntaryRebuy(t *models.Tournament, season *models.Season, playerID string, declaredStack int, now time.Time) (*models.TournamentPlayer, string, error) {
	kind := classifyVoluntaryRebuy(declaredStack, t.StartingChips)
	var updated models.TournamentPlayer
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		fresh, err := lockTournament(tx, t.ID)
		if err != nil {
			return err
		}
		if fresh.Status != models.TournamentStatusInProgress {
			return ErrTournamentNotInProgress
		}
		clock := EffectiveClock(fresh, t.BlindLevels, now)
		if !IsBreakAfterRebuyEnd(fresh.RebuyEndLevel, clock.Level, t.BlindLevels) {
			return ErrRebuyPeriodEnded
		}

		p, err := loadPlayer(tx, t.ID, playerID)
		if err != nil {
			return err
		}
		if p.FinalRank != nil {
			return ErrPlayerEliminated
		}
		// One voluntary top-up per player per pause, counting bust recaves
		// that already happened during this break.
		if p.LightRebuyUsed || p.VoluntaryFullRebuyUsed {
			return ErrVoluntaryRebuyUsed
		}
		var recaves int64
		if err := tx.Model(&models.Elimination{}).
			Where("tournament_id = ? AND eliminated_id = ? AND recave_applied = true AND level = ?",
				t.ID, p.PlayerID, clock.Level).
			Count(&recaves).Error; err != nil {
			return err
		}
		if recaves > 0 {
			return ErrVoluntaryRebuyUsed
		}

		switch kind {
		case RebuyLight:
			extra := map[string]interface{}{"current_stack": declaredStack + t.StartingChips/2}
			if err := s.applyLightRebuy(tx, season, p, extra); err != nil {
				if errors.Is(err, ErrLightRebuyUsed) {
					return ErrVoluntaryRebuyUsed
				}
				return err
			}
		case RebuyStandard:
			if err := validateStandardRebuy(fresh, p); err != nil {
				return err
			}
			extra := map[string]interface{}{
				"voluntary_full_rebuy_used": true,
				"current_stack":             t.StartingChips,
			}
			result := tx.Model(&models.TournamentPlayer{}).
				Where("id = ? AND final_rank IS NULL AND voluntary_full_rebuy_used = false AND rebuys_count = ?",
					p.ID, p.RebuysCount).
				Updates(s.standardRebuyUpdates(season, p, extra))
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrVoluntaryRebuyUsed
			}
		}
		return tx.Where("id = ?", p.ID).First(&updated).Error
	})
	if err != nil {
		return nil, "", err
	}
	return &updated, kind, nil
}

func (s *PlayService) standardRebuyUpdates(season *models.Season, p *models.TournamentPlayer, extra map[string]interface{}) map[string]interface{} {
	next := *p
	next.RebuysCount = p.RebuysCount + 1
	score := ComputeScore(season, &next)
	updates := map[string]interface{}{
		"rebuys_count":   next.RebuysCount,
		"penalty_points": score.PenaltyPoints,
		"total_points":   score.TotalPoints,
	}
	for k, v := range extra {
		updates[k] = v
	}
	return updates
}

type eliminationInput struct {
	eliminatedID string
	eliminatorID string
	isLeaderKill bool
	recave       bool
}

// RecordElimination writes a bust: either a final elimination (rank assigned,
// row frozen) or a recave (the player immediately rebuys and stays in). The
// eliminator's KO counters move atomically in the same transaction and the
// bust itself is appended as an immutable Elimination row.
func (s *PlayService) RecordElimination(c *fiber.Ctx) error {
	type Req struct {
		EliminatedPlayerID string `json:"eliminated_player_id"`
		EliminatorPlayerID string `json:"eliminator_player_id"`
		IsLeaderKill       bool   `json:"is_leader_kill"`
		Recave             bool   `json:"recave"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.EliminatedPlayerID == "" || req.EliminatorPlayerID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "eliminated_player_id and eliminator_player_id are required"})
	}
	if req.EliminatedPlayerID == req.EliminatorPlayerID {
		return c.Status(400).JSON(fiber.Map{"error": "a player cannot eliminate themselves"})
	}

	t, err := s.loadTournament(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if err := requireDirector(c, s.DB, t); err != nil {
		return respondError(c, err)
	}
	season, err := s.loadSeason(t.SeasonID)
	if err != nil {
		return respondError(c, err)
	}
	if t.Status != models.TournamentStatusInProgress {
		return respondError(c, ErrTournamentNotInProgress)
	}

	now := time.Now()
	bust, err := s.applyElimination(t, season, eliminationInput{
		eliminatedID: req.EliminatedPlayerID,
		eliminatorID: req.EliminatorPlayerID,
		isLeaderKill: req.IsLeaderKill,
		recave:       req.Recave,
	}, now)
	if err != nil {
		return respondError(c, err)
	}

	kind := "bust"
	if req.Recave {
		kind = "recave"
	}
	s.Events.Publish(DomainEvent{
		Name:         EventEliminationRecorded,
		TournamentID: t.ID,
		PlayerID:     bust.EliminatedID,
		Nickname:     bust.EliminatedNick,
		Kind:         kind,
		At:           now,
	})
	if req.Recave {
		s.scheduleAutoResume(t)
	}

	return c.Status(201).JSON(bust)
}

// applyElimination is the elimination transaction. The tournament row lock
// serializes rank assignment: two concurrent busts in the same tournament
// count the active players one after the other, so no two players can end up
// with the same final rank.
func (s *PlayService) applyElimination(t *models.Tournament, season *models.Season, in eliminationInput, now time.Time) (*models.Elimination, error) {
	var bust models.Elimination
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		fresh, err := lockTournament(tx, t.ID)
		if err != nil {
			return err
		}
		if fresh.Status != models.TournamentStatusInProgress {
			return ErrTournamentNotInProgress
		}
		clock := EffectiveClock(fresh, t.BlindLevels, now)

		eliminated, err := loadPlayer(tx, t.ID, in.eliminatedID)
		if err != nil {
			return err
		}
		eliminator, err := loadPlayer(tx, t.ID, in.eliminatorID)
		if err != nil {
			return err
		}
		if eliminated.FinalRank != nil || eliminator.FinalRank != nil {
			return ErrPlayerEliminated
		}

		rank := 0
		if in.recave {
			if err := validateRebuyWindow(fresh, t.BlindLevels, now); err != nil {
				return err
			}
			if err := validateStandardRebuy(fresh, eliminated); err != nil {
				return err
			}
			extra := map[string]interface{}{"current_stack": t.StartingChips}
			if err := s.applyStandardRebuy(tx, season, eliminated, extra); err != nil {
				return err
			}
		} else {
			var active int64
			if err := tx.Model(&models.TournamentPlayer{}).
				Where("tournament_id = ? AND final_rank IS NULL", t.ID).
				Count(&active).Error; err != nil {
				return err
			}
			rank = int(active)

			next := *eliminated
			next.FinalRank = &rank
			score := ComputeScore(season, &next)
			result := tx.Model(&models.TournamentPlayer{}).
				Where("id = ? AND final_rank IS NULL", eliminated.ID).
				Updates(map[string]interface{}{
					"final_rank":     rank,
					"rank_points":    score.RankPoints,
					"penalty_points": score.PenaltyPoints,
					"total_points":   score.TotalPoints,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return ErrPlayerEliminated
			}
		}

		if err := s.creditEliminator(tx, season, eliminator, in.isLeaderKill); err != nil {
			return err
		}

		bust = models.Elimination{
			ID:             uuid.NewString(),
			TournamentID:   t.ID,
			EliminatorID:   eliminator.PlayerID,
			EliminatedID:   eliminated.PlayerID,
			Rank:           rank,
			Level:          clock.Level,
			IsLeaderKill:   in.isLeaderKill,
			RecaveApplied:  in.recave,
			EliminatorNick: eliminator.Nickname,
			EliminatedNick: eliminated.Nickname,
		}
		if err := tx.Create(&bust).Error; err != nil {
			return err
		}

		// Heads-up resolved: the eliminated player was the last opponent, so
		// the remaining player takes rank 1.
		if !in.recave && rank == 2 {
			return s.crownWinner(tx, season, t.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bust, nil
}

// creditEliminator moves the KO counters with SQL-side increments so two
// concurrent busts credited to the same player never lose an update.
func (s *PlayService) creditEliminator(tx *gorm.DB, season *models.Season, eliminator *models.TournamentPlayer, leaderKill bool) error {
	delta := season.EliminationPoints
	updates := map[string]interface{}{
		"eliminations_count": gorm.Expr("eliminations_count + 1"),
		"elimination_points": gorm.Expr("elimination_points + ?", season.EliminationPoints),
	}
	if leaderKill {
		delta += season.LeaderKillerBonus
		updates["leader_kills"] = gorm.Expr("leader_kills + 1")
		updates["bonus_points"] = gorm.Expr("bonus_points + ?", season.LeaderKillerBonus)
	}
	updates["total_points"] = gorm.Expr("total_points + ?", delta)

	result := tx.Model(&models.TournamentPlayer{}).
		Where("id = ? AND final_rank IS NULL", eliminator.ID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlayerEliminated
	}
	return nil
}

func (s *PlayService) crownWinner(tx *gorm.DB, season *models.Season, tournamentID string) error {
	var winner models.TournamentPlayer
	err := tx.Where("tournament_id = ? AND final_rank IS NULL", tournamentID).First(&winner).Error
	if err != nil {
		return err
	}
	one := 1
	next := winner
	next.FinalRank = &one
	score := ComputeScore(season, &next)
	result := tx.Model(&models.TournamentPlayer{}).
		Where("id = ? AND final_rank IS NULL", winner.ID).
		Updates(map[string]interface{}{
			"final_rank":     1,
			"rank_points":    score.RankPoints,
			"penalty_points": score.PenaltyPoints,
			"total_points":   score.TotalPoints,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlayerEliminated
	}
	log.Printf("[Play] Tournament %s winner: %s", tournamentID, winner.Nickname)
	return nil
}

// CorrectFinalRank is the admin remediation path for a leaderboard that went
// inconsistent (missing or duplicate final ranks block finishing). It
// overrides the one-way rank assignment, so it is deliberately not available
// to directors. A null final_rank puts the player back in as active.
func (s *PlayService) CorrectFinalRank(c *fiber.Ctx) error {
	type Req struct {
		FinalRank *int `json:"final_rank"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.FinalRank != nil && *req.FinalRank < 1 {
		return c.Status(400).JSON(fiber.Map{"error": "final_rank must be >= 1"})
	}
	if err := requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	t, err := s.loadTournament(c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	season, err := s.loadSeason(t.SeasonID)
	if err != nil {
		return respondError(c, err)
	}

	var updated models.TournamentPlayer
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := lockTournament(tx, t.ID); err != nil {
			return err
		}
		p, err := loadPlayer(tx, t.ID, c.Params("player_id"))
		if err != nil {
			return err
		}
		next := *p
		next.FinalRank = req.FinalRank
		score := ComputeScore(season, &next)
		err = tx.Model(&models.TournamentPlayer{}).
			Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"final_rank":     req.FinalRank,
				"rank_points":    score.RankPoints,
				"penalty_points": score.PenaltyPoints,
				"total_points":   score.TotalPoints,
			}).Error
		if err != nil {
			return err
		}
		return tx.Where("id = ?", p.ID).First(&updated).Error
	})
	if err != nil {
		return respondError(c, err)
	}

	log.Printf("[Play] Tournament %s: final rank of %s corrected by admin", t.ID, updated.Nickname)
	return c.JSON(updated)
}

// scheduleAutoResume queues the best-effort deferred resume when the timer
// had been paused for the bust. Not required for correctness.
func (s *PlayService) scheduleAutoResume(t *models.Tournament) {
	if t.TimerPausedAt == nil {
		return
	}
	tournamentID := t.ID
	err := timebank.NewTimeBank().NewTask(rebuyAutoResumeDelay, func(isCancelled bool) {
		if isCancelled {
			return
		}
		autoResumeTimer(s.DB, s.Events, tournamentID)
	})
	if err != nil {
		log.Printf("[Play] scheduling auto-resume for %s failed: %v", tournamentID, err)
	}
}
