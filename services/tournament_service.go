package services

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"poker-league-system/models"
)

type TournamentService struct {
	DB     *gorm.DB
	Events Broadcaster
}

func NewTournamentService(db *gorm.DB, events Broadcaster) *TournamentService {
	return &TournamentService{DB: db, Events: events}
}

func (s *TournamentService) CreateTournament(c *fiber.Ctx) error {
	type LevelReq struct {
		Level           int  `json:"level"`
		SmallBlind      int  `json:"small_blind"`
		BigBlind        int  `json:"big_blind"`
		Ante            int  `json:"ante"`
		DurationSeconds int  `json:"duration_seconds"`
		IsBreak         bool `json:"is_break"`
	}
	type Req struct {
		SeasonID           string     `json:"season_id"`
		Name               string     `json:"name"`
		RebuyEndLevel      int        `json:"rebuy_end_level"`
		MaxRebuysPerPlayer *int       `json:"max_rebuys_per_player"`
		StartingChips      int        `json:"starting_chips"`
		BlindLevels        []LevelReq `json:"blind_levels"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.SeasonID == "" || req.Name == "" {
		return c.Status(400).JSON(fiber.Map{"error": "season_id and name are required"})
	}
	if len(req.BlindLevels) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "at least one blind level is required"})
	}
	for i, bl := range req.BlindLevels {
		if bl.DurationSeconds <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "blind level durations must be positive"})
		}
		if i > 0 && bl.Level <= req.BlindLevels[i-1].Level {
			return c.Status(400).JSON(fiber.Map{"error": "blind levels must be strictly ascending"})
		}
	}

	if err := s.DB.First(&models.Season{}, "id = ?", req.SeasonID).Error; err != nil {
		return respondError(c, ErrSeasonNotFound)
	}

	userID, _ := currentUser(c)
	tournament := &models.Tournament{
		ID:                 uuid.NewString(),
		SeasonID:           req.SeasonID,
		Name:               req.Name,
		Slug:               slug.Make(req.Name),
		Status:             models.TournamentStatusPlanned,
		CurrentLevel:       1,
		RebuyEndLevel:      req.RebuyEndLevel,
		MaxRebuysPerPlayer: req.MaxRebuysPerPlayer,
		StartingChips:      req.StartingChips,
		CreatedByID:        userID,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("BlindLevels").Create(tournament).Error; err != nil {
			return err
		}
		for _, bl := range req.BlindLevels {
			row := models.BlindLevel{
				ID:              uuid.NewString(),
				TournamentID:    tournament.ID,
				Level:           bl.Level,
				SmallBlind:      bl.SmallBlind,
				BigBlind:        bl.BigBlind,
				Ante:            bl.Ante,
				DurationSeconds: bl.DurationSeconds,
				IsBreak:         bl.IsBreak,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			tournament.BlindLevels = append(tournament.BlindLevels, row)
		}
		return nil
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(tournament)
}

func (s *TournamentService) GetAllTournaments(c *fiber.Ctx) error {
	query := s.DB.Preload("BlindLevels", func(db *gorm.DB) *gorm.DB {
		return db.Order("level ASC")
	})
	if seasonID := c.Query("season_id"); seasonID != "" {
		query = query.Where("season_id = ?", seasonID)
	}
	var tournaments []models.Tournament
	if err := query.Order("created_at DESC").Find(&tournaments).Error; err != nil {
		return respondError(c, err)
	}
	return c.JSON(tournaments)
}

func (s *TournamentService) GetTournamentByID(c *fiber.Ctx) error {
	var t models.Tournament
	err := s.DB.
		Preload("BlindLevels", func(db *gorm.DB) *gorm.DB { return db.Order("level ASC") }).
		Preload("Players").
		Preload("Directors").
		First(&t, "id = ?", c.Params("id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return respondError(c, ErrTournamentNotFound)
	}
	if err != nil {
		return respondError(c, err)
	}

	s.DB.Model(&models.TournamentPlayer{}).Where("tournament_id = ?", t.ID).Count(&t.PlayersCount)
	s.DB.Model(&models.TournamentPlayer{}).
		Where("tournament_id = ? AND final_rank IS NULL", t.ID).Count(&t.ActiveCount)
	return c.JSON(t)
}

// UpdateTournamentStatus drives the lifecycle. Transitions are conditional
// updates guarded on the expected current status; finishing first checks the
// leaderboard invariant.
func (s *TournamentService) UpdateTournamentStatus(c *fiber.Ctx) error {
	type Req struct {
		Action string `json:"action"` // open_registration, start, finish, cancel
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}

	var t models.Tournament
	if err := s.DB.First(&t, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrTournamentNotFound)
		}
		return respondError(c, err)
	}
	if err := requireDirector(c, s.DB, &t); err != nil {
		return respondError(c, err)
	}

	var from []string
	var to string
	switch req.Action {
	case "open_registration":
		from, to = []string{models.TournamentStatusPlanned}, models.TournamentStatusRegistration
	case "start":
		from, to = []string{models.TournamentStatusRegistration}, models.TournamentStatusInProgress
	case "finish":
		from, to = []string{models.TournamentStatusInProgress}, models.TournamentStatusFinished
	case "cancel":
		from = []string{
			models.TournamentStatusPlanned,
			models.TournamentStatusRegistration,
			models.TournamentStatusInProgress,
		}
		to = models.TournamentStatusCancelled
	default:
		return c.Status(400).JSON(fiber.Map{"error": "invalid action"})
	}

	if req.Action == "finish" {
		var players []models.TournamentPlayer
		if err := s.DB.Where("tournament_id = ?", t.ID).Find(&players).Error; err != nil {
			return respondError(c, err)
		}
		if err := ValidateFinishedLeaderboard(players); err != nil {
			return respondError(c, err)
		}
	}

	result := s.DB.Model(&models.Tournament{}).
		Where("id = ? AND status IN ?", t.ID, from).
		Update("status", to)
	if result.Error != nil {
		return respondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return respondError(c, ErrInvalidStatusTransition)
	}

	log.Printf("[Tournament] %s: %s -> %s", t.ID, t.Status, to)
	t.Status = to
	s.Events.Publish(DomainEvent{
		Name:         EventStatusChanged,
		TournamentID: t.ID,
		Kind:         to,
		At:           time.Now(),
	})
	return c.JSON(t)
}

// RegisterPlayer enrolls a player while registration is open. Nicknames are
// NFC-normalized so lookups and display agree regardless of input encoding.
func (s *TournamentService) RegisterPlayer(c *fiber.Ctx) error {
	type Req struct {
		PlayerID string `json:"player_id"`
		Nickname string `json:"nickname"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if req.PlayerID == "" || req.Nickname == "" {
		return c.Status(400).JSON(fiber.Map{"error": "player_id and nickname are required"})
	}

	var t models.Tournament
	if err := s.DB.First(&t, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrTournamentNotFound)
		}
		return respondError(c, err)
	}
	if t.Status != models.TournamentStatusRegistration {
		return c.Status(400).JSON(fiber.Map{"error": "registration is not open", "code": "REGISTRATION_CLOSED"})
	}

	var existing models.TournamentPlayer
	if err := s.DB.Where("tournament_id = ? AND player_id = ?", t.ID, req.PlayerID).
		First(&existing).Error; err == nil {
		return c.Status(409).JSON(fiber.Map{"error": "player already registered", "player": existing})
	}

	player := models.TournamentPlayer{
		ID:           uuid.NewString(),
		TournamentID: t.ID,
		PlayerID:     req.PlayerID,
		Nickname:     norm.NFC.String(req.Nickname),
	}
	if err := s.DB.Create(&player).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(player)
}

func (s *TournamentService) GetPlayers(c *fiber.Ctx) error {
	var players []models.TournamentPlayer
	err := s.DB.Where("tournament_id = ?", c.Params("id")).
		Order("created_at ASC").
		Find(&players).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(players)
}

// GetLeaderboard is the per-tournament view: active players first by stack of
// points, eliminated players by final rank. For FINISHED tournaments the rank
// consistency invariant is enforced before anything is returned.
func (s *TournamentService) GetLeaderboard(c *fiber.Ctx) error {
	var t models.Tournament
	if err := s.DB.First(&t, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrTournamentNotFound)
		}
		return respondError(c, err)
	}

	var players []models.TournamentPlayer
	err := s.DB.Where("tournament_id = ?", t.ID).
		Order("final_rank ASC NULLS FIRST, total_points DESC, created_at ASC").
		Find(&players).Error
	if err != nil {
		return respondError(c, err)
	}

	if t.Status == models.TournamentStatusFinished {
		if err := ValidateFinishedLeaderboard(players); err != nil {
			return respondError(c, err)
		}
	}

	type Row struct {
		models.TournamentPlayer
		EffectivePenaltyPoints int `json:"effective_penalty_points"`
	}
	rows := make([]Row, 0, len(players))
	for _, p := range players {
		rows = append(rows, Row{TournamentPlayer: p, EffectivePenaltyPoints: EffectivePenaltyPoints(&p)})
	}
	return c.JSON(fiber.Map{
		"tournament_id": t.ID,
		"status":        t.Status,
		"leaderboard":   rows,
	})
}

func (s *TournamentService) GetEliminations(c *fiber.Ctx) error {
	var busts []models.Elimination
	err := s.DB.Where("tournament_id = ?", c.Params("id")).
		Order("created_at ASC").
		Find(&busts).Error
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(busts)
}

func (s *TournamentService) AssignDirector(c *fiber.Ctx) error {
	type Req struct {
		UserID string `json:"user_id"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return c.Status(400).JSON(fiber.Map{"error": "user_id is required"})
	}

	var t models.Tournament
	if err := s.DB.First(&t, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrTournamentNotFound)
		}
		return respondError(c, err)
	}
	if err := requireCreatorOrAdmin(c, &t); err != nil {
		return respondError(c, err)
	}

	userID, _ := currentUser(c)
	director := models.TournamentDirector{
		ID:           uuid.NewString(),
		TournamentID: t.ID,
		UserID:       req.UserID,
		AssignedByID: userID,
		CreatedAt:    time.Now(),
	}
	if err := s.DB.Create(&director).Error; err != nil {
		return respondError(c, err)
	}
	return c.Status(201).JSON(director)
}

func (s *TournamentService) RemoveDirector(c *fiber.Ctx) error {
	var t models.Tournament
	if err := s.DB.First(&t, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, ErrTournamentNotFound)
		}
		return respondError(c, err)
	}
	if err := requireCreatorOrAdmin(c, &t); err != nil {
		return respondError(c, err)
	}

	result := s.DB.Where("tournament_id = ? AND user_id = ?", t.ID, c.Params("user_id")).
		Delete(&models.TournamentDirector{})
	if result.Error != nil {
		return respondError(c, result.Error)
	}
	if result.RowsAffected == 0 {
		return c.Status(404).JSON(fiber.Map{"error": "director assignment not found"})
	}
	return c.JSON(fiber.Map{"message": "director removed"})
}
