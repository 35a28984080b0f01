package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/zapfunil/zapfunil/internal/models"
	pgrepo "github.com/zapfunil/zapfunil/internal/repositories/postgres"
	"github.com/zapfunil/zapfunil/internal/utils"
)

type LeadScoreService interface {
	ApplyDelta(ctx context.Context, conversationID string, delta int, factors map[string]float64, buyingStage string) (*models.LeadScore, error)
	Get(ctx context.Context, conversationID string) (*models.LeadScore, error)
}

type leadScoreService struct {
	scores pgrepo.LeadScoreRepo
}

func NewLeadScoreService(scores pgrepo.LeadScoreRepo) LeadScoreService {
	return &leadScoreService{scores: scores}
}

// ApplyDelta moves the score by delta, clamped to [0,100], recomputes the
// temperature bucket, shallow-merges factors, and appends a history entry
// (bounded at models.ScoreHistoryMax, oldest dropped first).
func (s *leadScoreService) ApplyDelta(ctx context.Context, conversationID string, delta int, factors map[string]float64, buyingStage string) (*models.LeadScore, error) {
	const op = "LeadScoreService.ApplyDelta"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}

	current, err := s.scores.GetByConversation(ctx, conversationID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to read lead score", err)
	}

	now := time.Now().UTC()
	row := &models.LeadScore{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
	}

	prevScore := 0
	mergedFactors := map[string]float64{}
	var history []models.ScoreHistoryEntry

	if current != nil {
		row.ID = current.ID
		prevScore = current.Score
		row.BuyingStage = current.BuyingStage
		if len(current.Factors) > 0 {
			_ = json.Unmarshal(current.Factors, &mergedFactors)
		}
		if len(current.History) > 0 {
			_ = json.Unmarshal(current.History, &history)
		}
	}

	row.Score = clampScore(prevScore + delta)
	row.Temperature = models.TemperatureFor(row.Score)
	if buyingStage != "" {
		row.BuyingStage = buyingStage
	}

	for k, v := range factors {
		mergedFactors[k] = v
	}

	history = append(history, models.ScoreHistoryEntry{
		Score:     row.Score,
		Timestamp: now,
		Reason:    fmt.Sprintf("%+d", delta),
	})
	if len(history) > models.ScoreHistoryMax {
		history = history[len(history)-models.ScoreHistoryMax:]
	}

	factorsJSON, _ := json.Marshal(mergedFactors)
	historyJSON, _ := json.Marshal(history)
	row.Factors = datatypes.JSON(factorsJSON)
	row.History = datatypes.JSON(historyJSON)
	row.UpdatedAt = now

	if err := s.scores.Upsert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to upsert lead score", err)
	}
	return row, nil
}

func (s *leadScoreService) Get(ctx context.Context, conversationID string) (*models.LeadScore, error) {
	const op = "LeadScoreService.Get"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}
	row, err := s.scores.GetByConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "lead score not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to read lead score", err)
	}
	return row, nil
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
