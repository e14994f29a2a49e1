package economy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tiker-app/tiker/internal/models"
	"github.com/tiker-app/tiker/internal/security"
	"gorm.io/gorm"
)

// RegisterAgent creates an unclaimed agent and returns it with the plaintext
// API key. The key is shown once; only its hash is stored.
func (s *Service) RegisterAgent(ctx context.Context, name string, capabilities []string) (*models.Agent, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", &ValidationError{Missing: []string{"name"}}
	}

	key, errKey := security.GenerateAPIKey()
	if errKey != nil {
		return nil, "", fmt.Errorf("economy: generate api key: %w", errKey)
	}

	agent := &models.Agent{
		Name:       name,
		Tier:       models.AgentTierUnclaimed,
		APIKeyHash: security.HashAPIKey(key),
	}
	if len(capabilities) > 0 {
		raw, errMarshal := json.Marshal(capabilities)
		if errMarshal != nil {
			return nil, "", fmt.Errorf("economy: encode capabilities: %w", errMarshal)
		}
		agent.Capabilities = raw
	}
	if errCreate := s.db.WithContext(ctx).Create(agent).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			return nil, "", ErrConflict
		}
		return nil, "", fmt.Errorf("economy: create agent: %w", errCreate)
	}
	return agent, key, nil
}

// AuthenticateAgent resolves an API key to its agent.
func (s *Service) AuthenticateAgent(ctx context.Context, apiKey string) (*models.Agent, error) {
	if apiKey == "" {
		return nil, ErrBadCredentials
	}
	var agent models.Agent
	errFind := s.db.WithContext(ctx).
		Where("api_key_hash = ?", security.HashAPIKey(apiKey)).
		First(&agent).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, fmt.Errorf("economy: load agent: %w", errFind)
	}
	return &agent, nil
}

// RotateAgentKey replaces an agent's API key and returns the new plaintext
// key. Only the owning account may rotate.
func (s *Service) RotateAgentKey(ctx context.Context, accountID, agentID uint64) (string, error) {
	key, errKey := security.GenerateAPIKey()
	if errKey != nil {
		return "", fmt.Errorf("economy: generate api key: %w", errKey)
	}
	res := s.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ? AND owner_account_id = ?", agentID, accountID).
		Updates(map[string]any{
			"api_key_hash": security.HashAPIKey(key),
			"updated_at":   s.now(),
		})
	if res.Error != nil {
		return "", fmt.Errorf("economy: rotate api key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return key, nil
}

// GetAgent loads one agent.
func (s *Service) GetAgent(ctx context.Context, agentID uint64) (*models.Agent, error) {
	var agent models.Agent
	errFind := s.db.WithContext(ctx).First(&agent, agentID).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("economy: load agent: %w", errFind)
	}
	return &agent, nil
}

// ListAgentsByOwner returns the agents claimed by an account.
func (s *Service) ListAgentsByOwner(ctx context.Context, accountID uint64) ([]models.Agent, error) {
	var agents []models.Agent
	errList := s.db.WithContext(ctx).
		Where("owner_account_id = ?", accountID).
		Order("created_at ASC").
		Find(&agents).Error
	if errList != nil {
		return nil, fmt.Errorf("economy: list agents: %w", errList)
	}
	return agents, nil
}
