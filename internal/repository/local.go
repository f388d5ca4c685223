package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
)

// localGameTTL matches the lifetime of the user_session cookie.
const localGameTTL = 24 * time.Hour

// LocalGameRepository stores hot-seat games keyed by the browser session that
// plays them. Redis is the only home of these games, there is no in-memory
// copy.
type LocalGameRepository interface {
	Save(ctx context.Context, sessionID string, game *entity.Game) error
	GetBySessionID(ctx context.Context, sessionID string) (*entity.Game, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

type dbLocalGame struct {
	client *redis.Client
}

func NewLocalGameRepository(client *redis.Client) LocalGameRepository {
	return &dbLocalGame{
		client: client,
	}
}

func (that *dbLocalGame) Save(ctx context.Context, sessionID string, game *entity.Game) error {
	gameJSON, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	localKey := "local:" + sessionID
	if err = that.client.Set(ctx, localKey, gameJSON, localGameTTL).Err(); err != nil {
		return fmt.Errorf("failed to set local game: %w", err)
	}

	return nil
}

func (that *dbLocalGame) GetBySessionID(ctx context.Context, sessionID string) (*entity.Game, error) {
	localKey := "local:" + sessionID

	response, err := that.client.Get(ctx, localKey).Result()

	if errors.Is(err, redis.Nil) {
		return &entity.Game{}, ErrGameNotFound
	}

	if err != nil {
		return &entity.Game{}, fmt.Errorf("failed to get local game: %w", err)
	}

	var existingGame entity.Game
	if err = json.Unmarshal([]byte(response), &existingGame); err != nil {
		return &entity.Game{}, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &existingGame, nil
}

func (that *dbLocalGame) DeleteBySessionID(ctx context.Context, sessionID string) error {
	localKey := "local:" + sessionID

	if err := that.client.Del(ctx, localKey).Err(); err != nil {
		return fmt.Errorf("failed to delete local game: %w", err)
	}

	return nil
}
