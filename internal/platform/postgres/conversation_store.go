package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/dataset-forge/internal/domain"
	"github.com/phrazzld/dataset-forge/internal/store"
)

// PostgresConversationStore implements store.ConversationStore.
type PostgresConversationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresConversationStore creates a conversation store.
func NewPostgresConversationStore(db store.DBTX, logger *slog.Logger) *PostgresConversationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresConversationStore{
		db:     db,
		logger: logger.With(slog.String("component", "conversation_store")),
	}
}

var _ store.ConversationStore = (*PostgresConversationStore)(nil)

// QuestionIDsWithConversations implements store.ConversationStore.QuestionIDsWithConversations
func (s *PostgresConversationStore) QuestionIDsWithConversations(
	ctx context.Context,
	projectID string,
) (store.IDSet, error) {
	return queryIDSet(ctx, s.db,
		`SELECT DISTINCT question_id FROM conversations WHERE project_id = $1`, projectID)
}

// Create implements store.ConversationStore.Create
func (s *PostgresConversationStore) Create(ctx context.Context, c *domain.Conversation) error {
	turns, err := json.Marshal(c.Turns)
	if err != nil {
		return fmt.Errorf("failed to encode conversation turns: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, project_id, question_id, turns)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.ProjectID, c.QuestionID, turns)
	return MapError(err)
}
