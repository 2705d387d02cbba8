package store

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
)

// IDSet is a set of entity IDs returned by "already processed" queries.
type IDSet map[string]struct{}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// ChunkStore reads and writes document chunks.
type ChunkStore interface {
	// ListByProject returns every chunk of a project.
	ListByProject(ctx context.Context, projectID string) ([]domain.Chunk, error)

	// ListUncleaned returns the chunks whose content has not been cleaned yet.
	ListUncleaned(ctx context.Context, projectID string) ([]domain.Chunk, error)

	// Get returns one chunk. Returns ErrChunkNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Chunk, error)

	// UpdateContent replaces the content of a chunk and marks it cleaned.
	UpdateContent(ctx context.Context, id, content string) error

	// CreateMany inserts chunks produced from one file.
	CreateMany(ctx context.Context, chunks []domain.Chunk) error
}

// QuestionStore reads and writes generated questions.
type QuestionStore interface {
	// ChunkIDsWithQuestions returns the chunks that already have questions.
	ChunkIDsWithQuestions(ctx context.Context, projectID string) (IDSet, error)

	// ImageIDsWithQuestions returns the images that already have questions.
	ImageIDsWithQuestions(ctx context.Context, projectID string) (IDSet, error)

	// ListUnanswered returns questions without a dataset. imageOnly selects
	// image questions, otherwise only text questions are returned.
	ListUnanswered(ctx context.Context, projectID string, imageOnly bool) ([]domain.Question, error)

	// ListAnswered returns text questions that have a dataset.
	ListAnswered(ctx context.Context, projectID string) ([]domain.Question, error)

	// ListByTags returns the questions bound to any of the given tags.
	ListByTags(ctx context.Context, tagIDs []string) ([]domain.Question, error)

	// CountByTag returns the number of questions bound to each tag.
	CountByTag(ctx context.Context, projectID string) (map[string]int, error)

	// Get returns one question. Returns ErrQuestionNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Question, error)

	// CreateMany inserts questions.
	CreateMany(ctx context.Context, questions []domain.Question) error

	// MarkAnswered flags a question as having a dataset.
	MarkAnswered(ctx context.Context, id string) error
}

// DatasetStore reads and writes question/answer datasets.
type DatasetStore interface {
	// ListUnscored returns datasets that have not been evaluated.
	ListUnscored(ctx context.Context, projectID string) ([]domain.Dataset, error)

	// GetByQuestion returns the dataset of a question.
	// Returns ErrDatasetNotFound if it does not exist.
	GetByQuestion(ctx context.Context, questionID string) (*domain.Dataset, error)

	// Get returns one dataset. Returns ErrDatasetNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Dataset, error)

	// Create inserts a dataset.
	Create(ctx context.Context, dataset *domain.Dataset) error

	// UpdateScore stores an evaluation score.
	UpdateScore(ctx context.Context, id string, score float64) error
}

// ConversationStore reads and writes multi-turn conversations.
type ConversationStore interface {
	// QuestionIDsWithConversations returns the questions that already have a conversation.
	QuestionIDsWithConversations(ctx context.Context, projectID string) (IDSet, error)

	// Create inserts a conversation.
	Create(ctx context.Context, conversation *domain.Conversation) error
}

// TagStore reads and writes the label trees.
type TagStore interface {
	// ListByTopic returns the tags of one topic's tree ordered by depth.
	ListByTopic(ctx context.Context, projectID, topic string) ([]domain.Tag, error)

	// CreateMany inserts tags.
	CreateMany(ctx context.Context, tags []domain.Tag) error
}

// ImageStore reads uploaded images.
type ImageStore interface {
	// ListByProject returns every image of a project.
	ListByProject(ctx context.Context, projectID string) ([]domain.Image, error)

	// Get returns one image. Returns ErrImageNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Image, error)
}

// EvalStore reads and writes benchmark rows and model-evaluation results.
type EvalStore interface {
	// ListDatasets returns a project's eval rows, restricted to ids when non-empty.
	ListDatasets(ctx context.Context, projectID string, ids []string) ([]domain.EvalDataset, error)

	// ChunkIDsWithDatasets returns the chunks that already have eval rows.
	ChunkIDsWithDatasets(ctx context.Context, projectID string) (IDSet, error)

	// GetDataset returns one eval row. Returns ErrEvalDatasetNotFound if it does not exist.
	GetDataset(ctx context.Context, id string) (*domain.EvalDataset, error)

	// CreateDatasets inserts eval rows.
	CreateDatasets(ctx context.Context, rows []domain.EvalDataset) error

	// DatasetIDsWithResults returns the eval rows already graded by a task.
	DatasetIDsWithResults(ctx context.Context, taskID string) (IDSet, error)

	// SaveResult inserts or replaces a graded answer.
	SaveResult(ctx context.Context, result *domain.EvalResult) error

	// ResultSummary returns how many results of a task are correct, and the total.
	ResultSummary(ctx context.Context, taskID string) (correct, total int, err error)
}

// FileStore reads and updates uploaded project files.
type FileStore interface {
	// ListPending returns files that have not been split into chunks.
	ListPending(ctx context.Context, projectID string) ([]domain.ProjectFile, error)

	// MarkProcessed flags a file as split.
	MarkProcessed(ctx context.Context, id string) error
}
