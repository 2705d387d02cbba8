package task

import (
	"context"

	"github.com/phrazzld/dataset-forge/internal/domain"
)

// The services below do the per-item domain work. The engine treats every
// call as an opaque success or failure; implementations persist their own
// output. Implementations live in internal/generation.

// QuestionGenerator generates questions for one chunk.
type QuestionGenerator interface {
	GenerateQuestions(ctx context.Context, projectID, chunkID string, opts domain.GenerationOptions) error
}

// AnswerGenerator answers one question, text or image, and stores the dataset.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, projectID, questionID string, opts domain.GenerationOptions) error
}

// ChunkCleaner rewrites the content of one chunk.
type ChunkCleaner interface {
	CleanChunk(ctx context.Context, projectID, chunkID string, opts domain.GenerationOptions) error
}

// DatasetEvaluator scores one question/answer dataset.
type DatasetEvaluator interface {
	EvaluateDataset(ctx context.Context, projectID, datasetID string, opts domain.GenerationOptions) error
}

// ConversationGenerator expands one answered question into a multi-turn dialogue.
type ConversationGenerator interface {
	GenerateConversation(ctx context.Context, projectID, questionID string, opts domain.GenerationOptions) error
}

// TagGenerator creates count child tags under parent.
type TagGenerator interface {
	GenerateTags(
		ctx context.Context,
		projectID string,
		parent domain.TagPath,
		count int,
		opts domain.GenerationOptions,
	) ([]domain.Tag, error)
}

// TagQuestionGenerator creates count questions bound to a leaf tag.
type TagQuestionGenerator interface {
	GenerateTagQuestions(
		ctx context.Context,
		projectID string,
		tag domain.TagPath,
		count int,
		opts domain.GenerationOptions,
	) error
}

// ImageQuestionGenerator generates questions about one image.
type ImageQuestionGenerator interface {
	GenerateImageQuestions(ctx context.Context, projectID, imageID string, opts domain.GenerationOptions) error
}

// EvalQuestionGenerator generates benchmark rows from one chunk.
type EvalQuestionGenerator interface {
	GenerateEvalQuestions(ctx context.Context, projectID, chunkID string, opts domain.GenerationOptions) error
}

// ModelEvaluator asks the task's model one benchmark row and stores the
// graded result under taskID.
type ModelEvaluator interface {
	EvaluateModel(
		ctx context.Context,
		taskID, projectID, evalDatasetID string,
		opts domain.GenerationOptions,
	) error
}

// FileProcessor splits one uploaded file into chunks and marks it processed.
type FileProcessor interface {
	ProcessFile(ctx context.Context, file domain.ProjectFile, opts domain.GenerationOptions) error
}
