package domain

import "time"

// Work items are rows of tables owned by the project data layer. The task
// engine only needs their identity plus enough content to hand to a model.

// Chunk is a slice of an uploaded document.
type Chunk struct {
	ID        string
	ProjectID string
	FileID    string
	Name      string
	Content   string
	Cleaned   bool
}

// Question is a generated question, bound to a chunk, an image or a tag.
type Question struct {
	ID        string
	ProjectID string
	ChunkID   string
	ImageID   string
	TagID     string
	Label     string
	Text      string
	Answered  bool
}

// Dataset is a question/answer pair ready for export.
type Dataset struct {
	ID         string
	ProjectID  string
	QuestionID string
	Question   string
	Answer     string
	CoT        string
	Score      *float64
}

// Conversation is a generated multi-turn dialogue rooted at one question.
type Conversation struct {
	ID         string
	ProjectID  string
	QuestionID string
	Turns      []ConversationTurn
}

// ConversationTurn is one message of a Conversation.
type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tag is a node of a topic's label tree. A project holds one tree per
// distillation topic. Top-level tags have an empty ParentID and depth 1.
type Tag struct {
	ID        string
	ProjectID string
	Topic     string
	ParentID  string
	Label     string
	Depth     int
}

// TagPath locates a node of the label tree for prompting. The zero Tag
// stands for the tree root, whose only label is the topic.
type TagPath struct {
	Tag    Tag
	Labels []string
}

// IsRoot reports whether the path points at the tree root.
func (p TagPath) IsRoot() bool {
	return p.Tag.ID == ""
}

// Topic returns the tree the path belongs to.
func (p TagPath) Topic() string {
	if len(p.Labels) == 0 {
		return p.Tag.Topic
	}
	return p.Labels[0]
}

// Image is an uploaded picture that questions can be asked about.
type Image struct {
	ID        string
	ProjectID string
	Name      string
	Path      string
	MimeType  string
}

// Eval question types.
const (
	EvalTypeTrueFalse    = "true_false"
	EvalTypeSingleChoice = "single_choice"
	EvalTypeShortAnswer  = "short_answer"
)

// EvalDataset is a benchmark row used to evaluate models.
type EvalDataset struct {
	ID           string
	ProjectID    string
	ChunkID      string
	QuestionType string
	Question     string
	Options      []string
	Answer       string
}

// EvalResult is one model's graded answer to one EvalDataset row, scoped to
// the model-evaluation task that produced it.
type EvalResult struct {
	TaskID        string
	EvalDatasetID string
	ModelAnswer   string
	Correct       bool
	Score         float64
	CreatedAt     time.Time
}

// File processing states.
const (
	FileStatusPending   = "pending"
	FileStatusProcessed = "processed"
)

// ProjectFile is an uploaded document waiting to be split into chunks.
type ProjectFile struct {
	ID        string
	ProjectID string
	Name      string
	Path      string
	Status    string
}

// TaskConfig holds the per-project engine settings.
type TaskConfig struct {
	ProjectID        string
	ConcurrencyLimit int
}
