package generation

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/phrazzld/dataset-forge/internal/domain"
)

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".json":     true,
	".jsonl":    true,
}

// ProcessFile splits an uploaded text file into chunks and marks it
// processed. It does not call a model.
func (s *Service) ProcessFile(ctx context.Context, file domain.ProjectFile, _ domain.GenerationOptions) error {
	ext := strings.ToLower(filepath.Ext(file.Name))
	if !textExtensions[ext] {
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, file.Name)
	}

	raw, err := s.readFile(file.Path)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", file.Name, err)
	}
	if !utf8.Valid(raw) {
		return fmt.Errorf("%w: %s is not UTF-8 text", ErrUnsupportedFile, file.Name)
	}

	parts := splitText(string(raw), s.cfg.ChunkSize)
	if len(parts) == 0 {
		return fmt.Errorf("%w: file %s", ErrEmptyContent, file.Name)
	}

	base := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	chunks := make([]domain.Chunk, len(parts))
	for i, content := range parts {
		chunks[i] = domain.Chunk{
			ID:        uuid.NewString(),
			ProjectID: file.ProjectID,
			FileID:    file.ID,
			Name:      fmt.Sprintf("%s-part-%d", base, i+1),
			Content:   content,
		}
	}
	if err := s.stores.Chunks.CreateMany(ctx, chunks); err != nil {
		return fmt.Errorf("failed to save chunks: %w", err)
	}
	if err := s.stores.Files.MarkProcessed(ctx, file.ID); err != nil {
		return fmt.Errorf("failed to mark file processed: %w", err)
	}

	s.logger.InfoContext(ctx, "split file into chunks",
		"file_id", file.ID,
		"project_id", file.ProjectID,
		"chunks", len(chunks))
	return nil
}

// splitText packs blank-line separated paragraphs into chunks of at most
// size runes. Paragraphs longer than size are cut on rune boundaries.
func splitText(text string, size int) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)
		if n > size {
			flush()
			runes := []rune(para)
			for start := 0; start < len(runes); start += size {
				chunks = append(chunks, strings.TrimSpace(string(runes[start:min(start+size, len(runes))])))
			}
			continue
		}
		if curLen > 0 && curLen+2+n > size {
			flush()
		}
		if curLen > 0 {
			cur.WriteString("\n\n")
			curLen += 2
		}
		cur.WriteString(para)
		curLen += n
	}
	flush()
	return chunks
}
