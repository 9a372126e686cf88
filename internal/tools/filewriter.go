package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// FileWriterTool writes content to a markdown file inside the agent's
// workspace directory.
type FileWriterTool struct {
	workspace string
}

// NewFileWriterTool creates a file writer rooted at workspace. An empty
// workspace writes relative to the current working directory.
func NewFileWriterTool(workspace string) *FileWriterTool {
	return &FileWriterTool{workspace: workspace}
}

func (t *FileWriterTool) Name() string { return "file_writer" }

func (t *FileWriterTool) Description() string {
	return "Writes content (e.g., summaries, plans, etc.) to a markdown file, creating the file if it doesn't exist."
}

func (t *FileWriterTool) Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"filename": {
				Type:        "string",
				Description: "The name of the markdown file to write to (e.g., 'my_file.md').",
			},
			"content": {
				Type:        "string",
				Description: "The content to write to the file.",
			},
		},
		Required: []string{"filename", "content"},
	}
}

// Execute writes the file. Filenames must be plain .md names; path
// separators are rejected so the model cannot escape the workspace.
func (t *FileWriterTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	filename, _ := input["filename"].(string)
	content, _ := input["content"].(string)

	if !strings.HasSuffix(filename, ".md") {
		return nil, fmt.Errorf("filename must end with .md")
	}
	if filepath.Base(filename) != filename {
		return nil, fmt.Errorf("filename must not contain path separators")
	}

	path := filename
	if t.workspace != "" {
		if err := os.MkdirAll(t.workspace, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
		path = filepath.Join(t.workspace, filename)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", filename, err)
	}

	return map[string]any{"success": fmt.Sprintf("Successfully wrote to %s", filename)}, nil
}
