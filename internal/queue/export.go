package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tarifflab/hsnatlas/internal/storage"
	"github.com/tarifflab/hsnatlas/pkg/graph"
	"github.com/tarifflab/hsnatlas/pkg/graph/memory"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProcessExport writes a graph export artifact and uploads it to object
// storage. GraphML works on any backend that supports it; the HTML
// visualization needs the in-memory backend.
func ProcessExport(
	ctx context.Context,
	s3Client *awss3.Client,
	backend graph.Backend,
	msg string,
) error {
	data := new(ExportGraphMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("failed to parse export message: %w", err)
	}
	if data.Key == "" {
		return fmt.Errorf("export message missing target key")
	}

	tmpDir, err := os.MkdirTemp("", "graph-export")
	if err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var path, contentType string
	switch data.Format {
	case "html":
		mem, ok := backend.(*memory.Backend)
		if !ok {
			return fmt.Errorf("html export requires the in-memory graph backend")
		}
		path = filepath.Join(tmpDir, "graph.html")
		contentType = "text/html"
		if err := mem.ExportHTML(ctx, path); err != nil {
			return err
		}
	case "graphml", "":
		path = filepath.Join(tmpDir, "graph.graphml")
		contentType = "application/xml"
		if err := backend.ExportGraphML(ctx, path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown export format: %s", data.Format)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open export artifact: %w", err)
	}
	defer file.Close()

	if err := storage.PutFile(ctx, s3Client, data.Key, contentType, file); err != nil {
		return err
	}

	logger.Info("[Queue] Export uploaded", "format", data.Format, "key", data.Key)
	return nil
}
