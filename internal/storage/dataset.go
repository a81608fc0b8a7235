package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/tarifflab/hsnatlas/internal/util"
	"github.com/tarifflab/hsnatlas/pkg/common"
	"github.com/tarifflab/hsnatlas/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const datasetRetries = 3

// LoadRecords reads the flat taxonomy record set from the given location.
// Locations with an s3:// prefix are fetched from the configured bucket
// (with retries, object storage hiccups are common); anything else is a
// local file path. Records without an hsn code are skipped with a warning,
// full schema validation happens upstream in the ingestion pipeline.
func LoadRecords(ctx context.Context, client *s3.Client, location string) ([]common.Record, error) {
	var raw []byte
	var err error

	if key, ok := strings.CutPrefix(location, "s3://"); ok {
		raw, err = util.RetryWithContext(ctx, datasetRetries, func(ctx context.Context) ([]byte, error) {
			return GetFile(ctx, client, key)
		})
	} else {
		raw, err = os.ReadFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset %s: %w", location, err)
	}

	var records []common.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", location, err)
	}

	valid := records[:0]
	skipped := 0
	for _, record := range records {
		if record.HSNCode == "" {
			skipped++
			continue
		}
		valid = append(valid, record)
	}
	if skipped > 0 {
		logger.Warn("[Storage] Skipped records without hsn code", "skipped", skipped)
	}

	logger.Info("[Storage] Loaded dataset", "location", location, "records", len(valid))
	return valid, nil
}
