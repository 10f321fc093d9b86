package datastore

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/config"
	"github.com/HikaruEgashira/pleno-audit-sub009/internal/models"
	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"
)

// ParquetExporter streams the full request log into a parquet file. This is
// the unlimited export path; dashboards and offline analysis consume the
// resulting files.
type ParquetExporter struct {
	store  *RequestStore
	cfg    config.StorageConfig
	logger zerolog.Logger
}

// NewParquetExporter creates a ParquetExporter over the request store.
func NewParquetExporter(store *RequestStore, cfg config.StorageConfig, baseLogger zerolog.Logger) *ParquetExporter {
	return &ParquetExporter{
		store:  store,
		cfg:    cfg,
		logger: baseLogger.With().Str("component", "ParquetExporter").Logger(),
	}
}

// Export writes every stored record to a timestamped parquet file under the
// configured export directory and returns the file path and record count.
func (pe *ParquetExporter) Export() (string, int, error) {
	// Let queued appends land first so the export reflects everything the
	// caller has handed to the store.
	pe.store.Flush()

	records, _, err := pe.store.Query(QueryOptions{Limit: -1})
	if err != nil {
		return "", 0, common.WrapError(err, "failed to read records for export")
	}

	if err := os.MkdirAll(pe.cfg.ExportDir, 0755); err != nil {
		return "", 0, common.WrapErrorf(err, "failed to create export directory %s", pe.cfg.ExportDir)
	}

	fileName := "requests-" + time.Now().UTC().Format("20060102-150405") + ".parquet"
	filePath := filepath.Join(pe.cfg.ExportDir, fileName)

	file, err := os.Create(filePath)
	if err != nil {
		return "", 0, common.WrapErrorf(err, "failed to create export file %s", filePath)
	}

	writer := parquet.NewGenericWriter[models.ParquetRequestRecord](file, pe.compressionOption())

	// Export chronologically: Query returns newest-first.
	written := 0
	for i := len(records) - 1; i >= 0; i-- {
		if _, err := writer.Write([]models.ParquetRequestRecord{records[i].ToParquetRecord()}); err != nil {
			writer.Close()
			file.Close()
			os.Remove(filePath)
			return "", 0, common.WrapError(err, "failed to write parquet record")
		}
		written++
	}

	if err := writer.Close(); err != nil {
		file.Close()
		os.Remove(filePath)
		return "", 0, common.WrapError(err, "failed to close parquet writer")
	}
	if err := file.Close(); err != nil {
		return "", 0, common.WrapError(err, "failed to close export file")
	}

	pe.logger.Info().Str("path", filePath).Int("records", written).Msg("Request log exported")
	return filePath, written, nil
}

func (pe *ParquetExporter) compressionOption() parquet.WriterOption {
	switch strings.ToLower(pe.cfg.CompressionCodec) {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}
