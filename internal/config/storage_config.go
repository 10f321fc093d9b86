package config

// StorageConfig defines configuration for the persistent request store and
// auxiliary state files.
type StorageConfig struct {
	DatabasePath     string `json:"database_path,omitempty" yaml:"database_path,omitempty"`
	StateDir         string `json:"state_dir,omitempty" yaml:"state_dir,omitempty"`
	ExportDir        string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
	CompressionCodec string `json:"compression_codec,omitempty" yaml:"compression_codec,omitempty" validate:"omitempty,oneof=zstd gzip snappy none"`

	// AppendQueueSize bounds the in-flight append buffer of the request store.
	AppendQueueSize int `json:"append_queue_size,omitempty" yaml:"append_queue_size,omitempty" validate:"omitempty,min=1"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DatabasePath:     DefaultDatabaseFile,
		StateDir:         DefaultStateDir,
		ExportDir:        DefaultExportDir,
		CompressionCodec: DefaultParquetCodec,
		AppendQueueSize:  1024,
	}
}
