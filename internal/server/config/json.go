package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/ingestor/internal/flagx"
	"github.com/dmitrijs2005/ingestor/internal/timex"
)

// JsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Duration fields accept both strings ("30s") and integer nanoseconds
// via timex.Duration. After unmarshalling, set fields are copied into the
// runtime Config.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	SecretKey             string         `json:"secret_key"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	S3AccessKeyID         string         `json:"s3_access_key_id"`
	S3SecretAccessKey     string         `json:"s3_secret_access_key"`
	S3Region              string         `json:"s3_region"`
	S3BaseEndpoint        string         `json:"s3_base_endpoint"`
	UploadBucket          string         `json:"upload_bucket"`
	ProcessedBucket       string         `json:"processed_bucket"`
	ProcessedPrefix       string         `json:"processed_prefix"`
	IngestWorkers         int            `json:"ingest_workers"`
	OperationTimeout      timex.Duration `json:"operation_timeout"`
}

// parseJson loads configuration values from the JSON file given via the
// -c/-config flags. If no file is given, nothing is loaded. Unset (zero)
// fields keep their previous values. A missing or malformed file panics.
func parseJson(config *Config) {

	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.TokenValidityDuration.Duration != 0 {
		config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	}
	if c.S3AccessKeyID != "" {
		config.S3AccessKeyID = c.S3AccessKeyID
	}
	if c.S3SecretAccessKey != "" {
		config.S3SecretAccessKey = c.S3SecretAccessKey
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
	if c.UploadBucket != "" {
		config.UploadBucket = c.UploadBucket
	}
	if c.ProcessedBucket != "" {
		config.ProcessedBucket = c.ProcessedBucket
	}
	if c.ProcessedPrefix != "" {
		config.ProcessedPrefix = c.ProcessedPrefix
	}
	if c.IngestWorkers > 0 {
		config.IngestWorkers = c.IngestWorkers
	}
	if c.OperationTimeout.Duration != 0 {
		config.OperationTimeout = time.Duration(c.OperationTimeout.Duration)
	}
}
