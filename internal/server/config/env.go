package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays Config fields from environment variables. Storage
// settings use the conventional AWS names; INGESTOR_* covers the rest.
//
//	INGESTOR_ADDRESS            HTTP bind address
//	INGESTOR_DATABASE_DSN       PostgreSQL DSN
//	INGESTOR_SECRET_KEY         JWT HMAC secret
//	INGESTOR_TOKEN_VALIDITY     token lifetime (time.ParseDuration)
//	INGESTOR_WORKERS            ingest worker count
//	INGESTOR_OPERATION_TIMEOUT  per-notification budget (time.ParseDuration)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_REGION
//	LOCALSTACK_ENDPOINT         S3 base endpoint
//	S3_BUCKET_NAME              upload bucket
//	PROCESSED_BUCKET            processed bucket
func parseEnv(config *Config) {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	setString("INGESTOR_ADDRESS", &config.EndpointAddr)
	setString("INGESTOR_DATABASE_DSN", &config.DatabaseDSN)
	setString("INGESTOR_SECRET_KEY", &config.SecretKey)
	setString("AWS_ACCESS_KEY_ID", &config.S3AccessKeyID)
	setString("AWS_SECRET_ACCESS_KEY", &config.S3SecretAccessKey)
	setString("AWS_REGION", &config.S3Region)
	setString("LOCALSTACK_ENDPOINT", &config.S3BaseEndpoint)
	setString("S3_BUCKET_NAME", &config.UploadBucket)
	setString("PROCESSED_BUCKET", &config.ProcessedBucket)

	if v, ok := os.LookupEnv("INGESTOR_TOKEN_VALIDITY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
	if v, ok := os.LookupEnv("INGESTOR_OPERATION_TIMEOUT"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.OperationTimeout = d
		}
	}
	if v, ok := os.LookupEnv("INGESTOR_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.IngestWorkers = n
		}
	}
}
