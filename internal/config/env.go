package config

import "os"

// parseEnv overlays values from the environment onto config. Only settings
// that carry secrets or vary per deployment are read here; tuning knobs stay
// in the JSON file. A `.env` file loaded at startup feeds this layer.
func parseEnv(config *Config) {
	overlay := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	overlay("COLDVAULT_DATABASE_DSN", &config.DatabaseDSN)
	overlay("COLDVAULT_S3_BUCKET", &config.S3Bucket)
	overlay("COLDVAULT_S3_REGION", &config.S3Region)
	overlay("COLDVAULT_S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	overlay("COLDVAULT_S3_ACCESS_KEY", &config.S3AccessKey)
	overlay("COLDVAULT_S3_SECRET_KEY", &config.S3SecretKey)
	overlay("COLDVAULT_REQUESTER", &config.Requester)
}
