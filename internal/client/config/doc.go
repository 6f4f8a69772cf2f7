// Package config loads runtime configuration for the smartyedu client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the remote document store (gRPC backend)
//	-i int      online status check interval (seconds)
//	-d string   path of the local SQLite database
//	-k string   path of the device key file
//	-b string   remote backend: grpc or s3
//	-l string   log format: text, json or zap
//
// # JSON schema
//
// Durations use timex.Duration, so they can be strings like "6h" or integer
// nanoseconds. Keys absent from the file keep their default values:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "smartyedu.db",
//	  "device_key_path": "smartyedu.key",
//	  "online_check_interval": "3s",
//	  "sync_interval": "6h",
//	  "trial_period": "24h",
//	  "cleanup_grace": "24h",
//	  "remote_backend": "grpc",
//	  "device_id": "tablet-01",
//	  "device_secret": "secretKey",
//	  "device_token_ttl": "15m",
//	  "s3_region": "us-east-1",
//	  "s3_base_endpoint": "http://127.0.0.1:9000/",
//	  "s3_access_key": "admin",
//	  "s3_secret_key": "secretpassword",
//	  "s3_bucket": "smartyedu",
//	  "support_phone": "+15550100",
//	  "tutor_subject": "math",
//	  "handoff_mode": "browser",
//	  "log_format": "text"
//	}
package config
