package config

import "time"

// Remote backends accepted by RemoteBackend.
const (
	BackendGRPC = "grpc"
	BackendS3   = "s3"
)

// Config holds runtime settings for the smartyedu client.
//
// ServerEndpointAddr is used by the gRPC backend, the S3* fields by the S3
// backend. DeviceSecret must match the server's signing key.
type Config struct {
	ServerEndpointAddr  string
	DatabasePath        string
	DeviceKeyPath       string
	OnlineCheckInterval time.Duration
	SyncInterval        time.Duration
	TrialPeriod         time.Duration
	CleanupGrace        time.Duration
	RemoteBackend       string
	DeviceID            string
	DeviceSecret        string
	DeviceTokenTTL      time.Duration
	S3Region            string
	S3BaseEndpoint      string
	S3AccessKey         string
	S3SecretKey         string
	S3Bucket            string
	SupportPhone        string
	TutorSubject        string
	HandoffMode         string
	LogFormat           string
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "smartyedu.db"
	c.DeviceKeyPath = "smartyedu.key"
	c.OnlineCheckInterval = 3 * time.Second
	c.SyncInterval = 6 * time.Hour
	c.TrialPeriod = 24 * time.Hour
	c.CleanupGrace = 24 * time.Hour
	c.RemoteBackend = BackendGRPC
	c.DeviceID = "smartyedu-device"
	c.DeviceSecret = "secretKey"
	c.DeviceTokenTTL = 15 * time.Minute
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3AccessKey = "admin"
	c.S3SecretKey = "secretpassword"
	c.S3Bucket = "smartyedu"
	c.SupportPhone = "+15550100"
	c.TutorSubject = ""
	c.HandoffMode = "browser"
	c.LogFormat = "text"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
