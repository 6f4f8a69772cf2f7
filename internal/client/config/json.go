package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/flagx"
	"github.com/dmitrijs2005/smartyedu/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Durations go
// through timex.Duration and are copied into Config afterwards.
type JsonConfig struct {
	ServerEndpointAddr  string         `json:"server_endpoint_addr"`
	DatabasePath        string         `json:"database_path"`
	DeviceKeyPath       string         `json:"device_key_path"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	SyncInterval        timex.Duration `json:"sync_interval"`
	TrialPeriod         timex.Duration `json:"trial_period"`
	CleanupGrace        timex.Duration `json:"cleanup_grace"`
	RemoteBackend       string         `json:"remote_backend"`
	DeviceID            string         `json:"device_id"`
	DeviceSecret        string         `json:"device_secret"`
	DeviceTokenTTL      timex.Duration `json:"device_token_ttl"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	S3AccessKey         string         `json:"s3_access_key"`
	S3SecretKey         string         `json:"s3_secret_key"`
	S3Bucket            string         `json:"s3_bucket"`
	SupportPhone        string         `json:"support_phone"`
	TutorSubject        string         `json:"tutor_subject"`
	HandoffMode         string         `json:"handoff_mode"`
	LogFormat           string         `json:"log_format"`
}

// parseJson overlays Config with values loaded from the file named by -c or
// -config. Keys missing from the file leave the current value untouched.
// It panics on read or unmarshal errors.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFilePath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	setString(&cfg.ServerEndpointAddr, jc.ServerEndpointAddr)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.DeviceKeyPath, jc.DeviceKeyPath)
	setDuration(&cfg.OnlineCheckInterval, jc.OnlineCheckInterval)
	setDuration(&cfg.SyncInterval, jc.SyncInterval)
	setDuration(&cfg.TrialPeriod, jc.TrialPeriod)
	setDuration(&cfg.CleanupGrace, jc.CleanupGrace)
	setString(&cfg.RemoteBackend, jc.RemoteBackend)
	setString(&cfg.DeviceID, jc.DeviceID)
	setString(&cfg.DeviceSecret, jc.DeviceSecret)
	setDuration(&cfg.DeviceTokenTTL, jc.DeviceTokenTTL)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3BaseEndpoint, jc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.SupportPhone, jc.SupportPhone)
	setString(&cfg.TutorSubject, jc.TutorSubject)
	setString(&cfg.HandoffMode, jc.HandoffMode)
	setString(&cfg.LogFormat, jc.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
