package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of the configuration. Only fields present
// in the file override the defaults.
type FileConfig struct {
	DatabaseDriver   string   `json:"database_driver" yaml:"database_driver"`
	DatabaseDSN      string   `json:"database_dsn" yaml:"database_dsn"`
	HTTPAddr         string   `json:"http_addr" yaml:"http_addr"`
	GRPCAddr         string   `json:"grpc_addr" yaml:"grpc_addr"`
	Table            string   `json:"table" yaml:"table"`
	ConflictKey      string   `json:"conflict_key" yaml:"conflict_key"`
	ChunkSize        int      `json:"chunk_size" yaml:"chunk_size"`
	Concurrency      int      `json:"concurrency" yaml:"concurrency"`
	ReturnStatus     *bool    `json:"return_status" yaml:"return_status"`
	DoNotUpsert      []string `json:"do_not_upsert" yaml:"do_not_upsert"`
	KeyNaming        string   `json:"key_naming" yaml:"key_naming"`
	SoftDeleteColumn string   `json:"soft_delete_column" yaml:"soft_delete_column"`
	SecretKey        string   `json:"secret_key" yaml:"secret_key"`
	TokenTTL         Duration `json:"token_ttl" yaml:"token_ttl"`
	LogBackend       string   `json:"log_backend" yaml:"log_backend"`
	LogLevel         string   `json:"log_level" yaml:"log_level"`
	LogFormat        string   `json:"log_format" yaml:"log_format"`
	AuditExclude     []string `json:"audit_exclude" yaml:"audit_exclude"`
	AuditMask        []string `json:"audit_mask" yaml:"audit_mask"`
	S3Region         string   `json:"s3_region" yaml:"s3_region"`
	S3BaseEndpoint   string   `json:"s3_endpoint" yaml:"s3_endpoint"`
	S3AccessKey      string   `json:"s3_access_key" yaml:"s3_access_key"`
	S3SecretKey      string   `json:"s3_secret_key" yaml:"s3_secret_key"`
	S3PathStyle      *bool    `json:"s3_path_style" yaml:"s3_path_style"`
}

// loadFile overlays cfg with the file at path. Files ending in .yaml or .yml
// are read as YAML, everything else as JSON.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *FileConfig) apply(cfg *Config) {
	setString(&cfg.DatabaseDriver, fc.DatabaseDriver)
	setString(&cfg.DatabaseDSN, fc.DatabaseDSN)
	setString(&cfg.HTTPAddr, fc.HTTPAddr)
	setString(&cfg.GRPCAddr, fc.GRPCAddr)
	setString(&cfg.Table, fc.Table)
	setString(&cfg.ConflictKey, fc.ConflictKey)
	if fc.ChunkSize != 0 {
		cfg.ChunkSize = fc.ChunkSize
	}
	if fc.Concurrency != 0 {
		cfg.Concurrency = fc.Concurrency
	}
	if fc.ReturnStatus != nil {
		cfg.ReturnStatus = *fc.ReturnStatus
	}
	if fc.DoNotUpsert != nil {
		cfg.DoNotUpsert = fc.DoNotUpsert
	}
	setString(&cfg.KeyNaming, fc.KeyNaming)
	setString(&cfg.SoftDeleteColumn, fc.SoftDeleteColumn)
	setString(&cfg.SecretKey, fc.SecretKey)
	if fc.TokenTTL != 0 {
		cfg.TokenTTL = time.Duration(fc.TokenTTL)
	}
	setString(&cfg.LogBackend, fc.LogBackend)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogFormat, fc.LogFormat)
	if fc.AuditExclude != nil {
		cfg.AuditExclude = fc.AuditExclude
	}
	if fc.AuditMask != nil {
		cfg.AuditMask = fc.AuditMask
	}
	setString(&cfg.S3Region, fc.S3Region)
	setString(&cfg.S3BaseEndpoint, fc.S3BaseEndpoint)
	setString(&cfg.S3AccessKey, fc.S3AccessKey)
	setString(&cfg.S3SecretKey, fc.S3SecretKey)
	if fc.S3PathStyle != nil {
		cfg.S3PathStyle = *fc.S3PathStyle
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
