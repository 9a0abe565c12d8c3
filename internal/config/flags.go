package config

import (
	"github.com/spf13/pflag"
)

const flagConfig = "config"

// BindFlags registers the configuration flags on fs, storing parsed values in
// bound. Defaults shown in help come from LoadDefaults.
//
// Supported flags (short forms):
//
//	-c string   JSON or YAML config file
//	-D string   database/sql driver ("pgx" or "sqlite")
//	-d string   database DSN
//	-a string   HTTP bind address
//	-g string   gRPC bind address
//	-t string   upsert table
//	-k string   conflict key
//	-s string   JWT HMAC secret key
func BindFlags(fs *pflag.FlagSet, bound *Config) {
	var d Config
	d.LoadDefaults()
	*bound = d

	fs.StringP(flagConfig, "c", "", "path to JSON or YAML config file")
	fs.StringVarP(&bound.DatabaseDriver, "driver", "D", d.DatabaseDriver, "database driver (pgx, sqlite)")
	fs.StringVarP(&bound.DatabaseDSN, "dsn", "d", d.DatabaseDSN, "database DSN")
	fs.StringVarP(&bound.HTTPAddr, "http-addr", "a", d.HTTPAddr, "HTTP bind address")
	fs.StringVarP(&bound.GRPCAddr, "grpc-addr", "g", d.GRPCAddr, "gRPC bind address")
	fs.StringVarP(&bound.Table, "table", "t", d.Table, "upsert table")
	fs.StringVarP(&bound.ConflictKey, "conflict-key", "k", d.ConflictKey, "unique column used as conflict target")
	fs.IntVar(&bound.ChunkSize, "chunk-size", d.ChunkSize, "rows per upsert statement")
	fs.IntVar(&bound.Concurrency, "concurrency", d.Concurrency, "chunks in flight, 0 for all")
	fs.BoolVar(&bound.ReturnStatus, "return-status", d.ReturnStatus, "report inserted/updated per row")
	fs.StringSliceVar(&bound.DoNotUpsert, "do-not-upsert", d.DoNotUpsert, "fields never written")
	fs.StringVar(&bound.KeyNaming, "key-naming", d.KeyNaming, "field to column naming (identity, snake)")
	fs.StringVar(&bound.SoftDeleteColumn, "soft-delete-column", d.SoftDeleteColumn, "soft delete timestamp column")
	fs.StringVarP(&bound.SecretKey, "secret", "s", d.SecretKey, "JWT secret key")
	fs.DurationVar(&bound.TokenTTL, "token-ttl", d.TokenTTL, "actor token lifetime")
	fs.StringVar(&bound.LogBackend, "log-backend", d.LogBackend, "logger (slog, zap, zerolog, logrus)")
	fs.StringVar(&bound.LogLevel, "log-level", d.LogLevel, "log level")
	fs.StringVar(&bound.LogFormat, "log-format", d.LogFormat, "log format (json, text)")
	fs.StringSliceVar(&bound.AuditExclude, "audit-exclude", d.AuditExclude, "fields left out of audit diffs and snapshots")
	fs.StringSliceVar(&bound.AuditMask, "audit-mask", d.AuditMask, "fields masked in audit snapshots")
	fs.StringVar(&bound.S3Region, "s3-region", d.S3Region, "S3 region")
	fs.StringVar(&bound.S3BaseEndpoint, "s3-endpoint", d.S3BaseEndpoint, "S3-compatible endpoint URL, empty for AWS")
	fs.StringVar(&bound.S3AccessKey, "s3-access-key", d.S3AccessKey, "S3 access key, empty for the default credential chain")
	fs.StringVar(&bound.S3SecretKey, "s3-secret-key", d.S3SecretKey, "S3 secret key")
	fs.BoolVar(&bound.S3PathStyle, "s3-path-style", d.S3PathStyle, "address buckets by path (MinIO)")
}

// applyFlags copies the flags the user actually set from bound into cfg, so
// they win over the file without defaults clobbering file values.
func applyFlags(fs *pflag.FlagSet, bound, cfg *Config) {
	set := map[string]func(){
		"driver":             func() { cfg.DatabaseDriver = bound.DatabaseDriver },
		"dsn":                func() { cfg.DatabaseDSN = bound.DatabaseDSN },
		"http-addr":          func() { cfg.HTTPAddr = bound.HTTPAddr },
		"grpc-addr":          func() { cfg.GRPCAddr = bound.GRPCAddr },
		"table":              func() { cfg.Table = bound.Table },
		"conflict-key":       func() { cfg.ConflictKey = bound.ConflictKey },
		"chunk-size":         func() { cfg.ChunkSize = bound.ChunkSize },
		"concurrency":        func() { cfg.Concurrency = bound.Concurrency },
		"return-status":      func() { cfg.ReturnStatus = bound.ReturnStatus },
		"do-not-upsert":      func() { cfg.DoNotUpsert = bound.DoNotUpsert },
		"key-naming":         func() { cfg.KeyNaming = bound.KeyNaming },
		"soft-delete-column": func() { cfg.SoftDeleteColumn = bound.SoftDeleteColumn },
		"secret":             func() { cfg.SecretKey = bound.SecretKey },
		"token-ttl":          func() { cfg.TokenTTL = bound.TokenTTL },
		"log-backend":        func() { cfg.LogBackend = bound.LogBackend },
		"log-level":          func() { cfg.LogLevel = bound.LogLevel },
		"log-format":         func() { cfg.LogFormat = bound.LogFormat },
		"audit-exclude":      func() { cfg.AuditExclude = bound.AuditExclude },
		"audit-mask":         func() { cfg.AuditMask = bound.AuditMask },
		"s3-region":          func() { cfg.S3Region = bound.S3Region },
		"s3-endpoint":        func() { cfg.S3BaseEndpoint = bound.S3BaseEndpoint },
		"s3-access-key":      func() { cfg.S3AccessKey = bound.S3AccessKey },
		"s3-secret-key":      func() { cfg.S3SecretKey = bound.S3SecretKey },
		"s3-path-style":      func() { cfg.S3PathStyle = bound.S3PathStyle },
	}
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}
