// Package cli implements the pgkit command line on top of cobra. Every
// command shares the configuration flags of internal/config.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/pgkit/internal/config"
	"github.com/dmitrijs2005/pgkit/internal/logging"
	"github.com/dmitrijs2005/pgkit/internal/objectstore"
	"github.com/dmitrijs2005/pgkit/internal/record"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
)

// runtime carries the configuration resolved before a command runs.
type runtime struct {
	bound config.Config
	cfg   *config.Config
}

// NewRootCmd builds the pgkit command tree.
func NewRootCmd() *cobra.Command {
	rt := &runtime{}

	root := &cobra.Command{
		Use:   "pgkit",
		Short: "Chunked upserts, audit diffs and masking for SQL tables",
		Long: `pgkit writes JSON records into a table with INSERT ... ON CONFLICT in
concurrent chunks, computes audit diffs between record versions and masks
sensitive fields.

Configuration comes from defaults, then an optional JSON or YAML file
(--config), then explicitly set flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), &rt.bound)
			if err != nil {
				return err
			}
			rt.cfg = cfg
			return nil
		},
	}
	config.BindFlags(root.PersistentFlags(), &rt.bound)

	root.AddCommand(
		newUpsertCmd(rt),
		newDiffCmd(rt),
		newMaskCmd(rt),
		newMigrateCmd(rt),
		newAuditExportCmd(rt),
		newServeCmd(rt),
		newTokenCmd(rt),
		newVersionCmd(),
	)
	return root
}

// logger writes to the command's stderr so stdout stays machine readable.
func (rt *runtime) logger(cmd *cobra.Command) (logging.Logger, error) {
	return logging.New(logging.Options{
		Backend: rt.cfg.LogBackend,
		Level:   rt.cfg.LogLevel,
		Format:  rt.cfg.LogFormat,
		Output:  cmd.ErrOrStderr(),
	})
}

func (rt *runtime) upsertOptions() (upsert.Options, error) {
	naming, ok := upsert.NamingByName(rt.cfg.KeyNaming)
	if !ok {
		return upsert.Options{}, fmt.Errorf("unknown key naming %q", rt.cfg.KeyNaming)
	}
	return upsert.Options{
		KeyNaming:    naming,
		DoNotUpsert:  rt.cfg.DoNotUpsert,
		ChunkSize:    rt.cfg.ChunkSize,
		ReturnStatus: upsert.Bool(rt.cfg.ReturnStatus),
		Concurrency:  rt.cfg.Concurrency,
	}, nil
}

// readInput reads path, an s3://bucket/key object, or the command's stdin
// for "-".
func (rt *runtime) readInput(cmd *cobra.Command, path string) ([]byte, error) {
	switch {
	case path == "-":
		return io.ReadAll(cmd.InOrStdin())
	case objectstore.IsURI(path):
		bucket, key, err := objectstore.ParseURI(path)
		if err != nil {
			return nil, err
		}
		c, err := rt.objectStore(cmd)
		if err != nil {
			return nil, err
		}
		return c.Get(cmd.Context(), bucket, key)
	}
	return os.ReadFile(path)
}

// writeOutput writes data to path, an s3://bucket/key object, or the
// command's stdout for "-".
func (rt *runtime) writeOutput(cmd *cobra.Command, path string, data []byte) error {
	switch {
	case path == "-":
		_, err := cmd.OutOrStdout().Write(data)
		return err
	case objectstore.IsURI(path):
		bucket, key, err := objectstore.ParseURI(path)
		if err != nil {
			return err
		}
		c, err := rt.objectStore(cmd)
		if err != nil {
			return err
		}
		return c.Put(cmd.Context(), bucket, key, data, "application/json")
	}
	return os.WriteFile(path, data, 0o644)
}

func (rt *runtime) objectStore(cmd *cobra.Command) (*objectstore.Client, error) {
	return objectstore.New(cmd.Context(), objectstore.Options{
		Region:       rt.cfg.S3Region,
		BaseEndpoint: rt.cfg.S3BaseEndpoint,
		AccessKey:    rt.cfg.S3AccessKey,
		SecretKey:    rt.cfg.S3SecretKey,
		PathStyle:    rt.cfg.S3PathStyle,
	})
}

func (rt *runtime) readRecords(cmd *cobra.Command, path string) ([]*record.Record, bool, error) {
	data, err := rt.readInput(cmd, path)
	if err != nil {
		return nil, false, err
	}
	recs, scalar, err := record.ParseList(data)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", path, err)
	}
	return recs, scalar, nil
}

func (rt *runtime) readRecord(cmd *cobra.Command, path string) (*record.Record, error) {
	recs, scalar, err := rt.readRecords(cmd, path)
	if err != nil {
		return nil, err
	}
	if !scalar {
		return nil, fmt.Errorf("%s: expected a single JSON object", path)
	}
	return recs[0], nil
}

// writeJSON encodes v, indented when w is a terminal.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	if isTerminal(w) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
