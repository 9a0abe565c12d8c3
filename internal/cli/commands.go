package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/auth"
	"github.com/dmitrijs2005/pgkit/internal/cryptox"
	"github.com/dmitrijs2005/pgkit/internal/pagination"
	"github.com/dmitrijs2005/pgkit/internal/record"
	"github.com/dmitrijs2005/pgkit/internal/server"
	"github.com/dmitrijs2005/pgkit/internal/storage"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
	"github.com/dmitrijs2005/pgkit/internal/version"
)

func newUpsertCmd(rt *runtime) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Upsert a JSON object or array of records into the configured table",
		Long: `Reads records from --file (or stdin) and writes them in chunks with
INSERT ... ON CONFLICT (<conflict-key>) DO UPDATE. The written rows are
printed as JSON in the shape of the input. Failed chunks are logged and
make the command exit non-zero after the other chunks are written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			recs, scalar, err := rt.readRecords(cmd, file)
			if err != nil {
				return err
			}
			opts, err := rt.upsertOptions()
			if err != nil {
				return err
			}
			logger, err := rt.logger(cmd)
			if err != nil {
				return err
			}

			store, err := storage.Open(ctx, rt.cfg.DatabaseDriver, rt.cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer store.Close()

			u := upsert.New(store.Upserts(store.DB()), logger, opts)
			res, err := u.Upsert(ctx, rt.cfg.Table, recs, rt.cfg.ConflictKey, upsert.Options{})
			if err != nil {
				return err
			}

			if err := writeJSON(cmd.OutOrStdout(), res.Output(scalar)); err != nil {
				return err
			}
			return res.Err()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file or s3://bucket/key with a record or an array of records, - for stdin")
	return cmd
}

func newDiffCmd(rt *runtime) *cobra.Command {
	var (
		oldPath, newPath, entity string
		shallow                  bool
	)
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Print the audit changes between two versions of a record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			before, err := rt.readRecord(cmd, oldPath)
			if err != nil {
				return err
			}
			after, err := rt.readRecord(cmd, newPath)
			if err != nil {
				return err
			}

			p := audit.NewConfig(rt.cfg.AuditExclude, rt.cfg.AuditMask).PolicyFor(entity)
			p.Shallow = p.Shallow || shallow

			changes := p.Changes(before, after)
			if changes == nil {
				changes = []audit.FieldChange{}
			}
			return writeJSON(cmd.OutOrStdout(), changes)
		},
	}
	cmd.Flags().StringVar(&oldPath, "old", "", "JSON file with the old record")
	cmd.Flags().StringVar(&newPath, "new", "", "JSON file with the new record")
	cmd.Flags().StringVar(&entity, "entity", "", "entity name used to pick the audit policy")
	cmd.Flags().BoolVar(&shallow, "shallow", false, "compare top-level scalar fields only")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")
	return cmd
}

func newMaskCmd(rt *runtime) *cobra.Command {
	var file, hashKey, hashSalt string
	cmd := &cobra.Command{
		Use:   "mask",
		Short: "Print records as the audit log would store them",
		Long: `Drops excluded and internal fields and masks the configured fields of
each record. With --hash-key masked values become BLAKE2b digests keyed
with an Argon2id stretch of the passphrase instead of partially hidden
strings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, scalar, err := rt.readRecords(cmd, file)
			if err != nil {
				return err
			}

			f := audit.NewConfig(rt.cfg.AuditExclude, rt.cfg.AuditMask).PolicyFor("").Filter()
			if cmd.Flags().Changed("hash-key") {
				passphrase := []byte(hashKey)
				key := cryptox.DeriveKey(passphrase, []byte(hashSalt))
				cryptox.Wipe(passphrase)
				h, err := audit.HashMask(key)
				if err != nil {
					return err
				}
				for k := range f.Mask {
					f.Mask[k] = h
				}
			}

			out := make([]*record.Record, len(recs))
			for i, r := range recs {
				out[i] = f.Apply(r)
			}
			if scalar {
				return writeJSON(cmd.OutOrStdout(), out[0])
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "JSON file or s3://bucket/key with a record or an array of records, - for stdin")
	cmd.Flags().StringVar(&hashKey, "hash-key", "", "passphrase for BLAKE2b digest masking")
	cmd.Flags().StringVar(&hashSalt, "hash-salt", "pgkit", "salt for deriving the --hash-key digest key")
	return cmd
}

func newMigrateCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger, err := rt.logger(cmd)
			if err != nil {
				return err
			}
			store, err := storage.Open(ctx, rt.cfg.DatabaseDriver, rt.cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.WithLogger(logger).RunMigrations(ctx); err != nil {
				return fmt.Errorf("migration error: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newAuditExportCmd(rt *runtime) *cobra.Command {
	var out, entity string
	cmd := &cobra.Command{
		Use:   "audit-export",
		Short: "Export audit log entries as a JSON array",
		Long: `Reads the audit log newest first, optionally for one entity, and writes
it to --out: a file, s3://bucket/key or - for stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := storage.Open(ctx, rt.cfg.DatabaseDriver, rt.cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer store.Close()

			repo := store.AuditLogs(store.DB())
			entries := []*audit.Entry{}
			for offset := 0; ; offset += pagination.MaxLimit {
				page, total, err := repo.List(ctx, audit.ListFilter{Entity: entity, Limit: pagination.MaxLimit, Offset: offset})
				if err != nil {
					return err
				}
				entries = append(entries, page...)
				if len(page) == 0 || len(entries) >= total {
					break
				}
			}

			data, err := json.Marshal(entries)
			if err != nil {
				return err
			}
			if err := rt.writeOutput(cmd, out, append(data, '\n')); err != nil {
				return err
			}
			if out != "-" {
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d audit entries to %s\n", len(entries), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "-", "destination file, s3://bucket/key or - for stdout")
	cmd.Flags().StringVar(&entity, "entity", "", "export one entity only")
	return cmd
}

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.NewApp(cmd.Context(), rt.cfg)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}

func newTokenCmd(rt *runtime) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an actor token for the HTTP and gRPC APIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.GenerateToken(actor, []byte(rt.cfg.SecretKey), rt.cfg.TokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id recorded in audit entries")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.Current().String())
			return nil
		},
	}
}
