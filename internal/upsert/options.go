package upsert

// Options tunes a single upsert call. The zero value of every field means
// "not set"; Merge fills those from a defaults value.
type Options struct {
	// KeyNaming maps record fields to column names. Identity when unset.
	KeyNaming NamingFunc
	// DoNotUpsert lists record fields that are never written.
	DoNotUpsert []string
	// ChunkSize is the maximum number of rows per statement.
	ChunkSize int
	// ReturnStatus requests inserted/updated classification of every row.
	// It costs one extra existence query per chunk. The query and the write
	// are separate statements, so a concurrent writer can make a row
	// reported as inserted actually be an update. Nil means not set.
	ReturnStatus *bool
	// UpdatedAtColumn is set to CURRENT_TIMESTAMP on conflict.
	UpdatedAtColumn string
	// Concurrency caps the number of chunks in flight; 0 sends them all at once.
	Concurrency int
}

// Bool returns a pointer to v, for Options.ReturnStatus.
func Bool(v bool) *bool { return &v }

// DefaultOptions returns the package defaults.
func DefaultOptions() Options {
	return Options{
		KeyNaming:       Identity,
		ChunkSize:       DefaultChunkSize,
		UpdatedAtColumn: DefaultUpdatedAtColumn,
	}
}

// Merge returns o with every unset field taken from defaults. Neither input
// is modified. DoNotUpsert lists are combined. A ReturnStatus set on o wins
// over the default, including an explicit false.
func (o Options) Merge(defaults Options) Options {
	out := o
	if out.KeyNaming == nil {
		out.KeyNaming = defaults.KeyNaming
	}
	if out.ChunkSize == 0 {
		out.ChunkSize = defaults.ChunkSize
	}
	if out.UpdatedAtColumn == "" {
		out.UpdatedAtColumn = defaults.UpdatedAtColumn
	}
	if out.Concurrency == 0 {
		out.Concurrency = defaults.Concurrency
	}
	if out.ReturnStatus == nil {
		out.ReturnStatus = defaults.ReturnStatus
	}

	if len(defaults.DoNotUpsert) > 0 {
		merged := make([]string, 0, len(defaults.DoNotUpsert)+len(o.DoNotUpsert))
		merged = append(merged, defaults.DoNotUpsert...)
		merged = append(merged, o.DoNotUpsert...)
		out.DoNotUpsert = merged
	}
	return out
}
