package audit

import (
	"maps"

	"github.com/dmitrijs2005/pgkit/internal/record"
)

// Policy controls what gets diffed and stored for one entity.
type Policy struct {
	Exclude     record.ExclusionSet
	Mask        MaskPolicy
	AllowNested record.ExclusionSet
	// Shallow switches updates to ShallowDiff.
	Shallow bool
}

// Config holds the global policy plus per-entity additions.
type Config struct {
	Global   Policy
	Entities map[string]Policy
}

// NewConfig builds a global-only Config that excludes the exclude fields and
// masks the mask fields with DefaultMask.
func NewConfig(exclude, mask []string) Config {
	m := make(MaskPolicy, len(mask))
	for _, f := range mask {
		m[f] = DefaultMask
	}
	return Config{Global: Policy{Exclude: record.NewExclusionSet(exclude...), Mask: m}}
}

// PolicyFor combines the global policy with the entity's own. Sets are
// unioned, entity masks override global masks of the same field and Shallow
// is on when either side sets it.
func (c Config) PolicyFor(entity string) Policy {
	e := c.Entities[entity]
	mask := make(MaskPolicy, len(c.Global.Mask)+len(e.Mask))
	maps.Copy(mask, c.Global.Mask)
	maps.Copy(mask, e.Mask)
	return Policy{
		Exclude:     record.Union(c.Global.Exclude, e.Exclude),
		Mask:        mask,
		AllowNested: record.Union(c.Global.AllowNested, e.AllowNested),
		Shallow:     c.Global.Shallow || e.Shallow,
	}
}

// Filter returns the snapshot filter for p.
func (p Policy) Filter() Filter {
	return Filter{Mask: p.Mask, Exclude: p.Exclude, AllowNested: p.AllowNested}
}

// Changes diffs old and new under p and masks the values of changes to
// masked fields.
func (p Policy) Changes(old, new *record.Record) []FieldChange {
	var changes []FieldChange
	if p.Shallow {
		changes = ShallowDiff(old, new, p.Exclude)
	} else {
		changes = Diff(old, new, p.Exclude)
	}
	for i, c := range changes {
		m := p.Mask[topLevel(c.Path)]
		if m == nil {
			continue
		}
		if c.Old != nil {
			changes[i].Old = m(c.Old)
		}
		if c.New != nil {
			changes[i].New = m(c.New)
		}
	}
	return changes
}

func topLevel(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}
