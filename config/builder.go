package config

import "github.com/spf13/pflag"

// Builder accumulates an ordered list of sources (lowest priority first)
// and produces a single merged, validated ProxyConfig.
type Builder struct {
	sources        []taggedSource
	skipValidation bool
}

type taggedSource struct {
	source Source
	origin Origin
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Add appends a source to the merge chain with the given origin tag. Call
// order is the priority order: call Add for defaults first, then file, then
// environment, then command-line (lowest to highest priority).
func (b *Builder) Add(source Source, origin Origin) *Builder {
	b.sources = append(b.sources, taggedSource{source, origin})
	return b
}

// SkipValidation disables the validation pass Build otherwise runs. Intended
// for tooling (e.g. `validate-config --dry-run` variants) that wants to
// inspect an unvalidated merge result.
func (b *Builder) SkipValidation() *Builder {
	b.skipValidation = true
	return b
}

// Build runs Load on every source in order and folds the results together
// with Merge, then validates the result unless SkipValidation was called.
func (b *Builder) Build() (*ProxyConfig, error) {
	result := New()
	for _, ts := range b.sources {
		loaded, err := ts.source.Load()
		if err != nil {
			return nil, err
		}
		result = result.Merge(loaded, ts.origin)
	}

	if !b.skipValidation {
		if err := Validate(result); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// BuildDefault constructs a Builder pre-loaded with the standard source
// chain: defaults, then an optional file (path may be ""), then
// environment, then CLI flags (flags may be nil to skip CLI entirely, e.g.
// for admin-API-driven reloads).
func BuildDefault(filePath string, cliFlags *pflag.FlagSet) *Builder {
	b := NewBuilder().
		Add(DefaultSource{}, OriginDefault).
		Add(FileSource{Path: filePath}, OriginFile).
		Add(EnvSource{}, OriginEnvironment)
	if cliFlags != nil {
		b.Add(CLISource{Flags: cliFlags}, OriginCommandLine)
	}
	return b
}
