package interp

// AliasTable is the shell alias table (spec §3, Alias; spec §4.7). It
// implements syntax.AliasLookup so the parser can perform command-word
// substitution without importing interp.
type AliasTable struct {
	aliases map[string]string
}

// NewAliasTable returns an empty alias table.
func NewAliasTable() *AliasTable { return &AliasTable{aliases: make(map[string]string)} }

// Lookup implements syntax.AliasLookup (spec §4.2, alias substitution).
func (at *AliasTable) Lookup(name string) (string, bool) {
	repl, ok := at.aliases[name]
	return repl, ok
}

// Define sets or replaces an alias (spec §4.7, `alias name=value`).
func (at *AliasTable) Define(name, repl string) { at.aliases[name] = repl }

// Unset removes an alias (spec §4.7, `unalias`).
func (at *AliasTable) Unset(name string) { delete(at.aliases, name) }

// Each calls fn for every alias, for `alias` with no arguments (spec
// §4.7, listing form).
func (at *AliasTable) Each(fn func(name, repl string)) {
	for name, repl := range at.aliases {
		fn(name, repl)
	}
}
