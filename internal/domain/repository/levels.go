package repository

import "sort"

// LevelResolver maps a time level token to the physical table serving it.
// The mapping is injected at construction; the resolver itself is pure and
// safe for concurrent use.
type LevelResolver struct {
	tables map[string]string
	tokens []string
}

// NewLevelResolver builds a resolver from a token -> table mapping.
func NewLevelResolver(levels map[string]string) *LevelResolver {
	tables := make(map[string]string, len(levels))
	tokens := make([]string, 0, len(levels))
	for token, table := range levels {
		tables[token] = table
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return &LevelResolver{tables: tables, tokens: tokens}
}

// Resolve returns the table for token. Matching is exact and case-sensitive.
func (r *LevelResolver) Resolve(token string) (string, bool) {
	table, ok := r.tables[token]
	return table, ok
}

// Tokens returns the supported level tokens in sorted order, for display in
// rejection messages.
func (r *LevelResolver) Tokens() []string {
	out := make([]string, len(r.tokens))
	copy(out, r.tokens)
	return out
}
