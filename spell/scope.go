package spell

import (
	"github.com/syssam/grimoire"
	"github.com/syssam/grimoire/expr"
)

// Scope injects conditions into a spell when it is built. Scopes run once
// per Build, on a copy of the spell, after every builder call.
type Scope func(*Spell)

// paranoid filters out soft deleted rows unless the conditions already
// reference the soft delete column.
func paranoid(s *Spell) {
	m := s.model
	if s.unparanoid || !m.Paranoid() || s.from != nil {
		return
	}
	switch s.command {
	case CommandSelect, CommandUpdate, CommandDelete:
	default:
		return
	}
	deletedAt := m.DeletedAt()
	if s.references(deletedAt) {
		return
	}
	s.where = append(s.where, expr.Eq(expr.Ident(deletedAt), expr.Lit(nil)))
}

// references reports if the where conditions reference the attribute,
// by name or column, bare or qualified by the model alias.
func (s *Spell) references(attr string) bool {
	names := []string{attr}
	if col := s.model.Column(attr); col != attr {
		names = append(names, col)
	}
	for _, cond := range s.where {
		for _, name := range names {
			if expr.References(cond, name, s.model.TableAlias()) {
				return true
			}
		}
	}
	return false
}

// checkShardingKey requires inserted rows to carry a non-nil sharding key,
// and other commands to reference it in their conditions.
func (s *Spell) checkShardingKey() error {
	key := s.model.ShardingKey()
	if key == "" || s.from != nil {
		return nil
	}
	switch s.command {
	case CommandInsert, CommandBulkInsert, CommandUpsert:
		col := s.model.Column(key)
		for _, set := range s.sets {
			v, ok := set[key]
			if !ok {
				v = set[col]
			}
			if v == nil {
				return grimoire.NewShardingKeyError(s.model.Name(), key, s.command.String())
			}
		}
	default:
		if !s.references(key) {
			return grimoire.NewShardingKeyError(s.model.Name(), key, s.command.String())
		}
	}
	return nil
}
