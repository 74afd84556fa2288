package spellbook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grimoire/dialect"
	"github.com/syssam/grimoire/expr"
	"github.com/syssam/grimoire/schema/schematest"
	"github.com/syssam/grimoire/spell"
)

func TestWrite(t *testing.T) {
	m := schematest.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		dialect string
		spell   *spell.Spell
		want    string
		values  []any
	}{
		{
			name:    "insert",
			dialect: dialect.MySQL,
			spell:   spell.Insert(m.User, map[string]any{"nickname": "a", "email": "e", "id": 1}),
			want:    "INSERT INTO `users` (`id`, `email`, `nickname`) VALUES (?, ?, ?)",
			values:  []any{1, "e", "a"},
		},
		{
			name:    "insert by column name",
			dialect: dialect.MySQL,
			spell:   spell.Insert(m.Post, map[string]any{"word_count": "12", "title": "t"}),
			want:    "INSERT INTO `articles` (`title`, `word_count`) VALUES (?, ?)",
			values:  []any{"t", int64(12)},
		},
		{
			name:    "insert returning",
			dialect: dialect.Postgres,
			spell:   spell.Insert(m.User, map[string]any{"nickname": "a", "email": "e", "id": 1}).Returning(),
			want:    `INSERT INTO "users" ("id", "email", "nickname") VALUES ($1, $2, $3) RETURNING "id"`,
			values:  []any{1, "e", "a"},
		},
		{
			name:    "returning ignored",
			dialect: dialect.MySQL,
			spell:   spell.Insert(m.User, map[string]any{"nickname": "a"}).Returning("*"),
			want:    "INSERT INTO `users` (`nickname`) VALUES (?)",
			values:  []any{"a"},
		},
		{
			name:    "insert raw and json",
			dialect: dialect.MySQL,
			spell: spell.Insert(m.Post, map[string]any{
				"title":     "a",
				"extra":     map[string]any{"lang": "go"},
				"createdAt": expr.RawSQL("CURRENT_TIMESTAMP"),
				"summary":   "dropped",
			}),
			want:   "INSERT INTO `articles` (`title`, `extra`, `created_at`) VALUES (?, ?, CURRENT_TIMESTAMP)",
			values: []any{"a", `{"lang":"go"}`},
		},
		{
			name:    "insert unknown key",
			dialect: dialect.SQLite,
			spell:   spell.Insert(m.User, map[string]any{"nickname": "a", "zeta": 1}),
			want:    `INSERT INTO "users" ("nickname", "zeta") VALUES (?, ?)`,
			values:  []any{"a", 1},
		},
		{
			name:    "bulk insert",
			dialect: dialect.MySQL,
			spell: spell.BulkInsert(m.User, []map[string]any{
				{"nickname": "a"},
				{"email": "e", "nickname": "b"},
			}),
			want:   "INSERT INTO `users` (`email`, `nickname`) VALUES (?, ?), (?, ?)",
			values: []any{nil, "a", "e", "b"},
		},
		{
			name:    "bulk insert postgres",
			dialect: dialect.Postgres,
			spell: spell.BulkInsert(m.Like, []map[string]any{
				{"userId": 1, "articleId": 2},
				{"userId": 1, "articleId": 3},
			}).Returning(),
			want:   `INSERT INTO "likes" ("user_id", "article_id") VALUES ($1, $2), ($3, $4) RETURNING "id"`,
			values: []any{1, 2, 1, 3},
		},
		{
			name:    "upsert mysql",
			dialect: dialect.MySQL,
			spell:   spell.Upsert(m.User, map[string]any{"email": "e", "nickname": "a"}),
			want:    "INSERT INTO `users` (`email`, `nickname`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `id` = LAST_INSERT_ID(`id`), `nickname` = VALUES(`nickname`)",
			values:  []any{"e", "a"},
		},
		{
			name:    "upsert postgres",
			dialect: dialect.Postgres,
			spell:   spell.Upsert(m.User, map[string]any{"email": "e", "nickname": "a"}),
			want:    `INSERT INTO "users" ("email", "nickname") VALUES ($1, $2) ON CONFLICT ("email") DO UPDATE SET "nickname" = EXCLUDED."nickname"`,
			values:  []any{"e", "a"},
		},
		{
			name:    "upsert sqlite returning",
			dialect: dialect.SQLite,
			spell:   spell.Upsert(m.User, map[string]any{"email": "e", "nickname": "a"}).Returning("id"),
			want:    `INSERT INTO "users" ("email", "nickname") VALUES (?, ?) ON CONFLICT ("email") DO UPDATE SET "nickname" = EXCLUDED."nickname" RETURNING "id"`,
			values:  []any{"e", "a"},
		},
		{
			name:    "upsert by primary key",
			dialect: dialect.Postgres,
			spell:   spell.Upsert(m.User, map[string]any{"id": 1, "email": "e", "createdAt": created}),
			want:    `INSERT INTO "users" ("id", "email", "created_at") VALUES ($1, $2, $3) ON CONFLICT ("id") DO UPDATE SET "email" = EXCLUDED."email"`,
			values:  []any{1, "e", created},
		},
		{
			name:    "upsert mysql by primary key",
			dialect: dialect.MySQL,
			spell:   spell.Upsert(m.User, map[string]any{"id": 1, "email": "e"}),
			want:    "INSERT INTO `users` (`id`, `email`) VALUES (?, ?) ON DUPLICATE KEY UPDATE `id` = LAST_INSERT_ID(`id`), `email` = VALUES(`email`)",
			values:  []any{1, "e"},
		},
		{
			name:    "upsert skips sharding key",
			dialect: dialect.Postgres,
			spell:   spell.Upsert(m.Like, map[string]any{"userId": 1, "articleId": 2}),
			want:    `INSERT INTO "likes" ("user_id", "article_id") VALUES ($1, $2) ON CONFLICT ("id") DO UPDATE SET "article_id" = EXCLUDED."article_id"`,
			values:  []any{1, 2},
		},
		{
			name:    "upsert explicit keys",
			dialect: dialect.SQLite,
			spell: spell.Upsert(m.Like, map[string]any{"userId": 1, "articleId": 2, "createdAt": created}).
				UniqueKeys("userId", "articleId").
				UpdateOnDuplicate("createdAt"),
			want:   `INSERT INTO "likes" ("user_id", "article_id", "created_at") VALUES (?, ?, ?) ON CONFLICT ("user_id", "article_id") DO UPDATE SET "created_at" = EXCLUDED."created_at"`,
			values: []any{1, 2, created},
		},
		{
			name:    "upsert nothing to update",
			dialect: dialect.Postgres,
			spell:   spell.Upsert(m.User, map[string]any{"email": "e"}),
			want:    `INSERT INTO "users" ("email") VALUES ($1) ON CONFLICT ("email") DO NOTHING`,
			values:  []any{"e"},
		},
		{
			name:    "update",
			dialect: dialect.MySQL,
			spell:   spell.Update(m.Post, map[string]any{"title": "a"}).Increment("wordCount", 1).Where(expr.Cond{"id": 1}),
			want:    "UPDATE `articles` SET `title` = ?, `word_count` = `word_count` + ? WHERE `id` = ? AND `deleted_at` IS NULL",
			values:  []any{"a", 1, 1},
		},
		{
			name:    "update increment by column",
			dialect: dialect.MySQL,
			spell:   spell.Update(m.Post, map[string]any{"word_count": 3}).Increment("word_count", 1).Where(expr.Cond{"id": 1}),
			want:    "UPDATE `articles` SET `word_count` = `word_count` + ? WHERE `id` = ? AND `deleted_at` IS NULL",
			values:  []any{1, 1},
		},
		{
			name:    "update decrement returning",
			dialect: dialect.Postgres,
			spell:   spell.Update(m.Post, nil).Decrement("wordCount", "2").Where(expr.Cond{"id": 1}).Returning("id", "wordCount"),
			want:    `UPDATE "articles" SET "word_count" = "word_count" - $1 WHERE "id" = $2 AND "deleted_at" IS NULL RETURNING "id", "word_count"`,
			values:  []any{int64(2), 1},
		},
		{
			name:    "update raw with hint",
			dialect: dialect.MySQL,
			spell: spell.Update(m.User, map[string]any{"createdAt": expr.RawSQL("NOW()")}).
				Optimizer("NO_INDEX_MERGE(users)").
				Where("nickname like ?", "a%"),
			want:   "UPDATE /*+ NO_INDEX_MERGE(users) */ `users` SET `created_at` = NOW() WHERE `nickname` LIKE ?",
			values: []any{"a%"},
		},
		{
			name:    "update subquery value",
			dialect: dialect.Postgres,
			spell: spell.Update(m.User, map[string]any{
				"nickname": spell.Select(m.Post).Unparanoid().Columns("title").Where(expr.Cond{"id": 9}).Limit(1),
			}).Where(expr.Cond{"id": 1}),
			want:   `UPDATE "users" SET "nickname" = (SELECT "title" FROM "articles" WHERE "id" = $1 LIMIT 1) WHERE "id" = $2`,
			values: []any{9, 1},
		},
		{
			name:    "update sharded",
			dialect: dialect.MySQL,
			spell:   spell.Update(m.Like, map[string]any{"articleId": 3}).Where(expr.Cond{"userId": 1, "id": 2}),
			want:    "UPDATE `likes` SET `article_id` = ? WHERE `id` = ? AND `user_id` = ?",
			values:  []any{3, 2, 1},
		},
		{
			name:    "delete all",
			dialect: dialect.MySQL,
			spell:   spell.Delete(m.User),
			want:    "DELETE FROM `users`",
		},
		{
			name:    "delete paranoid",
			dialect: dialect.SQLite,
			spell:   spell.Delete(m.Comment).Where(expr.Cond{"postId": []int{1, 2}}),
			want:    `DELETE FROM "comments" WHERE "post_id" IN (?, ?) AND "deleted_at" IS NULL`,
			values:  []any{1, 2},
		},
		{
			name:    "delete returning",
			dialect: dialect.Postgres,
			spell:   spell.Delete(m.User).Where(expr.Cond{"id": 1}).Returning(),
			want:    `DELETE FROM "users" WHERE "id" = $1 RETURNING "id"`,
			values:  []any{1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := mustBook(t, tt.dialect).Format(tt.spell)
			require.NoError(t, err)
			assert.Equal(t, tt.want, st.SQL)
			if len(tt.values) == 0 {
				assert.Empty(t, st.Values)
				return
			}
			assert.Equal(t, tt.values, st.Values)
		})
	}
}

func TestConflictKeys(t *testing.T) {
	m := schematest.New()
	tests := []struct {
		name string
		set  map[string]any
		want []string
	}{
		{name: "primary key wins", set: map[string]any{"email": "e", "id": 1}, want: []string{"id"}},
		{name: "unique attribute", set: map[string]any{"email": "e", "nickname": "n"}, want: []string{"email"}},
		{name: "fallback", set: map[string]any{"nickname": "n"}, want: []string{"id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := spell.Upsert(m.User, tt.set).Build()
			require.NoError(t, err)
			c := newCompiler(MySQLRules(), q, new(int))
			assert.Equal(t, tt.want, c.conflictKeys(columnsOf(m.User, q.Sets())))
		})
	}
}

func TestRulesUpsert(t *testing.T) {
	_, err := MySQLRules().Upsert([]string{"id"}, nil, "")
	require.Error(t, err)
	_, err = PostgresRules().Upsert(nil, []string{"a"}, "id")
	require.Error(t, err)
	clause, err := MySQLRules().Upsert([]string{"id"}, []string{"id", "name"}, "id")
	require.NoError(t, err)
	assert.Equal(t, "ON DUPLICATE KEY UPDATE `id` = VALUES(`id`), `name` = VALUES(`name`)", clause)
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, "`a``b`", MySQLRules().QuoteIdent("a`b"))
	assert.Equal(t, `"a""b"`, PostgresRules().QuoteIdent(`a"b`))
	assert.Equal(t, `"users"`, SQLiteRules().QuoteIdent("users"))
	assert.Equal(t, "$3", PostgresRules().Placeholder(3))
	assert.Equal(t, "?", SQLiteRules().Placeholder(3))
}
