package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grimoire"
)

var schemaFile = filepath.Join("testdata", "schema.yaml")

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "grimoire", cmd.Use)

	for _, name := range []string{"compile", "models"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
	schema := cmd.PersistentFlags().Lookup("schema")
	require.NotNil(t, schema)
	assert.Equal(t, "s", schema.Shorthand)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "xml", "models", "--schema", schemaFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "single dialect",
			args: []string{"--dialect", "postgres", filepath.Join("testdata", "select.yaml")},
			want: "-- postgres\n" +
				`SELECT * FROM "users" WHERE "nick_name" = $1 LIMIT 1;` + "\n" +
				"-- values: [Leah]\n",
		},
		{
			name: "all dialects",
			args: []string{filepath.Join("testdata", "select.yaml")},
			want: "-- mysql\n" +
				"SELECT * FROM `users` WHERE `nick_name` = ? LIMIT 1;\n" +
				"-- values: [Leah]\n" +
				"-- postgres\n" +
				`SELECT * FROM "users" WHERE "nick_name" = $1 LIMIT 1;` + "\n" +
				"-- values: [Leah]\n" +
				"-- sqlite\n" +
				`SELECT * FROM "users" WHERE "nick_name" = ? LIMIT 1;` + "\n" +
				"-- values: [Leah]\n",
		},
		{
			name: "dialect alias",
			args: []string{"-d", "pg", filepath.Join("testdata", "insert.yaml")},
			want: "-- postgres\n" +
				`INSERT INTO "users" ("email", "nick_name") VALUES ($1, $2) RETURNING "id";` + "\n" +
				"-- values: [leah@example.com Leah]\n",
		},
		{
			name: "returning ignored",
			args: []string{"-d", "mysql", filepath.Join("testdata", "insert.yaml")},
			want: "-- mysql\n" +
				"INSERT INTO `users` (`email`, `nick_name`) VALUES (?, ?);\n" +
				"-- values: [leah@example.com Leah]\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, append([]string{"--schema", schemaFile, "compile"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestCompileJSON(t *testing.T) {
	out, _, err := execute(t, "--schema", schemaFile, "--format", "json", "compile", "-d", "sqlite", filepath.Join("testdata", "select.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   []Compiled `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "sqlite", resp.Data[0].Dialect)
	assert.Equal(t, `SELECT * FROM "users" WHERE "nick_name" = ? LIMIT 1`, resp.Data[0].SQL)
	assert.Equal(t, []any{"Leah"}, resp.Data[0].Values)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{
			name: "missing schema",
			args: []string{"--schema", filepath.Join("testdata", "missing.yaml"), "compile", filepath.Join("testdata", "select.yaml")},
			code: ExitCommandError,
			msg:  "loading schema",
		},
		{
			name: "missing query",
			args: []string{"--schema", schemaFile, "compile", filepath.Join("testdata", "missing.yaml")},
			code: ExitCommandError,
			msg:  "loading query",
		},
		{
			name: "unknown dialect",
			args: []string{"--schema", schemaFile, "compile", "-d", "oracle", filepath.Join("testdata", "select.yaml")},
			code: ExitCommandError,
			msg:  "invalid dialect",
		},
		{
			name: "unknown model",
			args: []string{"--schema", schemaFile, "compile", filepath.Join("testdata", "unknown_model.yaml")},
			code: ExitFailure,
			msg:  "building query",
		},
		{
			name: "parse error",
			args: []string{"--schema", schemaFile, "compile", filepath.Join("testdata", "invalid.yaml")},
			code: ExitFailure,
			msg:  "building query",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errOut, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, ExitCode(err))
			assert.Contains(t, errOut, tt.msg)
		})
	}

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "--schema", schemaFile, "--format", "json", "compile", filepath.Join("testdata", "invalid.yaml"))
		require.Error(t, err)
		assert.True(t, grimoire.IsParseError(err))
		var resp Response
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Contains(t, resp.Error, "building query")
	})
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery([]byte(`
model: Post
columns: [id, title]
where: {title: {$like: "%go%"}}
with: [comments]
order: {id: desc}
limit: 10
offset: 20
`))
	require.NoError(t, err)
	assert.Equal(t, "Post", q.Model)
	assert.Equal(t, []string{"id", "title"}, q.Columns)
	assert.Equal(t, []string{"comments"}, q.With)
	require.NotNil(t, q.Limit)
	assert.Equal(t, 10, *q.Limit)
	assert.Equal(t, 20, q.Offset)

	for name, input := range map[string]string{
		"empty":         "",
		"without model": "command: select",
		"unknown field": "model: Post\nlimits: 1",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuery([]byte(input))
			require.Error(t, err)
		})
	}
}

func TestOrderOf(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    any
		wantErr bool
	}{
		{"string", "id desc", "id desc", false},
		{"list", []any{"title", "id desc"}, "title, id desc", false},
		{"object", map[string]any{"id": "desc"}, map[string]string{"id": "desc"}, false},
		{"invalid list", []any{1}, nil, true},
		{"invalid direction", map[string]any{"id": true}, nil, true},
		{"invalid type", 42, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := orderOf(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModels(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, _, err := execute(t, "--schema", schemaFile, "models")
		require.NoError(t, err)
		assert.Contains(t, out, "Post (articles AS posts)\n")
		assert.Contains(t, out, "  edges: comments hasMany Comment\n")
		assert.Contains(t, out, "User (users AS users)\n  columns: id, email, nick_name\n")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := execute(t, "--schema", schemaFile, "--format", "json", "models")
		require.NoError(t, err)
		var resp struct {
			Status string         `json:"status"`
			Data   []ModelSummary `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data, 3)
		assert.Equal(t, "Post", resp.Data[0].Name)
		assert.True(t, resp.Data[0].Paranoid)
		assert.Equal(t, "id", resp.Data[2].PrimaryKey)
		assert.False(t, resp.Data[2].Paranoid)
	})

	t.Run("yaml", func(t *testing.T) {
		out, _, err := execute(t, "--schema", schemaFile, "models", "--yaml")
		require.NoError(t, err)
		assert.Contains(t, out, "- name: Post\n")
		assert.Contains(t, out, "column: nick_name")
	})

	t.Run("missing schema", func(t *testing.T) {
		_, _, err := execute(t, "--schema", filepath.Join("testdata", "missing.yaml"), "models")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, ExitCode(err))
	})
}
