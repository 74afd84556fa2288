package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/grimoire/dialect"
	"github.com/syssam/grimoire/schema/load"
	"github.com/syssam/grimoire/spellbook"
)

// Dialects lists the dialects compiled by --dialect all.
var Dialects = []string{dialect.MySQL, dialect.Postgres, dialect.SQLite}

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Dialect string
}

// Compiled is the statement of a query in one dialect.
type Compiled struct {
	Dialect string `json:"dialect"`
	SQL     string `json:"sql"`
	Values  []any  `json:"values"`
}

// CompileResult is the output of the compile command.
type CompileResult []Compiled

// String renders the statements one per dialect.
func (r CompileResult) String() string {
	var b strings.Builder
	for _, c := range r {
		fmt.Fprintf(&b, "-- %s\n%s;\n", c.Dialect, c.SQL)
		if len(c.Values) > 0 {
			fmt.Fprintf(&b, "-- values: %v\n", c.Values)
		}
	}
	return b.String()
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <query.yaml>",
		Short: "Compile a query description to SQL",
		Long: `Compile a YAML query description against the models of the schema
file and print the SQL and bound values of each requested dialect.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Dialect, "dialect", "d", "all", "target dialect (mysql|postgres|sqlite|all)")

	return cmd
}

func runCompile(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dialects := Dialects
	if opts.Dialect != "all" {
		d := dialect.Normalize(opts.Dialect)
		if _, err := spellbook.New(d); err != nil {
			return formatter.Error(ExitCommandError, "invalid dialect", err)
		}
		dialects = []string{d}
	}

	reg, err := load.Load(opts.Schema)
	if err != nil {
		return formatter.Error(ExitCommandError, "loading schema", err)
	}
	formatter.VerboseLog("Loaded %d model(s) from %s", len(reg.Models()), opts.Schema)

	desc, err := LoadQuery(path)
	if err != nil {
		return formatter.Error(ExitCommandError, "loading query", fmt.Errorf("%s: %w", path, err))
	}
	s, err := desc.Spell(reg)
	if err != nil {
		return formatter.Error(ExitFailure, "building query", err)
	}
	q, err := s.Build()
	if err != nil {
		return formatter.Error(ExitFailure, "building query", err)
	}

	result := make(CompileResult, 0, len(dialects))
	for _, d := range dialects {
		book, err := spellbook.New(d)
		if err != nil {
			return formatter.Error(ExitCommandError, "invalid dialect", err)
		}
		st, err := book.Compile(q)
		if err != nil {
			return formatter.Error(ExitFailure, "compiling "+d, err)
		}
		formatter.VerboseLog("Compiled %s %s for %s", q.Command(), q.Model().Name(), d)
		values := st.Values
		if values == nil {
			values = []any{}
		}
		result = append(result, Compiled{Dialect: d, SQL: st.SQL, Values: values})
	}
	return formatter.Success(result)
}
