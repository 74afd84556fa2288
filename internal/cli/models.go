package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/grimoire/schema"
	"github.com/syssam/grimoire/schema/load"
)

// ModelsOptions holds flags for the models command.
type ModelsOptions struct {
	*RootOptions
	YAML bool
}

// ModelSummary describes one model of the schema.
type ModelSummary struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	Alias      string   `json:"alias"`
	PrimaryKey string   `json:"primaryKey"`
	Paranoid   bool     `json:"paranoid"`
	Columns    []string `json:"columns"`
	Edges      []string `json:"edges,omitempty"`
}

// ModelList is the output of the models command.
type ModelList []ModelSummary

// String renders one block per model.
func (l ModelList) String() string {
	var b strings.Builder
	for _, m := range l {
		fmt.Fprintf(&b, "%s (%s AS %s)\n", m.Name, m.Table, m.Alias)
		fmt.Fprintf(&b, "  columns: %s\n", strings.Join(m.Columns, ", "))
		if len(m.Edges) > 0 {
			fmt.Fprintf(&b, "  edges: %s\n", strings.Join(m.Edges, ", "))
		}
	}
	return b.String()
}

// NewModelsCommand creates the models command.
func NewModelsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModelsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "models",
		Short:         "List the models of the schema",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.YAML, "yaml", false, "print the normalized schema document")

	return cmd
}

func runModels(opts *ModelsOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	reg, err := load.Load(opts.Schema)
	if err != nil {
		return formatter.Error(ExitCommandError, "loading schema", err)
	}
	if opts.YAML {
		buf, err := load.Marshal(reg)
		if err != nil {
			return formatter.Error(ExitFailure, "encoding schema", err)
		}
		_, err = cmd.OutOrStdout().Write(buf)
		return err
	}
	list := make(ModelList, 0, len(reg.Models()))
	for _, m := range reg.Models() {
		list = append(list, summarize(m))
	}
	return formatter.Success(list)
}

func summarize(m *schema.Model) ModelSummary {
	s := ModelSummary{
		Name:       m.Name(),
		Table:      m.Table(),
		Alias:      m.TableAlias(),
		PrimaryKey: m.PrimaryKey(),
		Paranoid:   m.Paranoid(),
		Columns:    m.Columns(),
	}
	for _, e := range m.Edges() {
		s.Edges = append(s.Edges, fmt.Sprintf("%s %s %s", e.Name, e.Kind, e.Type))
	}
	return s
}
