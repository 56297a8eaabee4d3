// Command idxkeys validates index definitions and computes, decodes and
// stores index keys offline.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/andreyvit/docindex"
	"github.com/andreyvit/docindex/schema"
	"github.com/andreyvit/docindex/value"
	"github.com/spf13/cobra"
)

type Cmd struct {
	schemaPath  string
	indexesPath string
	optionsPath string
	verbose     bool

	table   *schema.Table
	defs    []*docindex.Definition
	opts    docindex.Options
	logger  *slog.Logger
	invalid int
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &Cmd{}
	rootCmd := &cobra.Command{
		Use:               "idxkeys",
		Short:             "Index key tool",
		SilenceUsage:      true,
		PersistentPreRunE: c.load,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&c.schemaPath, "schema", "s", "", "table schema YAML file")
	pf.StringVarP(&c.indexesPath, "indexes", "i", "", "index definitions YAML file")
	pf.StringVar(&c.optionsPath, "options", "", "options YAML file")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "log at debug level")
	_ = rootCmd.MarkPersistentFlagRequired("schema")
	_ = rootCmd.MarkPersistentFlagRequired("indexes")

	rootCmd.AddCommand(c.validateCmd(), c.extractCmd(), c.decodeCmd(), c.loadCmd())
	return rootCmd
}

func (c *Cmd) load(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if c.verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if c.optionsPath != "" {
		opts, err := docindex.LoadOptions(c.optionsPath)
		if err != nil {
			return err
		}
		c.opts = opts
	}
	c.opts.Logger = c.logger
	c.opts.Verbose = c.opts.Verbose || c.verbose

	var err error
	c.table, err = schema.LoadTableSpec(c.schemaPath)
	if err != nil {
		return err
	}
	c.defs, err = docindex.LoadDefinitions(c.indexesPath)
	return err
}

func (c *Cmd) compile(name string) (*docindex.Index, error) {
	for _, def := range c.defs {
		if name == "" || def.Name == name {
			return docindex.Compile(def, c.table, c.opts)
		}
	}
	return nil, fmt.Errorf("%w: %s", docindex.ErrIndexNotFound, name)
}

func (c *Cmd) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Compile every index definition against the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			for _, def := range c.defs {
				idx, err := docindex.Compile(def, c.table, c.opts)
				if err != nil {
					c.invalid++
					fmt.Fprintf(w, "FAIL %s: %v\n", def.Name, err)
					continue
				}
				fmt.Fprintf(w, "ok   %s (%s)\n", def.Name, describe(idx))
				for _, f := range idx.Fields() {
					fmt.Fprintf(w, "       %s\n", f)
				}
			}
			if c.invalid > 0 {
				return fmt.Errorf("%d of %d indexes are invalid", c.invalid, len(c.defs))
			}
			return nil
		},
	}
}

func describe(idx *docindex.Index) string {
	s := idx.Version().String()
	if idx.IsMultiKey() {
		s += ", multi-key"
	}
	if idx.IsNestedMultiKey() {
		s += ", nested"
	}
	if idx.IsUnique() {
		s += ", unique"
	}
	if idx.GeoField() != nil {
		s += ", geo"
	}
	return s
}

func (c *Cmd) extractCmd() *cobra.Command {
	var indexName string
	var tuples bool
	cmd := &cobra.Command{
		Use:   "extract [rows.jsonl]",
		Short: "Print the index keys of JSON rows, one row per line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := c.compile(indexName)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			return eachRow(cmd, args, func(line int, rec *value.Record) error {
				if tuples {
					ts, err := idx.ExtractTuples(rec)
					if err != nil {
						return fmt.Errorf("line %d: %w", line, err)
					}
					for _, t := range ts {
						fmt.Fprintf(w, "%d\t%s\n", line, docindex.FormatTuple(t))
					}
					return nil
				}
				keys, err := idx.Extract(rec)
				if err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				for _, k := range keys {
					str, err := idx.FormatKey(k)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%d\t%x\t%s\n", line, k, str)
				}
				return nil
			}, c.table)
		},
	}
	cmd.Flags().StringVar(&indexName, "index", "", "index name (default: the first one)")
	cmd.Flags().BoolVar(&tuples, "tuples", false, "print tuples in generation order instead of encoded keys")
	return cmd
}

func (c *Cmd) decodeCmd() *cobra.Command {
	var indexName string
	var partial bool
	cmd := &cobra.Command{
		Use:   "decode HEXKEY...",
		Short: "Decode encoded index keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := c.compile(indexName)
			if err != nil {
				return err
			}
			for _, arg := range args {
				raw, err := hex.DecodeString(arg)
				if err != nil {
					return fmt.Errorf("%s: %w", arg, err)
				}
				t, err := idx.Deserialize(raw, partial)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), docindex.FormatTuple(t))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&indexName, "index", "", "index name (default: the first one)")
	cmd.Flags().BoolVar(&partial, "partial", false, "accept keys that end early")
	return cmd
}

func (c *Cmd) loadCmd() *cobra.Command {
	var dbPath string
	var dump bool
	cmd := &cobra.Command{
		Use:   "load [rows.jsonl]",
		Short: "Store JSON rows with all indexes in a database file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var store *docindex.Store
			var err error
			if dbPath == "" {
				store, err = docindex.OpenMemory(c.table, c.opts)
			} else {
				store, err = docindex.Open(dbPath, c.table, c.opts)
			}
			if err != nil {
				return err
			}
			defer store.Close()

			for _, def := range c.defs {
				if store.Index(def.Name) != nil {
					continue
				}
				if _, err := store.AddIndex(cmd.Context(), def); err != nil {
					return err
				}
			}
			var n int
			err = eachRow(cmd, args, func(line int, rec *value.Record) error {
				if _, err := store.Put(rec); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
				n++
				return nil
			}, c.table)
			if err != nil {
				return err
			}
			c.logger.Info("loaded rows", "rows", n)
			if dump {
				s, err := store.Dump(docindex.DumpAll)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database file (default: in memory)")
	cmd.Flags().BoolVar(&dump, "dump", false, "print the store contents afterwards")
	return cmd
}

func eachRow(cmd *cobra.Command, args []string, f func(line int, rec *value.Record) error, table *schema.Table) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer file.Close()
		in = file
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var line int
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		v, err := value.ParseJSON(sc.Bytes())
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		rec, err := table.Conform(v)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := f(line, rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
