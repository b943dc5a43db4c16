package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekrich/spark/pkg/config"
	"github.com/ekrich/spark/pkg/ingest"
	"github.com/ekrich/spark/pkg/json"
	"github.com/ekrich/spark/pkg/logger"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "sparktab",
		Short: "sparktab - Convert local records into Arrow tables",
		Long: `sparktab converts newline-delimited JSON records into a single Arrow
record batch, with Spark-style schema inference and DDL schema support.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("sparktab v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var (
		profilePath string
		confs       []string
		logLevel    string
		inferJSON   bool
	)

	inferCmd := &cobra.Command{
		Use:   "infer [file]",
		Short: "Infer a schema from NDJSON records",
		Long: `Infer a schema from newline-delimited JSON records and print it in
DDL form. Reads from stdin when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := buildSession(profilePath, confs, logLevel)
			if err != nil {
				return err
			}
			records, err := readRecords(inputReader(args))
			if err != nil {
				return err
			}
			return runInfer(session, records, inferJSON)
		},
	}
	addSessionFlags(inferCmd, &profilePath, &confs, &logLevel)
	inferCmd.Flags().BoolVar(&inferJSON, "json", false, "print the schema as JSON instead of DDL")
	root.AddCommand(inferCmd)

	var (
		schemaDDL string
		columns   []string
		output    string
		compress  bool
	)

	convertCmd := &cobra.Command{
		Use:   "convert [file]",
		Short: "Convert NDJSON records into an Arrow IPC stream",
		Long: `Convert newline-delimited JSON records into an Arrow IPC stream.
Reads from stdin when no file is given and writes to stdout by default.

Example:
  sparktab convert data.ndjson --schema "name string, age bigint" -o out.arrow`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := buildSession(profilePath, confs, logLevel)
			if err != nil {
				return err
			}
			records, err := readRecords(inputReader(args))
			if err != nil {
				return err
			}
			return runConvert(session, records, schemaDDL, columns, output, compress)
		},
	}
	addSessionFlags(convertCmd, &profilePath, &confs, &logLevel)
	convertCmd.Flags().StringVarP(&schemaDDL, "schema", "s", "", "schema in DDL form (e.g. \"a bigint, b string\")")
	convertCmd.Flags().StringSliceVarP(&columns, "columns", "c", nil, "column names to apply positionally")
	convertCmd.Flags().StringVarP(&output, "output", "o", "-", "output file (- for stdout)")
	convertCmd.Flags().BoolVar(&compress, "compress", false, "compress the stream with zstd")
	root.AddCommand(convertCmd)

	if err := root.Execute(); err != nil {
		logger.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}

func addSessionFlags(cmd *cobra.Command, profilePath *string, confs *[]string, logLevel *string) {
	cmd.Flags().StringVar(profilePath, "profile", "", "YAML profile with session configuration")
	cmd.Flags().StringArrayVar(confs, "conf", nil, "session configuration override (key=value)")
	cmd.Flags().StringVar(logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

// buildSession assembles a local session from the defaults, an optional
// profile file, and --conf overrides, and initializes logging.
func buildSession(profilePath string, confs []string, logLevel string) (ingest.Session, error) {
	configs := config.Defaults()

	if profilePath != "" {
		var profile config.Profile
		if err := config.Load(profilePath, &profile); err != nil {
			return nil, err
		}
		for k, v := range profile.Configs {
			configs[k] = v
		}
		if profile.LogLevel != "" {
			logLevel = profile.LogLevel
		}
	}

	for _, conf := range confs {
		key, value, found := strings.Cut(conf, "=")
		if !found {
			return nil, fmt.Errorf("invalid --conf entry %q, want key=value", conf)
		}
		configs[key] = value
	}

	if err := logger.Init(logger.Config{
		Level:       logLevel,
		Encoding:    "json",
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return nil, err
	}

	return ingest.NewLocalSession(configs), nil
}

func inputReader(args []string) (io.ReadCloser, string) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), "stdin"
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, args[0]
	}
	return f, args[0]
}

// readRecords decodes newline-delimited JSON into generic records.
// Numbers are kept as json.Number so integer values stay integral.
func readRecords(r io.ReadCloser, name string) ([]interface{}, error) {
	if r == nil {
		return nil, fmt.Errorf("cannot open input %s", name)
	}
	defer r.Close()

	var records []interface{}
	dec := json.NewDecoder(r)
	for dec.More() {
		var rec interface{}
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", len(records), err)
		}
		records = append(records, rec)
	}
	logger.Debug("read input records", zap.Int("count", len(records)), zap.String("input", name))
	return records, nil
}

// schemaField is the JSON shape of one inferred field.
type schemaField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

func runInfer(session ingest.Session, records []interface{}, asJSON bool) error {
	pipeline := ingest.NewPipeline(session, logger.Get())
	tbl, st, err := pipeline.CreateTable(records, nil)
	if err != nil {
		return err
	}
	defer tbl.Release()

	if asJSON {
		fields := make([]schemaField, len(st.Fields))
		for i, f := range st.Fields {
			fields[i] = schemaField{Name: f.Name, Type: f.Type.TypeName(), Nullable: f.Nullable}
		}
		out, err := json.Marshal(fields)
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(st.TypeName())
	return nil
}

func runConvert(session ingest.Session, records []interface{}, schemaDDL string, columns []string, output string, compress bool) error {
	var schemaArg interface{}
	switch {
	case schemaDDL != "":
		schemaArg = schemaDDL
	case len(columns) > 0:
		schemaArg = columns
	}

	pipeline := ingest.NewPipeline(session, logger.Get())
	tbl, st, err := pipeline.CreateTable(records, schemaArg)
	if err != nil {
		return err
	}
	defer tbl.Release()

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	if compress {
		err = tbl.WriteIPCZstd(w)
	} else {
		err = tbl.WriteIPC(w)
	}
	if err != nil {
		return err
	}

	logger.Info("wrote table",
		zap.Int64("rows", tbl.NumRows()),
		zap.Int("columns", tbl.NumCols()),
		zap.String("schema", st.TypeName()),
		zap.Bool("compressed", compress),
		zap.String("output", output))
	return nil
}
