// Command fiberctl exercises the update engine from the command line:
// it reads a base record and an operations batch as JSON, applies or
// validates them, and prints the result as JSON (base spec §4.2's "check"
// dry-run reading is wired here as the check subcommand, per SPEC_FULL.md
// §4.2).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fiberdb/core/internal/obslog"
	"github.com/fiberdb/core/internal/record"
	"github.com/fiberdb/core/internal/update"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "check":
		err = runCheck(os.Args[2:])
	case "apply":
		err = runApply(os.Args[2:])
	case "upsert-apply":
		err = runUpsertApply(os.Args[2:])
	case "upsert-squash":
		err = runUpsertSquash(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fiberctl:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: fiberctl <command> [flags]

commands:
  check          validate an operations batch against a base record
  apply          apply an operations batch to a base record
  upsert-apply   like apply, but an omitted -base means "start empty"
  upsert-squash  collapse a pending batch onto a prior one`)
}

// commonFlags are shared by every subcommand: the field-name dictionary
// used to resolve dotted path selectors, the caller's index-base
// convention, and an optional cap on operations per batch.
type commonFlags struct {
	dictPath  string
	indexBase int
	maxOps    int
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.dictPath, "dict", "", "path to a JSON array of field names, resolving bare path selectors")
	fs.IntVar(&c.indexBase, "index-base", 0, "index base for integer selectors (0 or 1)")
	fs.IntVar(&c.maxOps, "max-ops", 0, "maximum operations accepted per batch (0 = unlimited)")
}

func (c *commonFlags) options() ([]update.Option, error) {
	opts := []update.Option{update.WithMaxOpsPerBatch(c.maxOps)}

	switch c.indexBase {
	case 0:
		opts = append(opts, update.WithIndexBase(update.ZeroBased))
	case 1:
		opts = append(opts, update.WithIndexBase(update.OneBased))
	default:
		return nil, fmt.Errorf("index-base must be 0 or 1, got %d", c.indexBase)
	}

	if c.dictPath != "" {
		dict, err := readDictionary(c.dictPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, update.WithDictionary(dict))
	}
	return opts, nil
}

func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	basePath := fs.String("base", "", "path to a JSON base record")
	batchPath := fs.String("batch", "", "path to a JSON operations batch")
	dryRun := fs.Bool("dry-run", true, "also simulate the result, surfacing apply-time failures")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *batchPath == "" {
		return fmt.Errorf("check requires -base and -batch")
	}

	base, err := encodeJSONFile(*basePath)
	if err != nil {
		return err
	}
	batch, err := encodeJSONFile(*batchPath)
	if err != nil {
		return err
	}

	opts, err := cf.options()
	if err != nil {
		return err
	}
	if *dryRun {
		opts = append(opts, update.WithDryRun())
	}

	if err := update.Check(base, batch, opts...); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	basePath := fs.String("base", "", "path to a JSON base record")
	batchPath := fs.String("batch", "", "path to a JSON operations batch")
	outPath := fs.String("out", "", "path to write the resulting JSON record (default: stdout)")
	stats := fs.Bool("stats", false, "print batch metrics (op count, column mask, result size) to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *basePath == "" || *batchPath == "" {
		return fmt.Errorf("apply requires -base and -batch")
	}

	base, err := encodeJSONFile(*basePath)
	if err != nil {
		return err
	}
	batch, err := encodeJSONFile(*batchPath)
	if err != nil {
		return err
	}

	opts, err := cf.options()
	if err != nil {
		return err
	}

	var out []byte
	if *stats {
		var st update.Stats
		out, st, err = update.ApplyWithStats(base, batch, opts...)
		if err == nil {
			fmt.Fprintf(os.Stderr, "ops=%d mask=%#x bytes=%d\n", st.OpCount, st.ColumnMask, st.ResultSize)
		}
	} else {
		out, err = update.Apply(base, batch, opts...)
	}
	if err != nil {
		return err
	}
	return writeJSONRecord(*outPath, out)
}

func runUpsertApply(args []string) error {
	fs := flag.NewFlagSet("upsert-apply", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	basePath := fs.String("base", "", "path to a JSON base record (omit for an absent/empty base)")
	batchPath := fs.String("batch", "", "path to a JSON operations batch")
	outPath := fs.String("out", "", "path to write the resulting JSON record (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *batchPath == "" {
		return fmt.Errorf("upsert-apply requires -batch")
	}

	var base []byte
	if *basePath != "" {
		var err error
		base, err = encodeJSONFile(*basePath)
		if err != nil {
			return err
		}
	}
	batch, err := encodeJSONFile(*batchPath)
	if err != nil {
		return err
	}

	opts, err := cf.options()
	if err != nil {
		return err
	}
	out, err := update.UpsertApply(base, batch, obslog.NewStumpy(obslog.LevelWarn), opts...)
	if err != nil {
		return err
	}
	return writeJSONRecord(*outPath, out)
}

func runUpsertSquash(args []string) error {
	fs := flag.NewFlagSet("upsert-squash", flag.ExitOnError)
	var cf commonFlags
	cf.register(fs)
	priorPath := fs.String("prior", "", "path to a JSON prior operations batch")
	nextPath := fs.String("next", "", "path to a JSON next operations batch")
	outPath := fs.String("out", "", "path to write the squashed JSON batch (default: stdout)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *priorPath == "" || *nextPath == "" {
		return fmt.Errorf("upsert-squash requires -prior and -next")
	}

	prior, err := encodeJSONFile(*priorPath)
	if err != nil {
		return err
	}
	next, err := encodeJSONFile(*nextPath)
	if err != nil {
		return err
	}

	opts, err := cf.options()
	if err != nil {
		return err
	}
	out, err := update.UpsertSquash(prior, next, opts...)
	if err != nil {
		return err
	}
	return writeJSONRecord(*outPath, out)
}

// encodeJSONFile reads path as JSON and returns it re-encoded in the
// self-describing binary record format the update engine operates on.
func encodeJSONFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	v, err := decodeJSONValue(raw)
	if err != nil {
		return nil, err
	}
	return record.Encode(make([]byte, 0, record.Sizeof(v)), v), nil
}

// readDictionary reads path as a JSON array of field names.
func readDictionary(path string) (record.Dictionary, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return record.Dictionary{}, err
	}
	var fields []string
	if err := json.Unmarshal(b, &fields); err != nil {
		return record.Dictionary{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return record.NewDictionary(fields), nil
}

// writeJSONRecord decodes a binary record back to JSON and writes it to
// path, or to stdout when path is empty.
func writeJSONRecord(path string, b []byte) error {
	v, _, err := record.Decode(b)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(encodeJSONValue(v), "", "  ")
	if err != nil {
		return err
	}
	out = append(out, '\n')

	if path == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}
