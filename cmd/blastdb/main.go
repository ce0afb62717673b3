// Command blastdb decodes a legacy BLAST-style protein database (index +
// header + sequence file trio) and writes the selected records as JSON.
//
// Grounded on cmd/main.go in _examples/BuBitt-DRD4-F2 for the CLI
// skeleton: flag parsing, config-file loading with flag override, and the
// timestamped/terminal-aware charmbracelet/log setup.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"blastdb/internal/config"
	"blastdb/internal/oidset"
	"blastdb/internal/record"
)

var version = "0.1.0"

// timestampWriter prefixes each flushed line with an RFC3339 timestamp.
type timestampWriter struct {
	w   io.Writer
	buf bytes.Buffer
	mu  sync.Mutex
}

func (t *timestampWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.buf.Write(p)
	total := n
	for {
		line, err := t.buf.ReadString('\n')
		if err != nil {
			break
		}
		ts := time.Now().Format(time.RFC3339)
		if _, err := t.w.Write([]byte(ts + " " + line)); err != nil {
			return total, err
		}
	}
	return total, nil
}

// terminalWriter exposes Fd so charmbracelet/log can detect a TTY even
// when writes are routed through timestampWriter first.
type terminalWriter struct {
	w  io.Writer
	fd uintptr
}

func (tw *terminalWriter) Write(p []byte) (int, error) { return tw.w.Write(p) }
func (tw *terminalWriter) Fd() uintptr                  { return tw.fd }

// outputRecord is the JSON shape written per decoded record.
type outputRecord struct {
	OID      int             `json:"oid"`
	Title    string          `json:"title,omitempty"`
	SeqIDs   []outputSeqID   `json:"seqids,omitempty"`
	TaxID    *int64          `json:"taxid,omitempty"`
	Sequence string          `json:"sequence,omitempty"`
	Warning  string          `json:"warning,omitempty"`
	DefLines []outputDefLine `json:"deflines,omitempty"`
}

type outputDefLine struct {
	Title  string        `json:"title,omitempty"`
	SeqIDs []outputSeqID `json:"seqids,omitempty"`
	TaxID  *int64        `json:"taxid,omitempty"`
}

type outputSeqID struct {
	Type    string `json:"type"`
	Value   string `json:"value,omitempty"`
	Version *int64 `json:"version,omitempty"`
}

func toOutputRecord(rec record.Record) outputRecord {
	out := outputRecord{OID: rec.OID, Sequence: rec.Sequence, Warning: rec.Warning}
	for _, dl := range rec.DefLines {
		var ids []outputSeqID
		for _, id := range dl.SeqIDs {
			ids = append(ids, outputSeqID{Type: id.Type, Value: id.Value, Version: id.Version})
		}
		out.DefLines = append(out.DefLines, outputDefLine{Title: dl.Title, SeqIDs: ids, TaxID: dl.TaxID})
	}
	if len(rec.DefLines) > 0 {
		out.Title = rec.DefLines[0].Title
		out.TaxID = rec.DefLines[0].TaxID
		for _, id := range rec.DefLines[0].SeqIDs {
			out.SeqIDs = append(out.SeqIDs, outputSeqID{Type: id.Type, Value: id.Value, Version: id.Version})
		}
	}
	return out
}

func main() {
	os.Exit(run())
}

func run() int {
	indexFlag := flag.String("index", "", "path to the .pin index file (or its .zst-compressed form)")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	outFlag := flag.String("out", "", "output JSON file path (defaults to stdout)")
	oidsFlag := flag.String("oids", "", "OID selection, e.g. \"0-999,1500,2000-\" (default: all records)")
	concurrencyFlag := flag.Int("concurrency", 0, "max concurrent record decodes (default: unbounded)")
	verboseFlag := flag.Bool("verbose", false, "enable debug logging")
	logLevelFlag := flag.String("log-level", "", "log level: debug, info, warn, error")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("blastdb", version)
		return 0
	}

	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return 2
	}
	if *indexFlag != "" {
		cfg.IndexPath = *indexFlag
	}
	if *oidsFlag != "" {
		cfg.OIDRange = *oidsFlag
	}
	if *concurrencyFlag != 0 {
		cfg.Concurrency = *concurrencyFlag
	}
	if *logLevelFlag != "" {
		cfg.LogLevel = *logLevelFlag
	}

	logger := newLogger(cfg, *verboseFlag)

	if cfg.IndexPath == "" {
		logger.Error("no index path given; pass -index or set index_path in config.json")
		return 2
	}

	logger.Info("opening database", "index_path", cfg.IndexPath)
	db, err := record.Open(cfg.IndexPath)
	if err != nil {
		logger.Error("open database", "err", err)
		return 2
	}
	logger.Debug("database opened", "num_records", db.NumRecords(), "is_protein", db.Index.IsProtein)

	selection, err := resolveSelection(cfg.OIDRange, db.NumRecords())
	if err != nil {
		logger.Error("resolve oid selection", "err", err)
		return 2
	}
	logger.Info("decoding records", "selected", selection.Cardinality(), "total", db.NumRecords())

	records, warnings, err := decodeSelected(db, selection, cfg.Concurrency)
	if err != nil {
		logger.Error("decode records", "err", err)
		return 2
	}
	if warnings > 0 {
		logger.Warn("some records decoded with warnings", "count", warnings)
	}

	if err := writeOutput(cfg.OutputDir, *outFlag, records); err != nil {
		logger.Error("write output", "err", err)
		return 2
	}
	logger.Info("done", "records_written", len(records))
	return 0
}

func newLogger(cfg *config.Config, verbose bool) *log.Logger {
	var loggerOut io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			loggerOut = io.MultiWriter(os.Stderr, f)
		}
	}
	tw := &timestampWriter{w: loggerOut}
	termW := &terminalWriter{w: tw, fd: os.Stderr.Fd()}
	logger := log.New(termW)

	if verbose {
		logger.SetLevel(log.DebugLevel)
		return logger
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn", "warning":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	case "info", "":
		logger.SetLevel(log.InfoLevel)
	default:
		logger.SetLevel(log.InfoLevel)
		logger.Warn("unknown log level, defaulting to info", "provided", cfg.LogLevel)
	}
	return logger
}

func resolveSelection(oidRange string, numRecords int) (*oidset.Set, error) {
	if oidRange == "" {
		return oidset.All(uint32(numRecords)), nil
	}
	return oidset.Parse(oidRange, uint32(numRecords))
}

func decodeSelected(db *record.Database, selection *oidset.Set, concurrency int) ([]outputRecord, int, error) {
	oids := selection.Slice()

	results, err := db.DecodeSelected(context.Background(), oids, concurrency)
	if err != nil {
		return nil, 0, err
	}

	out := make([]outputRecord, len(results))
	warnings := 0
	for i, rec := range results {
		if rec.Warning != "" {
			warnings++
		}
		out[i] = toOutputRecord(rec)
	}
	return out, warnings, nil
}

func writeOutput(outputDir, outFlag string, records []outputRecord) error {
	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	path := outFlag
	if path == "" && outputDir != "" {
		path = outputDir
	}
	if path == "" {
		_, err := os.Stdout.Write(append(b, '\n'))
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
