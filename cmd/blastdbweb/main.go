// Command blastdbweb serves an HTTP viewer over a decoded legacy BLAST
// database, plus a small background job API for dumping an OID range to
// disk without blocking the request that submitted it.
//
// Grounded on cmd/web/main.go in _examples/BuBitt-DRD4-F2 for the overall
// shape: a template-rendering mux wrapped in a status/duration logging
// middleware, plus a submit/status/list job API (there, PSIPRED jobs;
// here, dump jobs). Background worker concurrency and request rate
// limiting are grounded on resource.Controller in
// _examples/hupe1980-vecgo/resource/controller.go, which pairs a
// golang.org/x/sync/semaphore.Weighted worker cap with a
// golang.org/x/time/rate.Limiter.
package main

import (
	"context"
	"embed"
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"blastdb/internal/config"
	"blastdb/internal/jobsstore"
	"blastdb/internal/oidset"
	"blastdb/internal/record"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const maxSearchMatches = 50
const maxBackgroundWorkers = 4

// statusResponseWriter captures status and bytes written for logging.
type statusResponseWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		srw := &statusResponseWriter{ResponseWriter: w}
		next.ServeHTTP(srw, r)
		if srw.status == 0 {
			srw.status = http.StatusOK
		}
		logger.Info("request", "remote", r.RemoteAddr, "method", r.Method,
			"path", r.URL.RequestURI(), "status", srw.status, "bytes", srw.written,
			"duration", time.Since(start))
	})
}

// rateLimitMiddleware rejects requests once the limiter's budget is spent,
// rather than queuing them -- appropriate for a dump-submission endpoint
// that would otherwise let a burst of clients pile up background jobs.
func rateLimitMiddleware(limiter *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type indexPage struct {
	IndexTitle string
	NumRecords int
	IsProtein  bool
	Query      string
	Matches    []recordSummary
	Truncated  bool
}

type recordSummary struct {
	OID   int
	Title string
}

func indexHandler(db *record.Database, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))

		var matches []recordSummary
		truncated := false
		for oid := 0; oid < db.NumRecords(); oid++ {
			if len(matches) >= maxSearchMatches {
				truncated = true
				break
			}
			rec, err := db.Record(oid)
			if err != nil {
				logger.Warn("skip record while searching", "oid", oid, "err", err)
				continue
			}
			title := ""
			if len(rec.DefLines) > 0 {
				title = rec.DefLines[0].Title
			}
			if query != "" && !matchesQuery(rec, query) {
				continue
			}
			matches = append(matches, recordSummary{OID: oid, Title: title})
		}
		if truncated {
			logger.Debug("search truncated", "query", query, "shown", len(matches))
		}

		page := indexPage{
			IndexTitle: db.Index.Title,
			NumRecords: db.NumRecords(),
			IsProtein:  db.Index.IsProtein,
			Query:      query,
			Matches:    matches,
			Truncated:  truncated,
		}
		if err := templates.ExecuteTemplate(w, "index.html", page); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func matchesQuery(rec record.Record, query string) bool {
	for _, dl := range rec.DefLines {
		if strings.Contains(strings.ToLower(dl.Title), query) {
			return true
		}
		for _, id := range dl.SeqIDs {
			if strings.Contains(strings.ToLower(id.Value), query) {
				return true
			}
		}
	}
	return false
}

func recordHandler(db *record.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oidStr := strings.TrimPrefix(r.URL.Path, "/record/")
		oid, err := strconv.Atoi(oidStr)
		if err != nil {
			http.Error(w, "invalid oid", http.StatusBadRequest)
			return
		}
		rec, err := db.Record(oid)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if err := templates.ExecuteTemplate(w, "record.html", rec); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// dumpRunner submits dump jobs to a bounded pool of background workers and
// tracks their progress in a jobsstore.Store.
type dumpRunner struct {
	db        *record.Database
	store     *jobsstore.Store
	outputDir string
	workers   *semaphore.Weighted
	logger    *log.Logger

	mu     sync.Mutex
	nextID int
}

func newDumpRunner(db *record.Database, store *jobsstore.Store, outputDir string, logger *log.Logger) *dumpRunner {
	return &dumpRunner{
		db:        db,
		store:     store,
		outputDir: outputDir,
		workers:   semaphore.NewWeighted(maxBackgroundWorkers),
		logger:    logger,
	}
}

func (dr *dumpRunner) submit(oidRange string) (jobsstore.DumpJob, error) {
	selection, err := oidset.Parse(oidRange, uint32(dr.db.NumRecords()))
	if err != nil {
		return jobsstore.DumpJob{}, err
	}

	dr.mu.Lock()
	dr.nextID++
	id := dr.nextID
	dr.mu.Unlock()

	now := time.Now().UTC()
	job := jobsstore.DumpJob{
		ID:        fmt.Sprintf("dump-%d", id),
		OIDRange:  oidRange,
		State:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := dr.store.Put(job); err != nil {
		return jobsstore.DumpJob{}, err
	}

	go dr.run(job, selection)
	return job, nil
}

func (dr *dumpRunner) run(job jobsstore.DumpJob, selection *oidset.Set) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := dr.workers.Acquire(ctx, 1); err != nil {
		job.State, job.Message = "failed", err.Error()
		job.UpdatedAt = time.Now().UTC()
		dr.store.Put(job)
		return
	}
	defer dr.workers.Release(1)

	job.State = "running"
	job.UpdatedAt = time.Now().UTC()
	dr.store.Put(job)

	records, err := dr.db.DecodeSelected(ctx, selection.Slice(), maxBackgroundWorkers)
	if err != nil {
		job.State, job.Message = "failed", err.Error()
		job.UpdatedAt = time.Now().UTC()
		dr.store.Put(job)
		dr.logger.Error("dump job failed", "id", job.ID, "err", err)
		return
	}

	path := fmt.Sprintf("%s/%s.json", strings.TrimRight(dr.outputDir, "/"), job.ID)
	b, err := json.MarshalIndent(records, "", "  ")
	if err == nil {
		err = os.WriteFile(path, b, 0o644)
	}
	if err != nil {
		job.State, job.Message = "failed", err.Error()
	} else {
		job.State, job.Message = "done", path
	}
	job.UpdatedAt = time.Now().UTC()
	dr.store.Put(job)
	dr.logger.Info("dump job finished", "id", job.ID, "state", job.State)
}

func dumpSubmitHandler(dr *dumpRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		oidRange := r.FormValue("oids")
		job, err := dr.submit(oidRange)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job)
	}
}

func dumpStatusHandler(store *jobsstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/dump/status/")
		job, found, err := store.Get(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !found {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(job)
	}
}

func dumpJobsHandler(store *jobsstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := store.Load()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := templates.ExecuteTemplate(w, "jobs.html", jobs); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func main() {
	addrFlag := flag.String("addr", "", "HTTP listen address (overrides config listen_addr, default :8080)")
	configFlag := flag.String("config", "", "path to config.json (optional)")
	indexFlag := flag.String("index", "", "path to the .pin index file (overrides config index_path)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFlag)
	if err != nil {
		fmt.Println("load config:", err)
		return
	}
	if *indexFlag != "" {
		cfg.IndexPath = *indexFlag
	}
	if *addrFlag != "" {
		cfg.ListenAddr = *addrFlag
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.JobStore == "" {
		cfg.JobStore = "json"
	}
	if cfg.JobStorePath == "" {
		cfg.JobStorePath = "blastdbweb-jobs.json"
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}

	logger := log.New(os.Stderr)
	logger.SetLevel(logLevelFromString(cfg.LogLevel))

	if cfg.IndexPath == "" {
		logger.Fatal("no index path given; pass -index or set index_path in config.json")
	}

	db, err := record.Open(cfg.IndexPath)
	if err != nil {
		logger.Fatal("open database", "err", err)
	}

	store, err := jobsstore.Open(cfg.JobStore, cfg.JobStorePath)
	if err != nil {
		logger.Fatal("open job store", "err", err)
	}
	defer store.Close()

	dr := newDumpRunner(db, store, cfg.OutputDir, logger)
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), int(cfg.RateLimitRPS))

	mux := http.NewServeMux()
	mux.Handle("/", indexHandler(db, logger))
	mux.Handle("/record/", recordHandler(db))
	mux.Handle("/dump/submit", rateLimitMiddleware(limiter, dumpSubmitHandler(dr)))
	mux.Handle("/dump/status/", dumpStatusHandler(store))
	mux.Handle("/dump/jobs", dumpJobsHandler(store))

	handler := loggingMiddleware(logger, mux)
	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Info("serving blastdbweb", "addr", cfg.ListenAddr, "index_path", cfg.IndexPath, "num_records", db.NumRecords())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", "err", err)
	}
}

func logLevelFromString(level string) log.Level {
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
