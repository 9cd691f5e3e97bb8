package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitecrawler/internal/model"
)

// FileName is the name of the database file inside the database directory.
const FileName = "sitecrawler.db"

// ErrNotFound is returned when a requested run does not exist.
var ErrNotFound = errors.New("crawl run not found")

// CrawlDB provides SQLite-based storage for crawl history.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all sites rather
// than separate files per host. This simplifies listing and backup/restore
// operations.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite: mode=rw refuses to create a missing file,
	// mode=rwc allows it. Readers wait up to 5s for a concurrent writer.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}
	dsn += "&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per crawl
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		root_url TEXT NOT NULL,
		root_host TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		max_pages INTEGER NOT NULL,
		max_concurrency INTEGER NOT NULL,
		max_retries INTEGER NOT NULL,
		robots_url TEXT,
		pages_crawled INTEGER NOT NULL,
		stats TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_host ON crawl_runs(root_host);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON crawl_runs(started_at);

	-- Pages of a crawl, position is the admission order
	CREATE TABLE IF NOT EXISTS crawl_pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES crawl_runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		canonical_key TEXT NOT NULL,
		url TEXT NOT NULL,
		heading TEXT,
		first_paragraph TEXT,
		content_hash TEXT,
		outgoing_links TEXT,
		image_urls TEXT,
		fetched_at TEXT,
		UNIQUE(run_id, canonical_key)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_run ON crawl_pages(run_id);
	CREATE INDEX IF NOT EXISTS idx_pages_key ON crawl_pages(canonical_key);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunMetadata summarizes a stored crawl without loading its pages.
type RunMetadata struct {
	ID           int64
	RootURL      string
	RootHost     string
	StartedAt    time.Time
	FinishedAt   time.Time
	PagesCrawled int
	Stats        model.CrawlStats
}

// SaveReport stores a crawl report and its pages in one transaction and
// returns the new run ID.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) (int64, error) {
	statsJSON, err := json.Marshal(report.Stats)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize stats: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_runs (root_url, root_host, started_at, finished_at, max_pages,
		max_concurrency, max_retries, robots_url, pages_crawled, stats)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RootURL,
		report.RootHost,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.MaxPages,
		report.MaxConcurrency,
		report.MaxRetries,
		report.RobotsURL,
		len(report.Pages),
		string(statsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_pages (run_id, position, canonical_key, url, heading, first_paragraph,
		content_hash, outgoing_links, image_urls, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, page := range report.Pages {
		links, err := json.Marshal(page.OutgoingLinks)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize links of %s: %w", page.URL, err)
		}
		images, err := json.Marshal(page.ImageURLs)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize images of %s: %w", page.URL, err)
		}

		if _, err := stmt.ExecContext(ctx,
			runID,
			i,
			page.CanonicalKey,
			page.URL,
			page.Heading,
			page.FirstParagraph,
			page.ContentHash,
			string(links),
			string(images),
			formatTimestamp(page.FetchedAt),
		); err != nil {
			return 0, fmt.Errorf("failed to insert page %s: %w", page.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl run: %w", err)
	}
	return runID, nil
}

// ListHosts returns every host with at least one stored run, sorted.
func (cdb *CrawlDB) ListHosts(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT root_host FROM crawl_runs ORDER BY root_host`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hosts: %w", err)
	}
	defer rows.Close()

	hosts := make([]string, 0)
	for rows.Next() {
		var host string
		if err := rows.Scan(&host); err != nil {
			return nil, fmt.Errorf("failed to scan host: %w", err)
		}
		hosts = append(hosts, host)
	}
	return hosts, rows.Err()
}

// ListRuns returns stored runs, newest first. An empty host lists runs of
// every host.
func (cdb *CrawlDB) ListRuns(ctx context.Context, host string) ([]RunMetadata, error) {
	query := `
	SELECT id, root_url, root_host, started_at, finished_at, pages_crawled, stats
	FROM crawl_runs
	`
	args := []any{}
	if host != "" {
		query += " WHERE root_host = ?"
		args = append(args, host)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunMetadata, 0)
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *meta)
	}
	return runs, rows.Err()
}

// GetReport loads a stored run with all of its pages.
// Returns ErrNotFound if the run does not exist.
func (cdb *CrawlDB) GetReport(ctx context.Context, runID int64) (*model.CrawlReport, error) {
	var (
		report              model.CrawlReport
		startedAt, finished string
		robotsURL           sql.NullString
		statsJSON           string
	)
	err := cdb.db.QueryRowContext(ctx, `
	SELECT root_url, root_host, started_at, finished_at, max_pages, max_concurrency,
		max_retries, robots_url, stats
	FROM crawl_runs WHERE id = ?
	`, runID).Scan(
		&report.RootURL,
		&report.RootHost,
		&startedAt,
		&finished,
		&report.MaxPages,
		&report.MaxConcurrency,
		&report.MaxRetries,
		&robotsURL,
		&statsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	report.StartedAt = parseTimestamp(startedAt)
	report.FinishedAt = parseTimestamp(finished)
	report.RobotsURL = robotsURL.String
	if err := json.Unmarshal([]byte(statsJSON), &report.Stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}

	pages, err := cdb.getPages(ctx, runID)
	if err != nil {
		return nil, err
	}
	report.Pages = pages

	return &report, nil
}

// GetLatestReport loads the newest run for host.
// Returns ErrNotFound if the host has never been crawled.
func (cdb *CrawlDB) GetLatestReport(ctx context.Context, host string) (*model.CrawlReport, error) {
	var runID int64
	err := cdb.db.QueryRowContext(ctx, `
	SELECT id FROM crawl_runs WHERE root_host = ?
	ORDER BY started_at DESC, id DESC LIMIT 1
	`, host).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: host %s", ErrNotFound, host)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return cdb.GetReport(ctx, runID)
}

// DeleteRun removes a run and its pages.
func (cdb *CrawlDB) DeleteRun(ctx context.Context, runID int64) error {
	result, err := cdb.db.ExecContext(ctx, `DELETE FROM crawl_runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete crawl run: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, runID)
	}
	return nil
}

// getPages loads the pages of a run in admission order.
func (cdb *CrawlDB) getPages(ctx context.Context, runID int64) ([]*model.Page, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT canonical_key, url, heading, first_paragraph, content_hash,
		outgoing_links, image_urls, fetched_at
	FROM crawl_pages WHERE run_id = ? ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := make([]*model.Page, 0)
	for rows.Next() {
		var (
			page                                model.Page
			heading, paragraph, hash, fetchedAt sql.NullString
			linksJSON, imagesJSON               sql.NullString
		)
		if err := rows.Scan(
			&page.CanonicalKey,
			&page.URL,
			&heading,
			&paragraph,
			&hash,
			&linksJSON,
			&imagesJSON,
			&fetchedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}

		page.Heading = heading.String
		page.FirstParagraph = paragraph.String
		page.ContentHash = hash.String
		page.FetchedAt = parseTimestamp(fetchedAt.String)
		if err := decodeList(linksJSON, &page.OutgoingLinks); err != nil {
			return nil, fmt.Errorf("failed to parse links of %s: %w", page.URL, err)
		}
		if err := decodeList(imagesJSON, &page.ImageURLs); err != nil {
			return nil, fmt.Errorf("failed to parse images of %s: %w", page.URL, err)
		}

		pages = append(pages, &page)
	}
	return pages, rows.Err()
}

// scanRun reads one RunMetadata row.
func scanRun(rows *sql.Rows) (*RunMetadata, error) {
	var (
		meta                RunMetadata
		startedAt, finished string
		statsJSON           string
	)
	if err := rows.Scan(&meta.ID, &meta.RootURL, &meta.RootHost, &startedAt, &finished, &meta.PagesCrawled, &statsJSON); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	meta.StartedAt = parseTimestamp(startedAt)
	meta.FinishedAt = parseTimestamp(finished)
	if err := json.Unmarshal([]byte(statsJSON), &meta.Stats); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}
	return &meta, nil
}

func decodeList(raw sql.NullString, dst *[]string) error {
	*dst = []string{}
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), dst)
}

// formatTimestamp stores times as sortable UTC RFC3339 strings.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format written by formatTimestamp
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
