package labs

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

const (
	defaultMaxBytes = 64 << 20
	defaultTable    = "labs"
	networkTimeout  = 30 * time.Second
)

// ErrLoad is matched by every load failure via errors.Is.
var ErrLoad = errors.New("lab list load failed")

// LoadKind tells the operator which stage of the load broke.
type LoadKind string

const (
	LoadFetch  LoadKind = "fetch"
	LoadStatus LoadKind = "status"
	LoadParse  LoadKind = "parse"
	LoadQuery  LoadKind = "query"
)

// LoadError is terminal for the dashboard: there is no retry.
type LoadError struct {
	Kind   LoadKind
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Source, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets callers test for ErrLoad without caring about the kind.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// LoadOptions configures Load. Zero values are usable.
type LoadOptions struct {
	Client   *http.Client
	MaxBytes int64
	// Table is the default table for SQL sources; a "table" query
	// parameter on the source URL wins.
	Table string
}

// sourceSchema only pins the outer shape. Field level mess is handled by
// the normalizer, which must never reject a whole batch.
const sourceSchema = `{
  "type": "array",
  "items": {"type": "object"}
}`

var schemaLoader = gojsonschema.NewStringLoader(sourceSchema)

// sqlDrivers maps URL schemes to database/sql driver names. The drivers
// themselves register only in binaries that import pkg/labs/drivers.
var sqlDrivers = map[string]string{
	"sqlite":     "sqlite",
	"genji":      "genji",
	"duckdb":     "duckdb",
	"postgres":   "pgx",
	"postgresql": "pgx",
}

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads the lab list once. The location is an http(s) URL, a file
// path (optionally file://), or a read-only SQL source such as
// sqlite:///srv/labs.db?table=labs.
func Load(ctx context.Context, location string, opts LoadOptions) ([]RawRecord, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: errors.New("no data source configured")}
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}

	scheme := ""
	if i := strings.Index(location, "://"); i > 0 {
		scheme = strings.ToLower(location[:i])
	}

	switch {
	case scheme == "http" || scheme == "https":
		return loadHTTP(ctx, location, opts)
	case scheme == "" || scheme == "file":
		return loadFile(strings.TrimPrefix(location, "file://"), location, opts)
	default:
		driver, ok := sqlDrivers[scheme]
		if !ok {
			return nil, &LoadError{Kind: LoadFetch, Source: location, Err: fmt.Errorf("unsupported scheme %q", scheme)}
		}
		return loadSQL(ctx, driver, location, opts)
	}
}

func loadHTTP(ctx context.Context, location string, opts LoadOptions) ([]RawRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	client := opts.Client
	if client == nil {
		client = &http.Client{
			Timeout: networkTimeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: 8 * time.Second}).DialContext,
				TLSHandshakeTimeout: 8 * time.Second,
			},
		}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &LoadError{
			Kind:   LoadStatus,
			Source: location,
			Err:    fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(b))),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, opts.MaxBytes))
	if err != nil {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: err}
	}
	return decode(body, location)
}

func loadFile(path, location string, opts LoadOptions) ([]RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: err}
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, opts.MaxBytes))
	if err != nil {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: err}
	}
	return decode(body, location)
}

// decode validates the outer shape first so a truncated or wrapped
// payload reports as a parse failure instead of an empty dashboard.
func decode(body []byte, location string) ([]RawRecord, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, &LoadError{Kind: LoadParse, Source: location, Err: err}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, &LoadError{Kind: LoadParse, Source: location, Err: errors.New(strings.Join(msgs, "; "))}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var rows []RawRecord
	if err := dec.Decode(&rows); err != nil {
		return nil, &LoadError{Kind: LoadParse, Source: location, Err: err}
	}
	return rows, nil
}

func loadSQL(ctx context.Context, driver, location string, opts LoadOptions) ([]RawRecord, error) {
	dsn, table, err := splitSQLSource(location, opts.Table)
	if err != nil {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: err}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &LoadError{Kind: LoadFetch, Source: location, Err: err}
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, &LoadError{Kind: LoadQuery, Source: location, Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &LoadError{Kind: LoadQuery, Source: location, Err: err}
	}

	var out []RawRecord
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &LoadError{Kind: LoadQuery, Source: location, Err: err}
		}
		rec := make(RawRecord, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				rec[col] = string(b)
				continue
			}
			rec[col] = values[i]
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Kind: LoadQuery, Source: location, Err: err}
	}
	return out, nil
}

// splitSQLSource strips the table parameter and turns the URL into a
// DSN the driver understands. File based engines take a path, PostgreSQL
// takes the URL itself.
func splitSQLSource(location, defTable string) (dsn, table string, err error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", "", err
	}
	q := u.Query()
	table = q.Get("table")
	q.Del("table")
	if table == "" {
		table = defTable
	}
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return "", "", fmt.Errorf("invalid table name %q", table)
	}

	switch strings.ToLower(u.Scheme) {
	case "postgres", "postgresql":
		u.RawQuery = q.Encode()
		return u.String(), table, nil
	default:
		dsn = u.Host + u.Path
		if enc := q.Encode(); enc != "" {
			dsn += "?" + enc
		}
		if dsn == "" {
			return "", "", errors.New("missing database path")
		}
		return dsn, table, nil
	}
}
