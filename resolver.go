package callsite

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go-callsite/compile"
)

const (
	// DefaultMarker is the string constant appended to candidate calls
	// while matching. Source that contains it cannot be resolved.
	DefaultMarker = "\x00callsite:5f3c9a0e71d24b8e:marker\x00"

	// DefaultMaxFileSize is the largest source file Index reads (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger. Trials and failures are logged at Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegisterer registers the resolver's metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(r *Resolver) {
		r.registerer = reg
	}
}

// WithMatchCacheSize bounds the match cache to n entries, evicting the
// least recently used. Zero or less keeps every match.
func WithMatchCacheSize(n int) Option {
	return func(r *Resolver) {
		r.matchCacheSize = n
	}
}

// WithMarker replaces DefaultMarker.
func WithMarker(marker string) Option {
	return func(r *Resolver) {
		if marker != "" {
			r.marker = marker
		}
	}
}

// WithMaxFileSize sets the largest file Index reads. Must be positive.
func WithMaxFileSize(bytes int64) Option {
	return func(r *Resolver) {
		if bytes > 0 {
			r.maxFileSize = bytes
		}
	}
}

// Resolver resolves execution positions to call sites. It owns a parse
// cache keyed by path and a match cache keyed by position; both are filled
// at most once per key, also under concurrent use. Independent resolvers
// share nothing.
type Resolver struct {
	logger         *slog.Logger
	registerer     prometheus.Registerer
	marker         string
	matchCacheSize int
	maxFileSize    int64

	metrics *metrics
	files   *cache[string, *SourceFile]
	matches *cache[matchKey, *CallSite]
}

type matchKey struct {
	path   string
	line   int
	offset int
	unit   compile.UnitID
}

func (k matchKey) String() string {
	return fmt.Sprintf("%q:%d+%d %d/%q/%d/%d",
		k.path, k.line, k.offset, k.unit.Kind, k.unit.Name, k.unit.Line, k.unit.Index)
}

// NewResolver returns a Resolver configured by opts.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		logger:      slog.New(slog.DiscardHandler),
		marker:      DefaultMarker,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.metrics = newMetrics(r.registerer)
	r.files = newCache[string, *SourceFile]("files", 0, r.metrics, strconv.Quote)
	r.matches = newCache[matchKey, *CallSite]("matches", r.matchCacheSize, r.metrics, matchKey.String)
	return r
}

// Index reads and parses the file at path, once per cleaned path.
// Repeated calls return the same *SourceFile.
func (r *Resolver) Index(path string) (*SourceFile, error) {
	path = filepath.Clean(path)
	return r.files.get(path, func() (*SourceFile, error) {
		info, err := os.Stat(path)
		if err != nil {
			return nil, wrapError(err, CodeSourceUnavailable, "cannot stat source").WithContext(CtxPath, path)
		}
		if info.Size() > r.maxFileSize {
			return nil, newError(CodeSourceUnavailable, "file size %d exceeds limit %d", info.Size(), r.maxFileSize).
				WithContext(CtxPath, path)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, wrapError(err, CodeSourceUnavailable, "cannot read source").WithContext(CtxPath, path)
		}
		r.logger.Debug("indexing source", "path", path, "bytes", len(src))
		return parseSource(path, src)
	})
}

// IndexSource parses src as the file at path. The first text indexed under
// a path is kept until Forget or Reset.
func (r *Resolver) IndexSource(path string, src []byte) (*SourceFile, error) {
	path = filepath.Clean(path)
	return r.files.get(path, func() (*SourceFile, error) {
		r.logger.Debug("indexing source", "path", path, "bytes", len(src))
		return parseSource(path, src)
	})
}

// Resolve returns the call site executing at pos.
func (r *Resolver) Resolve(pos Position) (site *CallSite, err error) {
	start := time.Now()
	defer func() { r.metrics.resolved(err, start) }()

	f, err := r.Index(pos.Filename)
	if err != nil {
		return nil, err
	}
	key := matchKey{path: f.Path, line: pos.Line, offset: pos.Offset, unit: pos.Unit}
	return r.matches.get(key, func() (*CallSite, error) {
		m := &matcher{file: f, marker: r.marker, logger: r.logger, metrics: r.metrics}
		call, err := m.match(pos)
		if err != nil {
			r.logger.Debug("call site unresolved", "position", pos.String(), "error", err)
			return nil, err
		}
		r.logger.Debug("call site resolved", "position", pos.String(), "call", f.Text(call))
		return &CallSite{Call: call, Position: pos, File: f}, nil
	})
}

// Forget drops the parsed file at path and every match made in it.
func (r *Resolver) Forget(path string) {
	path = filepath.Clean(path)
	r.files.forget(func(p string) bool { return p == path })
	r.matches.forget(func(k matchKey) bool { return k.path == path })
}

// Reset drops every cached file and match.
func (r *Resolver) Reset() {
	r.files.forget(func(string) bool { return true })
	r.matches.forget(func(matchKey) bool { return true })
}
