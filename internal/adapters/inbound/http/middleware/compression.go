package middleware

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"context"
	"io"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/architeacher/device-catalog/internal/config"
	"github.com/architeacher/device-catalog/pkg/logger"
	"github.com/architeacher/device-catalog/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
)

const (
	encodingGzip     = "gzip"
	encodingBrotli   = "br"
	encodingDeflate  = "deflate"
	encodingIdentity = "identity"

	httpCompressionTotal        = "http.compression.total"
	httpCompressionSkippedTotal = "http.compression.skipped.total"
	httpCompressionRatio        = "http.compression.ratio"

	attrAlgorithm  = attribute.Key("algorithm")
	attrSkipReason = attribute.Key("reason")

	skipReasonBelowMinSize    = "below_min_size"
	skipReasonNonCompressible = "non_compressible_type"
	skipReasonNoEncoding      = "no_accept_encoding"
)

// DefaultCompressibleTypes is used when no content types are configured.
var DefaultCompressibleTypes = []string{
	"application/json",
	"application/problem+json",
	"text/plain",
}

// serverPreference breaks ties between encodings of equal quality.
var serverPreference = []string{encodingGzip, encodingBrotli, encodingDeflate}

type compressor struct {
	cfg           config.Compression
	contentTypes  []string
	log           logger.Logger
	metricsClient metrics.Client

	gzipPool    sync.Pool
	deflatePool sync.Pool
	brotliPool  sync.Pool
}

// Compression encodes responses with gzip, brotli or deflate according to
// the Accept-Encoding header. Bodies smaller than MinSize and content types
// outside the allow list are sent as is.
func Compression(cfg config.Compression, log logger.Logger, metricsClient metrics.Client) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	c := &compressor{
		cfg:           cfg,
		contentTypes:  cfg.ContentTypes,
		log:           log,
		metricsClient: metricsClient,
	}

	if len(c.contentTypes) == 0 {
		c.contentTypes = DefaultCompressibleTypes
	}

	c.gzipPool.New = func() any {
		w, err := gzip.NewWriterLevel(io.Discard, cfg.Level)
		if err != nil {
			w = gzip.NewWriter(io.Discard)
		}

		return w
	}
	c.deflatePool.New = func() any {
		w, err := flate.NewWriter(io.Discard, cfg.Level)
		if err != nil {
			w, _ = flate.NewWriter(io.Discard, flate.DefaultCompression)
		}

		return w
	}
	c.brotliPool.New = func() any {
		return brotli.NewWriterLevel(io.Discard, cfg.Level)
	}

	return c.middleware
}

func (c *compressor) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSkipPath(r.URL.Path, c.cfg.SkipPaths) {
			next.ServeHTTP(w, r)

			return
		}

		header := r.Header.Get("Accept-Encoding")
		if header == "" {
			c.recordSkipped(r.Context(), skipReasonNoEncoding)
			next.ServeHTTP(w, r)

			return
		}

		encodings := parseAcceptEncoding(header)
		encoding := selectEncoding(encodings)

		if encoding == "" && rejectsIdentity(encodings) {
			writeError(w, http.StatusNotAcceptable, "NOT_ACCEPTABLE", "no acceptable content encoding available")

			return
		}

		if encoding == "" {
			c.recordSkipped(r.Context(), skipReasonNoEncoding)
			next.ServeHTTP(w, r)

			return
		}

		w.Header().Add("Vary", "Accept-Encoding")

		cw := &compressWriter{
			ResponseWriter: w,
			compressor:     c,
			ctx:            r.Context(),
			encoding:       encoding,
			statusCode:     http.StatusOK,
		}

		defer func() {
			if err := cw.Close(); err != nil {
				c.log.WithContext(r.Context()).Warn().Err(err).Msg("failed to finish compressed response")
			}
		}()

		next.ServeHTTP(cw, r)
	})
}

func (c *compressor) encoder(encoding string, dst io.Writer) io.WriteCloser {
	switch encoding {
	case encodingGzip:
		gw := c.gzipPool.Get().(*gzip.Writer)
		gw.Reset(dst)

		return &pooledWriter{WriteCloser: gw, flush: gw.Flush, release: func() { c.gzipPool.Put(gw) }}
	case encodingDeflate:
		fw := c.deflatePool.Get().(*flate.Writer)
		fw.Reset(dst)

		return &pooledWriter{WriteCloser: fw, flush: fw.Flush, release: func() { c.deflatePool.Put(fw) }}
	default:
		bw := c.brotliPool.Get().(*brotli.Writer)
		bw.Reset(dst)

		return &pooledWriter{WriteCloser: bw, flush: bw.Flush, release: func() { c.brotliPool.Put(bw) }}
	}
}

func (c *compressor) compressible(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	return slices.ContainsFunc(c.contentTypes, func(allowed string) bool {
		return strings.EqualFold(allowed, mediaType)
	})
}

func (c *compressor) recordSkipped(ctx context.Context, reason string) {
	if c.metricsClient == nil {
		return
	}

	c.metricsClient.Inc(ctx, httpCompressionSkippedTotal, int64(1), attrSkipReason.String(reason))
}

func (c *compressor) recordCompressed(ctx context.Context, encoding string, original, compressed int64) {
	if c.metricsClient != nil {
		c.metricsClient.Inc(ctx, httpCompressionTotal, int64(1), attrAlgorithm.String(encoding))

		if original > 0 {
			c.metricsClient.Observe(ctx, httpCompressionRatio, float64(compressed)/float64(original),
				attrAlgorithm.String(encoding))
		}
	}

	c.log.WithContext(ctx).Debug().
		Str("compression_algorithm", encoding).
		Int64("original_size", original).
		Int64("compressed_size", compressed).
		Msg("response compressed")
}

// compressWriter holds the body back until MinSize bytes are buffered, then
// commits to either the encoder or the plain writer.
type compressWriter struct {
	http.ResponseWriter
	compressor *compressor
	ctx        context.Context
	encoding   string

	statusCode  int
	buf         []byte
	decided     bool
	passthrough bool
	encoder     io.WriteCloser
	counter     *countingWriter
	original    int64
}

func (w *compressWriter) WriteHeader(statusCode int) {
	if w.decided {
		return
	}

	w.statusCode = statusCode

	if statusCode == http.StatusNoContent || statusCode == http.StatusNotModified {
		w.commit(false, "")
	}
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if w.decided {
		if w.passthrough {
			return w.ResponseWriter.Write(b)
		}

		w.original += int64(len(b))

		return w.encoder.Write(b)
	}

	w.buf = append(w.buf, b...)

	if len(w.buf) >= w.compressor.cfg.MinSize {
		w.commit(true, "")
	}

	return len(b), nil
}

// commit writes the status line and the buffered body.
func (w *compressWriter) commit(compress bool, skipReason string) {
	w.decided = true

	if compress && !w.compressor.compressible(w.Header().Get("Content-Type")) {
		compress = false
		skipReason = skipReasonNonCompressible
	}

	if !compress {
		w.passthrough = true

		if skipReason != "" {
			w.compressor.recordSkipped(w.ctx, skipReason)
		}

		w.ResponseWriter.WriteHeader(w.statusCode)

		if len(w.buf) > 0 {
			_, _ = w.ResponseWriter.Write(w.buf)
		}

		w.buf = nil

		return
	}

	w.Header().Set("Content-Encoding", w.encoding)
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(w.statusCode)

	w.counter = &countingWriter{w: w.ResponseWriter}
	w.encoder = w.compressor.encoder(w.encoding, w.counter)
	w.original = int64(len(w.buf))
	_, _ = w.encoder.Write(w.buf)
	w.buf = nil
}

func (w *compressWriter) Close() error {
	if !w.decided {
		w.commit(false, skipReasonBelowMinSize)
	}

	if w.encoder == nil {
		return nil
	}

	err := w.encoder.Close()
	w.compressor.recordCompressed(w.ctx, w.encoding, w.original, w.counter.n)
	w.encoder = nil

	return err
}

func (w *compressWriter) Flush() {
	if !w.decided {
		w.commit(len(w.buf) >= w.compressor.cfg.MinSize, skipReasonBelowMinSize)
	}

	if pw, ok := w.encoder.(*pooledWriter); ok {
		_ = pw.flush()
	}

	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *compressWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}

	return nil, nil, http.ErrNotSupported
}

type pooledWriter struct {
	io.WriteCloser
	flush   func() error
	release func()
}

func (w *pooledWriter) Close() error {
	err := w.WriteCloser.Close()
	w.release()

	return err
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	c.n += int64(n)

	return n, err
}

type acceptEncoding struct {
	encoding string
	quality  float64
}

func parseAcceptEncoding(header string) []acceptEncoding {
	var encodings []acceptEncoding

	for part := range strings.SplitSeq(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))

		if name == "" {
			continue
		}

		enc := acceptEncoding{encoding: name, quality: 1}

		for param := range strings.SplitSeq(params, ";") {
			if value, ok := strings.CutPrefix(strings.TrimSpace(param), "q="); ok {
				if q, err := strconv.ParseFloat(value, 64); err == nil {
					enc.quality = q
				}
			}
		}

		encodings = append(encodings, enc)
	}

	return encodings
}

// selectEncoding picks the supported encoding with the highest quality, or ""
// when the response should go out uncompressed. An explicit entry wins over
// the wildcard.
func selectEncoding(encodings []acceptEncoding) string {
	best, bestQuality := "", 0.0

	for _, preferred := range serverPreference {
		if q := qualityOf(encodings, preferred); q > bestQuality {
			best, bestQuality = preferred, q
		}
	}

	return best
}

func qualityOf(encodings []acceptEncoding, encoding string) float64 {
	wildcard := 0.0

	for _, enc := range encodings {
		switch enc.encoding {
		case encoding:
			return enc.quality
		case "*":
			wildcard = enc.quality
		}
	}

	return wildcard
}

// rejectsIdentity reports whether the client refused an uncompressed body.
func rejectsIdentity(encodings []acceptEncoding) bool {
	return slices.ContainsFunc(encodings, func(enc acceptEncoding) bool {
		return (enc.encoding == encodingIdentity || enc.encoding == "*") && enc.quality == 0
	})
}

func shouldSkipPath(path string, skipPaths []string) bool {
	return slices.ContainsFunc(skipPaths, func(skipPath string) bool {
		return path == skipPath || strings.HasPrefix(path, strings.TrimSuffix(skipPath, "/")+"/")
	})
}
