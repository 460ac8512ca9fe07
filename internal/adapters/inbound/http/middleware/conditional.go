package middleware

import (
	"bytes"
	"net/http"
)

const (
	headerETag        = "ETag"
	headerIfNoneMatch = "If-None-Match"
)

// bufferedWriter keeps the body in memory so a validator can be computed
// before anything reaches the client. Headers go straight to the wrapped
// writer.
type bufferedWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	body        bytes.Buffer
}

func (w *bufferedWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}

	w.statusCode = code
	w.wroteHeader = true
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}

	return w.body.Write(b)
}

// ConditionalGET tags successful GET and HEAD responses with an ETag and
// answers 304 Not Modified when the client already holds that version.
func ConditionalGET(generator *ETagGenerator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)

				return
			}

			bw := &bufferedWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(bw, r)

			if bw.statusCode != http.StatusOK {
				w.WriteHeader(bw.statusCode)
				_, _ = w.Write(bw.body.Bytes())

				return
			}

			etag := generator.Generate(bw.body.Bytes())
			w.Header().Set(headerETag, etag)

			if generator.Matches(r.Header.Get(headerIfNoneMatch), etag) {
				w.Header().Del("Content-Length")
				w.WriteHeader(http.StatusNotModified)

				return
			}

			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(bw.body.Bytes())
		})
	}
}
