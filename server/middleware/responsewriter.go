package middleware

import "net/http"

// recorder remembers the status and body size of a response for the
// request log. Flush and Unwrap pass through so voice note event
// streams can flush behind it.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int64
	header bool
}

func record(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (rw *recorder) WriteHeader(code int) {
	if rw.header {
		return
	}
	rw.status = code
	rw.header = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(b []byte) (int, error) {
	rw.header = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

func (rw *recorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		rw.header = true
		f.Flush()
	}
}

func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
