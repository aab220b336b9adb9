// Package gzippedhttp provides middleware that decompresses gzip request
// bodies and compresses responses for clients that accept gzip.
package gzippedhttp

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"
)

// CompressedReader wraps an io.ReadCloser and decompresses its input using gzip.
type CompressedReader struct {
	r  io.ReadCloser
	zr *gzip.Reader
}

// NewCompressedReader returns a new CompressedReader that reads gzip-compressed data
// from the provided io.ReadCloser.
func NewCompressedReader(requestBody io.ReadCloser) (*CompressedReader, error) {
	zippedRequestBody, err := gzip.NewReader(requestBody)
	if err != nil {
		return nil, err
	}

	return &CompressedReader{
		r:  requestBody,
		zr: zippedRequestBody,
	}, nil
}

func (c *CompressedReader) Read(p []byte) (n int, err error) {
	return c.zr.Read(p)
}

// Close closes both the gzip reader and the underlying io.ReadCloser.
func (c *CompressedReader) Close() error {
	if err := c.r.Close(); err != nil {
		return err
	}
	return c.zr.Close()
}

// CompressedHTTPResponseWriter compresses the response body with gzip.
// The status line is held back until the first body write so that empty
// and non-2xx responses go out uncompressed.
type CompressedHTTPResponseWriter struct {
	w           http.ResponseWriter
	zw          *gzip.Writer
	status      int
	headerSent  bool
	compressing bool
}

func NewCompressedHTTPResponseWriter(w http.ResponseWriter) *CompressedHTTPResponseWriter {
	return &CompressedHTTPResponseWriter{
		w:      w,
		status: http.StatusOK,
	}
}

// Header returns the HTTP headers associated with the response.
func (c *CompressedHTTPResponseWriter) Header() http.Header {
	return c.w.Header()
}

// WriteHeader records the status code; it is sent with the first body write or on Close.
func (c *CompressedHTTPResponseWriter) WriteHeader(statusCode int) {
	if c.headerSent {
		return
	}
	c.status = statusCode
}

// Write writes gzip-compressed data to the response body.
func (c *CompressedHTTPResponseWriter) Write(p []byte) (int, error) {
	if !c.headerSent {
		c.sendHeader(len(p) > 0)
	}
	if !c.compressing {
		return c.w.Write(p)
	}

	return c.zw.Write(p)
}

// Close flushes the gzip stream, or the bare status if nothing was written.
func (c *CompressedHTTPResponseWriter) Close() error {
	if !c.headerSent {
		c.sendHeader(false)
	}
	if c.zw == nil {
		return nil
	}

	err := c.zw.Close()
	gzipWriterPool.Put(c.zw)
	c.zw = nil

	return err
}

func (c *CompressedHTTPResponseWriter) sendHeader(hasBody bool) {
	c.headerSent = true

	c.compressing = hasBody &&
		c.status >= http.StatusOK &&
		c.status < http.StatusMultipleChoices &&
		c.status != http.StatusNoContent &&
		c.w.Header().Get("Content-Encoding") == ""

	if c.compressing {
		c.w.Header().Set("Content-Encoding", "gzip")
		c.w.Header().Del("Content-Length")
		c.w.Header().Add("Vary", "Accept-Encoding")

		c.zw = gzipWriterPool.Get().(*gzip.Writer)
		c.zw.Reset(c.w)
	}

	c.w.WriteHeader(c.status)
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
		return w
	},
}

// GzipResponse is the middleware that compresses the response when the
// request's "Accept-Encoding" header allows gzip.
func GzipResponse(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if !strings.Contains(request.Header.Get("Accept-Encoding"), "gzip") {
			h.ServeHTTP(response, request)
			return
		}

		responseWithCompression := NewCompressedHTTPResponseWriter(response)
		defer func() {
			// A held-back status must not go out as 200 while a panic is
			// on its way to an outer recoverer.
			if rvr := recover(); rvr != nil {
				panic(rvr)
			}
			responseWithCompression.Close()
		}()

		h.ServeHTTP(responseWithCompression, request)
	}

	return http.HandlerFunc(middleware)
}

// UngzipRequest replaces a gzip-encoded request body with a decompressing reader.
func UngzipRequest(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		if strings.Contains(request.Header.Get("Content-Encoding"), "gzip") {
			requestBodyWithCompression, err := NewCompressedReader(request.Body)
			if err != nil {
				response.WriteHeader(http.StatusBadRequest)
				return
			}
			request.Body = requestBodyWithCompression
			defer requestBodyWithCompression.Close()
		}

		h.ServeHTTP(response, request)
	}

	return http.HandlerFunc(middleware)
}
