// Package media streams the local files behind a label row's data units so
// the annotation UI can play them without a round trip to the platform.
package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var (
	// ErrNotLocal is returned for data-unit links that do not name a file on
	// this machine.
	ErrNotLocal = errors.New("data unit is not a local file")
	// ErrMissing is returned when the linked file does not exist.
	ErrMissing = errors.New("media file not found")

	errMalformedRange = errors.New("malformed byte range")
	errUnsatisfiable  = errors.New("byte range not satisfiable")
)

// videoTypes covers containers the platform stores that the system MIME
// table may not know.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
}

func contentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := videoTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// ByteRange is an inclusive span of bytes.
type ByteRange struct {
	First int64
	Last  int64
}

func (b ByteRange) Len() int64 {
	return b.Last - b.First + 1
}

func (b ByteRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", b.First, b.Last, size)
}

// parseByteRange reads a Range header against a file of the given size.
// Only the first range of a multi-range request is honoured; an empty
// header yields nil.
func parseByteRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}
	ranges, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, errMalformedRange
	}
	if first, _, found := strings.Cut(ranges, ","); found {
		ranges = strings.TrimSpace(first)
	}

	lo, hi, ok := strings.Cut(ranges, "-")
	if !ok || strings.Contains(hi, "-") {
		return nil, errMalformedRange
	}

	var b ByteRange
	if lo == "" {
		n, err := strconv.ParseInt(hi, 10, 64)
		if err != nil || n <= 0 {
			return nil, errMalformedRange
		}
		b = ByteRange{First: max(size-n, 0), Last: size - 1}
	} else {
		first, err := strconv.ParseInt(lo, 10, 64)
		if err != nil || first < 0 {
			return nil, errMalformedRange
		}
		b = ByteRange{First: first, Last: size - 1}
		if hi != "" {
			last, err := strconv.ParseInt(hi, 10, 64)
			if err != nil {
				return nil, errMalformedRange
			}
			b.Last = last
		}
	}

	if b.First > b.Last || b.First >= size {
		return nil, errUnsatisfiable
	}
	b.Last = min(b.Last, size-1)
	return &b, nil
}

// LocalPath resolves a data-unit link to a file path. Absolute paths and
// file:// URLs are local; anything else, such as a signed cloud URL, is not.
func LocalPath(link string) (string, error) {
	if link == "" {
		return "", ErrNotLocal
	}
	if strings.HasPrefix(link, "file://") {
		u, err := url.Parse(link)
		if err != nil || (u.Host != "" && u.Host != "localhost") {
			return "", ErrNotLocal
		}
		link = u.Path
	}
	if !filepath.IsAbs(link) {
		return "", ErrNotLocal
	}
	return filepath.Clean(link), nil
}

// Streamer writes media files to HTTP responses with byte-range support.
type Streamer struct {
	logger *slog.Logger
}

func NewStreamer(logger *slog.Logger) *Streamer {
	return &Streamer{logger: logger}
}

// Stream sends the file at path. Missing files return ErrMissing before
// anything is written; an unsatisfiable range is answered with 416.
func (s *Streamer) Stream(w http.ResponseWriter, r *http.Request, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrMissing
		}
		return fmt.Errorf("failed to open media: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media: %w", err)
	}
	if info.IsDir() {
		return ErrMissing
	}
	size := info.Size()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType(path))

	span, err := parseByteRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, errUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, errMalformedRange):
		// Malformed ranges are ignored and the whole file is sent.
		span = nil
	}

	status := http.StatusOK
	body := io.NewSectionReader(f, 0, size)
	if span != nil {
		status = http.StatusPartialContent
		h.Set("Content-Range", span.contentRange(size))
		body = io.NewSectionReader(f, span.First, span.Len())
	}
	h.Set("Content-Length", strconv.FormatInt(body.Size(), 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(w, body); err != nil && s.logger != nil {
		s.logger.Debug("media stream interrupted", "error", err)
	}
	return nil
}
