package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// NotModified reports whether r's If-None-Match header lists entry's ETag.
func NotModified(r *http.Request, entry *Entry) bool {
	if entry == nil || entry.ETag == "" || r == nil {
		return false
	}
	header := r.Header.Get("If-None-Match")
	if header == "" {
		return false
	}
	for _, tag := range strings.Split(header, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == entry.ETag {
			return true
		}
	}
	return false
}

// WriteEntry writes entry's snapshot as JSON with caching headers, or a bare
// 304 Not Modified when the client already holds this version. A snapshot
// that cannot be encoded is answered with 500 and no caching headers.
func WriteEntry(w http.ResponseWriter, r *http.Request, entry *Entry) error {
	if NotModified(r, entry) {
		writeCacheHeaders(w.Header(), entry)
		NotModifiedResponses.Inc()
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	body, err := json.Marshal(entry.Snapshot)
	if err != nil {
		CacheErrors.WithLabelValues("encode").Inc()
		http.Error(w, "snapshot cannot be encoded", http.StatusInternalServerError)
		return fmt.Errorf("encode snapshot: %w", err)
	}

	writeCacheHeaders(w.Header(), entry)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(append(body, '\n'))
	return err
}

func writeCacheHeaders(h http.Header, entry *Entry) {
	if entry.ETag != "" {
		h.Set("ETag", entry.ETag)
	}
	if !entry.CapturedAt.IsZero() {
		h.Set("Last-Modified", entry.CapturedAt.UTC().Format(http.TimeFormat))
	}
	h.Set("Cache-Control", "max-age="+strconv.Itoa(int(entry.TTL().Seconds())))
}
