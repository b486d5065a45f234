// Package objstore implements the content-addressed storage service of
// spec §4/§6.2: PUT/GET/HEAD/DEL over a pluggable Driver, with keys
// derived from the SHA-256 of the stored content rather than chosen by
// the caller. Grounded on the teacher's internal/storage/memory in-memory
// map+mutex pattern (now adapted into objstore/memdriver) and on
// internal/database/postgres's per-operation metrics shape, reworked
// here with promauto per pkg/metrics/prometheus.go.
package objstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/latchflow/latchflow/internal/hashutil"
)

// Stored describes the result of a successful Put.
type Stored struct {
	Key         string
	ContentHash string // sha256 hex
	Size        int64
	ETag        string
}

// Service is the content-addressed object store. It owns key derivation;
// Driver implementations only ever see already-derived keys.
type Service struct {
	driver  Driver
	prefix  string
	metrics *opMetrics
}

type opMetrics struct {
	ops      *prometheus.CounterVec
	errors   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    prometheus.Counter
}

func newOpMetrics() *opMetrics {
	return &opMetrics{
		ops: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "latchflow",
			Subsystem: "objstore",
			Name:      "operations_total",
			Help:      "Total object store operations by type and driver.",
		}, []string{"op", "driver"}),
		errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "latchflow",
			Subsystem: "objstore",
			Name:      "operation_errors_total",
			Help:      "Total object store operation errors by type and driver.",
		}, []string{"op", "driver"}),
		duration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "latchflow",
			Subsystem: "objstore",
			Name:      "operation_duration_seconds",
			Help:      "Object store operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op", "driver"}),
		bytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "latchflow",
			Subsystem: "objstore",
			Name:      "bytes_written_total",
			Help:      "Total bytes written to the object store.",
		}),
	}
}

// New constructs a Service over driver. prefix roots every derived key
// (spec §6.2's "<prefix>/objects/sha256/..."); it may be empty.
func New(driver Driver, prefix string) *Service {
	return &Service{driver: driver, prefix: prefix, metrics: newOpMetrics()}
}

func (s *Service) driverName() string {
	return fmt.Sprintf("%T", s.driver)
}

func (s *Service) observe(op string, start time.Time, err error) {
	driver := s.driverName()
	s.metrics.ops.WithLabelValues(op, driver).Inc()
	s.metrics.duration.WithLabelValues(op, driver).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.errors.WithLabelValues(op, driver).Inc()
	}
}

// Put consumes body, computing its SHA-256 digest as it spools to a
// temporary file, derives the content-addressed key, and stores it via
// the driver. The temp spool lets Put work with unsized/unseekable
// readers (e.g. HTTP request bodies) while still deriving the key from
// the full content before the driver ever sees it.
func (s *Service) Put(ctx context.Context, body io.Reader, contentType string) (Stored, error) {
	start := time.Now()

	spool, err := os.CreateTemp("", "latchflow-objstore-*")
	if err != nil {
		s.observe("put", start, err)
		return Stored{}, fmt.Errorf("objstore: create spool file: %w", err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(spool, hasher), body)
	if err != nil {
		s.observe("put", start, err)
		return Stored{}, fmt.Errorf("objstore: spool content: %w", err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		s.observe("put", start, err)
		return Stored{}, fmt.Errorf("objstore: rewind spool: %w", err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	key, err := hashutil.ObjectKey(s.prefix, digest)
	if err != nil {
		s.observe("put", start, err)
		return Stored{}, err
	}

	etag, err := s.driver.Put(ctx, key, spool, size, contentType)
	s.observe("put", start, err)
	if err != nil {
		return Stored{}, fmt.Errorf("objstore: driver put: %w", err)
	}
	s.metrics.bytes.Add(float64(size))

	return Stored{Key: key, ContentHash: digest, Size: size, ETag: etag}, nil
}

// Get retrieves the object at key. Callers must close the returned
// ReadCloser.
func (s *Service) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	start := time.Now()
	body, info, err := s.driver.Get(ctx, key)
	s.observe("get", start, err)
	return body, info, err
}

// Head reports metadata for key without transferring its body.
func (s *Service) Head(ctx context.Context, key string) (ObjectInfo, error) {
	start := time.Now()
	info, err := s.driver.Head(ctx, key)
	s.observe("head", start, err)
	return info, err
}

// Delete removes the object at key.
func (s *Service) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.driver.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

// SupportsSignedPut probes whether the underlying driver can mint
// pre-signed upload URLs (spec §6.2).
func (s *Service) SupportsSignedPut() bool {
	return s.driver.SupportsSignedPut()
}

// PresignPut mints a pre-signed upload URL for a not-yet-known key; since
// the key is content-addressed, callers use this for resumable/off-box
// uploads where the content hash is already known client-side.
func (s *Service) PresignPut(ctx context.Context, contentHash string, expiresInSeconds int) (string, error) {
	key, err := hashutil.ObjectKey(s.prefix, contentHash)
	if err != nil {
		return "", err
	}
	start := time.Now()
	url, err := s.driver.PresignPut(ctx, key, expiresInSeconds)
	s.observe("presign_put", start, err)
	return url, err
}
