// Package bundle implements the bundle build/rebuild scheduler of spec
// §4.5: debounced, coalesced, single-flight-per-bundle archive
// (re)materialization, driven by a content-addressed digest over the
// bundle's ordered member files.
package bundle

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/latchflow/latchflow/internal/obslog"
	"github.com/latchflow/latchflow/internal/objstore"
)

// DefaultDebounce is the production default debounce window; tests
// typically pass a much smaller value (spec §4.5: "default 10ms in
// tests").
const DefaultDebounce = 2 * time.Second

// State is getStatus's state enum.
type State string

const (
	StateIdle    State = "idle"
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateFailed  State = "failed"
)

// LastBuild summarizes the most recently completed build.
type LastBuild struct {
	Digest      string
	CompletedAt time.Time
	Bytes       int64
}

// Status is getStatus's return shape.
type Status struct {
	State State
	Last  *LastBuild
	Error string
}

type bundleState struct {
	mu      sync.Mutex
	timer   *time.Timer
	running bool
	pending bool
	force   bool
	status  State
	last    *LastBuild
	lastErr string
}

// Scheduler implements schedule/scheduleForFiles/getStatus. Grounded on
// internal/infrastructure/publishing/queue.go's getCircuitBreaker: a
// per-key map guarded by a RWMutex, populated with a double-checked
// lock, generalized here from "per-target circuit breaker" to
// "per-bundle debounce/single-flight state".
type Scheduler struct {
	store    Store
	objects  *objstore.Service
	logger   obslog.Logger
	debounce time.Duration

	mu     sync.RWMutex
	states map[string]*bundleState
}

// New constructs a Scheduler. A zero debounce falls back to DefaultDebounce.
func New(store Store, objects *objstore.Service, logger obslog.Logger, debounce time.Duration) *Scheduler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Scheduler{
		store:    store,
		objects:  objects,
		logger:   logger,
		debounce: debounce,
		states:   make(map[string]*bundleState),
	}
}

func (s *Scheduler) stateFor(bundleID string) *bundleState {
	s.mu.RLock()
	st, ok := s.states[bundleID]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[bundleID]; ok {
		return st
	}
	st = &bundleState{status: StateIdle}
	s.states[bundleID] = st
	return st
}

// Schedule requests a (re)build of bundleID, debounced and coalesced
// per spec §4.5.
func (s *Scheduler) Schedule(bundleID string, force bool) {
	st := s.stateFor(bundleID)

	st.mu.Lock()
	defer st.mu.Unlock()

	if force {
		st.force = true
	}

	if st.running {
		// A build is already in flight; record that another one is
		// wanted once it completes instead of starting a second.
		st.pending = true
		return
	}

	if st.timer != nil {
		st.timer.Stop()
	}
	st.status = StateQueued
	st.timer = time.AfterFunc(s.debounce, func() { s.runBuild(bundleID, st) })
}

// ScheduleForFiles resolves fileIDs to the bundles that currently
// include any of them and schedules each exactly once.
func (s *Scheduler) ScheduleForFiles(ctx context.Context, fileIDs []string) error {
	seen := make(map[string]struct{})
	for _, fileID := range fileIDs {
		bundleIDs, err := s.store.BundleIDsForFile(ctx, fileID)
		if err != nil {
			return fmt.Errorf("bundle: resolve bundles for file %s: %w", fileID, err)
		}
		for _, id := range bundleIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			s.Schedule(id, false)
		}
	}
	return nil
}

// GetStatus returns bundleID's current scheduler state.
func (s *Scheduler) GetStatus(bundleID string) Status {
	st := s.stateFor(bundleID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return Status{State: st.status, Last: st.last, Error: st.lastErr}
}

func (s *Scheduler) runBuild(bundleID string, st *bundleState) {
	st.mu.Lock()
	st.running = true
	st.status = StateRunning
	force := st.force
	st.force = false
	st.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	last, err := s.build(ctx, bundleID, force)
	cancel()
	buildDuration.Observe(time.Since(start).Seconds())

	st.mu.Lock()
	st.running = false
	if err != nil {
		st.status = StateFailed
		st.lastErr = err.Error()
		buildsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("bundle: build failed", "bundle_id", bundleID, "error", err)
	} else {
		st.status = StateIdle
		st.lastErr = ""
		if last != nil {
			st.last = last
			buildsTotal.WithLabelValues("built").Inc()
		} else {
			buildsTotal.WithLabelValues("noop").Inc()
		}
	}
	rerun := st.pending || st.force
	nextForce := st.force
	st.pending = false
	st.mu.Unlock()

	if rerun {
		s.Schedule(bundleID, nextForce)
	}
}

// build implements spec §4.5's build procedure for one bundle. A nil
// *LastBuild with a nil error means the digest matched and the build
// was a no-op.
func (s *Scheduler) build(ctx context.Context, bundleID string, force bool) (*LastBuild, error) {
	b, err := s.store.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("bundle: load bundle: %w", err)
	}

	objs, err := s.store.ListEnabledObjects(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("bundle: load objects: %w", err)
	}
	sort.Slice(objs, func(i, j int) bool { return objs[i].SortOrder < objs[j].SortOrder })

	digest := computeDigest(bundleID, objs)
	if digest == b.BundleDigest && !force {
		return nil, nil
	}

	pr, pw := io.Pipe()
	writeErrCh := make(chan error, 1)
	go func() {
		err := writeArchive(ctx, pw, s.objects, objs)
		if err != nil {
			pw.CloseWithError(err)
		} else {
			pw.Close()
		}
		writeErrCh <- err
	}()

	stored, putErr := s.objects.Put(ctx, pr, "application/zip")
	pr.Close()
	if writeErr := <-writeErrCh; writeErr != nil {
		return nil, fmt.Errorf("bundle: materialize archive: %w", writeErr)
	}
	if putErr != nil {
		return nil, fmt.Errorf("bundle: store archive: %w", putErr)
	}

	checksum := stored.ETag
	if checksum == "" {
		checksum = stored.ContentHash
	}
	if err := s.store.UpdateBundleArtifact(ctx, bundleID, digest, stored.Key, checksum); err != nil {
		return nil, fmt.Errorf("bundle: commit artifact: %w", err)
	}

	return &LastBuild{Digest: digest, CompletedAt: time.Now(), Bytes: stored.Size}, nil
}
