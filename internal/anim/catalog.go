package anim

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kerrizor/ckb/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// DefaultInfoTimeout is the wall-clock budget for one info query.
// A candidate still running at the deadline is killed and rejected.
const DefaultInfoTimeout = time.Second

// script pairs a validated descriptor with the executable it came from.
type script struct {
	path string
	info Descriptor
}

// Catalog discovers animation scripts and hands out instances. It is
// the single owner of the guid-to-descriptor mapping.
type Catalog struct {
	mu          sync.RWMutex
	scripts     map[uuid.UUID]*script
	rejected    int
	infoTimeout time.Duration
	log         *logging.Logger
}

// NewCatalog creates an empty catalog.
func NewCatalog(log *logging.Logger) *Catalog {
	if log == nil {
		log = logging.NewDefault()
	}
	return &Catalog{
		scripts:     make(map[uuid.UUID]*script),
		infoTimeout: DefaultInfoTimeout,
		log:         log,
	}
}

// WithInfoTimeout overrides the per-candidate info query budget.
func (c *Catalog) WithInfoTimeout(d time.Duration) *Catalog {
	if d > 0 {
		c.infoTimeout = d
	}
	return c
}

// Discover replaces the catalog contents with the valid scripts found
// in dir. Every executable regular file is queried for its metadata;
// candidates that time out, produce invalid metadata, or share a guid
// with an earlier candidate are discarded whole. Returns the accepted
// descriptors.
func (c *Catalog) Discover(dir string) []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = make(map[uuid.UUID]*script)
	c.rejected = 0

	entries, err := os.ReadDir(dir)
	if err != nil {
		c.log.Warn("cannot read animation directory", zap.String("dir", dir), zap.Error(err))
		return nil
	}

	var accepted []Descriptor
	for _, entry := range entries {
		fi, err := entry.Info()
		if err != nil || !fi.Mode().IsRegular() || fi.Mode().Perm()&0111 == 0 {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, ok := c.load(path)
		if !ok {
			c.rejected++
			continue
		}
		if _, seen := c.scripts[info.GUID]; seen {
			// First-seen wins; later duplicates are discarded.
			c.log.Debug("duplicate animation guid",
				zap.String("path", path), zap.String("guid", info.GUID.String()))
			c.rejected++
			continue
		}
		c.scripts[info.GUID] = &script{path: path, info: info}
		accepted = append(accepted, info)
		c.log.Info("discovered animation",
			zap.String("name", info.Name), zap.String("path", path))
	}
	return accepted
}

// load runs one candidate's info query under the timeout and parses
// what it printed. The exit status is irrelevant; only overrunning
// the deadline or bad metadata rejects a candidate.
func (c *Catalog) load(path string) (Descriptor, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), c.infoTimeout)
	defer cancel()

	c.log.Debug("scanning animation candidate", zap.String("path", path))
	out, err := exec.CommandContext(ctx, path, "--ckb-info").Output()
	if ctx.Err() != nil {
		c.log.Debug("info query timed out", zap.String("path", path))
		return Descriptor{}, false
	}
	if err != nil && len(out) == 0 {
		return Descriptor{}, false
	}
	info, ok := parseInfo(out)
	if !ok {
		c.log.Debug("invalid animation metadata", zap.String("path", path))
		return Descriptor{}, false
	}
	return info, true
}

// List returns the catalog's descriptors ordered by display name.
// Scripts sharing a display name are permanently renamed with their
// upper-cased guid text appended, forcing user-facing uniqueness.
func (c *Catalog) List() []Descriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	byName := make(map[string]int)
	for _, s := range c.scripts {
		byName[s.info.Name]++
	}
	out := make([]Descriptor, 0, len(c.scripts))
	for _, s := range c.scripts {
		if byName[s.info.Name] > 1 {
			s.info.Name += " " + strings.ToUpper(s.info.GUID.String())
		}
		out = append(out, s.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Rejected reports how many candidates the last scan discarded.
func (c *Catalog) Rejected() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rejected
}

// Get returns the descriptor for a guid, if known.
func (c *Catalog) Get(guid uuid.UUID) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scripts[guid]
	if !ok {
		return Descriptor{}, false
	}
	return s.info, true
}

// CloneForUse binds a fresh, uninitialized instance to the script
// with the given guid, or returns nil when the guid is unknown.
func (c *Catalog) CloneForUse(guid uuid.UUID) *Instance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scripts[guid]
	if !ok {
		return nil
	}
	return newInstance(s.path, s.info, c.log)
}
