package scheduler

import (
	"context"
	"time"

	"github.com/kerrizor/ckb/internal/anim"
	"github.com/kerrizor/ckb/internal/infrastructure/logging"
	"github.com/kerrizor/ckb/internal/infrastructure/monitoring"
	"go.uber.org/zap"
)

// DefaultFrameRate is the nominal tick cadence, in frames per second.
const DefaultFrameRate = 60

// Scheduler drives every live animation instance from a single
// goroutine. Instances have exactly one owner, so all external
// operations are funneled onto the driver via a command channel
// instead of locking instance state.
type Scheduler struct {
	interval  time.Duration
	instances map[string]*anim.Instance
	subs      map[string]map[chan map[string]uint32]struct{}

	cmds   chan func()
	closed chan struct{}

	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a scheduler ticking at the given frame rate.
func New(frameRate int, log *logging.Logger, metrics *monitoring.Metrics) *Scheduler {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	if log == nil {
		log = logging.NewDefault()
	}
	return &Scheduler{
		interval:  time.Second / time.Duration(frameRate),
		instances: make(map[string]*anim.Instance),
		subs:      make(map[string]map[chan map[string]uint32]struct{}),
		cmds:      make(chan func(), 64),
		closed:    make(chan struct{}),
		log:       log,
		metrics:   metrics,
	}
}

// Run ticks until ctx is cancelled, then closes every instance.
// All instance access happens on this goroutine.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.closed)

	s.log.Info("frame scheduler running",
		zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			for id, inst := range s.instances {
				inst.Close()
				delete(s.instances, id)
			}
			for id, set := range s.subs {
				for ch := range set {
					close(ch)
				}
				delete(s.subs, id)
			}
			return ctx.Err()
		case fn := <-s.cmds:
			fn()
		case <-ticker.C:
			s.tick(time.Now().UnixMilli())
		}
	}
}

// tick advances every instance and publishes color snapshots.
func (s *Scheduler) tick(now int64) {
	start := time.Now()
	for id, inst := range s.instances {
		inst.Frame(now)
		s.publish(id, inst.Colors())
	}
	if s.metrics != nil {
		s.metrics.FrameTicks.Inc()
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		s.metrics.InstancesActive.Set(float64(len(s.instances)))
	}
}

// publish pushes a snapshot to each subscriber, replacing a stale
// pending snapshot rather than blocking the driver.
func (s *Scheduler) publish(id string, colors map[string]uint32) {
	for ch := range s.subs[id] {
		select {
		case ch <- colors:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- colors:
			default:
			}
		}
	}
}

// do runs fn on the driver goroutine and waits for it.
func (s *Scheduler) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
	case <-s.closed:
		return false
	}
	select {
	case <-done:
		return true
	case <-s.closed:
		return false
	}
}

// Add hands an instance to the driver under the given id. The
// scheduler owns it from here on; Remove closes it.
func (s *Scheduler) Add(id string, inst *anim.Instance) {
	s.do(func() {
		if old, ok := s.instances[id]; ok {
			old.Close()
		}
		s.instances[id] = inst
		if s.metrics != nil {
			s.metrics.InstancesTotal.Inc()
		}
	})
}

// Remove closes and forgets an instance. Reports whether it existed.
func (s *Scheduler) Remove(id string) bool {
	found := false
	s.do(func() {
		inst, ok := s.instances[id]
		if !ok {
			return
		}
		found = true
		inst.Close()
		delete(s.instances, id)
		// Terminate the instance's streams along with it.
		for ch := range s.subs[id] {
			close(ch)
		}
		delete(s.subs, id)
	})
	return found
}

// Retrigger restarts an instance's triggered sequence, with
// preemption allowed.
func (s *Scheduler) Retrigger(id string) bool {
	found := false
	s.do(func() {
		if inst, ok := s.instances[id]; ok {
			found = true
			inst.Retrigger(time.Now().UnixMilli(), true)
		}
	})
	return found
}

// Keypress forwards a key event to an instance.
func (s *Scheduler) Keypress(id, key string, pressed bool) bool {
	found := false
	s.do(func() {
		if inst, ok := s.instances[id]; ok {
			found = true
			inst.Keypress(key, pressed, time.Now().UnixMilli())
		}
	})
	return found
}

// Descriptor returns the descriptor snapshot of a live instance.
func (s *Scheduler) Descriptor(id string) (anim.Descriptor, bool) {
	var desc anim.Descriptor
	found := false
	s.do(func() {
		if inst, ok := s.instances[id]; ok {
			found = true
			desc = inst.Descriptor()
		}
	})
	return desc, found
}

// UpdateParameters replaces an instance's parameter values.
func (s *Scheduler) UpdateParameters(id string, values map[string]interface{}) bool {
	found := false
	s.do(func() {
		if inst, ok := s.instances[id]; ok {
			found = true
			inst.UpdateParameters(values)
		}
	})
	return found
}

// Colors returns the current color snapshot of an instance.
func (s *Scheduler) Colors(id string) (map[string]uint32, bool) {
	var colors map[string]uint32
	found := false
	s.do(func() {
		if inst, ok := s.instances[id]; ok {
			found = true
			colors = inst.Colors()
		}
	})
	return colors, found
}

// Subscribe streams color snapshots for an instance at the frame
// cadence. The returned cancel function must be called when done.
func (s *Scheduler) Subscribe(id string) (<-chan map[string]uint32, func()) {
	ch := make(chan map[string]uint32, 1)
	s.do(func() {
		if s.subs[id] == nil {
			s.subs[id] = make(map[chan map[string]uint32]struct{})
		}
		s.subs[id][ch] = struct{}{}
	})
	cancel := func() {
		s.do(func() {
			delete(s.subs[id], ch)
		})
	}
	return ch, cancel
}
