package anim

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kerrizor/ckb/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// unboundedDuration marks a relative-time instance with no usable
// duration; frame deltas collapse to zero instead of dividing by it.
const unboundedDuration int64 = -1

// Instance is a live, stateful binding of one descriptor to a key set
// and parameter values. It owns at most one child process at a time
// and must only be touched by the single driver that owns it.
type Instance struct {
	path string
	info Descriptor

	keymap      KeyMap
	keys        []string
	paramValues map[string]interface{}

	initialized bool
	stopped     bool
	firstFrame  bool
	readFrame   bool

	durationMsec int64
	repeatMsec   int64
	lastFrame    int64
	minX, minY   int

	colors   map[string]uint32
	frameBuf []string

	proc  child
	spawn spawnFunc
	log   *logging.Logger
}

// newInstance binds a descriptor snapshot to an executable path.
func newInstance(path string, info Descriptor, log *logging.Logger) *Instance {
	return &Instance{
		path:   path,
		info:   info,
		colors: make(map[string]uint32),
		spawn:  startProcess,
		log:    log,
	}
}

// Descriptor returns the descriptor snapshot this instance was cloned from.
func (inst *Instance) Descriptor() Descriptor { return inst.info }

// Init binds a keymap, key subset and parameter values, stopping any
// running child first. The instance may be re-initialized and reused
// after a Stop.
func (inst *Instance) Init(keymap KeyMap, keys []string, paramValues map[string]interface{}) {
	if inst.path == "" {
		return
	}
	inst.Stop()
	inst.keymap = keymap
	inst.keys = keys
	inst.paramValues = paramValues
	inst.setDuration()
	inst.stopped = false
	inst.firstFrame = false
	inst.initialized = true
}

// setDuration computes the frame clock divisors from the current
// parameter values. Absolute time pins them; a non-positive relative
// duration becomes the unbounded sentinel.
func (inst *Instance) setDuration() {
	if inst.info.AbsoluteTime {
		inst.durationMsec = 1000
		inst.repeatMsec = 0
		return
	}
	inst.durationMsec = int64(math.Round(valueFloat(inst.paramValues["duration"]) * 1000))
	if inst.durationMsec <= 0 {
		inst.durationMsec = unboundedDuration
	}
	inst.repeatMsec = int64(math.Round(valueFloat(inst.paramValues["repeat"]) * 1000))
}

// UpdateParameters replaces the parameter values on a live-parameter
// script, retransmitting them if a child is running. No-op otherwise.
func (inst *Instance) UpdateParameters(paramValues map[string]interface{}) {
	if !inst.initialized || !inst.info.LiveParams {
		return
	}
	inst.paramValues = paramValues
	inst.setDuration()
	if inst.proc != nil {
		inst.sendParams()
	}
}

// sendParams writes the current parameter block to the child.
func (inst *Instance) sendParams() {
	inst.proc.writeLine("begin params")
	names := make([]string, 0, len(inst.paramValues))
	for name := range inst.paramValues {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := percentEncode(valueString(inst.paramValues[name]))
		inst.proc.writeLine("param " + name + " " + value)
	}
	inst.proc.writeLine("end params")
}

// start spawns the child lazily and performs the opening handshake:
// keymap block, parameter block, then the run block.
func (inst *Instance) start(timestamp int64) {
	if !inst.initialized {
		return
	}
	inst.Stop()
	inst.stopped = false
	inst.firstFrame = false
	inst.readFrame = false
	inst.frameBuf = nil

	proc, err := inst.spawn(inst.path, inst.log)
	if err != nil {
		inst.log.Warn("failed to start animation", zap.String("path", inst.path), zap.Error(err))
		return
	}
	inst.proc = proc
	inst.log.Debug("started animation", zap.String("path", inst.path))

	// Bounding box over the keys that exist in the keymap; keys the
	// map doesn't know are dropped from the bound set.
	bound := make([]string, 0, len(inst.keys))
	inst.minX, inst.minY = math.MaxInt32, math.MaxInt32
	for _, key := range inst.keys {
		pos, ok := inst.keymap[key]
		if !ok {
			continue
		}
		bound = append(bound, key)
		if pos.X < inst.minX {
			inst.minX = pos.X
		}
		if pos.Y < inst.minY {
			inst.minY = pos.Y
		}
	}

	proc.writeLine("begin keymap")
	proc.writeLine(fmt.Sprintf("keycount %d", len(bound)))
	for _, key := range bound {
		pos := inst.keymap[key]
		proc.writeLine(fmt.Sprintf("key %s %d,%d", key, pos.X-inst.minX, pos.Y-inst.minY))
	}
	proc.writeLine("end keymap")
	inst.sendParams()
	proc.writeLine("begin run")
	inst.lastFrame = timestamp
}

// Frame advances the animation by one driver tick. The clock only
// moves when the previous frame was consumed by the child, or when no
// frame has been sent yet, so the protocol never outruns the child.
func (inst *Instance) Frame(timestamp int64) {
	if !inst.initialized {
		return
	}
	inst.processOutput()
	if inst.stopped {
		return
	}
	if inst.proc == nil {
		inst.start(timestamp)
		if inst.proc == nil {
			return
		}
	}
	if inst.readFrame || !inst.firstFrame {
		inst.nextFrame(timestamp)
	}
	inst.readFrame = false
}

// Retrigger restarts the child's triggered sequence. With preemption
// enabled on a repeating timeline, the animation is first triggered
// one repeat period in the past so it appears already in progress;
// that synthetic call never preempts again.
func (inst *Instance) Retrigger(timestamp int64, allowPreempt bool) {
	if !inst.initialized {
		return
	}
	if allowPreempt && inst.info.Preempt && inst.repeatMsec > 0 {
		inst.Retrigger(timestamp-inst.repeatMsec, false)
	}
	if inst.proc == nil {
		inst.start(timestamp)
		if inst.proc == nil {
			return
		}
	}
	inst.nextFrame(timestamp)
	inst.proc.writeLine("start")
}

// Keypress forwards one key event according to the descriptor's
// keypress mode.
func (inst *Instance) Keypress(key string, pressed bool, timestamp int64) {
	if !inst.initialized {
		return
	}
	if inst.proc == nil {
		inst.start(timestamp)
		if inst.proc == nil {
			return
		}
	}
	switch inst.info.KPMode {
	case KPNone:
		// Keypresses retrigger the animation; releases are ignored.
		if pressed {
			inst.Retrigger(timestamp, false)
		}
	case KPName:
		inst.nextFrame(timestamp)
		inst.proc.writeLine("key " + key + keyEventSuffix(pressed))
	case KPPosition:
		pos, ok := inst.keymap[key]
		if !ok {
			return
		}
		inst.nextFrame(timestamp)
		inst.proc.writeLine(fmt.Sprintf("key %d,%d%s",
			pos.X-inst.minX, pos.Y-inst.minY, keyEventSuffix(pressed)))
	}
}

func keyEventSuffix(pressed bool) string {
	if pressed {
		return " down"
	}
	return " up"
}

// Stop clears the accumulated colors and kills any running child,
// detaching its cleanup so the caller never blocks. Idempotent.
func (inst *Instance) Stop() {
	inst.colors = make(map[string]uint32)
	if inst.proc != nil {
		inst.proc.kill()
		inst.proc = nil
	}
}

// Close releases the instance, waiting a bounded interval for any
// live child to exit after it has been signaled.
func (inst *Instance) Close() {
	inst.colors = make(map[string]uint32)
	if inst.proc != nil {
		inst.proc.closeWait(killWait)
		inst.proc = nil
	}
}

// Colors returns a copy of the accumulated key color mapping.
func (inst *Instance) Colors() map[string]uint32 {
	out := make(map[string]uint32, len(inst.colors))
	for k, v := range inst.colors {
		out[k] = v
	}
	return out
}

// Stopped reports whether the child announced the end of its run.
func (inst *Instance) Stopped() bool { return inst.stopped }

// processOutput drains buffered child output through the frame state
// machine. Lines outside a frame block are ignored except the
// "end run" sentinel, which stops the instance from any state.
func (inst *Instance) processOutput() {
	if inst.proc == nil {
		return
	}
	for _, line := range inst.proc.drain() {
		if line == "end run" {
			// Terminates the run from any state, even mid-frame; the
			// unfinished frame is never applied.
			inst.stopped = true
			return
		}
		if len(inst.frameBuf) == 0 && line != "begin frame" {
			continue
		}
		if line == "end frame" {
			for _, entry := range inst.frameBuf {
				fields := strings.Split(entry, " ")
				if len(fields) != 3 || fields[0] != "argb" {
					continue
				}
				value, err := strconv.ParseUint(fields[2], 16, 32)
				if err != nil {
					value = 0
				}
				inst.colors[fields[1]] = uint32(value)
			}
			inst.frameBuf = inst.frameBuf[:0]
			inst.readFrame = true
			continue
		}
		inst.frameBuf = append(inst.frameBuf, line)
	}
}

// nextFrame advances the frame clock to timestamp and tells the child
// how much of one duration elapsed. The clock never runs backward; in
// relative mode each whole elapsed duration is sent as a synthetic
// full-cycle tick so a stalled driver doesn't flood the child.
func (inst *Instance) nextFrame(timestamp int64) {
	if timestamp <= inst.lastFrame {
		inst.lastFrame = timestamp
	}
	delta := float64(timestamp-inst.lastFrame) / float64(inst.durationMsec)
	if !inst.info.AbsoluteTime {
		for delta > 1 {
			inst.proc.writeLine("frame 1")
			delta--
		}
	}
	if delta <= 0 {
		// Also normalizes the negative zero an unbounded duration produces.
		delta = 0
	}
	inst.lastFrame = timestamp
	inst.proc.writeLine("frame " + strconv.FormatFloat(delta, 'g', -1, 64))
	inst.firstFrame = true
}
