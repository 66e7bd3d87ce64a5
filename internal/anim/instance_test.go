package anim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kerrizor/ckb/internal/infrastructure/logging"
)

// fakeChild records the protocol written to it and feeds canned
// output lines back to the instance.
type fakeChild struct {
	written []string
	pending []string
	kills   int
	closes  int
}

func (f *fakeChild) writeLine(line string) { f.written = append(f.written, line) }
func (f *fakeChild) drain() []string {
	lines := f.pending
	f.pending = nil
	return lines
}
func (f *fakeChild) kill()                     { f.kills++ }
func (f *fakeChild) closeWait(_ time.Duration) { f.closes++ }

// emit queues child output for the next drain.
func (f *fakeChild) emit(lines ...string) { f.pending = append(f.pending, lines...) }

// consumeFrame queues an empty rendered frame, releasing the clock
// for the next advance.
func (f *fakeChild) consumeFrame() { f.emit("begin frame", "end frame") }

// spawner hands out fake children and remembers the newest one.
type spawner struct {
	last *fakeChild
}

func (s *spawner) spawn(string, *logging.Logger) (child, error) {
	s.last = &fakeChild{}
	return s.last, nil
}

func testDescriptor() Descriptor {
	info, ok := parseInfo([]byte(validInfoHeader + "kpmode name\npreempt on\nparammode live\n"))
	if !ok {
		panic("test descriptor invalid")
	}
	return info
}

func testKeymap() KeyMap {
	return KeyMap{
		"a": {X: 3, Y: 2},
		"b": {X: 5, Y: 4},
		"c": {X: 4, Y: 7},
	}
}

// newTestInstance builds an initialized instance wired to fake children.
func newTestInstance(t *testing.T, mutate func(*Descriptor), params map[string]interface{}) (*Instance, *spawner) {
	t.Helper()
	info := testDescriptor()
	if mutate != nil {
		mutate(&info)
	}
	inst := newInstance("/nonexistent/animation", info, logging.NewNop())
	sp := &spawner{}
	inst.spawn = sp.spawn

	values := info.DefaultParams()
	for k, v := range params {
		values[k] = v
	}
	inst.Init(testKeymap(), []string{"a", "b", "ghost"}, values)
	return inst, sp
}

func TestFrameHandshake(t *testing.T) {
	inst, sp := newTestInstance(t, nil, map[string]interface{}{"duration": 1.0})

	inst.Frame(1000)
	require.NotNil(t, sp.last)

	w := sp.last.written
	require.GreaterOrEqual(t, len(w), 6)
	assert.Equal(t, "begin keymap", w[0])
	assert.Equal(t, "keycount 2", w[1], "keys missing from the keymap are dropped")
	assert.Equal(t, "key a 0,0", w[2], "positions are bounding-box relative")
	assert.Equal(t, "key b 2,2", w[3])
	assert.Equal(t, "end keymap", w[4])
	assert.Equal(t, "begin params", w[5])
	assert.Contains(t, w, "param duration 1")
	assert.Contains(t, w, "param trigger 1")
	assert.Equal(t, "begin run", w[len(w)-2])
	assert.Equal(t, "frame 0", w[len(w)-1], "first frame starts the clock at zero")
}

func TestFrameDeltas(t *testing.T) {
	inst, sp := newTestInstance(t, nil, map[string]interface{}{"duration": 1.0})

	inst.Frame(1000)
	f := sp.last
	mark := len(f.written)

	// Previous frame not consumed: the clock must not advance
	inst.Frame(1400)
	assert.Equal(t, mark, len(f.written), "protocol must not outrun the child")

	// Consumed: 2.5 durations elapse in one tick
	f.consumeFrame()
	inst.Frame(3500)
	assert.Equal(t, []string{"frame 1", "frame 1", "frame 0.5"}, f.written[mark:])
}

func TestFrameClockNeverBackward(t *testing.T) {
	inst, sp := newTestInstance(t, nil, map[string]interface{}{"duration": 1.0})

	inst.Frame(5000)
	f := sp.last
	f.consumeFrame()
	mark := len(f.written)

	inst.Frame(4000)
	assert.Equal(t, []string{"frame 0"}, f.written[mark:])

	// The reset clock advances normally afterward
	f.consumeFrame()
	inst.Frame(4500)
	assert.Equal(t, "frame 0.5", f.written[len(f.written)-1])
}

func TestFrameAbsoluteTime(t *testing.T) {
	inst, sp := newTestInstance(t, func(d *Descriptor) { d.AbsoluteTime = true }, nil)

	inst.Frame(1000)
	f := sp.last
	f.consumeFrame()
	mark := len(f.written)

	// Absolute time: no synthetic whole-cycle ticks, raw delta in seconds
	inst.Frame(3500)
	assert.Equal(t, []string{"frame 2.5"}, f.written[mark:])
}

func TestFrameUnboundedDuration(t *testing.T) {
	inst, sp := newTestInstance(t, nil, map[string]interface{}{"duration": 0.0})

	inst.Frame(1000)
	f := sp.last
	f.consumeFrame()
	inst.Frame(99999)
	assert.Equal(t, "frame 0", f.written[len(f.written)-1])
}

func TestRetriggerPreemption(t *testing.T) {
	inst, sp := newTestInstance(t, nil, map[string]interface{}{
		"duration": 1.0,
		"repeat":   0.5,
	})

	inst.Retrigger(10000, true)
	f := sp.last
	require.NotNil(t, f)

	// The synthetic pass starts the clock at 9500 and triggers, then
	// the real pass advances half a duration to 10000 and triggers.
	n := len(f.written)
	require.GreaterOrEqual(t, n, 4)
	assert.Equal(t, []string{"frame 0", "start", "frame 0.5", "start"}, f.written[n-4:])
}

func TestRetriggerWithoutPreemption(t *testing.T) {
	inst, sp := newTestInstance(t, nil, map[string]interface{}{
		"duration": 1.0,
		"repeat":   0.5,
	})

	inst.Retrigger(10000, false)
	f := sp.last
	n := len(f.written)
	assert.Equal(t, []string{"frame 0", "start"}, f.written[n-2:])
}

func TestOutputParsing(t *testing.T) {
	inst, sp := newTestInstance(t, nil, nil)
	inst.Frame(1000)
	f := sp.last

	f.emit(
		"log noise before the frame",
		"begin frame",
		"argb KEY_A ff00ff00",
		"argb",
		"rgb KEY_B ffffffff",
		"argb KEY_C 00000000 extra",
		"end frame",
	)
	inst.Frame(1100)

	colors := inst.Colors()
	assert.Equal(t, uint32(0xff00ff00), colors["KEY_A"])
	assert.NotContains(t, colors, "KEY_B", "wrong keyword is dropped")
	assert.NotContains(t, colors, "KEY_C", "wrong token count is dropped")
	assert.Len(t, colors, 1)
}

func TestOutputOverwrites(t *testing.T) {
	inst, sp := newTestInstance(t, nil, nil)
	inst.Frame(1000)
	f := sp.last

	f.emit("begin frame", "argb a 11111111", "end frame")
	inst.Frame(1100)
	f.emit("begin frame", "argb a 22222222", "end frame")
	inst.Frame(1200)

	assert.Equal(t, uint32(0x22222222), inst.Colors()["a"])
}

func TestEndRunStopsInstance(t *testing.T) {
	inst, sp := newTestInstance(t, nil, nil)
	inst.Frame(1000)
	f := sp.last

	f.emit("end run")
	inst.Frame(1100)
	assert.True(t, inst.Stopped())

	// A stopped instance ignores further ticks
	mark := len(f.written)
	inst.Frame(1200)
	assert.Equal(t, mark, len(f.written))

	// Re-init revives it
	inst.Init(testKeymap(), []string{"a"}, inst.info.DefaultParams())
	assert.False(t, inst.Stopped())
	inst.Frame(1300)
	assert.NotEqual(t, f, sp.last, "a fresh child is spawned after re-init")
}

func TestEndRunInsideFrameBlock(t *testing.T) {
	inst, sp := newTestInstance(t, nil, nil)
	inst.Frame(1000)
	f := sp.last

	// "end run" takes effect even while a frame block is open
	f.emit("begin frame", "argb a 11111111", "end run")
	inst.Frame(1100)
	assert.True(t, inst.Stopped())
	assert.Empty(t, inst.Colors(), "the unfinished frame is never applied")
}

func TestKeypressByName(t *testing.T) {
	inst, sp := newTestInstance(t, nil, nil)

	inst.Keypress("g", true, 1000)
	f := sp.last
	require.NotNil(t, f)
	assert.Equal(t, "key g down", f.written[len(f.written)-1])

	inst.Keypress("g", false, 1100)
	assert.Equal(t, "key g up", f.written[len(f.written)-1])
}

func TestKeypressByPosition(t *testing.T) {
	inst, sp := newTestInstance(t, func(d *Descriptor) { d.KPMode = KPPosition }, nil)

	inst.Keypress("b", true, 1000)
	f := sp.last
	assert.Equal(t, "key 2,2 down", f.written[len(f.written)-1])

	// Unknown keys are silently ignored
	mark := len(f.written)
	inst.Keypress("ghost", true, 1100)
	assert.Equal(t, mark, len(f.written))
}

func TestKeypressNoneRetriggers(t *testing.T) {
	inst, sp := newTestInstance(t, func(d *Descriptor) { d.KPMode = KPNone }, nil)

	inst.Keypress("a", true, 1000)
	f := sp.last
	assert.Equal(t, "start", f.written[len(f.written)-1])

	mark := len(f.written)
	inst.Keypress("a", false, 1100)
	assert.Equal(t, mark, len(f.written), "releases are ignored")
}

func TestUpdateParameters(t *testing.T) {
	t.Run("live params retransmit", func(t *testing.T) {
		inst, sp := newTestInstance(t, nil, map[string]interface{}{"duration": 1.0})
		inst.Frame(1000)
		f := sp.last
		mark := len(f.written)

		values := inst.info.DefaultParams()
		values["duration"] = 2.0
		inst.UpdateParameters(values)

		assert.Equal(t, "begin params", f.written[mark])
		assert.Contains(t, f.written[mark:], "param duration 2")
		assert.Equal(t, "end params", f.written[len(f.written)-1])
		assert.Equal(t, int64(2000), inst.durationMsec)
	})

	t.Run("no-op without live params", func(t *testing.T) {
		inst, sp := newTestInstance(t, func(d *Descriptor) { d.LiveParams = false }, map[string]interface{}{"duration": 1.0})
		inst.Frame(1000)
		f := sp.last
		mark := len(f.written)

		values := inst.info.DefaultParams()
		values["duration"] = 2.0
		inst.UpdateParameters(values)

		assert.Equal(t, mark, len(f.written))
		assert.Equal(t, int64(1000), inst.durationMsec)
	})
}

func TestStopIdempotent(t *testing.T) {
	inst, sp := newTestInstance(t, nil, nil)
	inst.Frame(1000)
	f := sp.last

	f.emit("begin frame", "argb a 11111111", "end frame")
	inst.Frame(1100)
	require.NotEmpty(t, inst.Colors())

	inst.Stop()
	assert.Equal(t, 1, f.kills)
	assert.Empty(t, inst.Colors())

	inst.Stop()
	assert.Equal(t, 1, f.kills, "second stop has no child to kill")
}

func TestCloseWaitsForChild(t *testing.T) {
	inst, sp := newTestInstance(t, nil, nil)
	inst.Frame(1000)

	inst.Close()
	assert.Equal(t, 1, sp.last.closes)
	inst.Close()
	assert.Equal(t, 1, sp.last.closes)
}

func TestUninitializedInstanceIsInert(t *testing.T) {
	info := testDescriptor()
	inst := newInstance("/nonexistent/animation", info, logging.NewNop())
	sp := &spawner{}
	inst.spawn = sp.spawn

	inst.Frame(1000)
	inst.Retrigger(1000, true)
	inst.Keypress("a", true, 1000)
	assert.Nil(t, sp.last, "operations before Init must not spawn a child")
}

func TestInitRecomputesDuration(t *testing.T) {
	inst, _ := newTestInstance(t, nil, map[string]interface{}{
		"duration": 2.0,
		"repeat":   3.0,
	})
	assert.Equal(t, int64(2000), inst.durationMsec)
	assert.Equal(t, int64(3000), inst.repeatMsec)

	abs, _ := newTestInstance(t, func(d *Descriptor) { d.AbsoluteTime = true }, nil)
	assert.Equal(t, int64(1000), abs.durationMsec)
	assert.Equal(t, int64(0), abs.repeatMsec)
}
