package animation_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/skirmish/internal/game/animation"
	"github.com/cory-johannsen/skirmish/internal/testutil"
)

// harness wires a Sequencer to a fake clock and collects posted messages.
type harness struct {
	clock *testutil.FakeClock
	seq   *animation.Sequencer
	due   chan animation.Due
}

func newHarness() *harness {
	h := &harness{clock: testutil.NewFakeClock(), due: make(chan animation.Due, 64)}
	h.seq = animation.NewSequencer(h.clock, animation.DefaultDurations(), func(d animation.Due) {
		h.due <- d
	}, nil)
	return h
}

// advance moves time and feeds every posted message back, collecting completions.
func (h *harness) advance(d time.Duration) []animation.Completed {
	h.clock.Advance(d)
	var out []animation.Completed
	for {
		select {
		case next := <-h.due:
			if c, ok := h.seq.HandleDue(next); ok {
				out = append(out, c)
			}
		default:
			return out
		}
	}
}

func TestAttackAnimation_Durations(t *testing.T) {
	h := newHarness()
	ev, forced := h.seq.StartAttackAnimation("hero", "goblin", 7, true, animation.BasicAttack)
	assert.Nil(t, forced)
	assert.Equal(t, 700*time.Millisecond, ev.Duration)
	assert.Empty(t, h.advance(699*time.Millisecond))
	done := h.advance(time.Millisecond)
	require.Len(t, done, 1)
	assert.Equal(t, ev.ID, done[0].Event.ID)
	assert.False(t, done[0].Forced)
	assert.False(t, h.seq.Busy())

	ev, _ = h.seq.StartAttackAnimation("goblin", "hero", 3, false, animation.SpecialAbility)
	assert.Equal(t, 650*time.Millisecond, ev.Duration)
	assert.Len(t, h.advance(650*time.Millisecond), 1)
}

func TestItemUseAnimation_Durations(t *testing.T) {
	h := newHarness()
	ev, _ := h.seq.StartItemUseAnimation("hero", "", false, true)
	assert.Equal(t, 200*time.Millisecond, ev.Duration)
	assert.True(t, ev.Persistent)
	h.advance(time.Second)
	ev, _ = h.seq.StartItemUseAnimation("hero", "goblin", true, false)
	assert.Equal(t, 600*time.Millisecond, ev.Duration)
	assert.Equal(t, animation.ItemUse, ev.Kind)
}

func TestStartTwice_ForcesFirstAndCompletesSecondOnce(t *testing.T) {
	h := newHarness()
	first, _ := h.seq.StartAttackAnimation("hero", "goblin", 9, true, animation.BasicAttack)
	second, forced := h.seq.StartAttackAnimation("hero", "orc", 4, true, animation.BasicAttack)

	require.NotNil(t, forced)
	assert.True(t, forced.Forced)
	assert.Equal(t, first.ID, forced.Event.ID)

	active, ok := h.seq.Active()
	require.True(t, ok)
	assert.Equal(t, "orc", active.Target)
	assert.Equal(t, 4, active.Damage)

	done := h.advance(5 * time.Second)
	require.Len(t, done, 1)
	assert.Equal(t, second.ID, done[0].Event.ID)
	assert.Zero(t, h.clock.Pending())
}

func TestStaleDueIgnored(t *testing.T) {
	h := newHarness()
	first, _ := h.seq.StartAttackAnimation("hero", "goblin", 9, true, animation.BasicAttack)
	h.seq.StartGuardAnimation("hero")
	_, ok := h.seq.HandleDue(animation.Due{Seq: first.ID})
	assert.False(t, ok)
	assert.True(t, h.seq.Busy())
}

func TestExactlyOneCompletionPerStart_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		h := newHarness()
		started := map[uint64]int{}
		completed := map[uint64]int{}
		ops := rapid.SliceOfN(rapid.IntRange(0, 3), 1, 30).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case 0:
				ev, f := h.seq.StartAttackAnimation("a", "b", 1, rapid.Bool().Draw(rt, "player"), animation.BasicAttack)
				started[ev.ID]++
				if f != nil {
					completed[f.Event.ID]++
				}
			case 1:
				ev, f := h.seq.StartItemUseAnimation("a", "", rapid.Bool().Draw(rt, "thrown"), false)
				started[ev.ID]++
				if f != nil {
					completed[f.Event.ID]++
				}
			case 2:
				for _, c := range h.advance(time.Duration(rapid.IntRange(0, 1000).Draw(rt, "ms")) * time.Millisecond) {
					completed[c.Event.ID]++
				}
			case 3:
				if f := h.seq.ForceComplete(); f != nil {
					completed[f.Event.ID]++
				}
			}
		}
		for _, c := range h.advance(time.Hour) {
			completed[c.Event.ID]++
		}
		assert.Equal(rt, started, completed)
	})
}

func TestOverlay_OneShotSuspendsPersistent(t *testing.T) {
	h := newHarness()
	h.seq.ShowPersistent("rage")
	h.seq.ShowOneShot("heal")

	st := h.seq.Overlay()
	require.NotNil(t, st.Current)
	assert.Equal(t, "heal", st.Current.Name)
	require.NotNil(t, st.Suspended)
	assert.Equal(t, "rage", st.Suspended.Name)

	h.advance(1999 * time.Millisecond)
	assert.Equal(t, "heal", h.seq.Overlay().Current.Name)
	h.advance(time.Millisecond)
	st = h.seq.Overlay()
	require.NotNil(t, st.Current)
	assert.Equal(t, "rage", st.Current.Name)
	assert.True(t, st.Current.Persistent)
	assert.Nil(t, st.Suspended)
}

func TestOverlay_PersistentDuringOneShotIsSuspended(t *testing.T) {
	h := newHarness()
	h.seq.ShowOneShot("poison")
	h.seq.ShowPersistent("guard")
	assert.Equal(t, "poison", h.seq.Overlay().Current.Name)
	h.advance(2 * time.Second)
	assert.Equal(t, "guard", h.seq.Overlay().Current.Name)
}

func TestOverlay_PersistentDoesNotTimeOut(t *testing.T) {
	h := newHarness()
	h.seq.ShowPersistent("rage")
	h.advance(time.Hour)
	require.NotNil(t, h.seq.Overlay().Current)
	h.seq.ClearPersistent("rage")
	assert.Nil(t, h.seq.Overlay().Current)
}

func TestOverlay_SecondPersistentSuspendsFirst(t *testing.T) {
	h := newHarness()
	h.seq.ShowPersistent("rage")
	h.seq.ShowPersistent("guard")
	st := h.seq.Overlay()
	require.NotNil(t, st.Current)
	require.NotNil(t, st.Suspended)
	assert.Equal(t, "guard", st.Current.Name)
	assert.Equal(t, "rage", st.Suspended.Name)

	h.seq.ClearPersistent("guard")
	st = h.seq.Overlay()
	require.NotNil(t, st.Current)
	assert.Equal(t, "rage", st.Current.Name)
	assert.Nil(t, st.Suspended)

	h.seq.ShowPersistent("rage")
	assert.Nil(t, h.seq.Overlay().Suspended, "showing the same visual again does not stack it")
}

func TestOverlay_ClearSuspended(t *testing.T) {
	h := newHarness()
	h.seq.ShowPersistent("rage")
	h.seq.ShowOneShot("heal")
	h.seq.ClearPersistent("rage")
	h.advance(2 * time.Second)
	assert.Nil(t, h.seq.Overlay().Current)
}

func TestOverlay_SecondOneShotRestartsTimer(t *testing.T) {
	h := newHarness()
	h.seq.ShowOneShot("heal")
	h.advance(1500 * time.Millisecond)
	h.seq.ShowOneShot("poison")
	h.advance(1000 * time.Millisecond)
	assert.Equal(t, "poison", h.seq.Overlay().Current.Name)
	h.advance(1000 * time.Millisecond)
	assert.Nil(t, h.seq.Overlay().Current)
}

func TestReset(t *testing.T) {
	h := newHarness()
	h.seq.StartAttackAnimation("hero", "goblin", 1, true, animation.BasicAttack)
	h.seq.ShowOneShot("heal")
	h.seq.Reset()
	assert.False(t, h.seq.Busy())
	assert.Empty(t, h.advance(time.Hour))
	assert.Nil(t, h.seq.Overlay().Current)
}

func TestClock_FiresAndStops(t *testing.T) {
	var fired atomic.Int32
	c := animation.NewClock()
	c.AfterFunc(10*time.Millisecond, func() { fired.Add(1) })
	stopped := c.AfterFunc(50*time.Millisecond, func() { fired.Add(10) })
	assert.True(t, stopped.Stop())
	assert.False(t, stopped.Stop())
	assert.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "guard", animation.Guard.String())
	assert.Equal(t, "item_use", animation.ItemUse.String())
}
