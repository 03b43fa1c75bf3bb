package input

import "testing"

type fakeBackend struct {
	moves  [][2]int
	btns   []struct {
		code    uint8
		pressed bool
	}
	wheels []struct{ dx, dy float32 }
	keys   []struct {
		keysym   uint
		pressed  bool
		extended bool
	}
	closed bool
}

func (f *fakeBackend) MoveAbsolute(vx, vy int) { f.moves = append(f.moves, [2]int{vx, vy}) }
func (f *fakeBackend) Button(code uint8, pressed bool) {
	f.btns = append(f.btns, struct {
		code    uint8
		pressed bool
	}{code, pressed})
}
func (f *fakeBackend) Wheel(dx, dy float32) {
	f.wheels = append(f.wheels, struct{ dx, dy float32 }{dx, dy})
}
func (f *fakeBackend) Key(keysym uint, pressed bool, extended bool) {
	f.keys = append(f.keys, struct {
		keysym   uint
		pressed  bool
		extended bool
	}{keysym, pressed, extended})
}
func (f *fakeBackend) Close() { f.closed = true }

func TestMouseMoveCornerMapsToVirtualExtremes(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b)
	e.SetBounds(Bounds{Width: 1920, Height: 1080})

	e.MouseMove(0, 0)
	e.MouseMove(1, 1)

	if b.moves[0] != [2]int{0, 0} {
		t.Fatalf("origin = %v, want [0 0]", b.moves[0])
	}
	if b.moves[1] != [2]int{virtualMax, virtualMax} {
		t.Fatalf("far corner = %v, want [%d %d]", b.moves[1], virtualMax, virtualMax)
	}
}

func TestMouseMoveClampsOutOfRangeNormalized(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b)
	e.SetBounds(Bounds{Width: 1920, Height: 1080})

	e.MouseMove(-5, 5)
	if b.moves[0] != [2]int{0, virtualMax} {
		t.Fatalf("got %v, want clamped to [0 %d]", b.moves[0], virtualMax)
	}
}

func TestDisabledEngineDropsEverything(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b)
	e.SetBounds(Bounds{Width: 100, Height: 100})
	e.SetEnabled(false)

	e.MouseMove(0.5, 0.5)
	e.MouseButton(0, true)
	e.MouseWheel(1, 1)
	e.Key(65, true, 0)

	if len(b.moves) != 0 || len(b.btns) != 0 || len(b.wheels) != 0 || len(b.keys) != 0 {
		t.Fatal("expected no events dispatched while disabled")
	}
}

func TestLetterAndDigitKeysPassThroughNumerically(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b)

	e.Key(65, true, 0) // 'A' -> x11 keysym 'a' = 0x61
	e.Key(53, true, 0) // '5' -> x11 keysym '5' = 0x35

	if b.keys[0].keysym != 'a' {
		t.Fatalf("letter A mapped to %#x, want %#x", b.keys[0].keysym, 'a')
	}
	if b.keys[1].keysym != '5' {
		t.Fatalf("digit 5 mapped to %#x, want %#x", b.keys[1].keysym, '5')
	}
}

func TestUnknownKeyCodeIsDropped(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b)
	e.Key(9999, true, 0)
	if len(b.keys) != 0 {
		t.Fatal("expected unknown key code to be silently dropped")
	}
}

func TestExtendedKeyFlagSetForArrowsAndEditing(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b)
	e.Key(37, true, 0) // ArrowLeft
	e.Key(46, true, 0) // Delete
	e.Key(65, true, 0) // 'A', not extended

	if !b.keys[0].extended || !b.keys[1].extended {
		t.Fatal("expected arrow/delete to set the extended flag")
	}
	if b.keys[2].extended {
		t.Fatal("expected a plain letter key to not be extended")
	}
}

func TestCenterWiggleSendsThreeMoves(t *testing.T) {
	b := &fakeBackend{}
	e := NewEngine(b)
	e.SetBounds(Bounds{Width: 1920, Height: 1080})
	e.CenterWiggle()
	if len(b.moves) != 3 {
		t.Fatalf("expected 3 moves, got %d", len(b.moves))
	}
	if b.moves[0] != b.moves[2] {
		t.Fatal("expected wiggle to return to the starting point")
	}
	if b.moves[0] == b.moves[1] {
		t.Fatal("expected the middle move to differ from center")
	}
}
