package encoder

import "testing"

func TestFirstEncodeIsNotAutomaticallyKeyUnlessRequested(t *testing.T) {
	e, err := Open(DefaultParams(64, 64, 30), DefaultFactories(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	u, err := e.Encode("tex", 0)
	if err != nil {
		t.Fatal(err)
	}
	if u == nil {
		t.Fatal("expected a unit")
	}
	if u.IsKey {
		t.Fatal("first encode should not be a forced key unless RequestKeyframe was called")
	}
}

func TestRequestKeyframeForcesNextEncode(t *testing.T) {
	e, err := Open(DefaultParams(64, 64, 30), DefaultFactories(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	e.RequestKeyframe()
	u, err := e.Encode("tex", 0)
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsKey {
		t.Fatal("expected forced keyframe")
	}

	// The flag is one-shot.
	u2, err := e.Encode("tex", 1)
	if err != nil {
		t.Fatal(err)
	}
	if u2.IsKey {
		t.Fatal("needs-keyframe flag should clear after one forced frame")
	}
}

func TestFrameIDStrictlyIncreases(t *testing.T) {
	e, err := Open(DefaultParams(64, 64, 30), DefaultFactories(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	var last uint32
	for i := 0; i < 5; i++ {
		u, err := e.Encode("tex", int64(i))
		if err != nil {
			t.Fatal(err)
		}
		if i > 0 && u.FrameID <= last {
			t.Fatalf("frame_id did not strictly increase: %d -> %d", last, u.FrameID)
		}
		last = u.FrameID
	}
}

func TestBackendSelectionFallsThroughToSoftware(t *testing.T) {
	e, err := Open(DefaultParams(64, 64, 30), DefaultFactories(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.BackendName() != "sw-fast" {
		t.Fatalf("backend = %s, want sw-fast (hardware vendors unavailable in this tree)", e.BackendName())
	}
}

func TestFlushForcesNextEncodeKey(t *testing.T) {
	e, err := Open(DefaultParams(64, 64, 30), DefaultFactories(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	// Consume the "no forced key yet" state.
	if _, err := e.Encode("tex", 0); err != nil {
		t.Fatal(err)
	}

	e.Flush()
	u, err := e.Encode("tex", 1)
	if err != nil {
		t.Fatal(err)
	}
	if !u.IsKey {
		t.Fatal("expected key frame after Flush (cadence timer reset)")
	}
}
