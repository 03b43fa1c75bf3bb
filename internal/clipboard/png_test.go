package clipboard

import (
	"bytes"
	"testing"
)

func solidImage(w, h int, r, g, b, a byte) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		buf[i*4] = r
		buf[i*4+1] = g
		buf[i*4+2] = b
		buf[i*4+3] = a
	}
	return buf
}

func TestPNGRoundTripSmallImage(t *testing.T) {
	want := solidImage(4, 3, 10, 20, 30, 255)
	png, err := EncodePNG(4, 3, want)
	if err != nil {
		t.Fatal(err)
	}
	w, h, got, err := DecodePNG(png)
	if err != nil {
		t.Fatal(err)
	}
	if w != 4 || h != 3 {
		t.Fatalf("dims = %dx%d, want 4x3", w, h)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("decoded pixels do not match original")
	}
}

func TestPNGRoundTripSpansMultipleStoredBlocks(t *testing.T) {
	// width*height*4 + height > 65535 forces zlibStore to emit more than
	// one stored block.
	const w, h = 200, 200
	want := solidImage(w, h, 1, 2, 3, 4)
	png, err := EncodePNG(w, h, want)
	if err != nil {
		t.Fatal(err)
	}
	gotW, gotH, got, err := DecodePNG(png)
	if err != nil {
		t.Fatal(err)
	}
	if gotW != w || gotH != h {
		t.Fatalf("dims = %dx%d, want %dx%d", gotW, gotH, w, h)
	}
	if !bytes.Equal(got, want) {
		t.Fatal("decoded pixels do not match original across multiple stored blocks")
	}
}

func TestDecodePNGRejectsBadSignature(t *testing.T) {
	if _, _, _, err := DecodePNG([]byte("not a png")); err == nil {
		t.Fatal("expected an error for invalid signature")
	}
}

func TestEncodePNGRejectsMismatchedBufferSize(t *testing.T) {
	if _, err := EncodePNG(4, 4, make([]byte, 10)); err == nil {
		t.Fatal("expected an error for mismatched rgba buffer size")
	}
}
