package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakePanel struct {
	bounds  image.Rectangle
	frames  []image.Image
	sleeps  int
	failure error
}

func (f *fakePanel) Bounds() image.Rectangle { return f.bounds }

func (f *fakePanel) UpdateDisplay(img image.Image, partial bool) error {
	if f.failure != nil {
		return f.failure
	}
	f.frames = append(f.frames, img)
	return nil
}

func (f *fakePanel) Sleep() error {
	f.sleeps++
	return nil
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRender(t *testing.T) {
	data := encodeJPEG(t, 540, 960)
	for _, tc := range []struct {
		name       string
		data       []byte
		wantErr    error
		wantFrames int
	}{
		{name: "jpeg", data: data, wantFrames: 1},
		{name: "garbage", data: []byte("definitely not an image"), wantErr: ErrDecode},
		{name: "truncated", data: data[:len(data)/2], wantErr: ErrDecode},
		{name: "empty", data: nil, wantErr: ErrDecode},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakePanel{bounds: image.Rect(0, 0, 270, 480)}
			r := New(p, Options{}, nil)
			err := r.Render(tc.data)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Render() = %v, want %v", err, tc.wantErr)
			}
			if len(p.frames) != tc.wantFrames {
				t.Errorf("panel refreshed %d times, want %d", len(p.frames), tc.wantFrames)
			}
			for _, f := range p.frames {
				if diff := cmp.Diff(f.Bounds(), p.bounds); diff != "" {
					t.Errorf("frame bounds difference (-got +want):\n%s", diff)
				}
			}
		})
	}
}

func TestRenderPanelFailure(t *testing.T) {
	boom := errors.New("spi gone")
	p := &fakePanel{bounds: image.Rect(0, 0, 200, 200), failure: boom}
	r := New(p, Options{}, nil)
	if err := r.Render(encodeJPEG(t, 64, 64)); !errors.Is(err, boom) {
		t.Errorf("Render() = %v, want %v", err, boom)
	}
}

func TestComposeRotation(t *testing.T) {
	// Left half black, right half white.
	src := image.NewGray(image.Rect(0, 0, 40, 20))
	for y := 0; y < 20; y++ {
		for x := 20; x < 40; x++ {
			src.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
	p := &fakePanel{bounds: image.Rect(0, 0, 20, 40)}
	r := New(p, Options{Rotation: 90}, nil)
	got := r.compose(src)
	if diff := cmp.Diff(got.Bounds(), p.bounds); diff != "" {
		t.Fatalf("compose() bounds difference (-got +want):\n%s", diff)
	}
	// A quarter turn counter-clockwise moves the left half to the bottom.
	if top := got.GrayAt(10, 5).Y; top < 0xc0 {
		t.Errorf("top pixel = %#x, want white", top)
	}
	if bottom := got.GrayAt(10, 35).Y; bottom > 0x40 {
		t.Errorf("bottom pixel = %#x, want black", bottom)
	}
}

func TestComposeFill(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 100, 10))
	p := &fakePanel{bounds: image.Rect(0, 0, 50, 50)}
	r := New(p, Options{Scale: Fill}, nil)
	got := r.compose(src)
	// Filled with the black source, no white letterbox left.
	for _, pt := range []image.Point{{0, 0}, {49, 49}, {25, 0}} {
		if v := got.GrayAt(pt.X, pt.Y).Y; v > 0x40 {
			t.Errorf("pixel %v = %#x, want black", pt, v)
		}
	}

	r = New(p, Options{Scale: Fit}, nil)
	got = r.compose(src)
	if v := got.GrayAt(0, 0).Y; v != 0xff {
		t.Errorf("letterbox pixel = %#x, want white", v)
	}
}

func TestShowError(t *testing.T) {
	p := &fakePanel{bounds: image.Rect(0, 0, 540, 960)}
	r := New(p, Options{Rotation: 180}, nil)
	if err := r.ShowError("WiFi failed"); err != nil {
		t.Fatalf("ShowError() failed: %v", err)
	}
	if len(p.frames) != 1 {
		t.Fatalf("panel refreshed %d times, want 1", len(p.frames))
	}
	g := p.frames[0].(*image.Gray)
	dark := 0
	for _, v := range g.Pix {
		if v < 0x80 {
			dark++
		}
	}
	if dark == 0 {
		t.Error("notice has no text")
	}
}

func TestWrap(t *testing.T) {
	for _, tc := range []struct {
		in    string
		width int
		want  []string
	}{
		{"Download failed", 20, []string{"Download failed"}},
		{"Download failed", 10, []string{"Download", "failed"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"", 5, nil},
	} {
		if diff := cmp.Diff(wrap(tc.in, tc.width), tc.want); diff != "" {
			t.Errorf("wrap(%q, %d) difference (-got +want):\n%s", tc.in, tc.width, diff)
		}
	}
}

func TestSleep(t *testing.T) {
	p := &fakePanel{bounds: image.Rect(0, 0, 10, 10)}
	if err := New(p, Options{}, nil).Sleep(); err != nil || p.sleeps != 1 {
		t.Errorf("Sleep() = %v, sleeps %d", err, p.sleeps)
	}
}
