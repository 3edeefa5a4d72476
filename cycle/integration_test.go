package cycle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/AndreRenaud/eink_frame/change"
	"github.com/AndreRenaud/eink_frame/epd"
	"github.com/AndreRenaud/eink_frame/fetch"
	"github.com/AndreRenaud/eink_frame/marker"
	"github.com/AndreRenaud/eink_frame/render"
	"github.com/AndreRenaud/eink_frame/source"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 50, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 50; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(x * 5)})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// frameServer serves a GitHub style listing and the files in it.
func frameServer(t *testing.T, files map[string][]byte, declared map[string]int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/contents/image", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "[")
		first := true
		for name := range files {
			if !first {
				fmt.Fprint(w, ",")
			}
			first = false
			fmt.Fprintf(w, `{"name":%q,"type":"file"}`, name)
		}
		fmt.Fprint(w, `,{"name":"zz_notes","type":"dir"}]`)
	})
	mux.HandleFunc("/raw/", func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.URL.Path)
		data, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if n, ok := declared[name]; ok {
			w.Header().Set("Content-Length", strconv.Itoa(n))
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newIntegration(t *testing.T, srv *httptest.Server, store marker.Store, strategy change.Strategy) (*Controller, *epd.Preview) {
	t.Helper()
	panel := epd.NewPreview(filepath.Join(t.TempDir(), "frame.png"), 200, 200)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(Deps{
		Locator: &source.Listing{
			Client:  srv.Client(),
			URL:     srv.URL + "/contents/image",
			RawBase: srv.URL + "/raw",
		},
		Fetcher:  &fetch.HTTP{Client: srv.Client()},
		Strategy: strategy,
		Renderer: render.New(panel, render.Options{}, logger),
		Store:    store,
		Logger:   logger,
	}, Options{})
	return c, panel
}

func TestIntegrationLatestImage(t *testing.T) {
	img := testPNG(t)
	srv := frameServer(t, map[string][]byte{
		"img_20240101_0800.png": img,
		"img_20231231_2000.png": []byte("older, never fetched"),
		"readme.md":             []byte("# not an image"),
	}, nil)
	store := marker.NewMemory()
	c, panel := newIntegration(t, srv, store, change.ByName)
	c.deps.Locator.(*source.Listing).Extensions = []string{".png"}

	res := c.RunOnce(context.Background())
	if res.Err != nil || res.Outcome != Rendered {
		t.Fatalf("RunOnce() = %s, %v", res.Outcome, res.Err)
	}
	if res.Identifier != "img_20240101_0800.png" || res.Bytes != len(img) {
		t.Errorf("identifier %q, %d bytes", res.Identifier, res.Bytes)
	}
	if panel.Refreshes() != 1 {
		t.Errorf("refreshes = %d, want 1", panel.Refreshes())
	}

	res = c.RunOnce(context.Background())
	if res.Outcome != Unchanged || panel.Refreshes() != 1 {
		t.Errorf("second cycle %s with %d refreshes", res.Outcome, panel.Refreshes())
	}
}

func TestIntegrationOversized(t *testing.T) {
	srv := frameServer(t,
		map[string][]byte{"big.jpg": nil},
		map[string]int{"big.jpg": 2000000})
	store := marker.NewMemory()
	if err := store.Save(marker.State{Marker: "old.jpg", Valid: true}); err != nil {
		t.Fatal(err)
	}
	before := store.Region()
	c, panel := newIntegration(t, srv, store, change.ByName)

	res := c.RunOnce(context.Background())
	var e *Error
	if !errors.As(res.Err, &e) || e.Kind != TransferError || !errors.Is(res.Err, fetch.ErrSize) {
		t.Fatalf("error = %v, want oversized TransferError", res.Err)
	}
	if panel.Refreshes() != 0 {
		t.Errorf("panel refreshed %d times", panel.Refreshes())
	}
	if !bytes.Equal(store.Region(), before) {
		t.Error("marker changed")
	}
}

func TestIntegrationCorruptImage(t *testing.T) {
	srv := frameServer(t, map[string][]byte{"img_1.jpg": []byte("not a jpeg at all")}, nil)
	store := marker.NewMemory()
	c, panel := newIntegration(t, srv, store, change.ByContent)

	res := c.RunOnce(context.Background())
	var e *Error
	if !errors.As(res.Err, &e) || e.Kind != RenderError {
		t.Fatalf("error = %v, want RenderError", res.Err)
	}
	// No valid image yet, so the notice is the one refresh.
	if panel.Refreshes() != 1 {
		t.Errorf("refreshes = %d, want 1", panel.Refreshes())
	}
	if store.Region() != nil {
		t.Error("marker written after a failed render")
	}
}
