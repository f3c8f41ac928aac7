package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/slashboard/internal/adapters/imagecache"
	"github.com/okian/slashboard/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type countingSource struct {
	mu         sync.Mutex
	avatars    map[string]int
	icons      map[string]int
	failAvatar map[string]bool
	failIcon   map[string]bool
	delay      time.Duration
}

func newCountingSource() *countingSource {
	return &countingSource{
		avatars:    map[string]int{},
		icons:      map[string]int{},
		failAvatar: map[string]bool{},
		failIcon:   map[string]bool{},
	}
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func (s *countingSource) Avatar(_ context.Context, id string) (image.Image, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatars[id]++
	if s.failAvatar[id] {
		return nil, ErrFetch
	}
	return solid(300, 200, color.RGBA{R: 200, A: 255}), nil
}

func (s *countingSource) Icon(_ context.Context, id string) (image.Image, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.icons[id]++
	if s.failIcon[id] {
		return nil, ErrFetch
	}
	return solid(64, 80, color.RGBA{B: 200, A: 255}), nil
}

func (s *countingSource) iconCalls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.icons[id]
}

func (s *countingSource) avatarCalls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.avatars[id]
}

func TestResolverDedup(t *testing.T) {
	Convey("Given the same character referenced by five entries", t, func() {
		src := newCountingSource()
		src.delay = 5 * time.Millisecond
		r := NewResolver(src, WithLogger(logger.Nop()))

		chars := []string{"1102", "1102", "1102", "1203", "1102", "1102"}
		users := []string{"10001", "10001", "10002"}
		got := r.Resolve(context.Background(), users, chars)

		Convey("Then each id is fetched exactly once", func() {
			So(src.iconCalls("1102"), ShouldEqual, 1)
			So(src.iconCalls("1203"), ShouldEqual, 1)
			So(src.avatarCalls("10001"), ShouldEqual, 1)
			So(src.avatarCalls("10002"), ShouldEqual, 1)
			So(len(got.Icons), ShouldEqual, 2)
			So(len(got.Avatars), ShouldEqual, 2)
		})

		Convey("Then outputs have uniform sizes per class", func() {
			for _, img := range got.Avatars {
				So(img.Bounds().Dx(), ShouldEqual, AvatarSize)
				So(img.Bounds().Dy(), ShouldEqual, AvatarSize)
			}
			for _, img := range got.Icons {
				So(img.Bounds().Dx(), ShouldEqual, IconSize)
				So(img.Bounds().Dy(), ShouldEqual, IconSize)
			}
		})

		Convey("Then a second call is served from the cache", func() {
			r.Resolve(context.Background(), users, chars)
			So(src.iconCalls("1102"), ShouldEqual, 1)
			So(src.avatarCalls("10001"), ShouldEqual, 1)
		})
	})
}

func TestResolverCoalescesConcurrentCalls(t *testing.T) {
	Convey("Given concurrent resolves of the same ids", t, func() {
		src := newCountingSource()
		src.delay = 30 * time.Millisecond
		r := NewResolver(src, WithLogger(logger.Nop()), WithCache(imagecache.New(imagecache.WithCapacity(0))))

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Resolve(context.Background(), []string{"10001"}, []string{"1102"})
			}()
		}
		wg.Wait()

		So(src.iconCalls("1102"), ShouldEqual, 1)
		So(src.avatarCalls("10001"), ShouldEqual, 1)
	})
}

// slowIconSource honours its context and takes delay per icon.
type slowIconSource struct {
	delay time.Duration
}

func (s slowIconSource) Avatar(ctx context.Context, id string) (image.Image, error) {
	return s.Icon(ctx, id)
}

func (s slowIconSource) Icon(ctx context.Context, _ string) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
		return solid(64, 64, color.RGBA{G: 200, A: 255}), nil
	}
}

func TestResolverCallerCancellationIsIsolated(t *testing.T) {
	Convey("Given two requests sharing one slow icon fetch", t, func() {
		r := NewResolver(slowIconSource{delay: 200 * time.Millisecond}, WithLogger(logger.Nop()))

		cancelled, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		var wg sync.WaitGroup
		var first, second Assets
		wg.Add(2)
		go func() {
			defer wg.Done()
			first = r.Resolve(cancelled, nil, []string{"1101"})
		}()
		go func() {
			defer wg.Done()
			time.Sleep(5 * time.Millisecond)
			second = r.Resolve(context.Background(), nil, []string{"1101"})
		}()
		wg.Wait()

		Convey("Then the request that left gets nothing", func() {
			So(first.Icons, ShouldBeEmpty)
		})

		Convey("Then the other request still receives the icon", func() {
			So(second.Icons, ShouldContainKey, "1101")
		})
	})

	Convey("Given a shared fetch that outlives the fetch timeout", t, func() {
		r := NewResolver(slowIconSource{delay: time.Second},
			WithLogger(logger.Nop()),
			WithFetchTimeout(30*time.Millisecond),
		)

		Convey("Then the icon is omitted without waiting for the source", func() {
			start := time.Now()
			got := r.Resolve(context.Background(), nil, []string{"1101"})
			So(got.Icons, ShouldBeEmpty)
			So(time.Since(start), ShouldBeLessThan, 500*time.Millisecond)
		})
	})
}

func TestResolverFallbacks(t *testing.T) {
	Convey("Given a source with failures", t, func() {
		src := newCountingSource()
		src.failAvatar["10002"] = true
		src.failIcon["9999"] = true
		r := NewResolver(src, WithLogger(logger.Nop()))

		got := r.Resolve(context.Background(), []string{"10001", "10002", "not-a-number"}, []string{"1102", "9999"})

		Convey("Then every avatar is present", func() {
			So(len(got.Avatars), ShouldEqual, 3)
			for _, id := range []string{"10001", "10002", "not-a-number"} {
				So(got.Avatars[id], ShouldNotBeNil)
			}
		})

		Convey("Then malformed ids are never fetched", func() {
			So(src.avatarCalls("not-a-number"), ShouldEqual, 0)
		})

		Convey("Then the default avatar comes from the default character icon", func() {
			So(src.iconCalls(DefaultAvatarCharID), ShouldEqual, 1)
			So(got.Avatars["10002"], ShouldEqual, got.Avatars["not-a-number"])
		})

		Convey("Then failed icons are omitted and others kept", func() {
			_, ok := got.Icons["9999"]
			So(ok, ShouldBeFalse)
			So(got.Icons["1102"], ShouldNotBeNil)
		})
	})

	Convey("Given a source where the default avatar also fails", t, func() {
		src := newCountingSource()
		src.failAvatar["10002"] = true
		src.failIcon[DefaultAvatarCharID] = true
		r := NewResolver(src, WithLogger(logger.Nop()), WithSizes(64, 32))

		got := r.Resolve(context.Background(), []string{"10002"}, nil)

		Convey("Then a generated placeholder of the avatar size is used", func() {
			img := got.Avatars["10002"]
			So(img, ShouldNotBeNil)
			So(img.Bounds().Dx(), ShouldEqual, 64)
		})
	})

	Convey("Given no identifiers", t, func() {
		r := NewResolver(newCountingSource(), WithLogger(logger.Nop()))
		got := r.Resolve(context.Background(), nil, []string{"", " "})
		So(got.Avatars, ShouldBeEmpty)
		So(got.Icons, ShouldBeEmpty)
	})
}

func TestCircleAvatar(t *testing.T) {
	Convey("Given a non-square image", t, func() {
		out := CircleAvatar(solid(120, 80, color.RGBA{G: 255, A: 255}), 50)

		Convey("Then corners are transparent and the center is opaque", func() {
			So(out.Bounds().Dx(), ShouldEqual, 50)
			_, _, _, a := out.At(0, 0).RGBA()
			So(a, ShouldEqual, 0)
			_, _, _, a = out.At(25, 25).RGBA()
			So(a, ShouldBeGreaterThan, 0)
		})
	})
}

func pngBytes(img image.Image) []byte {
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}

func TestHTTPSource(t *testing.T) {
	Convey("Given an HTTP image server", t, func() {
		body := pngBytes(solid(10, 10, color.White))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasPrefix(r.URL.Path, "/avatar/42"):
				w.Header().Set("Content-Type", "image/png")
				_, _ = w.Write(body)
			case strings.HasPrefix(r.URL.Path, "/icon/garbage"):
				_, _ = w.Write([]byte("not an image"))
			case strings.HasPrefix(r.URL.Path, "/icon/slow"):
				time.Sleep(200 * time.Millisecond)
				_, _ = w.Write(body)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		s := NewHTTPSource(srv.URL+"/avatar/%s", srv.URL+"/icon/%s", 50*time.Millisecond)
		ctx := context.Background()

		Convey("A valid image decodes", func() {
			img, err := s.Avatar(ctx, "42")
			So(err, ShouldBeNil)
			So(img.Bounds().Dx(), ShouldEqual, 10)
		})

		Convey("A missing image is a fetch error", func() {
			_, err := s.Icon(ctx, "1")
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
		})

		Convey("Garbage bytes are a decode error", func() {
			_, err := s.Icon(ctx, "garbage")
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})

		Convey("A slow response times out as a fetch error", func() {
			_, err := s.Icon(ctx, "slow")
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
		})
	})
}

func TestDistinct(t *testing.T) {
	Convey("distinct keeps first-seen order", t, func() {
		So(distinct([]string{"b", "a", "b", "", "c", "a"}), ShouldResemble, []string{"b", "a", "c"})
		So(fmt.Sprint(distinct(nil)), ShouldEqual, "[]")
	})
}
