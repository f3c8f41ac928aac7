package imagecache_test

import (
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	imagecache "github.com/okian/slashboard/internal/adapters/imagecache"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func img(w int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, w))
}

func TestCache(t *testing.T) {
	Convey("Given a cache with a fake clock", t, func() {
		clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		c := imagecache.New(
			imagecache.WithCapacity(3),
			imagecache.WithTTL(time.Minute),
			imagecache.WithClock(clk.Now),
		)

		Convey("When an entry is stored", func() {
			c.Set("a", img(1))

			Convey("Then it is returned until the TTL passes", func() {
				got, ok := c.Get("a")
				So(ok, ShouldBeTrue)
				So(got.Bounds().Dx(), ShouldEqual, 1)

				clk.Advance(59 * time.Second)
				_, ok = c.Get("a")
				So(ok, ShouldBeTrue)

				clk.Advance(time.Second)
				_, ok = c.Get("a")
				So(ok, ShouldBeFalse)
				So(c.Size(), ShouldEqual, 0)
			})

			Convey("Then setting it again refreshes its expiry", func() {
				clk.Advance(50 * time.Second)
				c.Set("a", img(2))
				clk.Advance(50 * time.Second)
				got, ok := c.Get("a")
				So(ok, ShouldBeTrue)
				So(got.Bounds().Dx(), ShouldEqual, 2)
				So(c.Size(), ShouldEqual, 1)
			})
		})

		Convey("When capacity is exceeded", func() {
			for _, k := range []string{"a", "b", "c", "d"} {
				c.Set(k, img(1))
			}

			Convey("Then the oldest entry is evicted", func() {
				So(c.Size(), ShouldEqual, 3)
				_, ok := c.Get("a")
				So(ok, ShouldBeFalse)
				for _, k := range []string{"b", "c", "d"} {
					_, ok := c.Get(k)
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When expired entries occupy the capacity", func() {
			c.Set("a", img(1))
			c.Set("b", img(1))
			clk.Advance(2 * time.Minute)
			c.Set("c", img(1))

			Convey("Then they are dropped before live entries", func() {
				So(c.Size(), ShouldEqual, 1)
				_, ok := c.Get("c")
				So(ok, ShouldBeTrue)
			})
		})

		Convey("When an entry is removed", func() {
			c.Set("a", img(1))
			c.Set("b", img(1))
			c.Remove("a")
			c.Remove("missing")

			Convey("Then only that entry is gone", func() {
				_, ok := c.Get("a")
				So(ok, ShouldBeFalse)
				_, ok = c.Get("b")
				So(ok, ShouldBeTrue)
				So(c.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a nil image is stored", func() {
			c.Set("a", nil)
			So(c.Size(), ShouldEqual, 0)
		})
	})
}

func TestCacheUnbounded(t *testing.T) {
	Convey("Given an unbounded cache", t, func() {
		c := imagecache.New(imagecache.WithCapacity(0))
		for i := 0; i < 500; i++ {
			c.Set(fmt.Sprintf("k%d", i), img(1))
		}
		So(c.Size(), ShouldEqual, 500)
	})
}

func TestCacheConcurrent(t *testing.T) {
	Convey("Given concurrent readers and writers", t, func() {
		c := imagecache.New(imagecache.WithCapacity(50))
		var wg sync.WaitGroup
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 200; i++ {
					k := fmt.Sprintf("k%d", (g*200+i)%80)
					c.Set(k, img(1))
					c.Get(k)
				}
			}(g)
		}
		wg.Wait()

		So(c.Size(), ShouldBeLessThanOrEqualTo, 50)
		So(c.Size(), ShouldBeGreaterThan, 0)
	})
}
