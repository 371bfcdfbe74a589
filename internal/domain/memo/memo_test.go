package memo_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/verdict/internal/domain/memo"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory cache", t, func() {
		c := memo.NewInMemory[int]()

		Convey("When a value is stored", func() {
			c.Put(ctx, "a", 1)

			Convey("Then it can be read back", func() {
				v, ok := c.Get(ctx, "a")
				So(ok, ShouldBeTrue)
				So(v, ShouldEqual, 1)
				So(c.Size(), ShouldEqual, 1)
			})

			Convey("And it is overwritten", func() {
				c.Put(ctx, "a", 2)
				v, _ := c.Get(ctx, "a")
				So(v, ShouldEqual, 2)
				So(c.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key is missing", func() {
			_, ok := c.Get(ctx, "nope")
			So(ok, ShouldBeFalse)
		})

		Convey("When purged", func() {
			c.Put(ctx, "a", 1)
			c.Put(ctx, "b", 2)
			c.Purge(ctx)
			So(c.Size(), ShouldEqual, 0)
			_, ok := c.Get(ctx, "a")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a bounded cache", t, func() {
		c := memo.NewInMemory[string](memo.WithMaxSize(2))
		c.Put(ctx, "first", "1")
		c.Put(ctx, "second", "2")
		c.Put(ctx, "third", "3")

		Convey("Then the oldest entry is evicted", func() {
			_, ok := c.Get(ctx, "first")
			So(ok, ShouldBeFalse)
			_, ok = c.Get(ctx, "third")
			So(ok, ShouldBeTrue)
			So(c.Size(), ShouldEqual, 2)
		})
	})

	Convey("Given a bounded cache whose oldest entry was just read", t, func() {
		c := memo.NewInMemory[string](memo.WithMaxSize(2))
		c.Put(ctx, "a", "1")
		c.Put(ctx, "b", "2")
		_, ok := c.Get(ctx, "a")
		So(ok, ShouldBeTrue)
		c.Put(ctx, "c", "3")

		Convey("Then the least recently used entry is evicted instead", func() {
			_, ok := c.Get(ctx, "a")
			So(ok, ShouldBeTrue)
			_, ok = c.Get(ctx, "b")
			So(ok, ShouldBeFalse)
			_, ok = c.Get(ctx, "c")
			So(ok, ShouldBeTrue)
			So(c.Size(), ShouldEqual, 2)
		})
	})

	Convey("Given a cache with a TTL", t, func() {
		now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		c := memo.NewInMemory[int](memo.WithTTL(time.Minute), memo.WithClock(func() time.Time { return now }))
		c.Put(ctx, "a", 1)

		Convey("Then entries live until the deadline", func() {
			now = now.Add(59 * time.Second)
			_, ok := c.Get(ctx, "a")
			So(ok, ShouldBeTrue)

			now = now.Add(time.Second)
			_, ok = c.Get(ctx, "a")
			So(ok, ShouldBeFalse)
			So(c.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given concurrent writers", t, func() {
		c := memo.NewInMemory[int](memo.WithMaxSize(50))
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					key := fmt.Sprintf("k-%d-%d", i, j)
					c.Put(ctx, key, j)
					c.Get(ctx, key)
				}
			}(i)
		}
		wg.Wait()

		So(c.Size(), ShouldEqual, 50)
	})

	Convey("Given a no-op cache", t, func() {
		c := memo.Nop[int]()
		c.Put(ctx, "a", 1)
		_, ok := c.Get(ctx, "a")
		So(ok, ShouldBeFalse)
		So(c.Size(), ShouldEqual, 0)
	})
}
