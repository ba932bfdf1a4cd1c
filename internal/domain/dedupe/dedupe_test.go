package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	dedupe "github.com/LinkesAuge/chestbuddy/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

// rowKey builds a content key the way an imported chest row would.
func rowKey(i int) string {
	return fmt.Sprintf("2023-03-11|Player-%d|Level 25 Crypt|Fire Chest|%d|MY_CLAN", i, 100+i)
}

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording row keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the row is new", func() {
				seen := d.SeenAndRecord(context.Background(), rowKey(1))

				Convey("Then it should return false and record the key", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the same row arrives again", func() {
				d.SeenAndRecord(context.Background(), rowKey(1))
				seen := d.SeenAndRecord(context.Background(), rowKey(1))

				Convey("Then it should return true without growing", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And rows differing in one field are recorded", func() {
				base := "2023-03-11|Feldjäger|Level 25 Crypt|Fire Chest|275|MY_CLAN"
				other := "2023-03-12|Feldjäger|Level 25 Crypt|Fire Chest|275|MY_CLAN"

				So(d.SeenAndRecord(context.Background(), base), ShouldBeFalse)
				So(d.SeenAndRecord(context.Background(), other), ShouldBeFalse)

				Convey("Then both should be recorded as distinct", func() {
					So(d.Size(), ShouldEqual, 2)
				})
			})
		})

		Convey("When unrecording row keys", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("And the key exists", func() {
				d.SeenAndRecord(context.Background(), rowKey(1))
				So(d.Size(), ShouldEqual, 1)

				d.Unrecord(context.Background(), rowKey(1))

				Convey("Then the row can be imported again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(context.Background(), rowKey(1)), ShouldBeFalse)
				})
			})

			Convey("And the key doesn't exist", func() {
				d.Unrecord(context.Background(), "nonexistent")

				Convey("Then it should not affect the size", func() {
					So(d.Size(), ShouldEqual, 0)
				})
			})

			Convey("And keys are unrecorded from the middle of the list", func() {
				for i := 0; i < 5; i++ {
					d.SeenAndRecord(context.Background(), rowKey(i))
				}
				d.Unrecord(context.Background(), rowKey(2))

				Convey("Then only that key should be forgotten", func() {
					So(d.Size(), ShouldEqual, 4)
					So(d.SeenAndRecord(context.Background(), rowKey(2)), ShouldBeFalse)
					So(d.SeenAndRecord(context.Background(), rowKey(3)), ShouldBeTrue)
				})
			})
		})

		Convey("When clearing the deduper", func() {
			d := dedupe.NewInMemoryDeduper()
			for i := 0; i < 10; i++ {
				d.SeenAndRecord(context.Background(), rowKey(i))
			}
			So(d.Size(), ShouldEqual, 10)

			d.Clear(context.Background())

			Convey("Then every key should be forgotten", func() {
				So(d.Size(), ShouldEqual, 0)
				for i := 0; i < 10; i++ {
					So(d.SeenAndRecord(context.Background(), rowKey(i)), ShouldBeFalse)
				}
			})
		})

		Convey("When clearing an unbounded deduper", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			d.SeenAndRecord(context.Background(), rowKey(1))

			Convey("Then it should not panic", func() {
				So(func() { d.Clear(context.Background()) }, ShouldNotPanic)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When using bounded mode with eviction", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

			Convey("And the deduper is at capacity", func() {
				for i := 1; i <= 3; i++ {
					So(d.SeenAndRecord(context.Background(), rowKey(i)), ShouldBeFalse)
				}
				So(d.Size(), ShouldEqual, 3)

				seen := d.SeenAndRecord(context.Background(), rowKey(4))

				Convey("Then it should evict the oldest and add the new one", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 3)

					// rowKey(1) was evicted, so it records as new again
					So(d.SeenAndRecord(context.Background(), rowKey(1)), ShouldBeFalse)
					So(d.Size(), ShouldEqual, 3)
				})
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))

			Convey("And many rows are recorded", func() {
				const numRows = 1000
				for i := 0; i < numRows; i++ {
					So(d.SeenAndRecord(context.Background(), rowKey(i)), ShouldBeFalse)
				}

				Convey("Then all rows should be recorded without eviction", func() {
					So(d.Size(), ShouldEqual, int64(numRows))

					for i := 0; i < numRows; i++ {
						So(d.SeenAndRecord(context.Background(), rowKey(i)), ShouldBeTrue)
					}
				})
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(10000))
		const numGoroutines = 10
		const rowsPerGoroutine = 100

		Convey("When multiple goroutines record rows concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(worker int) {
					defer wg.Done()
					for j := 0; j < rowsPerGoroutine; j++ {
						d.SeenAndRecord(context.Background(), rowKey(worker*rowsPerGoroutine+j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then all rows should be recorded exactly once", func() {
				So(d.Size(), ShouldEqual, int64(numGoroutines*rowsPerGoroutine))
			})
		})

		Convey("When every goroutine records the same row", func() {
			results := make(chan bool, numGoroutines)
			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results <- d.SeenAndRecord(context.Background(), rowKey(42))
				}()
			}
			wg.Wait()
			close(results)

			Convey("Then exactly one should win the record", func() {
				newCount := 0
				for seen := range results {
					if !seen {
						newCount++
					}
				}
				So(newCount, ShouldEqual, 1)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When multiple goroutines unrecord rows concurrently", func() {
			const numRows = 500
			for i := 0; i < numRows; i++ {
				d.SeenAndRecord(context.Background(), rowKey(i))
			}
			So(d.Size(), ShouldEqual, int64(numRows))

			var wg sync.WaitGroup
			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func(worker int) {
					defer wg.Done()
					for j := 0; j < numRows/numGoroutines; j++ {
						d.Unrecord(context.Background(), rowKey(worker*(numRows/numGoroutines)+j))
					}
				}(i)
			}
			wg.Wait()

			Convey("Then all rows should be unrecorded successfully", func() {
				So(d.Size(), ShouldEqual, 0)
			})
		})
	})
}

func TestDedupeEdgeCases(t *testing.T) {
	Convey("Given a deduper with edge cases", t, func() {
		Convey("When recording an empty key", func() {
			d := dedupe.NewInMemoryDeduper()
			seen := d.SeenAndRecord(context.Background(), "")

			Convey("Then it should be treated like any other key", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
				So(d.SeenAndRecord(context.Background(), ""), ShouldBeTrue)
			})
		})

		Convey("When recording very long keys", func() {
			d := dedupe.NewInMemoryDeduper()
			longKey := strings.Repeat("a", 10000)

			Convey("Then it should handle them", func() {
				So(d.SeenAndRecord(context.Background(), longKey), ShouldBeFalse)
				So(d.SeenAndRecord(context.Background(), longKey), ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When using nil context", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should not panic", func() {
				So(func() { d.SeenAndRecord(nil, rowKey(1)) }, ShouldNotPanic)
				So(func() { d.Unrecord(nil, rowKey(1)) }, ShouldNotPanic)
				So(func() { d.Clear(nil) }, ShouldNotPanic)
			})
		})

		Convey("When using a max size of one", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1))

			Convey("And adding a second row", func() {
				So(d.SeenAndRecord(context.Background(), rowKey(1)), ShouldBeFalse)
				So(d.SeenAndRecord(context.Background(), rowKey(2)), ShouldBeFalse)

				Convey("Then the first should be evicted", func() {
					So(d.Size(), ShouldEqual, 1)
					So(d.SeenAndRecord(context.Background(), rowKey(1)), ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When using negative max size", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(-1))

			Convey("Then it should be unbounded", func() {
				const numRows = 1000
				for i := 0; i < numRows; i++ {
					So(d.SeenAndRecord(context.Background(), rowKey(i)), ShouldBeFalse)
				}
				So(d.Size(), ShouldEqual, int64(numRows))
			})
		})
	})
}
