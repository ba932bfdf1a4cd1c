package config_test

import (
	"testing"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.DataDir, convey.ShouldEqual, "data")
			convey.So(cfg.ListsDir, convey.ShouldEqual, "data/lists")
			convey.So(cfg.RulesFile, convey.ShouldEqual, "data/rules.csv")
			convey.So(cfg.ArchivePath, convey.ShouldEqual, "data/archive.db")
			convey.So(cfg.ChunkSize, convey.ShouldEqual, 200)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.FuzzyThreshold, convey.ShouldEqual, 0.85)
			convey.So(cfg.CaseSensitive, convey.ShouldBeFalse)
			convey.So(cfg.AutoValidate, convey.ShouldBeTrue)
			convey.So(cfg.AutoCorrect, convey.ShouldBeTrue)
			convey.So(cfg.WatchLists, convey.ShouldBeTrue)
			convey.So(cfg.SnapshotInterval, convey.ShouldEqual, 30*time.Second)
		})
	})
}
