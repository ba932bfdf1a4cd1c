package loadgen_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/csvio"
	"github.com/LinkesAuge/chestbuddy/internal/loadgen"
	"github.com/LinkesAuge/chestbuddy/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestGenerator(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		ctx := context.Background()
		config := &loadgen.Config{NumRecords: 500, Days: 14, Seed: 42, ErrorRate: 0.1}

		Convey("When generating rows", func() {
			gen := loadgen.NewGenerator(config)
			rows, err := gen.Generate(ctx)

			Convey("Then it should produce the requested count", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 500)
			})

			Convey("And the bookkeeping should cover exactly the importable rows", func() {
				importable := 0
				for _, row := range rows {
					if row.Defect != loadgen.DefectBadDate && row.Defect != loadgen.DefectBadValue {
						importable++
					}
				}
				So(gen.ExpectedImports(), ShouldEqual, importable)
				So(gen.ExpectedImports(), ShouldBeLessThan, 500)
				So(gen.ExpectedImports(), ShouldBeGreaterThan, 0)
			})

			Convey("And importable rows should be unique by content", func() {
				seen := make(map[string]bool)
				for _, row := range rows {
					if row.Defect == loadgen.DefectBadDate || row.Defect == loadgen.DefectBadValue {
						continue
					}
					key := strings.Join([]string{row.Date, row.Player, row.Source, row.ChestType, row.Value, row.Clan}, "|")
					So(seen[key], ShouldBeFalse)
					seen[key] = true
				}
			})

			Convey("And some defects should be injected", func() {
				defects := 0
				for _, row := range rows {
					if row.Defect != "" {
						defects++
					}
				}
				So(defects, ShouldBeGreaterThan, 0)
				So(defects, ShouldBeLessThan, 150)
			})
		})

		Convey("When generating twice with the same seed", func() {
			first, err1 := loadgen.NewGenerator(config).Generate(ctx)
			second, err2 := loadgen.NewGenerator(config).Generate(ctx)

			Convey("Then the fixtures should be identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When the error rate is zero", func() {
			clean := &loadgen.Config{NumRecords: 200, Days: 7, Seed: 7}
			gen := loadgen.NewGenerator(clean)
			rows, err := gen.Generate(ctx)

			Convey("Then every row should be clean and counted", func() {
				So(err, ShouldBeNil)
				for _, row := range rows {
					So(row.Defect, ShouldBeEmpty)
				}
				So(gen.ExpectedImports(), ShouldEqual, 200)
			})
		})
	})
}

func TestWriteFixture(t *testing.T) {
	Convey("Given generated rows", t, func() {
		ctx := context.Background()
		config := &loadgen.Config{NumRecords: 100, Days: 10, Seed: 11, ErrorRate: 0.2}
		gen := loadgen.NewGenerator(config)
		rows, err := gen.Generate(ctx)
		So(err, ShouldBeNil)

		dir := t.TempDir()

		Convey("When writing a plain UTF-8 fixture", func() {
			path := filepath.Join(dir, "plain.csv")
			So(loadgen.WriteFixture(ctx, path, rows, loadgen.EncodingUTF8), ShouldBeNil)

			Convey("Then the reader should import exactly the bookkept rows", func() {
				reader, err := csvio.OpenFile(path)
				So(err, ShouldBeNil)
				defer reader.Close()

				records, rowErrs, err := reader.ReadAll(ctx)
				So(err, ShouldBeNil)
				So(len(records), ShouldEqual, gen.ExpectedImports())
				So(len(records)+len(rowErrs), ShouldEqual, len(rows))
			})

			Convey("And the per-player totals should match the bookkeeping", func() {
				reader, err := csvio.OpenFile(path)
				So(err, ShouldBeNil)
				defer reader.Close()

				records, _, err := reader.ReadAll(ctx)
				So(err, ShouldBeNil)

				totals := make(map[string]int)
				for _, rec := range records {
					totals[rec.Player] += rec.Value
				}
				for player, want := range gen.Expected() {
					So(totals[player], ShouldEqual, want.Total)
				}
			})
		})

		Convey("When writing with a byte order mark", func() {
			path := filepath.Join(dir, "bom.csv")
			So(loadgen.WriteFixture(ctx, path, rows, loadgen.EncodingUTF8BOM), ShouldBeNil)

			raw, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(raw[0], ShouldEqual, 0xEF)
			So(raw[1], ShouldEqual, 0xBB)
			So(raw[2], ShouldEqual, 0xBF)

			reader, err := csvio.OpenFile(path)
			So(err, ShouldBeNil)
			defer reader.Close()
			So(reader.Encoding(), ShouldEqual, csvio.EncodingUTF8BOM)
		})

		Convey("When writing Windows-1252", func() {
			path := filepath.Join(dir, "legacy.csv")
			So(loadgen.WriteFixture(ctx, path, rows, loadgen.EncodingCP1252), ShouldBeNil)

			Convey("Then detection should classify and decode the file", func() {
				reader, err := csvio.OpenFile(path)
				So(err, ShouldBeNil)
				defer reader.Close()

				records, _, err := reader.ReadAll(ctx)
				So(err, ShouldBeNil)
				So(reader.Encoding(), ShouldEqual, csvio.EncodingWindows1252)

				Convey("And umlaut player names should round-trip", func() {
					found := false
					for _, rec := range records {
						if rec.Player == "Feldjäger" {
							found = true
							break
						}
					}
					So(found, ShouldBeTrue)
				})
			})
		})

		Convey("When the encoding is unknown", func() {
			path := filepath.Join(dir, "bad.csv")
			err := loadgen.WriteFixture(ctx, path, rows, "ebcdic")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unknown encoding")
		})
	})
}
