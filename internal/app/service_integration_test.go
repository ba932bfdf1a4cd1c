package service_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LinkesAuge/chestbuddy/internal/adapters/repository"
	service "github.com/LinkesAuge/chestbuddy/internal/app"
	"github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	"github.com/LinkesAuge/chestbuddy/internal/domain/model"
	"github.com/LinkesAuge/chestbuddy/internal/events"
	"github.com/LinkesAuge/chestbuddy/internal/jobs"
	. "github.com/smartystreets/goconvey/convey"
)

// writeChestCSV drops a canonical chest CSV file into dir.
func writeChestCSV(tb testing.TB, dir, name string, rows ...string) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	content := "Date,Player Name,Source/Location,Chest Type,Value,Clan\n" + strings.Join(rows, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tb.Fatalf("writing csv fixture: %v", err)
	}
	return path
}

// seedLists writes one reference list file per field into listsDir.
func seedLists(tb testing.TB, listsDir string) {
	tb.Helper()
	files := map[string]string{
		"players.txt":     "Feldjäger\nKrümelmonster\nOsmanlitorunu\n",
		"chest_types.txt": "Fire Chest\nCursed Chest\nChest of the Cursed\n",
		"sources.txt":     "Level 25 Crypt\nLevel 15 rare Crypt\nMercenary Exchange\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(listsDir, name), []byte(content), 0o644); err != nil {
			tb.Fatalf("writing list fixture %s: %v", name, err)
		}
	}
}

// waitForTerminal polls a job until it reaches a terminal state.
func waitForTerminal(svc *service.Service, id string, timeout time.Duration) (jobs.Status, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := svc.ImportStatus(id)
		if err == nil && st.State.IsTerminal() {
			return st, true
		}
		time.Sleep(20 * time.Millisecond)
	}
	st, _ := svc.ImportStatus(id)
	return st, false
}

func newIntegrationService(tb testing.TB) (*service.Service, string) {
	tb.Helper()
	dir := tb.TempDir()
	listsDir := filepath.Join(dir, "lists")
	if err := os.MkdirAll(listsDir, 0o755); err != nil {
		tb.Fatalf("creating lists dir: %v", err)
	}
	seedLists(tb, listsDir)

	svc := service.New(
		service.WithWorkerCount(2),
		service.WithQueueSize(16),
		service.WithChunkSize(2),
		service.WithListsDir(listsDir),
		service.WithRulesFile(filepath.Join(dir, "rules.csv")),
		service.WithArchivePath(filepath.Join(dir, "archive.db")),
		service.WithWatchLists(false),
	)
	return svc, dir
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a started service with an imported chest file", t, func() {
		svc, dir := newIntegrationService(t)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		csvPath := writeChestCSV(t, dir, "chests.csv",
			"2025-03-11,Feldjäger,Level 25 Crypt,Fire Chest,275,The Chiller",
			"2025-03-11,Krümelmonster,Level 15 rare Crypt,Cursed Chest,140,The Chiller",
			"2025-03-12,Feldjäger,Mercenary Exchange,Chest of the Cursed,320,The Chiller",
		)

		st, err := svc.ImportFile(ctx, csvPath, svc.ImportOptions())
		So(err, ShouldBeNil)
		So(st.JobID, ShouldNotBeEmpty)

		final, done := waitForTerminal(svc, st.JobID, 10*time.Second)
		So(done, ShouldBeTrue)
		So(final.State, ShouldEqual, jobs.StateCompleted)
		So(final.Progress.RowsRead, ShouldEqual, 3)
		So(final.Progress.RowsImported, ShouldEqual, 3)

		Convey("Then the records are in the table in file order", func() {
			recs, total, err := svc.Records(ctx, repository.ListQuery{})
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 3)
			So(recs[0].Player, ShouldEqual, "Feldjäger")
			So(recs[0].Value, ShouldEqual, 275)
			So(recs[2].ChestType, ShouldEqual, "Chest of the Cursed")
		})

		Convey("And validated rows came out valid", func() {
			recs, _, err := svc.Records(ctx, repository.ListQuery{Status: model.StatusValid})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 3)
		})

		Convey("And list filters narrow the result", func() {
			recs, total, err := svc.Records(ctx, repository.ListQuery{Player: "Feldjäger"})
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 2)
			So(len(recs), ShouldEqual, 2)

			recs, _, err = svc.Records(ctx, repository.ListQuery{Source: "crypt"})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
		})

		Convey("When the same file is imported again", func() {
			st2, err := svc.ImportFile(ctx, csvPath, svc.ImportOptions())
			So(err, ShouldBeNil)

			final2, done2 := waitForTerminal(svc, st2.JobID, 10*time.Second)
			So(done2, ShouldBeTrue)
			So(final2.State, ShouldEqual, jobs.StateCompleted)

			Convey("Then every row is skipped as a duplicate", func() {
				So(final2.Progress.Duplicates, ShouldEqual, 3)
				So(final2.Progress.RowsImported, ShouldEqual, 0)

				_, total, err := svc.Records(ctx, repository.ListQuery{})
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 3)
			})
		})

		Convey("Then the leaderboard ranks players by total value", func() {
			top, err := svc.TopPlayers(ctx, 10)
			So(err, ShouldBeNil)
			So(len(top), ShouldEqual, 2)
			So(top[0].Player, ShouldEqual, "Feldjäger")
			So(top[0].Total, ShouldEqual, 595)
			So(top[0].Chests, ShouldEqual, 2)
			So(top[1].Player, ShouldEqual, "Krümelmonster")

			entry, err := svc.PlayerRank(ctx, "Krümelmonster")
			So(err, ShouldBeNil)
			So(entry.Rank, ShouldEqual, 2)
			So(entry.Total, ShouldEqual, 140)

			_, err = svc.PlayerRank(ctx, "nobody")
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then charts render from the snapshot", func() {
			players, err := svc.ChartData(ctx, service.ChartPlayers)
			So(err, ShouldBeNil)
			So(len(players.Points), ShouldEqual, 2)
			So(players.Points[0].Label, ShouldEqual, "Feldjäger")

			timeline, err := svc.ChartData(ctx, service.ChartTimeline)
			So(err, ShouldBeNil)
			So(len(timeline.Points), ShouldEqual, 2)
			So(timeline.Points[0].Label, ShouldBeLessThan, timeline.Points[1].Label)

			all, err := svc.AllCharts(ctx)
			So(err, ShouldBeNil)
			So(len(all), ShouldEqual, 4)

			_, err = svc.ChartData(ctx, "bogus")
			So(errors.Is(err, service.ErrUnknownChartKind), ShouldBeTrue)
		})

		Convey("Then the import run is archived", func() {
			runs, err := svc.RecentImports(ctx, 5)
			So(err, ShouldBeNil)
			So(len(runs), ShouldBeGreaterThanOrEqualTo, 1)
			So(runs[0].RowsImported, ShouldEqual, 3)
		})

		Convey("When a cell edit changes a record", func() {
			recs, _, err := svc.Records(ctx, repository.ListQuery{Player: "Krümelmonster"})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 1)

			newValue := 500
			updated, err := svc.UpdateRecord(ctx, recs[0].ID, model.CellEdits{Value: &newValue})
			So(err, ShouldBeNil)

			Convey("Then the record holds the new value and awaits revalidation", func() {
				So(updated.Value, ShouldEqual, 500)
				So(updated.Validation.Status, ShouldEqual, model.StatusPending)
			})

			Convey("And the leaderboard reflects the new total", func() {
				entry, err := svc.PlayerRank(ctx, "Krümelmonster")
				So(err, ShouldBeNil)
				So(entry.Total, ShouldEqual, 500)
			})
		})

		Convey("When a record is deleted", func() {
			recs, _, err := svc.Records(ctx, repository.ListQuery{Player: "Krümelmonster"})
			So(err, ShouldBeNil)
			So(svc.DeleteRecord(ctx, recs[0].ID), ShouldBeNil)

			Convey("Then it is gone from the table and the leaderboard", func() {
				_, total, err := svc.Records(ctx, repository.ListQuery{})
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 2)

				_, err = svc.PlayerRank(ctx, "Krümelmonster")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And its row can be imported again", func() {
				st3, err := svc.ImportFile(ctx, csvPath, svc.ImportOptions())
				So(err, ShouldBeNil)
				final3, done3 := waitForTerminal(svc, st3.JobID, 10*time.Second)
				So(done3, ShouldBeTrue)
				So(final3.Progress.RowsImported, ShouldEqual, 1)
				So(final3.Progress.Duplicates, ShouldEqual, 2)
			})
		})

		Convey("When the table is cleared", func() {
			dropped, err := svc.ClearRecords(ctx)
			So(err, ShouldBeNil)
			So(dropped, ShouldEqual, 3)

			Convey("Then the table is empty and imports start fresh", func() {
				_, total, err := svc.Records(ctx, repository.ListQuery{})
				So(err, ShouldBeNil)
				So(total, ShouldEqual, 0)

				st4, err := svc.ImportFile(ctx, csvPath, svc.ImportOptions())
				So(err, ShouldBeNil)
				final4, done4 := waitForTerminal(svc, st4.JobID, 10*time.Second)
				So(done4, ShouldBeTrue)
				So(final4.Progress.RowsImported, ShouldEqual, 3)
			})
		})

		Convey("When records are exported", func() {
			var buf bytes.Buffer
			n, err := svc.ExportCSV(ctx, &buf, repository.ListQuery{}, false)
			So(err, ShouldBeNil)

			Convey("Then the stream carries the canonical header and all rows", func() {
				So(n, ShouldEqual, 3)
				out := buf.String()
				So(out, ShouldContainSubstring, "Date,Player Name,Source/Location,Chest Type,Value,Clan")
				So(out, ShouldContainSubstring, "Feldjäger")
				So(strings.Count(out, "\n"), ShouldEqual, 4)
			})
		})
	})
}

func TestServiceValidationAndCorrection(t *testing.T) {
	Convey("Given a service with a misspelled chest type imported", t, func() {
		svc, dir := newIntegrationService(t)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		csvPath := writeChestCSV(t, dir, "typos.csv",
			"2025-04-02,Feldjäger,Level 25 Crypt,Firee Chest,200,The Chiller",
			"2025-04-02,Krümelmonster,Level 15 rare Crypt,Cursed Chest,150,The Chiller",
		)

		st, err := svc.ImportFile(ctx, csvPath, svc.ImportOptions())
		So(err, ShouldBeNil)
		final, done := waitForTerminal(svc, st.JobID, 10*time.Second)
		So(done, ShouldBeTrue)
		So(final.State, ShouldEqual, jobs.StateCompleted)
		So(final.Progress.RowsImported, ShouldEqual, 2)

		Convey("Then the typo is flagged invalid at import time", func() {
			recs, _, err := svc.Records(ctx, repository.ListQuery{Status: model.StatusInvalid})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 1)
			So(recs[0].ChestType, ShouldEqual, "Firee Chest")
			So(recs[0].Validation.Fields, ShouldContain, model.FieldChestType)
		})

		Convey("And a validation pass reports the same outcome", func() {
			summary, err := svc.ValidateAll(ctx)
			So(err, ShouldBeNil)
			So(summary.Checked, ShouldEqual, 2)
			So(summary.Invalid, ShouldEqual, 1)

			last, ok := svc.LastValidation()
			So(ok, ShouldBeTrue)
			So(last.Invalid, ShouldEqual, 1)
		})

		Convey("And suggestions point at the canonical entry", func() {
			sugg, err := svc.Suggestions("chest_type", "Firee Chest")
			So(err, ShouldBeNil)
			So(len(sugg), ShouldBeGreaterThan, 0)
			So(sugg[0].Value, ShouldEqual, "Fire Chest")
		})

		Convey("When a correction rule fixes the typo", func() {
			rule, err := svc.AddRule(ctx, correction.Rule{
				From:    "Firee Chest",
				To:      "Fire Chest",
				Field:   model.FieldChestType,
				Enabled: true,
			})
			So(err, ShouldBeNil)
			So(rule.ID, ShouldNotBeEmpty)

			Convey("Then the rule file is persisted", func() {
				_, err := os.Stat(filepath.Join(dir, "rules.csv"))
				So(err, ShouldBeNil)
			})

			Convey("And a preview shows the pending change without applying it", func() {
				changes, err := svc.PreviewCorrections(ctx)
				So(err, ShouldBeNil)
				So(len(changes), ShouldEqual, 1)
				So(changes[0].To, ShouldEqual, "Fire Chest")

				recs, _, err := svc.Records(ctx, repository.ListQuery{ChestType: "Firee Chest"})
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 1)
			})

			Convey("And applying corrections rewrites and revalidates the record", func() {
				summary, changes, err := svc.ApplyCorrections(ctx)
				So(err, ShouldBeNil)
				So(summary.Records, ShouldEqual, 1)
				So(len(changes), ShouldEqual, 1)

				recs, _, err := svc.Records(ctx, repository.ListQuery{ChestType: "Fire Chest"})
				So(err, ShouldBeNil)
				So(len(recs), ShouldEqual, 1)
				So(recs[0].Validation.Status, ShouldEqual, model.StatusValid)
				So(recs[0].Correction.Status, ShouldEqual, model.CorrectionApplied)
			})

			Convey("And the rule can be updated and removed", func() {
				rule.To = "Cursed Chest"
				updated, err := svc.UpdateRule(ctx, rule.ID, rule)
				So(err, ShouldBeNil)
				So(updated.To, ShouldEqual, "Cursed Chest")

				So(svc.RemoveRule(ctx, rule.ID), ShouldBeNil)
				rules, err := svc.Rules()
				So(err, ShouldBeNil)
				So(len(rules), ShouldEqual, 0)

				err = svc.RemoveRule(ctx, rule.ID)
				So(errors.Is(err, correction.ErrRuleNotFound), ShouldBeTrue)
			})
		})
	})
}

func TestServiceListManagement(t *testing.T) {
	Convey("Given a started service with seeded lists", t, func() {
		svc, dir := newIntegrationService(t)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then list entries come back sorted", func() {
			entries, err := svc.ListEntries("players")
			So(err, ShouldBeNil)
			So(len(entries), ShouldEqual, 3)
			So(entries, ShouldContain, "Feldjäger")
		})

		Convey("When entries are added to a list", func() {
			count, err := svc.AddListEntries(ctx, "players", []string{"Newcomer"})
			So(err, ShouldBeNil)
			So(count, ShouldEqual, 4)

			Convey("Then the list file on disk carries the new entry", func() {
				data, err := os.ReadFile(filepath.Join(dir, "lists", "players.txt"))
				So(err, ShouldBeNil)
				So(string(data), ShouldContainSubstring, "Newcomer")
			})

			Convey("And removing it shrinks the list again", func() {
				count, err := svc.RemoveListEntry(ctx, "players", "Newcomer")
				So(err, ShouldBeNil)
				So(count, ShouldEqual, 3)
			})
		})

		Convey("When an unknown list kind is used", func() {
			_, err := svc.ListEntries("tanks")
			So(errors.Is(err, service.ErrUnknownListKind), ShouldBeTrue)

			_, err = svc.AddListEntries(ctx, "tanks", []string{"x"})
			So(errors.Is(err, service.ErrUnknownListKind), ShouldBeTrue)
		})

		Convey("When list updates are published", func() {
			var got events.Event
			doneCh := make(chan struct{})
			svc.Bus().Subscribe(events.ListsUpdated, func(e events.Event) {
				got = e
				close(doneCh)
			})

			_, err := svc.AddListEntries(ctx, "sources", []string{"Ancient Vault"})
			So(err, ShouldBeNil)

			select {
			case <-doneCh:
			case <-time.After(2 * time.Second):
			}

			Convey("Then subscribers see the change", func() {
				So(got, ShouldNotBeNil)
				So(got.EventType(), ShouldEqual, events.ListsUpdated)
			})
		})
	})
}

func TestServiceImportFailureModes(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc, dir := newIntegrationService(t)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When the import path does not exist", func() {
			_, err := svc.ImportFile(ctx, filepath.Join(dir, "nope.csv"), svc.ImportOptions())

			Convey("Then the job is refused up front", func() {
				So(errors.Is(err, service.ErrFileNotFound), ShouldBeTrue)
			})
		})

		Convey("When the import path is a directory", func() {
			_, err := svc.ImportFile(ctx, dir, svc.ImportOptions())
			So(errors.Is(err, service.ErrFileNotFound), ShouldBeTrue)
		})

		Convey("When a file without a usable header is imported", func() {
			path := filepath.Join(dir, "garbage.csv")
			So(os.WriteFile(path, []byte("just,some,random,cells\n1,2,3,4\n"), 0o644), ShouldBeNil)

			st, err := svc.ImportFile(ctx, path, svc.ImportOptions())
			So(err, ShouldBeNil)

			final, done := waitForTerminal(svc, st.JobID, 10*time.Second)
			So(done, ShouldBeTrue)

			Convey("Then the job fails with an error message", func() {
				So(final.State, ShouldEqual, jobs.StateFailed)
				So(final.Error, ShouldNotBeEmpty)
			})
		})

		Convey("When an unknown job is canceled", func() {
			err := svc.CancelImport("no-such-job")
			So(errors.Is(err, jobs.ErrUnknownJob), ShouldBeTrue)
		})

		Convey("When a completed job is canceled", func() {
			path := writeChestCSV(t, dir, "small.csv",
				"2025-05-01,Feldjäger,Level 25 Crypt,Fire Chest,100,The Chiller",
			)
			st, err := svc.ImportFile(ctx, path, svc.ImportOptions())
			So(err, ShouldBeNil)
			_, done := waitForTerminal(svc, st.JobID, 10*time.Second)
			So(done, ShouldBeTrue)

			Convey("Then the cancel is a harmless no-op", func() {
				So(svc.CancelImport(st.JobID), ShouldBeNil)
				final, err := svc.ImportStatus(st.JobID)
				So(err, ShouldBeNil)
				So(final.State, ShouldEqual, jobs.StateCompleted)
			})
		})
	})
}
