package correction_test

import (
	"context"
	"errors"
	"testing"

	correction "github.com/LinkesAuge/chestbuddy/internal/domain/correction"
	model "github.com/LinkesAuge/chestbuddy/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func testRecord(player, source, chestType string) *model.Record {
	rec, _ := model.ParseRow([]string{"2023-03-11", player, source, chestType, "275", "MY_CLAN"})
	return &rec
}

func TestRuleCorrector_Apply(t *testing.T) {
	Convey("Given a corrector with a player rule", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Feldjager", To: "Feldjäger", Field: model.FieldPlayer, Enabled: true},
		}))

		Convey("When applying to a record with the misspelled player", func() {
			rec := testRecord("Feldjager", "Arena", "Fire Chest")
			rec.Validation.Status = model.StatusInvalid
			changes := c.Apply(context.Background(), rec)

			Convey("Then the player should be rewritten", func() {
				So(len(changes), ShouldEqual, 1)
				So(changes[0].Field, ShouldEqual, model.FieldPlayer)
				So(changes[0].From, ShouldEqual, "Feldjager")
				So(changes[0].To, ShouldEqual, "Feldjäger")
				So(rec.Player, ShouldEqual, "Feldjäger")
			})

			Convey("And the record should carry the correction state", func() {
				So(rec.Correction.Status, ShouldEqual, model.CorrectionApplied)
				So(len(rec.Correction.Applied), ShouldEqual, 1)
				So(rec.Correction.Applied[0].RuleID, ShouldEqual, changes[0].RuleID)
			})

			Convey("And validation should drop back to pending", func() {
				So(rec.Validation.Status, ShouldEqual, model.StatusPending)
			})
		})

		Convey("When applying to a record the rule does not match", func() {
			rec := testRecord("Krümelmonster", "Arena", "Fire Chest")
			rec.Validation.Status = model.StatusValid
			changes := c.Apply(context.Background(), rec)

			Convey("Then nothing should change", func() {
				So(changes, ShouldBeNil)
				So(rec.Player, ShouldEqual, "Krümelmonster")
				So(rec.Correction.Status, ShouldEqual, model.CorrectionNone)
				So(rec.Validation.Status, ShouldEqual, model.StatusValid)
			})
		})

		Convey("When the rule is scoped to a different field", func() {
			rec := testRecord("Arena", "Feldjager", "Fire Chest")
			changes := c.Apply(context.Background(), rec)

			Convey("Then the source should not be rewritten", func() {
				So(changes, ShouldBeNil)
				So(rec.Source, ShouldEqual, "Feldjager")
			})
		})
	})

	Convey("Given a corrector with an unscoped rule", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Unknown", To: "Arena", Enabled: true},
		}))

		Convey("When the value appears in more than one field", func() {
			rec := testRecord("Unknown", "Unknown", "Fire Chest")
			changes := c.Apply(context.Background(), rec)

			Convey("Then every matching field should be rewritten", func() {
				So(len(changes), ShouldEqual, 2)
				So(rec.Player, ShouldEqual, "Arena")
				So(rec.Source, ShouldEqual, "Arena")
			})
		})
	})

	Convey("Given a corrector with a disabled rule", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Feldjager", To: "Feldjäger", Field: model.FieldPlayer, Enabled: false},
		}))

		Convey("When applying to a matching record", func() {
			rec := testRecord("Feldjager", "Arena", "Fire Chest")
			changes := c.Apply(context.Background(), rec)

			Convey("Then the rule should be skipped", func() {
				So(changes, ShouldBeNil)
				So(rec.Player, ShouldEqual, "Feldjager")
			})
		})
	})

	Convey("Given two rules matching the same value", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Feldjager", To: "Feldjäger", Field: model.FieldPlayer, Enabled: true},
			{From: "Feldjager", To: "ShadowBlade", Field: model.FieldPlayer, Enabled: true},
		}))

		Convey("When applying to a matching record", func() {
			rec := testRecord("Feldjager", "Arena", "Fire Chest")
			changes := c.Apply(context.Background(), rec)

			Convey("Then the first rule should win", func() {
				So(len(changes), ShouldEqual, 1)
				So(rec.Player, ShouldEqual, "Feldjäger")
			})
		})
	})
}

func TestRuleCorrector_Chains(t *testing.T) {
	Convey("Given rules that chain", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Fire Chst", To: "Fire Chest ", Field: model.FieldChestType, Enabled: true},
			{From: "Fire Chest ", To: "Fire Chest", Field: model.FieldChestType, Enabled: true},
		}))

		Convey("When applying to a record matching the first rule", func() {
			rec := testRecord("Feldjäger", "Arena", "Fire Chst")
			changes := c.Apply(context.Background(), rec)

			Convey("Then the chain should converge in one pass", func() {
				So(len(changes), ShouldEqual, 2)
				So(rec.ChestType, ShouldEqual, "Fire Chest")
			})

			Convey("And a second pass should change nothing", func() {
				So(c.Apply(context.Background(), rec), ShouldBeNil)
			})
		})
	})

	Convey("Given rules listed in reverse chain order", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Fire Chest ", To: "Fire Chest", Field: model.FieldChestType, Enabled: true},
			{From: "Fire Chst", To: "Fire Chest ", Field: model.FieldChestType, Enabled: true},
		}))

		Convey("When applying to a record matching the later rule", func() {
			rec := testRecord("Feldjäger", "Arena", "Fire Chst")
			c.Apply(context.Background(), rec)

			Convey("Then the chain should still converge", func() {
				So(rec.ChestType, ShouldEqual, "Fire Chest")
			})
		})
	})

	Convey("Given rules that form a cycle", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Arena", To: "Battle Arena", Field: model.FieldSource, Enabled: true},
			{From: "Battle Arena", To: "Arena", Field: model.FieldSource, Enabled: true},
		}))

		Convey("When applying to a record inside the cycle", func() {
			rec := testRecord("Feldjäger", "Arena", "Fire Chest")

			Convey("Then application should terminate after the first hop", func() {
				So(func() { c.Apply(context.Background(), rec) }, ShouldNotPanic)
				So(rec.Source, ShouldEqual, "Battle Arena")
			})
		})
	})
}

func TestRuleCorrector_CaseInsensitive(t *testing.T) {
	Convey("Given a case-insensitive corrector", t, func() {
		c := correction.New(
			correction.WithRules([]correction.Rule{
				{From: "fire chest", To: "Fire Chest", Field: model.FieldChestType, Enabled: true},
			}),
			correction.WithCaseInsensitive(true),
		)

		Convey("When the value differs only in case", func() {
			rec := testRecord("Feldjäger", "Arena", "FIRE CHEST")
			changes := c.Apply(context.Background(), rec)

			Convey("Then it should be normalized once", func() {
				So(len(changes), ShouldEqual, 1)
				So(rec.ChestType, ShouldEqual, "Fire Chest")
			})

			Convey("And a second pass should change nothing", func() {
				So(c.Apply(context.Background(), rec), ShouldBeNil)
			})
		})
	})

	Convey("Given a case-sensitive corrector with the same rule", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "fire chest", To: "Fire Chest", Field: model.FieldChestType, Enabled: true},
		}))

		Convey("When the value differs in case", func() {
			rec := testRecord("Feldjäger", "Arena", "FIRE CHEST")

			Convey("Then the rule should not match", func() {
				So(c.Apply(context.Background(), rec), ShouldBeNil)
				So(rec.ChestType, ShouldEqual, "FIRE CHEST")
			})
		})
	})
}

func TestRuleCorrector_ApplyAll(t *testing.T) {
	Convey("Given a corrector and a batch of records", t, func() {
		rules := []correction.Rule{
			{From: "Feldjager", To: "Feldjäger", Field: model.FieldPlayer, Enabled: true},
			{From: "Unknown", To: "Arena", Field: model.FieldSource, Enabled: true},
		}
		c := correction.New(correction.WithRules(rules))

		recs := []*model.Record{
			testRecord("Feldjager", "Unknown", "Fire Chest"),
			testRecord("Krümelmonster", "Arena", "Fire Chest"),
			testRecord("Feldjager", "Arena", "Fire Chest"),
		}

		Convey("When applying the batch", func() {
			summary, changes := c.ApplyAll(context.Background(), recs)

			Convey("Then the summary should count touched records and changes", func() {
				So(summary.Records, ShouldEqual, 2)
				So(summary.Changes, ShouldEqual, 3)
				So(len(changes), ShouldEqual, 3)
			})

			Convey("And hits should be counted per rule", func() {
				configured := c.Rules()
				So(summary.ByRule[configured[0].ID], ShouldEqual, 2)
				So(summary.ByRule[configured[1].ID], ShouldEqual, 1)
			})

			Convey("And a second pass should be a no-op", func() {
				again, _ := c.ApplyAll(context.Background(), recs)
				So(again.Records, ShouldEqual, 0)
				So(again.Changes, ShouldEqual, 0)
			})
		})

		Convey("When the context is already canceled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			summary, changes := c.ApplyAll(ctx, recs)

			Convey("Then no records should be touched", func() {
				So(summary.Records, ShouldEqual, 0)
				So(changes, ShouldBeNil)
				So(recs[0].Player, ShouldEqual, "Feldjager")
			})
		})
	})
}

func TestRuleCorrector_Preview(t *testing.T) {
	Convey("Given a corrector and a matching record", t, func() {
		c := correction.New(correction.WithRules([]correction.Rule{
			{From: "Feldjager", To: "Feldjäger", Field: model.FieldPlayer, Enabled: true},
		}))
		rec := testRecord("Feldjager", "Arena", "Fire Chest")

		Convey("When previewing", func() {
			changes := c.Preview(context.Background(), []*model.Record{rec})

			Convey("Then the change should be reported", func() {
				So(len(changes), ShouldEqual, 1)
				So(changes[0].To, ShouldEqual, "Feldjäger")
			})

			Convey("And the record should be untouched", func() {
				So(rec.Player, ShouldEqual, "Feldjager")
				So(rec.Correction.Status, ShouldEqual, model.CorrectionNone)
				So(rec.Correction.Applied, ShouldBeNil)
			})
		})
	})
}

func TestRuleCorrector_CRUD(t *testing.T) {
	Convey("Given an empty corrector", t, func() {
		c := correction.New()

		Convey("When adding a valid rule", func() {
			rule, err := c.Add(correction.Rule{From: "Feldjager", To: "Feldjäger", Field: model.FieldPlayer, Enabled: true})

			Convey("Then it should be stored with an assigned id", func() {
				So(err, ShouldBeNil)
				So(rule.ID, ShouldNotBeEmpty)
				So(len(c.Rules()), ShouldEqual, 1)
			})

			Convey("And it can be updated in place", func() {
				updated, err := c.Update(rule.ID, correction.Rule{From: "Feldjager", To: "ShadowBlade", Enabled: true})
				So(err, ShouldBeNil)
				So(updated.ID, ShouldEqual, rule.ID)
				So(c.Rules()[0].To, ShouldEqual, "ShadowBlade")
			})

			Convey("And it can be removed", func() {
				So(c.Remove(rule.ID), ShouldBeNil)
				So(c.Rules(), ShouldBeEmpty)
			})
		})

		Convey("When adding a rule with an empty from value", func() {
			_, err := c.Add(correction.Rule{From: "   ", To: "Feldjäger", Enabled: true})

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, correction.ErrEmptyFrom), ShouldBeTrue)
			})
		})

		Convey("When adding a rule with an unknown field", func() {
			_, err := c.Add(correction.Rule{From: "x", To: "y", Field: model.Field("clan"), Enabled: true})

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, model.ErrUnknownField), ShouldBeTrue)
			})
		})

		Convey("When updating a rule that does not exist", func() {
			_, err := c.Update("missing", correction.Rule{From: "x", To: "y", Enabled: true})

			Convey("Then it should report not found", func() {
				So(errors.Is(err, correction.ErrRuleNotFound), ShouldBeTrue)
			})
		})

		Convey("When removing a rule that does not exist", func() {
			err := c.Remove("missing")

			Convey("Then it should report not found", func() {
				So(errors.Is(err, correction.ErrRuleNotFound), ShouldBeTrue)
			})
		})

		Convey("When replacing the rule set wholesale", func() {
			c.SetRules([]correction.Rule{
				{From: "a", To: "b", Enabled: true},
				{From: "c", To: "d", Enabled: false},
			})

			Convey("Then every rule should carry an id", func() {
				rules := c.Rules()
				So(len(rules), ShouldEqual, 2)
				So(rules[0].ID, ShouldNotBeEmpty)
				So(rules[1].ID, ShouldNotBeEmpty)
			})
		})

		Convey("When mutating the slice returned by Rules", func() {
			c.SetRules([]correction.Rule{{From: "a", To: "b", Enabled: true}})
			got := c.Rules()
			got[0].To = "hacked"

			Convey("Then the corrector's copy should be unchanged", func() {
				So(c.Rules()[0].To, ShouldEqual, "b")
			})
		})
	})
}
