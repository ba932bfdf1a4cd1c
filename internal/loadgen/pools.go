package loadgen

// weightedName is one pool entry with a relative pick weight.
type weightedName struct {
	name   string
	weight int
}

// chestTier couples a chest type with its value range. Weights skew
// toward the cheap common chests the game actually drops.
type chestTier struct {
	name     string
	weight   int
	minValue int
	maxValue int
}

// playerPool mixes ASCII and non-ASCII names the way real clan rosters
// do. Weights make a few grinders dominate the totals.
var playerPool = []weightedName{
	{"Feldjäger", 9},
	{"Krümelmonster", 8},
	{"Osmanlitorunu", 7},
	{"VVarlock", 6},
	{"Moonlight", 6},
	{"Sir Met", 5},
	{"D4rkBlizZard", 5},
	{"GUARDIENOFTHUNDER", 4},
	{"Jäger des Lichts", 4},
	{"Bruno96", 4},
	{"Eisbrecher", 3},
	{"Tüm Dünya", 3},
	{"Schattenkrieger", 2},
	{"nordlicht", 2},
	{"Papa Bär", 2},
	{"x_Legolas_x", 1},
}

// clanByPlayer keeps each generated player in a fixed clan so rows stay
// internally consistent.
var clanByPlayer = map[string]string{
	"Feldjäger":         "The Chiller",
	"Krümelmonster":     "The Chiller",
	"Osmanlitorunu":     "OsmanlıTorunları",
	"VVarlock":          "The Chiller",
	"Moonlight":         "Night Watch",
	"Sir Met":           "Night Watch",
	"D4rkBlizZard":      "The Chiller",
	"GUARDIENOFTHUNDER": "OsmanlıTorunları",
	"Jäger des Lichts":  "The Chiller",
	"Bruno96":           "Night Watch",
	"Eisbrecher":        "The Chiller",
	"Tüm Dünya":         "OsmanlıTorunları",
	"Schattenkrieger":   "The Chiller",
	"nordlicht":         "Night Watch",
	"Papa Bär":          "The Chiller",
	"x_Legolas_x":       "Night Watch",
}

// defaultClan covers injected players that have no roster entry.
const defaultClan = "The Chiller"

var chestPool = []chestTier{
	{"Ancient Chest", 10, 5, 50},
	{"Merchant's Chest", 8, 10, 80},
	{"Clan Wealth Chest", 7, 20, 120},
	{"Bone Chest", 6, 50, 150},
	{"Elegant Chest", 5, 50, 200},
	{"Runic Chest", 4, 100, 300},
	{"Fire Chest", 4, 150, 400},
	{"Chest of the Cursed", 3, 200, 600},
	{"Infernal Chest", 2, 300, 900},
	{"Golden Chest", 1, 500, 1500},
}

var sourcePool = []weightedName{
	{"Level 5 Crypt", 8},
	{"Level 10 Crypt", 8},
	{"Level 15 Crypt", 7},
	{"Level 20 Crypt", 6},
	{"Level 25 Crypt", 5},
	{"Level 30 epic Crypt", 3},
	{"Daily Quest", 6},
	{"Clan Expedition", 4},
	{"Mercenary Exchange", 3},
	{"Arena Reward", 2},
	{"Bank Vault", 1},
}

// chestMisspellings exercise fuzzy validation and correction rules.
// A slice, not a map, so seeded picks stay deterministic.
var chestMisspellings = []struct {
	correct string
	garbled string
}{
	{"Fire Chest", "Firee Chest"},
	{"Ancient Chest", "Ancient Chst"},
	{"Bone Chest", "Bone Chet"},
	{"Chest of the Cursed", "Chest of Curse"},
	{"Golden Chest", "Goldn Chest"},
}

// unknownPlayers are names no reference list will carry.
var unknownPlayers = []string{
	"Xx_Shadow_xX",
	"RandomDude42",
	"NewGuy",
}

// badDates fail the strict YYYY-MM-DD parse. The first is the German
// format the game's own screenshots use.
var badDates = []string{
	"11.03.2025",
	"2025/03/11",
	"yesterday",
}

// badValues fail integer parsing or the non-negative rule.
var badValues = []string{
	"-50",
	"many",
	"",
}
