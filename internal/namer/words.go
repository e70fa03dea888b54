package namer

// wordList feeds phrase generation. Short, concrete, unambiguous words keep
// directory names readable.
var wordList = []string{
	"acorn", "amber", "anchor", "apple", "arrow", "aspen", "atlas", "autumn",
	"badger", "bamboo", "basil", "beacon", "birch", "bison", "bloom", "bluff",
	"bolt", "boulder", "bramble", "brass", "breeze", "brook", "bunker", "butte",
	"cabin", "canyon", "caper", "carbon", "cedar", "chalk", "cinder", "citrus",
	"clover", "cobalt", "comet", "copper", "coral", "cove", "crane", "crest",
	"cricket", "crimson", "crystal", "cypress", "dagger", "dawn", "delta",
	"denim", "drift", "dune", "dusk", "eagle", "ember", "falcon", "fern",
	"finch", "fjord", "flint", "forge", "fossil", "fox", "frost", "garnet",
	"geyser", "ginger", "glacier", "glade", "granite", "grove", "gull",
	"harbor", "hawk", "hazel", "heron", "hickory", "hollow", "ibis", "indigo",
	"iris", "iron", "island", "ivory", "jade", "jasper", "juniper", "kelp",
	"kestrel", "knoll", "lagoon", "lantern", "larch", "lark", "lava", "ledge",
	"lemon", "lichen", "lilac", "linden", "lotus", "lunar", "lynx", "magnet",
	"mango", "maple", "marble", "marsh", "meadow", "mesa", "mica", "mink",
	"mint", "monsoon", "moss", "moth", "nectar", "nettle", "nickel", "north",
	"nutmeg", "oak", "oasis", "ocean", "ochre", "olive", "onyx", "opal",
	"orchid", "osprey", "otter", "owl", "oxbow", "palm", "pebble", "pecan",
	"pelican", "pepper", "perch", "pewter", "pine", "pistachio", "plum",
	"plume", "pond", "poppy", "prairie", "prism", "puffin", "quail", "quartz",
	"quill", "raven", "reed", "ridge", "river", "robin", "rowan", "ruby",
	"rustic", "saffron", "sage", "salmon", "sandbar", "sapphire", "savanna",
	"sequoia", "shale", "shore", "sierra", "silver", "slate", "sorrel",
	"sparrow", "spruce", "steppe", "stork", "storm", "summit", "sumac",
	"swift", "tamarind", "teal", "thicket", "thistle", "thorn", "tidal",
	"timber", "topaz", "trout", "tulip", "tundra", "tupelo", "umber", "vale",
	"velvet", "violet", "walnut", "warbler", "willow", "winter", "wren",
	"yarrow", "yew", "zephyr", "zinc", "zinnia",
}
