package search

// keywordGroup maps a topical keyword to its related terms. Groups are
// ordered by importance within a subject; the subject-context strategy
// draws from the top groups.
type keywordGroup struct {
	keyword string
	terms   []string
}

// subjectOrder fixes the scan order so detection is deterministic.
var subjectOrder = []string{
	"biology", "chemistry", "physics", "mathematics", "history", "literature",
}

// subjectDictionaries holds the static per-subject expansion dictionaries.
// The term lists are curated for lesson transcripts, not derived.
var subjectDictionaries = map[string][]keywordGroup{
	"biology": {
		{"cell", []string{"cells", "organelle", "membrane", "nucleus", "cytoplasm"}},
		{"dna", []string{"gene", "genetics", "chromosome", "heredity", "genome"}},
		{"genetics", []string{"dna", "gene", "inheritance", "trait", "mutation"}},
		{"photosynthesis", []string{"chlorophyll", "chloroplast", "glucose", "sunlight"}},
		{"evolution", []string{"natural selection", "adaptation", "species", "darwin"}},
		{"ecosystem", []string{"habitat", "food chain", "biodiversity", "environment"}},
	},
	"chemistry": {
		{"atom", []string{"electron", "proton", "neutron", "element", "nucleus"}},
		{"molecule", []string{"compound", "bond", "covalent", "ionic"}},
		{"reaction", []string{"reactant", "product", "catalyst", "equilibrium"}},
		{"acid", []string{"base", "ph", "alkaline", "neutralization"}},
		{"periodic", []string{"element", "periodic table", "group", "valence"}},
	},
	"physics": {
		{"force", []string{"newton", "friction", "gravity", "acceleration", "momentum"}},
		{"energy", []string{"kinetic", "potential", "work", "power", "joule"}},
		{"motion", []string{"velocity", "speed", "acceleration", "displacement"}},
		{"electricity", []string{"current", "voltage", "circuit", "resistance", "charge"}},
		{"wave", []string{"frequency", "wavelength", "amplitude", "sound", "light"}},
	},
	"mathematics": {
		{"equation", []string{"solve", "variable", "unknown", "expression"}},
		{"algebra", []string{"polynomial", "coefficient", "factor", "linear"}},
		{"geometry", []string{"angle", "triangle", "circle", "area", "perimeter"}},
		{"fraction", []string{"numerator", "denominator", "decimal", "ratio"}},
		{"function", []string{"graph", "domain", "range", "slope"}},
	},
	"history": {
		{"war", []string{"battle", "conflict", "treaty", "soldier", "invasion"}},
		{"revolution", []string{"uprising", "independence", "reform", "movement"}},
		{"empire", []string{"kingdom", "dynasty", "colony", "emperor"}},
		{"ancient", []string{"civilization", "angkor", "temple", "archaeology"}},
		{"king", []string{"monarch", "reign", "royal", "throne"}},
	},
	"literature": {
		{"poem", []string{"poetry", "verse", "stanza", "rhyme", "meter"}},
		{"novel", []string{"story", "fiction", "chapter", "plot", "narrative"}},
		{"metaphor", []string{"simile", "imagery", "symbolism", "figurative"}},
		{"author", []string{"writer", "poet", "narrator", "literary"}},
		{"character", []string{"protagonist", "antagonist", "dialogue", "theme"}},
	},
}
