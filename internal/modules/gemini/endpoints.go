package gemini

import "fmt"

// DefaultVersions is the API version order tried for every model. Beta first:
// free-tier keys frequently have models enabled under v1beta only.
var DefaultVersions = []string{"v1beta", "v1"}

// DefaultModels is the ranked fallback list. 2.0 Flash variants lead because
// they are the most commonly enabled for free keys, then the 1.5 Flash family.
var DefaultModels = []string{
	"gemini-2.0-flash",
	"gemini-2.0-flash-lite",
	"gemini-2.0-flash-latest",
	"gemini-2.0-flash-lite-latest",
	"gemini-1.5-flash-8b-latest",
	"gemini-1.5-flash-8b",
	"gemini-1.5-flash-latest",
	"gemini-1.5-flash",
	"gemini-1.5-flash-8b-001",
	"gemini-1.5-flash-001",
}

// Candidate is one (model, API version) pair to attempt.
type Candidate struct {
	Model   string
	Version string
}

// Path returns the generateContent request path for this candidate, without
// the base URL or API key.
func (c Candidate) Path() string {
	return fmt.Sprintf("/%s/models/%s:generateContent", c.Version, c.Model)
}

func (c Candidate) String() string {
	return c.Model + "@" + c.Version
}

// Resolver produces the ordered candidate sequence for each analysis attempt.
// The sequence restarts from the top on every call; no last-known-good state
// is kept between analyses.
type Resolver struct {
	Override string // optional operator-supplied model, tried first
	Models   []string
	Versions []string
}

// NewResolver builds a resolver with the default model and version tables.
func NewResolver(override string) *Resolver {
	return &Resolver{
		Override: override,
		Models:   DefaultModels,
		Versions: DefaultVersions,
	}
}

// Candidates returns the full ordered candidate list: the override model (if
// set) under every version first, then each fallback model under every
// version. Order is significant and deterministic.
func (r *Resolver) Candidates() []Candidate {
	models := r.Models
	if r.Override != "" {
		models = make([]string, 0, len(r.Models)+1)
		models = append(models, r.Override)
		models = append(models, r.Models...)
	}

	out := make([]Candidate, 0, len(models)*len(r.Versions))
	for _, m := range models {
		for _, v := range r.Versions {
			out = append(out, Candidate{Model: m, Version: v})
		}
	}
	return out
}
