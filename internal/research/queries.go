package research

import (
	"embed"
	"os"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed config/queries.yaml
var queriesYAML embed.FS

// Registry holds the search queries used for procedure and funding research.
type Registry struct {
	Procedures []string `yaml:"procedures"`
	Funding    []string `yaml:"funding"`
}

// CaseQuery is the data funding query templates are rendered with.
type CaseQuery struct {
	Title       string
	Description string
	Category    string
}

// LoadRegistry reads the embedded query registry. A non-empty path overrides it
// with a file on disk.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path != "" {
		data, err = os.ReadFile(path)
	} else {
		data, err = queriesYAML.ReadFile("config/queries.yaml")
	}
	if err != nil {
		return nil, eris.Wrap(err, "research: read query registry")
	}

	var reg Registry
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &reg); err != nil {
		return nil, eris.Wrap(err, "research: parse query registry")
	}
	return &reg, nil
}

// FundingQueries renders the funding templates for one case. Blank results are
// skipped.
func (r *Registry) FundingQueries(q CaseQuery) ([]string, error) {
	out := make([]string, 0, len(r.Funding))
	for i, raw := range r.Funding {
		tmpl, err := template.New("funding").Option("missingkey=zero").Parse(raw)
		if err != nil {
			return nil, eris.Wrapf(err, "research: funding query %d", i)
		}
		var b strings.Builder
		if err := tmpl.Execute(&b, q); err != nil {
			return nil, eris.Wrapf(err, "research: render funding query %d", i)
		}
		if query := normalizeSpace(b.String()); query != "" {
			out = append(out, query)
		}
	}
	return out, nil
}
