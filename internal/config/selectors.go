package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Selectors holds the CSS selectors used to drive Gmail. Gmail markup shifts
// over time, so these can be overridden from a YAML file without a rebuild.
type Selectors struct {
	SearchInput  string `yaml:"search_input"`
	SearchRegion string `yaml:"search_region"`
	MainRegion   string `yaml:"main_region"`
	NoResults    string `yaml:"no_results"`
	EmailRow     string `yaml:"email_row"`
	LoginMarker  string `yaml:"login_marker"`
	BackToInbox  string `yaml:"back_to_inbox"`
}

// DefaultSelectors returns the selectors for the current Gmail markup.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchInput:  "input[aria-label='Search mail']",
		SearchRegion: "div[role='search']",
		MainRegion:   "div[role='main']",
		NoResults:    "div.TD",
		EmailRow:     "tr.zA",
		LoginMarker:  "input[type='email']",
		BackToInbox:  "button[aria-label='Back to Inbox']",
	}
}

// LoadSelectors returns the defaults overlaid with any fields set in the
// YAML file at path. An empty path returns the defaults unchanged.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return sel, eris.Wrapf(err, "config: read selectors %s", path)
	}

	var overrides Selectors
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return sel, eris.Wrap(err, "config: parse selectors")
	}

	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	apply(&sel.SearchInput, overrides.SearchInput)
	apply(&sel.SearchRegion, overrides.SearchRegion)
	apply(&sel.MainRegion, overrides.MainRegion)
	apply(&sel.NoResults, overrides.NoResults)
	apply(&sel.EmailRow, overrides.EmailRow)
	apply(&sel.LoginMarker, overrides.LoginMarker)
	apply(&sel.BackToInbox, overrides.BackToInbox)

	return sel, nil
}
