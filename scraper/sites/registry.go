// Package sites bundles the marketplace definitions the scraper ships with
// and layers optional TOML overrides on top of them.
package sites

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"marketplace-scraper/scraper"
	"marketplace-scraper/services"
)

// Builtin returns fresh copies of the bundled sites keyed by name.
func Builtin() map[string]*scraper.Site {
	return map[string]*scraper.Site{
		"avito":  Avito(),
		"moteur": Moteur(),
	}
}

type overrideFile struct {
	Sites []*scraper.Site `toml:"site"`
}

// Load returns the built-in sites with the [[site]] tables of path layered on
// top. A site in the file replaces the built-in of the same name as a whole.
// An empty path returns the built-ins unchanged.
func Load(path string) (map[string]*scraper.Site, error) {
	all := Builtin()
	if path == "" {
		return all, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sites: read %s: %w", path, err)
	}
	var file overrideFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, scraper.RunError(scraper.ErrInvalidStrategy, "sites file %s: %v", path, err)
	}

	for _, site := range file.Sites {
		if site == nil || site.Name == "" {
			return nil, scraper.RunError(scraper.ErrInvalidStrategy, "sites file %s: site without a name", path)
		}
		if len(site.Dates.Minute) == 0 && len(site.Dates.Instant) == 0 {
			site.Dates = services.French
		}
		all[site.Name] = site
	}
	return all, nil
}

// Profile loads the named site and compiles it.
func Profile(name, path string) (*scraper.Profile, error) {
	all, err := Load(path)
	if err != nil {
		return nil, err
	}
	site, ok := all[name]
	if !ok {
		return nil, scraper.RunError(scraper.ErrUnknownSite, "%q (known: %v)", name, Names(all))
	}
	return site.Compile()
}

// Names lists site names in sorted order.
func Names(all map[string]*scraper.Site) []string {
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
