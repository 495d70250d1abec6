package internal

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bolt/thumbs/internal/domain"
)

// Alias is a named thumbnail size, e.g.
//
//	small:
//	  size: [200, 150]
//	  cropping: crop
type Alias struct {
	Size     []int  `yaml:"size"`
	Cropping string `yaml:"cropping"`
}

// Aliases maps alias names to their settings.
type Aliases map[string]Alias

// LoadAliases reads the alias file at path. An empty path yields no
// aliases.
func LoadAliases(path string) (Aliases, error) {
	if path == "" {
		return Aliases{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aliases: %w", err)
	}
	return ParseAliases(data)
}

// ParseAliases decodes and validates alias YAML.
func ParseAliases(data []byte) (Aliases, error) {
	aliases := Aliases{}
	if err := yaml.Unmarshal(data, &aliases); err != nil {
		return nil, fmt.Errorf("parse aliases: %w", err)
	}

	for name, a := range aliases {
		if len(a.Size) > 2 {
			return nil, fmt.Errorf("alias %q: size takes at most two values", name)
		}
		for _, v := range a.Size {
			if v < 0 {
				return nil, fmt.Errorf("alias %q: size must not be negative", name)
			}
		}
		if a.Cropping != "" && !domain.Mode(a.Cropping).IsValid() {
			return nil, fmt.Errorf("alias %q: unknown cropping %q", name, a.Cropping)
		}
	}

	return aliases, nil
}

// Lookup returns the target size and mode for name. Missing size values
// are 0 (derived from the source) and a missing cropping is crop.
func (a Aliases) Lookup(name string) (domain.Dimensions, domain.Mode, bool) {
	alias, ok := a[name]
	if !ok {
		return domain.Dimensions{}, "", false
	}

	var size domain.Dimensions
	if len(alias.Size) > 0 {
		size.Width = alias.Size[0]
	}
	if len(alias.Size) > 1 {
		size.Height = alias.Size[1]
	}

	return size, domain.ParseMode(alias.Cropping), true
}
