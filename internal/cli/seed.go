package cli

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/AntonStoeckl/library-catalog-go/saga"
)

// ErrReadingBooksFailed is returned when the --books file cannot be read or decoded.
var ErrReadingBooksFailed = errors.New("reading books file failed")

type bookSeedFile struct {
	Books []bookSeed `yaml:"books"`
}

type bookSeed struct {
	NaturalKey  string `yaml:"natural_key"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Author      string `yaml:"author"`
	Genre       string `yaml:"genre"`
}

// loadBookSeeds reads the books to request from path. An empty path means no books.
func loadBookSeeds(path string) ([]saga.Intent, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(ErrReadingBooksFailed, err)
	}

	var file bookSeedFile
	if err = yaml.Unmarshal(raw, &file); err != nil {
		return nil, errors.Join(ErrReadingBooksFailed, fmt.Errorf("%s: %w", path, err))
	}

	intents := make([]saga.Intent, 0, len(file.Books))

	for i, seed := range file.Books {
		intent := saga.Intent{
			NaturalKey:  seed.NaturalKey,
			Title:       seed.Title,
			Description: seed.Description,
			AuthorName:  seed.Author,
			GenreName:   seed.Genre,
		}

		if err = intent.Validate(); err != nil {
			return nil, errors.Join(ErrReadingBooksFailed, fmt.Errorf("%s: book %d: %w", path, i+1, err))
		}

		intents = append(intents, intent)
	}

	return intents, nil
}
