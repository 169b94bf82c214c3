package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

func Test_loadBookSeeds_MapsEveryBookToAnIntent(t *testing.T) {
	// act
	intents, err := loadBookSeeds("testdata/books.yaml")

	// assert
	require.NoError(t, err)
	require.Len(t, intents, 2)
	assert.Equal(t, "9780134685991", intents[0].NaturalKey)
	assert.Equal(t, "Effective Java", intents[0].Title)
	assert.Equal(t, "Best practices for the Java platform", intents[0].Description)
	assert.Equal(t, "Joshua Bloch", intents[0].AuthorName)
	assert.Equal(t, "Programming", intents[0].GenreName)
	assert.Equal(t, "", intents[1].Description)
}

func Test_loadBookSeeds_EmptyPath_MeansNoBooks(t *testing.T) {
	intents, err := loadBookSeeds("")

	require.NoError(t, err)
	assert.Empty(t, intents)
}

func Test_loadBookSeeds_RejectsUnusableFiles(t *testing.T) {
	_, err := loadBookSeeds("testdata/invalid-books.yaml")
	assert.ErrorIs(t, err, ErrReadingBooksFailed)
	assert.ErrorIs(t, err, catalog.ErrInvalidIntent)

	_, err = loadBookSeeds("testdata/does-not-exist.yaml")
	assert.ErrorIs(t, err, ErrReadingBooksFailed)
}
