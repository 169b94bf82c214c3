package catalog

// Author is a placeholder entity owned by the author service.
// It is created unfinalized when a book first references its name
// and transitions to finalized exactly once.
type Author struct {
	ID        AuthorIDInt64
	Name      string
	Bio       string
	PhotoURI  string
	Finalized bool
	Version   uint
}

// NewAuthorPlaceholder builds an unsaved, unfinalized Author.
func NewAuthorPlaceholder(name string) Author {
	return Author{Name: name}
}

// Finalize flips Finalized from false to true.
// It returns ErrAlreadyFinalized if the author was finalized before.
func (a *Author) Finalize() error {
	if a.Finalized {
		return ErrAlreadyFinalized
	}

	a.Finalized = true

	return nil
}

// Genre is a placeholder entity owned by the genre service, unique by Name.
type Genre struct {
	ID        GenreIDInt64
	Name      string
	Finalized bool
	Version   uint
}

// NewGenrePlaceholder builds an unsaved, unfinalized Genre.
func NewGenrePlaceholder(name string) Genre {
	return Genre{Name: name}
}

// Finalize flips Finalized from false to true.
// It returns ErrAlreadyFinalized if the genre was finalized before.
func (g *Genre) Finalize() error {
	if g.Finalized {
		return ErrAlreadyFinalized
	}

	g.Finalized = true

	return nil
}
