package projection

import (
	"context"
	"slices"
	"strconv"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

// BookView is the read model row of a book.
type BookView struct {
	NaturalKey  string  `json:"naturalKey"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Genre       string  `json:"genre"`
	AuthorIDs   []int64 `json:"authorIds"`
	Version     uint    `json:"version"`
}

// AuthorView is the read model row of an author.
type AuthorView struct {
	AuthorID int64  `json:"authorId"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	PhotoURI string `json:"photoURI"`
	Version  uint   `json:"version"`
}

// GenreView is the read model row of a genre.
type GenreView struct {
	Name    string `json:"name"`
	Version uint   `json:"version"`
}

// AuthorKey renders an author id as a read model key.
func AuthorKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// BookProjector projects book events.
type BookProjector struct {
	*Projector[BookView]
}

// NewBookProjector creates a BookProjector on store.
func NewBookProjector(store ReadStore[BookView], obs catalog.Observability) BookProjector {
	return BookProjector{NewProjector("books", store,
		func(v BookView) string { return v.NaturalKey },
		func(v BookView) uint { return v.Version },
		obs,
	)}
}

// OnBookCreated handles BookCreated.
func (p BookProjector) OnBookCreated(ctx context.Context, msg messaging.BookCreated) error {
	return p.OnCreated(ctx, BookView{
		NaturalKey:  msg.NaturalKey,
		Title:       msg.Title,
		Description: msg.Description,
		Genre:       msg.Genre,
		AuthorIDs:   slices.Clone(msg.AuthorIDs),
		Version:     msg.Version,
	})
}

// OnBookUpdated handles BookUpdated.
func (p BookProjector) OnBookUpdated(ctx context.Context, msg messaging.BookUpdated) error {
	return p.OnUpdated(ctx, BookView{
		NaturalKey:  msg.NaturalKey,
		Title:       msg.Title,
		Description: msg.Description,
		Genre:       msg.Genre,
		AuthorIDs:   slices.Clone(msg.AuthorIDs),
		Version:     msg.Version,
	})
}

// OnBookDeleted handles BookDeleted.
func (p BookProjector) OnBookDeleted(ctx context.Context, msg messaging.BookDeleted) error {
	return p.OnDeleted(ctx, msg.NaturalKey)
}

// Register binds the book handlers to ephemeral per-instance queues.
func (p BookProjector) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	return registerAll(router,
		binding{messaging.RouteBookCreated, messaging.Handle(logger, "books.on-created", p.OnBookCreated)},
		binding{messaging.RouteBookUpdated, messaging.Handle(logger, "books.on-updated", p.OnBookUpdated)},
		binding{messaging.RouteBookDeleted, messaging.Handle(logger, "books.on-deleted", p.OnBookDeleted)},
	)
}

// AuthorProjector projects author events.
type AuthorProjector struct {
	*Projector[AuthorView]
}

// NewAuthorProjector creates an AuthorProjector on store.
func NewAuthorProjector(store ReadStore[AuthorView], obs catalog.Observability) AuthorProjector {
	return AuthorProjector{NewProjector("authors", store,
		func(v AuthorView) string { return AuthorKey(v.AuthorID) },
		func(v AuthorView) uint { return v.Version },
		obs,
	)}
}

// OnAuthorCreated handles AuthorCreated.
func (p AuthorProjector) OnAuthorCreated(ctx context.Context, msg messaging.AuthorCreated) error {
	return p.OnCreated(ctx, AuthorView{
		AuthorID: msg.AuthorID,
		Name:     msg.Name,
		Bio:      msg.Bio,
		PhotoURI: msg.PhotoURI,
		Version:  msg.Version,
	})
}

// OnAuthorUpdated handles AuthorUpdated.
func (p AuthorProjector) OnAuthorUpdated(ctx context.Context, msg messaging.AuthorUpdated) error {
	return p.OnUpdated(ctx, AuthorView{
		AuthorID: msg.AuthorID,
		Name:     msg.Name,
		Bio:      msg.Bio,
		PhotoURI: msg.PhotoURI,
		Version:  msg.Version,
	})
}

// OnAuthorDeleted handles AuthorDeleted.
func (p AuthorProjector) OnAuthorDeleted(ctx context.Context, msg messaging.AuthorDeleted) error {
	return p.OnDeleted(ctx, AuthorKey(msg.AuthorID))
}

// Register binds the author handlers to ephemeral per-instance queues.
func (p AuthorProjector) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	return registerAll(router,
		binding{messaging.RouteAuthorCreated, messaging.Handle(logger, "authors.on-created", p.OnAuthorCreated)},
		binding{messaging.RouteAuthorUpdated, messaging.Handle(logger, "authors.on-updated", p.OnAuthorUpdated)},
		binding{messaging.RouteAuthorDeleted, messaging.Handle(logger, "authors.on-deleted", p.OnAuthorDeleted)},
	)
}

// GenreProjector projects genre events.
type GenreProjector struct {
	*Projector[GenreView]
}

// NewGenreProjector creates a GenreProjector on store.
func NewGenreProjector(store ReadStore[GenreView], obs catalog.Observability) GenreProjector {
	return GenreProjector{NewProjector("genres", store,
		func(v GenreView) string { return v.Name },
		func(v GenreView) uint { return v.Version },
		obs,
	)}
}

// OnGenreCreated handles GenreCreated.
func (p GenreProjector) OnGenreCreated(ctx context.Context, msg messaging.GenreCreated) error {
	return p.OnCreated(ctx, GenreView{Name: msg.Genre, Version: msg.Version})
}

// OnGenreUpdated handles GenreUpdated.
func (p GenreProjector) OnGenreUpdated(ctx context.Context, msg messaging.GenreUpdated) error {
	return p.OnUpdated(ctx, GenreView{Name: msg.Genre, Version: msg.Version})
}

// OnGenreDeleted handles GenreDeleted.
func (p GenreProjector) OnGenreDeleted(ctx context.Context, msg messaging.GenreDeleted) error {
	return p.OnDeleted(ctx, msg.Genre)
}

// Register binds the genre handlers to ephemeral per-instance queues.
func (p GenreProjector) Register(router *messaging.Router, logger messaging.ContextualLogger) error {
	return registerAll(router,
		binding{messaging.RouteGenreCreated, messaging.Handle(logger, "genres.on-created", p.OnGenreCreated)},
		binding{messaging.RouteGenreUpdated, messaging.Handle(logger, "genres.on-updated", p.OnGenreUpdated)},
		binding{messaging.RouteGenreDeleted, messaging.Handle(logger, "genres.on-deleted", p.OnGenreDeleted)},
	)
}

type binding struct {
	route   messaging.Route
	handler messaging.DeliveryHandler
}

func registerAll(router *messaging.Router, bindings ...binding) error {
	for _, b := range bindings {
		if err := router.Register(messaging.EphemeralBinding(b.route), b.handler); err != nil {
			return err
		}
	}

	return nil
}
