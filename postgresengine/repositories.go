package postgresengine

import (
	"context"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
	"github.com/AntonStoeckl/library-catalog-go/postgresengine/internal/adapters"
)

const (
	colNaturalKey      = "natural_key"
	colTitle           = "title"
	colDescription     = "description"
	colGenreRef        = "genre_ref"
	colAuthorRefs      = "author_refs"
	colVersion         = "version"
	colID              = "id"
	colName            = "name"
	colBio             = "bio"
	colPhotoURI        = "photo_uri"
	colFinalized       = "finalized"
	colAuthorName      = "author_name"
	colGenreName       = "genre_name"
	colStatus          = "status"
	colAuthorID        = "author_id"
	colAuthorResponded = "author_responded"
	colGenreResponded  = "genre_responded"
	colAuthorFinalized = "author_finalized"
	colGenreFinalized  = "genre_finalized"
	colFailureReason   = "failure_reason"
	colCreatedAt       = "created_at"

	incrementVersion = "version + 1"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// saveVersioned inserts when version is 0 and otherwise updates the row matching where at that version.
func saveVersioned(
	ctx context.Context,
	t *tx,
	table string,
	entity string,
	key any,
	version uint,
	values goqu.Record,
	where goqu.Ex,
) error {

	if version == 0 {
		values[colVersion] = 1
		_, err := t.engine.exec(ctx, t.q, "insert "+entity, builder().Insert(table).Rows(values))

		return err
	}

	values[colVersion] = goqu.L(incrementVersion)
	where[colVersion] = version

	affected, err := t.engine.exec(ctx, t.q, "update "+entity, builder().Update(table).Set(values).Where(where))
	if err != nil {
		return err
	}

	if affected == 0 {
		return conflict(entity, key, version)
	}

	return nil
}

func deleteWhere(ctx context.Context, t *tx, table string, entity string, key any, where goqu.Ex) error {
	affected, err := t.engine.exec(ctx, t.q, "delete "+entity, builder().Delete(table).Where(where))
	if err != nil {
		return err
	}

	if affected == 0 {
		return notFound(entity, key)
	}

	return nil
}

type bookRepository struct{ t *tx }

func (r bookRepository) FindByNaturalKey(ctx context.Context, naturalKey catalog.NaturalKeyString) (catalog.Book, error) {
	var (
		book  catalog.Book
		found bool
	)

	stmt := builder().From(tableBooks).
		Select(colNaturalKey, colTitle, colDescription, colGenreRef, colAuthorRefs, colVersion).
		Where(goqu.Ex{colNaturalKey: naturalKey})

	err := r.t.engine.queryRows(ctx, r.t.q, "select book", stmt, func(rows adapters.DBRows) error {
		var (
			refs    []byte
			version int64
		)

		if err := rows.Scan(&book.NaturalKey, &book.Title, &book.Description, &book.GenreRef, &refs, &version); err != nil {
			return err
		}

		book.Version = uint(version)
		found = true

		return jsonAPI.Unmarshal(refs, &book.AuthorRefs)
	})

	if err != nil {
		return catalog.Book{}, err
	}

	if !found {
		return catalog.Book{}, notFound("book", naturalKey)
	}

	return book, nil
}

func (r bookRepository) Save(ctx context.Context, book catalog.Book) (catalog.Book, error) {
	refs := book.AuthorRefs
	if refs == nil {
		refs = []catalog.AuthorIDInt64{}
	}

	refsJSON, err := jsonAPI.Marshal(refs)
	if err != nil {
		return catalog.Book{}, err
	}

	values := goqu.Record{
		colNaturalKey:  book.NaturalKey,
		colTitle:       book.Title,
		colDescription: book.Description,
		colGenreRef:    book.GenreRef,
		colAuthorRefs:  goqu.L(castJsonb, string(refsJSON)),
	}

	if err = saveVersioned(ctx, r.t, tableBooks, "book", book.NaturalKey, book.Version, values, goqu.Ex{colNaturalKey: book.NaturalKey}); err != nil {
		return catalog.Book{}, err
	}

	book.Version++

	return book, nil
}

func (r bookRepository) Delete(ctx context.Context, naturalKey catalog.NaturalKeyString) error {
	return deleteWhere(ctx, r.t, tableBooks, "book", naturalKey, goqu.Ex{colNaturalKey: naturalKey})
}

type authorRepository struct{ t *tx }

func (r authorRepository) find(ctx context.Context, where goqu.Ex, key any) (catalog.Author, error) {
	var (
		author catalog.Author
		found  bool
	)

	stmt := builder().From(tableAuthors).
		Select(colID, colName, colBio, colPhotoURI, colFinalized, colVersion).
		Where(where)

	err := r.t.engine.queryRows(ctx, r.t.q, "select author", stmt, func(rows adapters.DBRows) error {
		var version int64
		if err := rows.Scan(&author.ID, &author.Name, &author.Bio, &author.PhotoURI, &author.Finalized, &version); err != nil {
			return err
		}

		author.Version = uint(version)
		found = true

		return nil
	})

	if err != nil {
		return catalog.Author{}, err
	}

	if !found {
		return catalog.Author{}, notFound("author", key)
	}

	return author, nil
}

func (r authorRepository) FindByID(ctx context.Context, id catalog.AuthorIDInt64) (catalog.Author, error) {
	return r.find(ctx, goqu.Ex{colID: id}, id)
}

func (r authorRepository) FindByName(ctx context.Context, name string) (catalog.Author, error) {
	return r.find(ctx, goqu.Ex{colName: strings.TrimSpace(name)}, name)
}

func (r authorRepository) Save(ctx context.Context, author catalog.Author) (catalog.Author, error) {
	author.Name = strings.TrimSpace(author.Name)

	values := goqu.Record{
		colName:      author.Name,
		colBio:       author.Bio,
		colPhotoURI:  author.PhotoURI,
		colFinalized: author.Finalized,
	}

	if author.Version == 0 {
		if author.ID != 0 {
			values[colID] = author.ID
		}

		values[colVersion] = 1
		stmt := builder().Insert(tableAuthors).Rows(values).Returning(colID)

		err := r.t.engine.queryRows(ctx, r.t.q, "insert author", stmt, func(rows adapters.DBRows) error {
			return rows.Scan(&author.ID)
		})

		if err != nil {
			return catalog.Author{}, err
		}

		author.Version = 1

		return author, nil
	}

	if err := saveVersioned(ctx, r.t, tableAuthors, "author", author.ID, author.Version, values, goqu.Ex{colID: author.ID}); err != nil {
		return catalog.Author{}, err
	}

	author.Version++

	return author, nil
}

func (r authorRepository) Delete(ctx context.Context, id catalog.AuthorIDInt64) error {
	return deleteWhere(ctx, r.t, tableAuthors, "author", id, goqu.Ex{colID: id})
}

type genreRepository struct{ t *tx }

func (r genreRepository) FindByName(ctx context.Context, name string) (catalog.Genre, error) {
	var (
		genre catalog.Genre
		found bool
	)

	stmt := builder().From(tableGenres).
		Select(colID, colName, colFinalized, colVersion).
		Where(goqu.Ex{colName: strings.TrimSpace(name)})

	err := r.t.engine.queryRows(ctx, r.t.q, "select genre", stmt, func(rows adapters.DBRows) error {
		var version int64
		if err := rows.Scan(&genre.ID, &genre.Name, &genre.Finalized, &version); err != nil {
			return err
		}

		genre.Version = uint(version)
		found = true

		return nil
	})

	if err != nil {
		return catalog.Genre{}, err
	}

	if !found {
		return catalog.Genre{}, notFound("genre", name)
	}

	return genre, nil
}

func (r genreRepository) Save(ctx context.Context, genre catalog.Genre) (catalog.Genre, error) {
	genre.Name = strings.TrimSpace(genre.Name)

	values := goqu.Record{
		colName:      genre.Name,
		colFinalized: genre.Finalized,
	}

	if genre.Version == 0 {
		if genre.ID != 0 {
			values[colID] = genre.ID
		}

		values[colVersion] = 1
		stmt := builder().Insert(tableGenres).Rows(values).Returning(colID)

		err := r.t.engine.queryRows(ctx, r.t.q, "insert genre", stmt, func(rows adapters.DBRows) error {
			return rows.Scan(&genre.ID)
		})

		if err != nil {
			return catalog.Genre{}, err
		}

		genre.Version = 1

		return genre, nil
	}

	if err := saveVersioned(ctx, r.t, tableGenres, "genre", genre.Name, genre.Version, values, goqu.Ex{colName: genre.Name}); err != nil {
		return catalog.Genre{}, err
	}

	genre.Version++

	return genre, nil
}

func (r genreRepository) Delete(ctx context.Context, name string) error {
	return deleteWhere(ctx, r.t, tableGenres, "genre", name, goqu.Ex{colName: strings.TrimSpace(name)})
}

type pendingRequestRepository struct{ t *tx }

func (r pendingRequestRepository) FindByNaturalKey(
	ctx context.Context,
	naturalKey catalog.NaturalKeyString,
) (catalog.PendingRequest, error) {

	var (
		request catalog.PendingRequest
		found   bool
	)

	stmt := builder().From(tablePendingRequests).
		Select(
			colNaturalKey, colTitle, colDescription, colAuthorName, colGenreName, colStatus, colAuthorID,
			colAuthorResponded, colGenreResponded, colAuthorFinalized, colGenreFinalized,
			colFailureReason, colCreatedAt, colVersion,
		).
		Where(goqu.Ex{colNaturalKey: naturalKey})

	err := r.t.engine.queryRows(ctx, r.t.q, "select pending request", stmt, func(rows adapters.DBRows) error {
		var (
			status  string
			version int64
		)

		err := rows.Scan(
			&request.NaturalKey, &request.Title, &request.Description, &request.AuthorName, &request.GenreName,
			&status, &request.AuthorID,
			&request.AuthorResponded, &request.GenreResponded, &request.AuthorFinalized, &request.GenreFinalized,
			&request.FailureReason, &request.CreatedAt, &version,
		)

		if err != nil {
			return err
		}

		request.Status = catalog.Status(status)
		request.CreatedAt = request.CreatedAt.UTC()
		request.Version = uint(version)
		found = true

		return nil
	})

	if err != nil {
		return catalog.PendingRequest{}, err
	}

	if !found {
		return catalog.PendingRequest{}, notFound("pending request", naturalKey)
	}

	return request, nil
}

func (r pendingRequestRepository) Save(ctx context.Context, request catalog.PendingRequest) (catalog.PendingRequest, error) {
	values := goqu.Record{
		colNaturalKey:      request.NaturalKey,
		colTitle:           request.Title,
		colDescription:     request.Description,
		colAuthorName:      request.AuthorName,
		colGenreName:       request.GenreName,
		colStatus:          string(request.Status),
		colAuthorID:        request.AuthorID,
		colAuthorResponded: request.AuthorResponded,
		colGenreResponded:  request.GenreResponded,
		colAuthorFinalized: request.AuthorFinalized,
		colGenreFinalized:  request.GenreFinalized,
		colFailureReason:   request.FailureReason,
		colCreatedAt:       request.CreatedAt.UTC(),
	}

	err := saveVersioned(ctx, r.t, tablePendingRequests, "pending request", request.NaturalKey, request.Version, values,
		goqu.Ex{colNaturalKey: request.NaturalKey})

	if err != nil {
		return catalog.PendingRequest{}, err
	}

	request.Version++

	return request, nil
}

type deferredFactRepository struct{ t *tx }

func (r deferredFactRepository) Save(ctx context.Context, fact catalog.DeferredFact) error {
	stmt := builder().Insert(tableDeferredFacts).Rows(goqu.Record{
		colNaturalKey:  fact.NaturalKey,
		colGenreName:   strings.TrimSpace(fact.GenreName),
		colAuthorID:    fact.AuthorID,
		colAuthorName:  fact.AuthorName,
		colTitle:       fact.Title,
		colDescription: fact.Description,
		colCreatedAt:   fact.CreatedAt.UTC(),
	})

	_, err := r.t.engine.exec(ctx, r.t.q, "insert deferred fact", stmt)

	return err
}

func (r deferredFactRepository) FindByGenreName(ctx context.Context, genreName string) ([]catalog.DeferredFact, error) {
	var facts []catalog.DeferredFact

	stmt := builder().From(tableDeferredFacts).
		Select(colNaturalKey, colGenreName, colAuthorID, colAuthorName, colTitle, colDescription, colCreatedAt).
		Where(goqu.Ex{colGenreName: strings.TrimSpace(genreName)}).
		Order(goqu.I(colCreatedAt).Asc(), goqu.I(colNaturalKey).Asc())

	err := r.t.engine.queryRows(ctx, r.t.q, "select deferred facts", stmt, func(rows adapters.DBRows) error {
		var (
			fact      catalog.DeferredFact
			createdAt time.Time
		)

		if err := rows.Scan(&fact.NaturalKey, &fact.GenreName, &fact.AuthorID, &fact.AuthorName, &fact.Title, &fact.Description, &createdAt); err != nil {
			return err
		}

		fact.CreatedAt = createdAt.UTC()
		facts = append(facts, fact)

		return nil
	})

	return facts, err
}

func (r deferredFactRepository) Delete(ctx context.Context, naturalKey catalog.NaturalKeyString) error {
	return deleteWhere(ctx, r.t, tableDeferredFacts, "deferred fact", naturalKey, goqu.Ex{colNaturalKey: naturalKey})
}
