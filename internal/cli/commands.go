package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-catalog-go/config"
	"github.com/AntonStoeckl/library-catalog-go/messaging"
	"github.com/AntonStoeckl/library-catalog-go/saga"
	"github.com/AntonStoeckl/library-catalog-go/validation"
)

const (
	logMsgSeedRequested = "all-in-one: book requested"
	logMsgSeedFailed    = "all-in-one: requesting book failed"
	logAttrNaturalKey   = "natural_key"
	logAttrStatus       = "status"
	logAttrError        = "error"

	// keeps one-shot requesters from sweeping the entries of running lending replicas
	oneShotKeySuffix = "validate-book:"
)

// ErrMemoryStorageRequired is returned by all-in-one on any storage but memory.
// The services would share one database, whose tables they each need for their own.
var ErrMemoryStorageRequired = errors.New("all-in-one needs storage " + config.StorageMemory)

func newAllInOneCommand(opts *RootOptions) *cobra.Command {
	var booksPath string

	cmd := &cobra.Command{
		Use:   "all-in-one",
		Short: "Run every service role in one process on in-memory stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seeds, err := loadBookSeeds(booksPath)
			if err != nil {
				return err
			}

			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if rt.cfg.Storage != config.StorageMemory {
					return ErrMemoryStorageRequired
				}

				broker, err := rt.openBroker(ctx)
				if err != nil {
					return err
				}

				var (
					services    []service
					coordinator *saga.Coordinator
				)

				for _, role := range roles {
					s, err := rt.newService(ctx, role, broker)
					if err != nil {
						return err
					}

					if s.coordinator != nil {
						coordinator = s.coordinator
					}

					services = append(services, s)
				}

				return rt.serve(ctx, broker, services, rt.seedBooks(coordinator, seeds))
			})
		},
	}

	cmd.Flags().StringVar(&booksPath, "books", "", "YAML file with books to request once the services run")

	return cmd
}

// seedBooks requests every seeded book once. Failures are logged and do not stop the services.
func (rt *runtime) seedBooks(coordinator *saga.Coordinator, intents []saga.Intent) func(ctx context.Context) error {
	logger := rt.componentLogger("all-in-one")

	return func(ctx context.Context) error {
		for _, intent := range intents {
			outcome, err := coordinator.Create(ctx, intent)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}

				logger.ErrorContext(ctx, logMsgSeedFailed, logAttrNaturalKey, intent.NaturalKey, logAttrError, err.Error())

				continue
			}

			logger.InfoContext(ctx, logMsgSeedRequested, logAttrNaturalKey, intent.NaturalKey, logAttrStatus, string(outcome.Status))
		}

		return nil
	}
}

func newRequestBookCommand(opts *RootOptions) *cobra.Command {
	var intent saga.Intent

	cmd := &cobra.Command{
		Use:   "request-book",
		Short: "Start the creation saga for one book in the book service database",
		Long: `Start the creation saga for one book in the book service database.
The saga continues in the running coordinator, author and genre services.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if rt.cfg.Storage != config.StoragePostgres {
					return ErrPersistentStorageRequired
				}

				store, err := rt.openServiceStore(ctx, roleCoordinator)
				if err != nil {
					return err
				}

				coordinator, err := saga.NewCoordinator(store.uow, saga.WithObservability(rt.observability("saga")))
				if err != nil {
					return err
				}

				outcome, err := coordinator.Create(ctx, intent)
				if err != nil {
					return err
				}

				return printOutcome(cmd.OutOrStdout(), intent.NaturalKey, outcome)
			})
		},
	}

	cmd.Flags().StringVar(&intent.NaturalKey, "natural-key", "", "natural key of the book, e.g. the ISBN (required)")
	cmd.Flags().StringVar(&intent.Title, "title", "", "title (required)")
	cmd.Flags().StringVar(&intent.Description, "description", "", "description")
	cmd.Flags().StringVar(&intent.AuthorName, "author", "", "author name (required)")
	cmd.Flags().StringVar(&intent.GenreName, "genre", "", "genre name (required)")

	for _, name := range []string{"natural-key", "title", "author", "genre"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func printOutcome(w io.Writer, naturalKey string, outcome saga.Outcome) error {
	var err error

	switch {
	case outcome.AlreadyExisted:
		_, err = fmt.Fprintf(w, "%s: book already exists\n", naturalKey)
	case outcome.AlreadyPending:
		_, err = fmt.Fprintf(w, "%s: creation already in progress, status %s\n", naturalKey, outcome.Status)
	default:
		_, err = fmt.Fprintf(w, "%s: creation requested, status %s\n", naturalKey, outcome.Status)
	}

	return err
}

func newValidateBookCommand(opts *RootOptions) *cobra.Command {
	var correlationKey string

	cmd := &cobra.Command{
		Use:   "validate-book <natural-key>",
		Short: "Ask the book service whether a book exists",
		Long: `Ask the book service whether a book exists, through the validation bridge.
The answer arrives asynchronously. Without an answer within the validation timeout
the command fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				result, err := rt.validateBook(ctx, args[0], correlationKey)
				if err != nil {
					return err
				}

				return printResult(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVar(&correlationKey, "correlation-key", "", "key echoed back in the answer")

	return cmd
}

func (rt *runtime) validateBook(ctx context.Context, naturalKey string, correlationKey string) (validation.Result, error) {
	broker, err := rt.openBroker(ctx)
	if err != nil {
		return validation.Result{}, err
	}

	pending, err := rt.openPendingStore(oneShotKeySuffix)
	if err != nil {
		return validation.Result{}, err
	}

	results := make(chan validation.Result, 1)

	requester, err := validation.NewRequester(pending, broker,
		func(_ context.Context, result validation.Result) {
			select {
			case results <- result:
			default:
			}
		},
		validation.WithTimeout(rt.cfg.Validation.Timeout),
		validation.WithSweepInterval(rt.cfg.Validation.SweepInterval),
		validation.WithEphemeralResponses(),
		validation.WithRequesterObservability(rt.observability("validation")),
	)
	if err != nil {
		return validation.Result{}, err
	}

	router := messaging.NewRouter()
	if err = requester.Register(router, rt.componentLogger("validation")); err != nil {
		return validation.Result{}, err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(groupCtx)
	defer func() {
		cancel()
		_ = group.Wait()
	}()

	if err = router.SubscribeAll(runCtx, broker); err != nil {
		return validation.Result{}, err
	}

	group.Go(func() error { return requester.Run(runCtx) })

	if _, err = requester.Request(ctx, naturalKey, correlationKey); err != nil {
		return validation.Result{}, err
	}

	select {
	case result := <-results:
		return result, nil
	case <-ctx.Done():
		return validation.Result{}, ctx.Err()
	}
}

func (rt *runtime) openPendingStore(keySuffix string) (validation.PendingStore, error) {
	cfg := rt.cfg.Redis
	if cfg.Addr == "" {
		return validation.NewMemoryPendingStore(), nil
	}

	client := goredis.NewClient(&goredis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	rt.storeClosers = append(rt.storeClosers, func() { _ = client.Close() })

	prefix := validation.DefaultRedisKeyPrefix
	if cfg.KeyPrefix != "" {
		prefix = cfg.KeyPrefix
	}

	return validation.NewRedisPendingStore(client,
		validation.WithKeyPrefix(prefix+keySuffix),
		validation.WithEntryTTL(2*rt.cfg.Validation.Timeout),
	)
}

func printResult(w io.Writer, result validation.Result) error {
	if result.TimedOut {
		_, _ = fmt.Fprintf(w, "%s: no answer from the book service\n", result.NaturalKey)
		return result.Err
	}

	answer := "does not exist"
	if result.Exists {
		answer = "exists"
	}

	_, err := fmt.Fprintf(w, "%s: %s (%s)\n", result.NaturalKey, answer, result.Message)

	return err
}
