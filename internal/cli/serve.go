package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/library-catalog-go/messaging"
)

const (
	logMsgServing = "serving"
	logMsgStopped = "stopped"
)

// serve registers every service on one router, subscribes all bindings and runs the service
// loops until ctx is done or a loop fails.
func (rt *runtime) serve(ctx context.Context, subscriber messaging.Subscriber, services []service, extra ...func(ctx context.Context) error) error {
	router := messaging.NewRouter()

	for _, s := range services {
		if err := s.register(router); err != nil {
			return fmt.Errorf("registering %s: %w", s.role, err)
		}
	}

	group, groupCtx := errgroup.WithContext(ctx)

	if err := router.SubscribeAll(groupCtx, subscriber); err != nil {
		return err
	}

	for _, s := range services {
		for _, loop := range s.loops {
			group.Go(func() error { return loop(groupCtx) })
		}
	}

	for _, fn := range extra {
		group.Go(func() error { return fn(groupCtx) })
	}

	group.Go(func() error {
		<-groupCtx.Done()
		return nil
	})

	rt.logger.InfoContext(ctx, logMsgServing,
		logAttrRole, roleNames(services), logAttrBroker, rt.cfg.Broker, logAttrStorage, rt.cfg.Storage)

	err := group.Wait()

	rt.logger.InfoContext(ctx, logMsgStopped)

	return err
}

func roleNames(services []service) []string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		names = append(names, s.role)
	}

	return names
}

// withRuntime loads the configuration, builds the runtime and hands both to run.
// The context is cancelled on SIGINT and SIGTERM. The runtime is closed after run returns.
func withRuntime(cmd *cobra.Command, opts *RootOptions, run func(ctx context.Context, rt *runtime) error) (err error) {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := rt.close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return run(ctx, rt)
}

func newServiceCommand(opts *RootOptions, role string, short string) *cobra.Command {
	return &cobra.Command{
		Use:   role,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				broker, err := rt.openBroker(ctx)
				if err != nil {
					return err
				}

				s, err := rt.newService(ctx, role, broker)
				if err != nil {
					return err
				}

				return rt.serve(ctx, broker, []service{s})
			})
		},
	}
}
