package node

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/backend"
	"github.com/qubi-project/qubi/pkg/backend/ibm"
	"github.com/qubi-project/qubi/pkg/backend/ionq"
	"github.com/qubi-project/qubi/pkg/backend/simulator"
	"github.com/qubi-project/qubi/pkg/config/types"
	"github.com/qubi-project/qubi/pkg/credentials"
	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/orchestrator"
	"github.com/qubi-project/qubi/pkg/publicapi"
	"github.com/qubi-project/qubi/pkg/publicapi/endpoint/agent"
	"github.com/qubi-project/qubi/pkg/publicapi/endpoint/runs"
	"github.com/qubi-project/qubi/pkg/runstore"
	boltrunstore "github.com/qubi-project/qubi/pkg/runstore/boltdb"
	"github.com/qubi-project/qubi/pkg/runstore/inmemory"
	"github.com/qubi-project/qubi/pkg/system"
)

// Node assembles a full qubi service: run store, backends, the worker pool
// and the public API server.
type Node struct {
	Config types.QubiConfig
	Store  runstore.Store
	Server *publicapi.Server

	broker       *orchestrator.InMemoryBroker
	workers      []*orchestrator.Worker
	housekeeping *orchestrator.Housekeeping
	credentials  credentials.Source
	cleanup      *system.CleanupManager
}

func NewNode(ctx context.Context, cfg types.QubiConfig) (*Node, error) {
	cleanup := system.NewCleanupManager()

	store, err := createStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	cleanup.RegisterCallbackWithContext(store.Close)

	credentialSource, err := createCredentialSource(cfg.Credentials)
	if err != nil {
		return nil, err
	}

	backends, err := createBackends(cfg.Backends)
	if err != nil {
		return nil, err
	}

	broker := orchestrator.NewInMemoryBroker(cfg.Orchestrator.QueueDepth)
	executor := orchestrator.NewRunExecutor(orchestrator.RunExecutorParams{
		Store:       store,
		Backends:    backends,
		Credentials: credentialSource,
	})

	workers := make([]*orchestrator.Worker, 0, cfg.Orchestrator.Workers)
	for i := 0; i < cfg.Orchestrator.Workers; i++ {
		workers = append(workers, orchestrator.NewWorker(orchestrator.WorkerParams{
			Executor: executor,
			Broker:   broker,
		}))
	}

	var housekeeping *orchestrator.Housekeeping
	if cfg.Orchestrator.RunTimeout > 0 {
		housekeeping, err = orchestrator.NewHousekeeping(orchestrator.HousekeepingParams{
			Store:      store,
			Interval:   cfg.Orchestrator.HousekeepingInterval,
			RunTimeout: cfg.Orchestrator.RunTimeout,
		})
		if err != nil {
			return nil, err
		}
	}

	router := echo.New()
	router.HideBanner = true
	runs.NewEndpoint(runs.EndpointParams{
		Router:     router,
		Submission: orchestrator.NewSubmission(orchestrator.SubmissionParams{Store: store, Broker: broker}),
		Store:      store,
	})
	agent.NewEndpoint(agent.EndpointParams{Router: router})

	server, err := publicapi.NewAPIServer(publicapi.ServerParams{
		Router:  router,
		Address: cfg.API.Host,
		Port:    cfg.API.Port,
		Config:  publicapi.DefaultConfig,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create API server")
	}

	return &Node{
		Config:       cfg,
		Store:        store,
		Server:       server,
		broker:       broker,
		workers:      workers,
		housekeeping: housekeeping,
		credentials:  credentialSource,
		cleanup:      cleanup,
	}, nil
}

// ReloadCredentials re-reads the credential source if it supports reloading,
// picking up newly provisioned users without a restart. Sources without a
// backing file treat this as a no-op.
func (n *Node) ReloadCredentials() error {
	if reloadable, ok := n.credentials.(credentials.Reloadable); ok {
		return reloadable.Reload()
	}
	return nil
}

// Start brings up the workers, the housekeeping sweep and the API server,
// re-queueing any runs that were interrupted by a previous shutdown. It
// blocks until the context is cancelled or the server stops.
func (n *Node) Start(ctx context.Context) error {
	if err := n.requeueInterrupted(ctx); err != nil {
		return err
	}

	for _, worker := range n.workers {
		worker.Start(ctx)
	}
	if n.housekeeping != nil {
		n.housekeeping.Start(ctx)
	}

	log.Ctx(ctx).Info().
		Int("Workers", len(n.workers)).
		Str("API", n.Server.GetURI()).
		Msg("qubi node up")

	return n.Server.ListenAndServe(ctx)
}

// Stop shuts the node down in reverse order of startup.
func (n *Node) Stop(ctx context.Context) error {
	err := n.Server.Shutdown(ctx)

	for _, worker := range n.workers {
		worker.Stop()
	}
	if n.housekeeping != nil {
		n.housekeeping.Stop(ctx)
	}
	n.cleanup.Cleanup()

	return err
}

// requeueInterrupted puts PENDING runs from a previous process back on the
// queue. RUNNING runs are left for housekeeping: the process that claimed
// them is gone and their true outcome is unknowable.
func (n *Node) requeueInterrupted(ctx context.Context) error {
	inProgress, err := n.Store.GetInProgressRuns(ctx)
	if err != nil {
		return err
	}
	for _, request := range inProgress {
		if request.Status != models.RunStatePending {
			continue
		}
		if err := n.broker.Enqueue(orchestrator.RunTask{RunID: request.ID}); err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Str("RunID", request.ID).
				Msg("could not re-queue interrupted run")
		}
	}
	return nil
}

func createStore(cfg types.StoreConfig) (runstore.Store, error) {
	switch cfg.Type {
	case "boltdb", "":
		return boltrunstore.NewBoltRunStore(cfg.Path)
	case "inmemory":
		return inmemory.NewInMemoryRunStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

func createCredentialSource(cfg types.CredentialsConfig) (credentials.Source, error) {
	if cfg.Path == "" {
		return credentials.NewEnvSource(), nil
	}
	return credentials.NewFileSource(cfg.Path)
}

func createBackends(cfg types.BackendsConfig) (backend.BackendProvider, error) {
	installed := make(map[string]backend.Backend)

	if cfg.Simulator.Enabled {
		var opts []simulator.Option
		if cfg.Simulator.Seed != 0 {
			opts = append(opts, simulator.WithSeed(cfg.Simulator.Seed))
		}
		installed[backend.FamilySimulator] = simulator.NewSimulator(opts...)
	}

	if cfg.IonQ.Enabled {
		var opts []ionq.Option
		if cfg.IonQ.BaseURL != "" {
			opts = append(opts, ionq.WithBaseURL(cfg.IonQ.BaseURL))
		}
		if cfg.IonQ.PollInterval > 0 {
			opts = append(opts, ionq.WithPollInterval(cfg.IonQ.PollInterval))
		}
		installed[backend.FamilyIonQ] = ionq.NewIonQBackend(opts...)
	}

	if cfg.IBM.Enabled {
		var opts []ibm.Option
		if cfg.IBM.BaseURL != "" {
			opts = append(opts, ibm.WithBaseURL(cfg.IBM.BaseURL))
		}
		if cfg.IBM.PollInterval > 0 {
			opts = append(opts, ibm.WithPollInterval(cfg.IBM.PollInterval))
		}
		installed[backend.FamilyIBM] = ibm.NewIBMBackend(opts...)
	}

	if len(installed) == 0 {
		return nil, fmt.Errorf("no backends enabled")
	}

	return backend.NewMappedBackendProvider(installed), nil
}
