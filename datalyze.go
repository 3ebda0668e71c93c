// Package datalyze provides a high-level façade over the supervisor loop and
// its services (workspace, profiling, execution, sessions & logging) enabling
// natural language analysis of tabular datasets. Most applications interact
// with this package by:
//  1. Creating a Manager via New() (configuration comes from the environment)
//  2. Loading a dataset with LoadData
//  3. Asking questions with Ask (batch) or AskStream (per-iteration snapshots)
//
// The façade delegates orchestration to supervisor.Supervisor while keeping
// setup and usage ergonomics concise. All defaults are safe for local use;
// durable sessions and custom models are supplied through Options.
package datalyze

import (
	"context"
	"strings"
	"sync"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/datalyze-ai/datalyze/agent"
	"github.com/datalyze-ai/datalyze/config"
	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/executor"
	"github.com/datalyze-ai/datalyze/logging"
	"github.com/datalyze-ai/datalyze/model"
	"github.com/datalyze-ai/datalyze/model/anthropic"
	"github.com/datalyze-ai/datalyze/model/openai"
	"github.com/datalyze-ai/datalyze/profile"
	"github.com/datalyze-ai/datalyze/session"
	"github.com/datalyze-ai/datalyze/supervisor"
	"github.com/datalyze-ai/datalyze/tool"
	"github.com/datalyze-ai/datalyze/workspace"
)

// Node names used as event authors throughout a run.
const (
	SupervisorName    = "supervisor"
	CodeGeneratorName = "code_generator"
	CodeExecutorName  = "code_executor"
)

// currentDatasetKey is the session state key the prompts template against.
const currentDatasetKey = "current_dataset"

// questionExtensions are the dataset extensions whose presence in a question
// suppresses the automatic dataset-path hint.
var questionExtensions = []string{".csv", ".xlsx", ".json", ".parquet"}

// Options configures a Manager instance.
type Options struct {
	// Config overrides the environment-loaded configuration.
	Config *config.Config
	// Prompts overrides the configured prompt set.
	Prompts *config.PromptSet
	// Model overrides the provider-built model; used by tests to script runs.
	Model model.Model
	// Executor overrides the script executor.
	Executor *executor.Executor
	// SessionStore overrides the configured session backend.
	SessionStore core.SessionStore
	// SessionID threads every question into one persistent conversation.
	// Empty (the default) gives each question its own fresh session, so no
	// conversation carries over between questions.
	SessionID string
	// Logger defaults to a slog logger honoring the configured level/format.
	Logger logging.Logger
}

// Manager wires the workspace, the worker agents and the supervisor into one
// ready-to-ask analysis system bound to a single session.
type Manager struct {
	cfg    *config.Config
	ws     *workspace.Workspace
	sup    *supervisor.Supervisor
	store  core.SessionStore
	logger logging.Logger

	// threadID is non-empty when the caller threads questions into one
	// conversation; otherwise every question gets a fresh session.
	threadID string

	mu        sync.Mutex
	sessionID string // session backing the most recent question
}

// New builds a Manager. Any wiring problem (bad configuration, missing
// prompts, invalid agent registry) surfaces here as a ConfigurationError;
// nothing is deferred to the first question.
func New(optFns ...func(o *Options)) (*Manager, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	prompts := opts.Prompts
	if prompts == nil {
		loaded, err := cfg.Prompts()
		if err != nil {
			return nil, err
		}
		prompts = loaded
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewSlogLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, false)
	}

	store := opts.SessionStore
	if store == nil {
		if cfg.SessionDB != "" {
			sqliteStore, err := session.NewSQLiteStore(cfg.SessionDB)
			if err != nil {
				return nil, core.NewConfigurationError("config", "open session db %s: %v", cfg.SessionDB, err)
			}
			store = sqliteStore
		} else {
			store = session.NewInMemoryStore()
		}
	}

	ws := workspace.New(cfg.DataDir, cfg.OutputDir, workspace.WithLogger(logger))

	exec := opts.Executor
	if exec == nil {
		exec = executor.New(
			executor.WithInterpreter(cfg.PythonBin),
			executor.WithTimeout(cfg.ExecTimeout),
			executor.WithWorkDir(cfg.OutputDir),
			executor.WithLogger(logger),
		)
	}

	llm := opts.Model
	if llm == nil {
		llm = buildModel(cfg)
	}

	commonOpts := func(o *agent.Options) {
		o.MaxToolRounds = cfg.MaxToolRounds
		o.RetryAttempts = cfg.ModelRetries
		o.ModelTimeout = cfg.ModelTimeout
	}

	codeGen, err := agent.NewWorker(CodeGeneratorName, llm, commonOpts, func(o *agent.Options) {
		o.Description = "Inspects the loaded dataset and writes analysis code."
		o.Instruction = agent.NewInstructionFromTemplate(prompts.CodeGenerator)
		o.Tools = []tool.Tool{tool.NewAnalyzeDataTool(ws), tool.NewSaveCodeTool(ws)}
	})
	if err != nil {
		return nil, err
	}

	codeExec, err := agent.NewWorker(CodeExecutorName, llm, commonOpts, func(o *agent.Options) {
		o.Description = "Runs saved analysis code and reports its output."
		o.Instruction = agent.NewInstructionFromTemplate(prompts.CodeExecutor)
		o.Tools = []tool.Tool{tool.NewExecuteCodeTool(ws, exec)}
	})
	if err != nil {
		return nil, err
	}

	policy, err := supervisor.NewModelPolicy(SupervisorName, llm,
		agent.NewInstructionFromTemplate(prompts.Supervisor),
		[]string{CodeGeneratorName, CodeExecutorName},
		commonOpts,
	)
	if err != nil {
		return nil, err
	}

	sup, err := supervisor.New(SupervisorName, policy,
		[]supervisor.WorkerAgent{codeGen, codeExec},
		func(o *supervisor.Options) {
			o.MaxIterations = cfg.MaxIterations
			o.SessionStore = store
			o.Logger = logger
		},
	)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:      cfg,
		ws:       ws,
		sup:      sup,
		store:    store,
		threadID: opts.SessionID,
		logger:   logger,
	}, nil
}

// SessionID returns the id of the session backing the most recent question;
// empty before the first question unless the caller threads conversations.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessionID == "" {
		return m.threadID
	}
	return m.sessionID
}

// LoadData validates and stages a dataset for analysis, returning the path of
// the working copy. Loading another dataset replaces the previous one.
func (m *Manager) LoadData(path string) (string, error) {
	return m.ws.Load(path)
}

// CurrentDataset returns the active working copy path, false when none is loaded.
func (m *Manager) CurrentDataset() (string, bool) { return m.ws.CurrentDataset() }

// DataInfo profiles the active dataset. ErrNoDataLoaded when nothing is loaded.
func (m *Manager) DataInfo() (*profile.Summary, error) {
	path, ok := m.ws.CurrentDataset()
	if !ok {
		return nil, core.ErrNoDataLoaded
	}
	return profile.Profile(path)
}

// Ask answers a question about the loaded dataset and returns the final
// answer text.
func (m *Manager) Ask(ctx context.Context, question string) (string, error) {
	q, err := m.prepareQuestion(question)
	if err != nil {
		return "", err
	}
	sessionID, err := m.beginSession()
	if err != nil {
		return "", err
	}
	return m.sup.Run(ctx, sessionID, q)
}

// AskStream answers a question and yields one snapshot per orchestration
// iteration. The consumer controls the pace; cancelling ctx stops the run.
func (m *Manager) AskStream(ctx context.Context, question string) (<-chan supervisor.Snapshot, <-chan error) {
	q, err := m.prepareQuestion(question)
	if err == nil {
		var sessionID string
		if sessionID, err = m.beginSession(); err == nil {
			return m.sup.Stream(ctx, sessionID, q)
		}
	}
	snapCh := make(chan supervisor.Snapshot)
	errCh := make(chan error, 1)
	errCh <- err
	close(snapCh)
	close(errCh)
	return snapCh, errCh
}

// Cleanup removes the workspace directories. Idempotent.
func (m *Manager) Cleanup() error { return m.ws.Cleanup() }

// beginSession prepares the session for the next question. Each question runs
// in its own fresh session, so earlier conversations never reach the model;
// a caller-supplied thread id keeps one conversation across questions instead.
// The active dataset path is written into session state either way, so the
// prompt templates can reference it.
func (m *Manager) beginSession() (string, error) {
	id := m.threadID
	if id == "" {
		id = core.NewID()
		if _, err := m.store.Create(id); err != nil {
			return "", err
		}
	}
	if path, ok := m.ws.CurrentDataset(); ok {
		if err := m.store.ApplyDelta(id, map[string]any{currentDatasetKey: path}); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	m.sessionID = id
	m.mu.Unlock()
	return id, nil
}

// prepareQuestion guards against questions without a loaded dataset and
// appends the dataset path hint when the question does not reference a
// dataset file itself.
func (m *Manager) prepareQuestion(question string) (string, error) {
	path, ok := m.ws.CurrentDataset()
	if !ok {
		return "", core.ErrNoDataLoaded
	}

	lower := strings.ToLower(question)
	for _, ext := range questionExtensions {
		if strings.Contains(lower, ext) {
			return question, nil
		}
	}
	return question + " using dataset at " + path, nil
}

func buildModel(cfg *config.Config) model.Model {
	if cfg.Provider == config.ProviderAnthropic {
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.APIKey = cfg.AnthropicAPIKey
		})
	}
	return openai.NewModel(func(o *openai.Options) {
		o.Model = cfg.Model
	})
}
