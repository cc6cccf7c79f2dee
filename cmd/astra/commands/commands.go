package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/config"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/storage"
	"github.com/astrashare/astra/internal/storage/memory"
	"github.com/astrashare/astra/internal/storage/sqlite"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

const defaultAPIURL = "http://localhost:8000"

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	APIURL     string
	Token      string
	ConfigPath string
	DBPath     string
	Ephemeral  bool

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	app.Flag("api-url", "Backend API base URL.").Envar("ASTRA_API_URL").StringVar(&c.APIURL)
	app.Flag("token", "Backend API bearer token.").Envar("ASTRA_TOKEN").StringVar(&c.Token)

	defaultConfigPath := filepath.Join(homedir.HomeDir(), ".astra", "config.yaml")
	app.Flag("config", "Path to the configuration file.").Envar("ASTRA_CONFIG").Default(defaultConfigPath).StringVar(&c.ConfigPath)

	defaultDBPath := filepath.Join(homedir.HomeDir(), ".astra", "astra.db")
	app.Flag("db-path", "Path to the SQLite database file.").Envar("ASTRA_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)
	app.Flag("ephemeral", "Keep notification state in memory instead of the database.").BoolVar(&c.Ephemeral)

	return c
}

// BackendClient builds the API client, merging flags, environment and the
// configuration file. Flags and environment win over file values.
func (c *RootCommand) BackendClient() (backend.Client, error) {
	fileCfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}

	apiURL := c.APIURL
	if apiURL == "" {
		apiURL = fileCfg.APIURL
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	token := c.Token
	if token == "" {
		token = fileCfg.Token
	}

	client, err := backend.NewAPIClient(backend.APIClientConfig{
		APIURL: apiURL,
		Token:  token,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create backend client: %w", err)
	}

	return client, nil
}

// Repository builds the client state store. The returned close func is a
// no-op for the ephemeral in-memory store.
func (c *RootCommand) Repository(ctx context.Context) (storage.Repository, func() error, error) {
	if c.Ephemeral {
		repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: c.Logger})
		if err != nil {
			return nil, nil, fmt.Errorf("could not create repository: %w", err)
		}
		return repo, func() error { return nil }, nil
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create repository: %w", err)
	}

	return repo, repo.Close, nil
}
