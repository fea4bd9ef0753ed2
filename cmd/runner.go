package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotiplay/internal/auth"
	"github.com/desertthunder/spotiplay/internal/playback"
	"github.com/desertthunder/spotiplay/internal/repositories"
	"github.com/desertthunder/spotiplay/internal/server"
	"github.com/desertthunder/spotiplay/internal/services"
	"github.com/desertthunder/spotiplay/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The config store is opened by [Runner.Before]; the authorizer, dispatcher and history database
// are built on first use and released by [Runner.Close].
type Runner struct {
	store      *shared.ConfigStore
	player     services.Player
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	openURL    func(string) error
	// authNotice shows the authorization URL; nil writes it to output.
	authNotice func(url string)

	mu         sync.Mutex
	authorizer *auth.Authorizer
	callback   *server.CallbackServer
	db         *sql.DB
	dispatcher *playback.Dispatcher
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Store      *shared.ConfigStore
	Player     services.Player
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	OpenURL    func(string) error
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Player == nil {
		opts.Player = services.NewSpotifyService(services.WithHTTPClient(opts.HTTPClient))
	}

	return &Runner{
		store:      opts.Store,
		player:     opts.Player,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		openURL:    opts.OpenURL,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, devicesCommand, playCommand, openCommand, blocksCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before applies global flags and opens the config store.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if r.store == nil {
		store, err := shared.OpenConfigStore(cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		r.store = store
	}
	return ctx, nil
}

// SetLogger replaces the logger. Must be called before the authorizer or dispatcher are built.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Authorizer builds the authorizer from the stored credentials on first use.
//
// Token changes are written back to the config store.
func (r *Runner) Authorizer() (*auth.Authorizer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.authorizerLocked()
}

func (r *Runner) authorizerLocked() (*auth.Authorizer, error) {
	if r.authorizer != nil {
		return r.authorizer, nil
	}

	config := r.store.Config()
	creds := config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in %s", shared.ErrMissingCredentials, r.store.Path())
	}

	r.authorizer = auth.New(auth.Options{
		Config:       auth.NewConfig(creds.ClientID, creds.ClientSecret, creds.RedirectURI),
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		OpenURL:      r.openAuthURL,
		OnTokenChange: func(tokens auth.TokenSet) {
			if err := r.store.SaveTokens(tokens.AccessToken, tokens.RefreshToken); err != nil {
				r.logger.Error("failed to persist tokens", "error", err)
			}
		},
		Logger:          r.logger,
		Timeout:         config.Auth.Timeout(),
		RefreshInterval: config.Auth.RefreshInterval(),
	})
	return r.authorizer, nil
}

// openAuthURL starts the callback server on first use, then sends the user to the authorization page.
func (r *Runner) openAuthURL(url string) error {
	if err := r.startCallbackServer(); err != nil {
		return err
	}

	r.logger.Debug("authorization URL", "url", url)
	if r.authNotice != nil {
		r.authNotice(url)
	} else {
		r.writePlain("Opening browser for Spotify authorization...\n")
		r.writePlain("If the browser does not open, visit:\n%s\n", url)
	}
	return r.openURL(url)
}

func (r *Runner) startCallbackServer() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.callback != nil {
		return nil
	}

	config := r.store.Config()
	addr := net.JoinHostPort(config.Server.Host, strconv.Itoa(config.Server.Port))
	srv := server.NewCallbackServer(addr, r.authorizer, r.logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	r.callback = srv
	r.logger.Info("waiting for authorization callback", "addr", srv.Addr())
	return nil
}

// Database opens the play history database, applying migrations on first use.
func (r *Runner) Database() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.databaseLocked()
}

func (r *Runner) databaseLocked() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	config := r.store.Config()
	db, err := shared.OpenDatabase(config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// Dispatcher wires the authorizer, player, config store and play history together.
//
// A history database that cannot be opened is logged and playback continues unrecorded.
func (r *Runner) Dispatcher(source string) (*playback.Dispatcher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dispatcher != nil {
		return r.dispatcher, nil
	}

	authorizer, err := r.authorizerLocked()
	if err != nil {
		return nil, err
	}

	opts := playback.DispatcherOpts{
		Auth:     authorizer,
		Player:   r.player,
		Settings: r.store,
		Logger:   r.logger,
	}

	if db, err := r.databaseLocked(); err != nil {
		r.logger.Warn("play history disabled", "error", err)
	} else {
		opts.Recorder = repositories.NewPlayRecorder(repositories.NewPlayRepository(db), source)
	}

	r.dispatcher = playback.NewDispatcher(opts)
	return r.dispatcher, nil
}

// Close stops the callback server, disposes the authorizer and closes the database.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.callback != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.callback.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("callback server shutdown failed", "error", err)
		}
		r.callback = nil
	}

	if r.authorizer != nil {
		r.authorizer.Dispose()
		r.authorizer = nil
	}
	r.dispatcher = nil

	if r.db != nil {
		err := r.db.Close()
		r.db = nil
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
