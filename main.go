// Command boardgame-tracker starts the board game tracker server.
//
// It supports two modes:
//  1. "serve" (default) runs the HTTP server exposing the REST API, WebSocket
//     updates and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none
//     is available
//
// Settings come from an optional YAML file; flags and environment variables
// override it. Logging goes to stderr so stdio MCP traffic stays clean.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/boardgame-tracker/api"
	"github.com/wricardo/boardgame-tracker/game/config"
	"github.com/wricardo/boardgame-tracker/game/service"
	"github.com/wricardo/boardgame-tracker/game/session"
	"github.com/wricardo/boardgame-tracker/transport/mcp"
	"github.com/wricardo/boardgame-tracker/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Board Game Tracker"
)

// externalURL is probed by the mcp command before it starts its own server
const externalURL = "http://localhost:8080"

// newApp builds the command tree
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "boardgame-tracker",
		Usage:   "track teams racing across a snakes, ladders and fairy rings board",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.StringFlag{
				Name:    "settings",
				Usage:   "YAML settings file",
				Sources: cli.EnvVars("SETTINGS_FILE"),
			},
			&cli.StringFlag{
				Name:    "boards-dir",
				Usage:   "directory holding the board library (overrides the settings file)",
				Sources: cli.EnvVars("BOARDS_DIR"),
			},
			&cli.StringFlag{
				Name:    "default-board",
				Usage:   "board used when a session names none (overrides the settings file)",
				Sources: cli.EnvVars("DEFAULT_BOARD"),
			},
			&cli.BoolFlag{
				Name:  "no-animation",
				Usage: "apply rolls instantly instead of stepping tile by tile",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "trace, debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the server through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return ctx, setupLogging(cmd.String("log-level"), os.Stderr)
		},
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "run the HTTP server with REST API, WebSocket and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "run an MCP stdio server",
				Action:  runStdioMCP,
			},
		},
	}
}

// main loads .env and runs the selected command
func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		log.Fatal().Err(err).Msg("Exiting")
	}
}

// setupLogging points the global logger at w with the given level
func setupLogging(level string, w io.Writer) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).With().Timestamp().Logger()
	return nil
}

// loadSettings reads the settings file and applies flag overrides
func loadSettings(cmd *cli.Command) (*config.Settings, error) {
	settings, err := config.LoadSettings(cmd.String("settings"))
	if err != nil {
		return nil, err
	}
	if dir := cmd.String("boards-dir"); dir != "" {
		settings.BoardsDir = dir
	}
	if board := cmd.String("default-board"); board != "" {
		settings.DefaultBoard = board
	}
	if cmd.Bool("no-animation") {
		settings.Animation = service.AnimationOptions{}
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// initializeServices wires the board library, session manager and game service.
// It also starts background routines that prune stale sessions and reload
// boards from disk; both stop when ctx is done.
func initializeServices(ctx context.Context, settings *config.Settings, notifier service.Notifier) (service.GameService, error) {
	boards, err := config.NewManager(settings.BoardsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create board library: %w", err)
	}
	if settings.DefaultBoard != "" && settings.DefaultBoard != boards.DefaultName() {
		if err := boards.SetDefault(settings.DefaultBoard); err != nil {
			return nil, fmt.Errorf("failed to set default board: %w", err)
		}
	}

	sessions := session.NewManager()

	gameService := service.NewGameService(sessions, boards, service.Options{
		Notifier:  notifier,
		Animation: settings.Animation,
		SeedTeams: settings.SeedTeams,
	})

	if settings.CleanupInterval > 0 && settings.SessionTTL > 0 {
		go sessionCleanupRoutine(ctx, sessions, settings.CleanupInterval, settings.SessionTTL)
	}
	if settings.RefreshInterval > 0 {
		go boardRefreshRoutine(ctx, boards, settings.RefreshInterval)
	}

	log.Info().
		Str("boards_dir", settings.BoardsDir).
		Str("default_board", boards.DefaultName()).
		Bool("animated", settings.Animation.Enabled()).
		Msg("Services initialized")

	return gameService, nil
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within ttl.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, every, ttl time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(ttl); removed > 0 {
				log.Info().Int("removed", removed).Msg("Cleaned up expired sessions")
			}
		}
	}
}

// boardRefreshRoutine drops cached boards so files edited on disk are served
func boardRefreshRoutine(ctx context.Context, boards *config.Manager, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := boards.RefreshCache(); err != nil {
				log.Warn().Err(err).Msg("Board refresh failed")
			}
		}
	}
}

// mcpHandler serves single JSON-RPC MCP messages over HTTP POST
func mcpHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newRouter mounts the API at the root and the MCP proxy at /mcp
func newRouter(gameService service.GameService, hub *websocket.Hub, mcpBaseURL string) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", api.NewServer(gameService, hub))
	mainRouter.HandleFunc("/mcp", mcpHandler(mcp.NewClient(mcpBaseURL).GetMCPServer()))
	return mainRouter
}

// runServe starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled, it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	gameService, err := initializeServices(ctx, settings, hub)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	mainRouter := newRouter(gameService, hub, "http://"+addr)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mainRouter,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().
			Str("addr", addr).
			Str("api", "http://"+addr+"/api").
			Str("ws", "ws://"+addr+"/ws?session=<session_id>").
			Str("mcp", "http://"+addr+"/mcp").
			Msgf("%s v%s listening", AppName, Version)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err := <-serveErr:
		cancel()
		wg.Wait()
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("Server stopped")
	return nil
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn().Msg("Ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN)")
		return
	}

	log.Info().Msg("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info().Str("domain", domain).Msg("Using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("Failed to start ngrok tunnel")
		return
	}

	// Close the tunnel on shutdown so Serve returns
	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close ngrok tunnel")
		}
	}()

	ngrokURL := tun.URL()
	log.Info().
		Str("url", ngrokURL).
		Str("api", ngrokURL+"/api").
		Str("mcp", ngrokURL+"/mcp").
		Msg("Ngrok tunnel established")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error().Err(err).Msg("Ngrok server error")
	}
	log.Info().Msg("Ngrok tunnel closed")
}

// externalAPIAvailable reports whether a tracker API answers at baseURL
func externalAPIAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP runs an MCP stdio server.
// It tries to reuse an external API at http://localhost:8080; if unavailable, it
// starts a minimal internal HTTP API bound to a random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := externalURL
	log.Info().Str("url", externalURL).Msg("Checking for external API server")

	if externalAPIAvailable(externalURL) {
		log.Info().Msg("External API server found, using it for MCP")
	} else {
		log.Info().Msg("No external API server found, starting internal HTTP server")

		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}

		hub := websocket.NewHub()
		go hub.Run(ctx)

		gameService, err := initializeServices(ctx, settings, hub)
		if err != nil {
			return err
		}

		// Start internal HTTP server on a random available port
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		httpServer := &http.Server{Handler: api.NewServer(gameService, hub)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		log.Info().Str("url", baseURL).Msg("Internal HTTP server started for MCP stdio")
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
