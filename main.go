package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ritukeshbharali/jemjive-3.0/internal/config"
	"github.com/ritukeshbharali/jemjive-3.0/internal/watch"
	"github.com/ritukeshbharali/jemjive-3.0/tools"
)

const (
	version     = "0.3.0"
	serverName  = "jemdoc-mcp-server"
	description = "MCP server for searching the jem and jive API reference"
)

func main() {
	showVersion := flag.Bool("version", false, "print the version and exit")
	httpAddr := flag.String("http", "", "serve streamable HTTP on this address instead of stdio")
	configPath := flag.String("config", "", "configuration file (defaults to config.toml in the data directory)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s version %s\n", serverName, version)
		os.Exit(0)
	}

	// Set up logging to stderr (MCP uses stdout for protocol)
	log.SetOutput(os.Stderr)
	log.Printf("%s v%s starting...", serverName, version)

	dataDir := config.ResolveDataDir()
	if *configPath == "" {
		*configPath = filepath.Join(dataDir, config.ConfigFile)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log.Printf("✓ Configuration loaded: %d sources", len(cfg.Sources))
	tools.Setup(dataDir, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := createMCPServer()

	if err := registerTools(server); err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	// Set up cleanup on shutdown
	defer func() {
		if err := tools.CloseSymbolSearch(); err != nil {
			log.Printf("Error closing symbol search: %v", err)
		}
	}()

	startWatcher(ctx, cfg)

	log.Printf("✓ Server ready and waiting for connections")

	if *httpAddr != "" {
		err = runHTTP(ctx, server, *httpAddr)
	} else {
		err = server.Run(ctx, &mcp.StdioTransport{})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Server error: %v", err)
	}
}

// createMCPServer initializes the MCP server
func createMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		&mcp.ServerOptions{
			Instructions: description + ". Use search_symbols to find a class or function, lookup_symbol for every overload of an exact name, and get_symbol_docs to read its documentation.",
		},
	)

	log.Printf("Server initialized: %s v%s", serverName, version)
	return server
}

// registerTools registers all MCP tools and resources
func registerTools(server *mcp.Server) error {
	toolCount := 0

	// search_symbols, lookup_symbol, get_symbol_docs, refresh_symbol_index
	if err := tools.RegisterSymbolTools(server); err != nil {
		return fmt.Errorf("failed to register symbol tools: %w", err)
	}
	toolCount += 4

	if err := tools.RegisterLibraryTools(server); err != nil {
		return fmt.Errorf("failed to register library tools: %w", err)
	}
	toolCount++

	if err := tools.RegisterValidationTools(server); err != nil {
		return fmt.Errorf("failed to register validation tools: %w", err)
	}
	toolCount++

	log.Printf("✓ All tools registered: %d tools, 2 resources", toolCount)
	return nil
}

// startWatcher refreshes the index when a watched documentation build
// rewrites its search files.
func startWatcher(ctx context.Context, cfg *config.Config) {
	dirs := tools.WatchedDirs()
	if len(dirs) == 0 {
		return
	}

	w, err := watch.New(dirs, cfg.Watch.Debounce.Duration, func(changed []string) {
		log.Printf("Search data changed in %v, refreshing...", changed)
		if _, err := tools.Refresh(ctx, false); err != nil {
			log.Printf("Warning: Refresh after change failed: %v", err)
		}
	})
	if err != nil {
		log.Printf("Warning: File watching disabled: %v", err)
		return
	}

	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Warning: Watcher stopped: %v", err)
		}
	}()
	log.Printf("✓ Watching %d search directories", len(dirs))
}

// runHTTP serves the MCP server over streamable HTTP until ctx is cancelled.
func runHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("Listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
