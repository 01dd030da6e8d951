// Package engineserver exposes the combat engine as an MCP tool server over
// stdio or streamable HTTP.
package engineserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/config"
	"github.com/gridforge/skirmish/internal/game/action"
	"github.com/gridforge/skirmish/internal/game/encounter"
)

const (
	serverName    = "skirmish"
	serverVersion = "0.1.0"

	shutdownTimeout = 10 * time.Second
)

// Server binds the encounter registry and action pipeline to MCP tools.
type Server struct {
	registry *encounter.Registry
	pipeline *action.Pipeline
	cfg      config.ServerConfig
	logger   *zap.Logger

	mcpServer *mcp.Server
}

// New builds the tool server and registers every tool.
//
// Precondition: registry, pipeline, and logger must be non-nil.
func New(registry *encounter.Registry, pipeline *action.Pipeline, cfg config.ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		registry: registry,
		pipeline: pipeline,
		cfg:      cfg,
		logger:   logger,
	}
	s.mcpServer = mcp.NewServer(
		&mcp.Implementation{Name: serverName, Version: serverVersion},
		&mcp.ServerOptions{Instructions: serverInstructions},
	)
	s.registerTools()
	return s
}

const serverInstructions = "Turn-based tactical combat engine. Create an encounter, " +
	"then drive it with execute_action and advance_turn; render_battlefield shows " +
	"the grid. All participant references accept an id or a display name."

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_encounter",
		Description: "Create a combat encounter from participants, a grid, and lighting. Rolls initiative and starts round 1.",
	}, s.handleCreateEncounter)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_encounter",
		Description: "Fetch encounter state at minimal, summary, or full verbosity.",
	}, s.handleGetEncounter)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_participant",
		Description: "Add a participant to an active encounter; it is slotted into the existing initiative order.",
	}, s.handleAddParticipant)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "execute_action",
		Description: "Execute a combat action (attack, move, cast-spell, grapple, shove, dash, dodge, disengage, help, hide, ready, use-object, improvise, custom) for the active participant.",
	}, s.handleExecuteAction)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "advance_turn",
		Description: "End the current turn and hand the encounter to the next living participant, ticking condition durations.",
	}, s.handleAdvanceTurn)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "modify_terrain",
		Description: "Reclassify battlefield cells (open, obstacle, difficult, water, hazard) mid-encounter.",
	}, s.handleModifyTerrain)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "end_encounter",
		Description: "End an encounter and return its summary; the encounter stays queryable afterwards.",
	}, s.handleEndEncounter)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_condition",
		Description: "Apply a status condition to a participant, with optional severity, round duration, and source.",
	}, s.handleAddCondition)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "remove_condition",
		Description: "Remove a status condition from a participant.",
	}, s.handleRemoveCondition)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "query_conditions",
		Description: "List a participant's active conditions with severity and remaining duration.",
	}, s.handleQueryConditions)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "roll_death_save",
		Description: "Roll a death saving throw for a dying participant, optionally pinning the d20.",
	}, s.handleRollDeathSave)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "render_battlefield",
		Description: "Render the battlefield as an ASCII grid, optionally cropped to a viewport and with a participant legend.",
	}, s.handleRenderBattlefield)
}

// Run serves MCP until ctx is cancelled, on the configured transport.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case "http":
		return s.runHTTP(ctx)
	default:
		s.logger.Info("serving MCP over stdio")
		return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
	}
}

func (s *Server) runHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)

	mux := http.NewServeMux()
	mux.Handle("/mcp", handler)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{
		Addr:    s.cfg.Addr(),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving MCP over HTTP", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}
