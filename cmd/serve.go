package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scarnyc/fitbit-data-ai-agent/internal/agent"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/model"
	"github.com/scarnyc/fitbit-data-ai-agent/internal/store"
)

var servePort int

// runnerFunc starts one extraction pass. The serve command wires it to the
// agent; tests substitute their own.
type runnerFunc func(ctx context.Context, startDate string, cb agent.Callback) model.RunResult

// runState is the latest extraction status, shared between the HTTP
// handlers and the background run goroutine.
type runState struct {
	mu sync.Mutex

	running   bool
	status    model.RunStatus
	message   string
	progress  int
	lastRun   string
	dataCount int
}

func newRunState() *runState {
	return &runState{
		status:  "idle",
		message: "Ready to extract data",
	}
}

type statusResponse struct {
	Status    model.RunStatus `json:"status"`
	Message   string          `json:"message"`
	Progress  int             `json:"progress"`
	LastRun   string          `json:"last_run,omitempty"`
	DataCount int             `json:"data_count"`
}

func (s *runState) snapshot() statusResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return statusResponse{
		Status:    s.status,
		Message:   s.message,
		Progress:  s.progress,
		LastRun:   s.lastRun,
		DataCount: s.dataCount,
	}
}

// tryStart marks the state running. Returns false when a run is already in
// flight.
func (s *runState) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	s.status = model.RunStatusStarting
	s.message = "Initializing agent system..."
	s.progress = 5
	s.lastRun = time.Now().Format("2006-01-02 15:04:05")
	s.dataCount = 0
	return true
}

func (s *runState) update(p model.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = p.Status
	s.message = p.Message
	s.progress = p.Percent
}

func (s *runState) finish(result model.RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.status = result.Status
	s.dataCount = len(result.SavedRecords)
	if result.Status == model.RunStatusComplete {
		s.message = result.Summary
		s.progress = 100
	} else {
		s.message = "Error: " + result.Error
		s.progress = 0
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// newRouter builds the HTTP API. runCtx outlives individual requests and is
// handed to background extraction runs.
func newRouter(runCtx context.Context, st store.Store, run runnerFunc, state *runState) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/start-extraction", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			StartDate string `json:"start_date"`
		}
		if req.Body != nil {
			_ = json.NewDecoder(req.Body).Decode(&body)
		}
		startDate := body.StartDate
		if startDate == "" {
			startDate = cfg.Agent.StartDate
		}

		if !state.tryStart() {
			writeJSON(w, http.StatusConflict, map[string]string{
				"status":  "error",
				"message": "An extraction run is already in progress",
			})
			return
		}

		go func() {
			result := run(runCtx, startDate, state.update)
			state.finish(result)
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{
			"status":  "started",
			"message": "Agent process started. Check status endpoint for updates.",
		})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, state.snapshot())
	})

	r.Get("/api/metrics", func(w http.ResponseWriter, req *http.Request) {
		reports, err := st.ListReports(req.Context())
		if err != nil {
			zap.L().Error("list reports", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "failed to load metrics",
			})
			return
		}
		if reports == nil {
			reports = []model.WeeklyReport{}
		}
		writeJSON(w, http.StatusOK, reports)
	})

	r.Get("/api/metrics/range", func(w http.ResponseWriter, req *http.Request) {
		start := req.URL.Query().Get("start")
		end := req.URL.Query().Get("end")
		if start == "" || end == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "error", "message": "start and end query parameters are required",
			})
			return
		}

		reports, err := st.ReportsByDateRange(req.Context(), start, end)
		if err != nil {
			zap.L().Error("reports by date range", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "failed to load metrics",
			})
			return
		}
		if reports == nil {
			reports = []model.WeeklyReport{}
		}
		writeJSON(w, http.StatusOK, reports)
	})

	r.Get("/export-data", func(w http.ResponseWriter, req *http.Request) {
		format := req.URL.Query().Get("format")
		if format == "" {
			format = "csv"
		}

		reports, err := st.ListReports(req.Context())
		if err != nil {
			zap.L().Error("list reports", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "failed to load metrics",
			})
			return
		}

		switch format {
		case "csv":
			data, err := store.ExportCSV(reports)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"status": "error", "message": "export failed",
				})
				return
			}
			w.Header().Set("Content-Type", "text/csv")
			w.Header().Set("Content-Disposition", "attachment; filename=fitbit_data.csv")
			_, _ = w.Write([]byte(data))
		case "json":
			data, err := store.ExportJSON(reports)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{
					"status": "error", "message": "export failed",
				})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Content-Disposition", "attachment; filename=fitbit_data.json")
			_, _ = w.Write([]byte(data))
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "error", "message": "Unsupported export format: " + format,
			})
		}
	})

	r.Post("/delete-metric/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		deleted, err := st.DeleteReport(req.Context(), id)
		if err != nil {
			zap.L().Error("delete report", zap.String("id", id), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"status": "error", "message": "Failed to delete metric",
			})
			return
		}
		if !deleted {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"status": "error", "message": "Failed to delete metric",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "success", "message": "Metric deleted successfully",
		})
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  "Serves extraction control and metrics endpoints: start runs, poll progress, read stored reports, export data.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		selectors, err := loadSelectors()
		if err != nil {
			return err
		}

		llm, err := initGemini(ctx)
		if err != nil {
			return err
		}
		defer llm.Close()

		browserClient := initBrowser()

		runner := func(runCtx context.Context, startDate string, cb agent.Callback) model.RunResult {
			// Each run gets a fresh system so browser session state never
			// leaks between runs.
			system := agent.New(cfg, selectors, browserClient, llm, st)
			return system.Run(runCtx, startDate, cb)
		}

		router := newRouter(ctx, st, runner, newRunState())

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: router,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
