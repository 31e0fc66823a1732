// Package bridge streams journaled decisions to browser dashboards.
// It tails the CSV journal the bot writes and fans each row out to
// websocket clients, so the bot's hot path never carries a network
// dependency.
package bridge

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"arb-sim-bot/internal/config"
	"arb-sim-bot/internal/journal"
	"arb-sim-bot/internal/risk"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
)

//go:embed dashboard.html
var dashboardHTML []byte

type opportunityMessage struct {
	Type        string      `json:"type"`
	Opportunity opportunity `json:"opportunity"`
}

type opportunity struct {
	Timestamp    int64   `json:"timestamp"`
	Symbol       string  `json:"symbol"`
	BuyExchange  string  `json:"buy_exchange"`
	SellExchange string  `json:"sell_exchange"`
	BuyPrice     float64 `json:"buy_price"`
	SellPrice    float64 `json:"sell_price"`
	ProfitBPS    float64 `json:"profit_bps"`
	NetProfitBPS float64 `json:"net_profit_bps"`
	LatencyNS    int64   `json:"latency_ns"`
	Approved     bool    `json:"approved"`
	Reason       string  `json:"reason"`
}

// Server hosts the dashboard page, the websocket endpoint, and the
// journal tail that feeds it.
type Server struct {
	cfg    config.BridgeConfig
	log    *zap.Logger
	hub    *Hub
	tailer *Tailer
}

func NewServer(cfg config.BridgeConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		log:    log,
		hub:    NewHub(log),
		tailer: NewTailer(cfg.CSVPath, cfg.PollInterval, log),
	}
}

// Run serves HTTP and tails the journal until the context ends.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Tail(gctx) })
	g.Go(func() error { return s.serveHTTP(gctx) })
	return g.Wait()
}

// Tail runs the journal tail loop, broadcasting each new row.
func (s *Server) Tail(ctx context.Context) error {
	return s.tailer.Run(ctx, func(rec journal.Record) {
		s.broadcast(ctx, rec)
	})
}

func (s *Server) broadcast(ctx context.Context, rec journal.Record) {
	msg := opportunityMessage{
		Type: "opportunity",
		Opportunity: opportunity{
			Timestamp:    rec.DetectedAt,
			Symbol:       rec.Symbol,
			BuyExchange:  rec.BuyVenue,
			SellExchange: rec.SellVenue,
			BuyPrice:     rec.BuyPrice,
			SellPrice:    rec.SellPrice,
			ProfitBPS:    rec.ProfitBPS,
			NetProfitBPS: rec.NetProfitBPS,
			LatencyNS:    rec.LatencyNS,
			Approved:     rec.Decision == int(risk.Approved),
			Reason:       risk.Code(rec.Decision).String(),
		},
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Warn("opportunity encode failed", zap.Error(err))
		return
	}
	s.hub.Broadcast(ctx, payload)
}

// Handler returns the HTTP surface: the dashboard page at /, the
// websocket stream at /ws, and a health probe at /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(dashboardHTML)
	})
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	// The dashboard page may be opened straight from disk, so any
	// origin is accepted.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		s.log.Warn("websocket accept failed", zap.Error(err))
		return
	}
	s.hub.Add(conn)
	defer s.hub.Remove(conn)

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (s *Server) serveHTTP(ctx context.Context) error {
	server := &http.Server{Addr: s.cfg.Listen, Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()
	s.log.Info("dashboard bridge listening",
		zap.String("address", s.cfg.Listen),
		zap.String("journal", s.cfg.CSVPath),
	)
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		s.hub.CloseAll()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
