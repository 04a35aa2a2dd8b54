package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/rollup"
)

// Server exposes a Ledger over HTTP and pushes published rollups on a
// websocket.
type Server struct {
	ledger        *Ledger
	hub           *hub
	router        *mux.Router
	blockInterval time.Duration
	logger        zerolog.Logger
}

func NewServer(ledger *Ledger, blockInterval time.Duration) *Server {
	logger := logging.Component("sandbox")
	s := &Server{
		ledger:        ledger,
		hub:           newHub(logger),
		blockInterval: blockInterval,
		logger:        logger,
	}
	ledger.OnRollup(s.hub.broadcast)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/fees", s.handleFees).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{pub}/registered", s.handleRegistered).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{pub}/notes", s.handleNotes).Methods(http.MethodGet)
	api.HandleFunc("/txs", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/txs/{id}", s.handleReceipt).Methods(http.MethodGet)
	router.HandleFunc("/ws/rollups", s.hub.serveWS)
	router.Use(s.logRequests)
	s.router = router

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve publishes rollups on the block ticker and serves on l until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.produceBlocks(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()
	s.logger.Info().Str("addr", l.Addr().String()).Msg("sandbox listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.hub.close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) produceBlocks(ctx context.Context) {
	ticker := time.NewTicker(s.blockInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ledger.Publish(); err != nil {
				s.logger.Err(err).Msg("block production failed")
			}
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.Status())
}

func (s *Server) handleFees(w http.ResponseWriter, r *http.Request) {
	assetID := rollup.EthAssetID
	if v := r.URL.Query().Get("assetId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid assetId: %w", err))
			return
		}
		assetID = uint32(id)
	}
	fees, err := s.ledger.Fees(assetID)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fees)
}

func (s *Server) handleRegistered(w http.ResponseWriter, r *http.Request) {
	pub, err := rollup.ParsePublicKey(mux.Vars(r)["pub"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	pending, _ := strconv.ParseBool(r.URL.Query().Get("pending"))
	writeJSON(w, http.StatusOK, rollup.RegisteredResponse{
		Registered: s.ledger.IsRegistered(pub, pending),
	})
}

func (s *Server) handleNotes(w http.ResponseWriter, r *http.Request) {
	pub, err := rollup.ParsePublicKey(mux.Vars(r)["pub"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	latest := s.ledger.Status().LatestRollupID
	from, err := queryInt(r, "from", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := queryInt(r, "to", latest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, rollup.NotesResponse{
		Notes:          s.ledger.Notes(pub, from, to),
		LatestRollupID: latest,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var tx rollup.Tx
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	id, err := s.ledger.Submit(&tx)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rollup.SubmitResponse{TxID: id})
}

func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := rollup.ParseTxID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := s.ledger.Receipt(id)
	if err != nil {
		s.writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (s *Server) writeLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrUnknownTx):
		status = http.StatusNotFound
	case errors.Is(err, ErrAccountExists), errors.Is(err, ErrAliasTaken):
		status = http.StatusConflict
	case errors.Is(err, ErrBadSignature):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientFee):
		status = http.StatusPaymentRequired
	case errors.Is(err, ErrInvalidTx):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Err(err).Msg("request failed")
	}
	writeError(w, status, err)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Trace().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func queryInt(r *http.Request, key string, def int64) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, rollup.ErrorResponse{Error: err.Error()})
}
