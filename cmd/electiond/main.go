// Command electiond runs the election protocol as a standalone daemon,
// exposing registry/factory/ballot/verifier operations behind a small HTTP
// admin API: config loading, structured logging, and signal-driven shutdown.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"electionproto/config"
	"electionproto/crypto"
	"electionproto/election/ballot"
	"electionproto/election/events"
	"electionproto/election/factory"
	"electionproto/election/persistence"
	"electionproto/election/registry"
	"electionproto/election/verifier"
	"electionproto/observability/logging"
	"electionproto/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("ELECTIOND_ENV"))
	logger := logging.Setup("electiond", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	policy, err := cfg.Global.Policy()
	if err != nil {
		logger.Error("invalid governance policy", slog.Any("error", err))
		os.Exit(1)
	}

	ownerKey, err := loadOrCreateOwnerKey(cfg.ValidatorKeystorePath, os.Stdin, os.Stdout, logger)
	if err != nil {
		logger.Error("failed to resolve owner key", slog.Any("error", err))
		os.Exit(1)
	}
	owner := crypto.MustNewAddress(crypto.ElectPrefix, ownerKey.PubKey().Address().Bytes())
	logger.Info("owner identity resolved", slog.String("owner", owner.String()))

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to prepare data directory", slog.Any("error", err))
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open data directory", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	reg := registry.New(owner)
	if err := persistence.LoadRegistry(db, reg); err != nil {
		logger.Error("failed to restore registry snapshot", slog.Any("error", err))
		os.Exit(1)
	}

	emitter := newLoggingEmitter(logger)
	reg.SetEmitter(emitter)

	f := factory.New(owner, reg)
	f.SetEmitter(emitter)

	v := verifier.New(reg)
	v.SetEmitter(emitter)

	srv := &server{logger: logger, registry: reg, factory: f, verifier: v, owner: owner, policy: policy}

	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("electiond listening", slog.String("addr", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", slog.Any("error", err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := persistence.SaveRegistry(db, reg); err != nil {
		logger.Error("failed to persist registry snapshot", slog.Any("error", err))
	}
}

// loadOrCreateOwnerKey decrypts the owner's v3 keystore file at path, reading
// the passphrase with masked terminal input (or ELECTIOND_KEYSTORE_PASSPHRASE
// when stdin isn't a terminal, e.g. under a process supervisor). If no
// keystore exists yet, a fresh key is generated and saved under a
// freshly-entered passphrase.
func loadOrCreateOwnerKey(path string, in *os.File, out *os.File, logger *slog.Logger) (*crypto.PrivateKey, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("no owner keystore found, generating a new one", slog.String("path", path))
		key, err := crypto.GeneratePrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generate owner key: %w", err)
		}
		passphrase, err := readPassphrase(in, out, "set a passphrase for the new owner keystore: ")
		if err != nil {
			return nil, err
		}
		if err := crypto.SaveToKeystore(path, key, passphrase); err != nil {
			return nil, fmt.Errorf("save owner keystore: %w", err)
		}
		return key, nil
	}

	passphrase, err := readPassphrase(in, out, "owner keystore passphrase: ")
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlock owner keystore: %w", err)
	}
	return key, nil
}

// readPassphrase reads a secret line from in, masking keystrokes when in is a
// terminal. When stdin is not a terminal (e.g. a container without a tty) it
// falls back to the ELECTIOND_KEYSTORE_PASSPHRASE environment variable.
func readPassphrase(in *os.File, out *os.File, prompt string) (string, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		if p := os.Getenv("ELECTIOND_KEYSTORE_PASSPHRASE"); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("stdin is not a terminal and ELECTIOND_KEYSTORE_PASSPHRASE is unset")
	}
	fmt.Fprint(out, prompt)
	secret, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if len(strings.TrimSpace(string(secret))) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(secret), nil
}

// loggingEmitter fans every election event out to structured logs. It does
// not touch the Prometheus counters: Ballot already increments
// metrics.Election() directly from CommitVote/RevealVote/Finalize/Cancel,
// where it has its own electionID in scope, so a second increment here off
// the emitted event (whose attributes don't all carry an electionId) would
// both double-count and mislabel the counters.
type loggingEmitter struct {
	logger *slog.Logger
}

func newLoggingEmitter(logger *slog.Logger) *loggingEmitter {
	return &loggingEmitter{logger: logger}
}

func (e *loggingEmitter) Emit(evt events.Event) {
	record := evt.Event()
	attrs := make([]any, 0, len(record.Attributes)*2+1)
	attrs = append(attrs, slog.String("event_type", record.Type))
	for k, val := range record.Attributes {
		attrs = append(attrs, logging.MaskField(k, val))
	}
	e.logger.Info("election event", attrs...)
}

type server struct {
	logger   *slog.Logger
	registry *registry.Registry
	factory  *factory.Factory
	verifier *verifier.Verifier
	owner    crypto.Address
	policy   config.Governance
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.withRequestID)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/voters", func(r chi.Router) {
		r.Post("/", s.handleRegisterVoter)
		r.Get("/{wallet}", s.handleGetVoter)
		r.Post("/{wallet}/deactivate", s.handleDeactivateVoter)
		r.Post("/{wallet}/reactivate", s.handleReactivateVoter)
	})
	r.Route("/elections", func(r chi.Router) {
		r.Post("/", s.handleCreateElection)
		r.Get("/{id}", s.handleGetElection)
		r.Post("/{id}/commit", s.handleCommitVote)
		r.Post("/{id}/reveal", s.handleRevealVote)
		r.Get("/{id}/results", s.handleGetResults)
		r.Get("/{id}/summary", s.handleGetSummary)
		r.Get("/{id}/voters/{wallet}", s.handleVerifyReceipt)
	})
	return r
}

func (s *server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-Id", requestID)
		s.logger.Info("request", slog.String("request_id", requestID), slog.String("method", r.Method), slog.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeHash32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

type registerVoterRequest struct {
	Wallet         string `json:"wallet"`
	IdentityHash   string `json:"identityHash"`
	ConstituencyID uint64 `json:"constituencyId"`
}

func (s *server) handleRegisterVoter(w http.ResponseWriter, r *http.Request) {
	var req registerVoterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wallet, err := crypto.DecodeAddress(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	identity, err := decodeHash32(req.IdentityHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.RegisterVoter(s.owner, wallet, identity, req.ConstituencyID); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"wallet": wallet.String()})
}

func (s *server) handleGetVoter(w http.ResponseWriter, r *http.Request) {
	wallet, err := crypto.DecodeAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	info, err := s.registry.GetVoterInfo(wallet)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (s *server) handleDeactivateVoter(w http.ResponseWriter, r *http.Request) {
	wallet, err := crypto.DecodeAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req reasonRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if err := s.registry.DeactivateVoter(s.owner, wallet, req.Reason); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (s *server) handleReactivateVoter(w http.ResponseWriter, r *http.Request) {
	wallet, err := crypto.DecodeAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.registry.ReactivateVoter(s.owner, wallet); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reactivated"})
}

type createElectionRequest struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	CommitDeadline   int64    `json:"commitDeadline"`
	RevealDeadline   int64    `json:"revealDeadline"`
	CandidateNames   []string `json:"candidateNames"`
	CandidateParties []string `json:"candidateParties"`
	ConstituencyID   uint64   `json:"constituencyId"`
	ElectionType     string   `json:"electionType"`
}

func (s *server) handleCreateElection(w http.ResponseWriter, r *http.Request) {
	var req createElectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	electionType := factory.ElectionTypeGeneral
	if strings.EqualFold(req.ElectionType, string(factory.ElectionTypeConstituency)) {
		electionType = factory.ElectionTypeConstituency
	}
	id, _, err := s.factory.CreateElection(
		s.owner,
		req.Name,
		req.Description,
		time.Unix(req.CommitDeadline, 0).UTC(),
		time.Unix(req.RevealDeadline, 0).UTC(),
		req.CandidateNames,
		req.CandidateParties,
		req.ConstituencyID,
		electionType,
	)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"electionId": id})
}

func (s *server) resolveBallot(r *http.Request) (*ballot.Ballot, factory.Record, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return nil, factory.Record{}, err
	}
	if id == 0 {
		return nil, factory.Record{}, fmt.Errorf("election id must be >= 1")
	}
	record, err := s.factory.GetElection(id - 1)
	if err != nil {
		return nil, factory.Record{}, err
	}
	return record.Ballot, record, nil
}

func (s *server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	_, record, err := s.resolveBallot(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

type commitVoteRequest struct {
	Wallet     string `json:"wallet"`
	CommitHash string `json:"commitHash"`
}

func (s *server) handleCommitVote(w http.ResponseWriter, r *http.Request) {
	b, _, err := s.resolveBallot(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req commitVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voter, err := crypto.DecodeAddress(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	commitHash, err := decodeHash32(req.CommitHash)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := b.CommitVote(voter, commitHash); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	status := b.GetVoterCommitStatus(voter)
	writeJSON(w, http.StatusOK, status)
}

type revealVoteRequest struct {
	Wallet      string `json:"wallet"`
	CandidateID uint64 `json:"candidateId"`
	Secret      string `json:"secret"`
}

func (s *server) handleRevealVote(w http.ResponseWriter, r *http.Request) {
	b, _, err := s.resolveBallot(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req revealVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	voter, err := crypto.DecodeAddress(req.Wallet)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	secret, err := decodeHash32(req.Secret)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := b.RevealVote(voter, req.CandidateID, secret); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revealed"})
}

func (s *server) handleGetResults(w http.ResponseWriter, r *http.Request) {
	b, _, err := s.resolveBallot(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	results, err := b.GetResults()
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	b, _, err := s.resolveBallot(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, s.verifier.GetElectionSummary(b, s.policy))
}

func (s *server) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	b, _, err := s.resolveBallot(r)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	wallet, err := crypto.DecodeAddress(chi.URLParam(r, "wallet"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receiptHashParam := r.URL.Query().Get("receiptHash")
	receiptHash, err := decodeHash32(receiptHashParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	result := s.verifier.VerifyVoterReceipt(b, s.owner, wallet, receiptHash)
	writeJSON(w, http.StatusOK, result)
}
