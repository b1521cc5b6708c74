package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rl-tracker/internal/config"
	"rl-tracker/internal/constants"
	"rl-tracker/internal/domain"
	"rl-tracker/internal/pipeline"
	"rl-tracker/internal/repository"
	"rl-tracker/internal/service"

	"github.com/rs/zerolog"
)

// Server exposes the upload pipeline and the read-only analytics queries
// over JSON. Auth, CSRF, and pagination stay outside this layer.
type Server struct {
	processor *pipeline.Processor
	stats     *service.StatsService
	matches   *repository.MatchRepository
	statsRepo *repository.StatsRepository
	cfg       *config.Config
	logger    zerolog.Logger
}

func New(
	processor *pipeline.Processor,
	stats *service.StatsService,
	matches *repository.MatchRepository,
	statsRepo *repository.StatsRepository,
	cfg *config.Config,
	logger zerolog.Logger,
) *Server {
	return &Server{
		processor: processor,
		stats:     stats,
		matches:   matches,
		statsRepo: statsRepo,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/upload/status", s.handleUploadStatus)
	mux.HandleFunc("GET /api/matches", s.handleMatches)
	mux.HandleFunc("GET /api/matches/{id}/players", s.handleMatchPlayers)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("GET /api/streaks", s.handleStreaks)
	mux.HandleFunc("GET /api/overview", s.handleOverview)
	mux.HandleFunc("GET /api/player-stats", s.handlePlayerStats)
	mux.HandleFunc("GET /api/shooting-pct", s.handleShootingPct)
	mux.HandleFunc("GET /api/mvp-wins", s.handleMVPWins)
	mux.HandleFunc("GET /api/avg-score", s.handleAvgScore)
	mux.HandleFunc("GET /api/score-differential", s.handleScoreDifferential)
	mux.HandleFunc("GET /api/win-loss-daily", s.handleWinLossDaily)
	return mux
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	name := sanitizeFilename(header.Filename)
	if name == "" || !strings.HasSuffix(strings.ToLower(name), ".replay") {
		writeError(w, http.StatusBadRequest, "only .replay files are accepted")
		return
	}

	dest := filepath.Join(s.cfg.ReplayDir, name)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "file already exists",
			"duplicate": true,
		})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Str("file", name).Msg("failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	written, err := out.ReadFrom(file)
	closeErr := out.Close()
	if err != nil || closeErr != nil {
		removeUpload(dest)
		s.logger.Error().AnErr("write", err).AnErr("close", closeErr).Str("file", name).Msg("failed to write upload")
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if written < constants.MinReplaySize {
		removeUpload(dest)
		writeError(w, http.StatusBadRequest, "file too small")
		return
	}

	s.processor.Enqueue(dest)
	writeJSON(w, http.StatusCreated, map[string]string{"filename": name})
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	filename := sanitizeFilename(r.URL.Query().Get("filename"))
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename parameter required")
		return
	}
	status := s.processor.Status(filepath.Join(s.cfg.ReplayDir, filename))
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := s.matches.ListRecent(r.Context(), constants.RecentMatchLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	type matchJSON struct {
		ID            int64   `json:"id"`
		GameMode      *string `json:"game_mode"`
		Result        *string `json:"result"`
		Forfeit       bool    `json:"forfeit"`
		TeamScore     *int    `json:"team_score"`
		OpponentScore *int    `json:"opponent_score"`
		PlayedAt      *string `json:"played_at"`
		MVP           *string `json:"mvp"`
	}
	out := make([]matchJSON, len(matches))
	for i, m := range matches {
		out[i] = matchJSON{
			ID:            m.ID,
			Forfeit:       m.Forfeit,
			TeamScore:     m.TeamScore,
			OpponentScore: m.OpponentScore,
			MVP:           m.MVPName,
		}
		if m.GameMode != nil {
			mode := string(*m.GameMode)
			out[i].GameMode = &mode
		}
		if m.Result != nil {
			result := string(*m.Result)
			out[i].Result = &result
		}
		if m.PlayedAt != nil {
			playedAt := m.PlayedAt.Format("2006-01-02 15:04:05")
			out[i].PlayedAt = &playedAt
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": out, "total": len(out)})
}

func (s *Server) handleMatchPlayers(w http.ResponseWriter, r *http.Request) {
	matchID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}
	players, err := s.matches.Participants(r.Context(), matchID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	type playerJSON struct {
		Name        string  `json:"name"`
		Score       int     `json:"score"`
		Goals       int     `json:"goals"`
		Assists     int     `json:"assists"`
		Saves       int     `json:"saves"`
		Shots       int     `json:"shots"`
		ShootingPct float64 `json:"shooting_pct"`
	}
	out := make([]playerJSON, len(players))
	for i, p := range players {
		out[i] = playerJSON(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.stats.Sessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleStreaks(w http.ResponseWriter, r *http.Request) {
	streaks, err := s.stats.Streaks(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, streaks)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.stats.GetOverview(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statsRepo.PlayerTotals(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type rowJSON struct {
		Player  string `json:"player"`
		Matches int    `json:"matches"`
		Goals   int    `json:"goals"`
		Assists int    `json:"assists"`
		Saves   int    `json:"saves"`
		Shots   int    `json:"shots"`
	}
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleShootingPct(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statsRepo.ShootingPct(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type rowJSON struct {
		Player      string  `json:"player"`
		Goals       int     `json:"goals"`
		Shots       int     `json:"shots"`
		ShootingPct float64 `json:"shooting_pct"`
	}
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMVPWins(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statsRepo.MVPWinRate(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type rowJSON struct {
		Player     string  `json:"player"`
		MVPMatches int     `json:"mvp_matches"`
		MVPWins    int     `json:"mvp_wins"`
		WinRate    float64 `json:"win_rate"`
	}
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAvgScore(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statsRepo.AvgScore(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type rowJSON struct {
		Player     string  `json:"player"`
		Matches    int     `json:"matches"`
		TotalScore int     `json:"total_score"`
		AvgScore   float64 `json:"avg_score"`
	}
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleScoreDifferential(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statsRepo.ScoreDifferential(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type rowJSON struct {
		Differential int `json:"differential"`
		MatchCount   int `json:"match_count"`
	}
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWinLossDaily(w http.ResponseWriter, r *http.Request) {
	rows, err := s.statsRepo.WinLossDaily(r.Context(), modeFromQuery(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	type rowJSON struct {
		Date    string  `json:"date"`
		Wins    int     `json:"wins"`
		Losses  int     `json:"losses"`
		WinRate float64 `json:"win_rate"`
	}
	out := make([]rowJSON, len(rows))
	for i, row := range rows {
		out[i] = rowJSON(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}

// modeFromQuery reads the mode parameter against the closed GameMode set,
// defaulting to 3v3.
func modeFromQuery(r *http.Request) domain.GameMode {
	if mode, ok := domain.ParseGameMode(r.URL.Query().Get("mode")); ok {
		return mode
	}
	return domain.Mode3v3
}

// sanitizeFilename strips any path components from a client-supplied name.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || strings.ContainsAny(name, "\x00") {
		return ""
	}
	return name
}

func removeUpload(path string) {
	_ = os.Remove(path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
