package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"campus-market/client"
	"campus-market/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SimConfig struct {
	NumUsers         int
	NumListings      int
	SimulationTime   time.Duration
	MessageFrequency float64 // messages per user per minute
	DisconnectRate   float64 // chance per tick that a live session drops
	ReconnectRate    float64 // chance per tick that a dropped session reopens
	ZipfS            float64 // skew of listing popularity
	EngineURL        string
}

type SimulationStats struct {
	mu              sync.RWMutex
	StartTime       time.Time
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalThreads    int
	TotalMessages   int
	LiveSessions    int
	Latencies       []time.Duration
}

func (st *SimulationStats) recordRequest(latency time.Duration, ok bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.TotalRequests++
	if ok {
		st.SuccessRequests++
	} else {
		st.FailedRequests++
	}
	st.Latencies = append(st.Latencies, latency)
}

// Metrics is the final summary returned after a run.
type Metrics struct {
	TotalUsers     int
	TotalThreads   int
	TotalMessages  int
	LiveSessions   int
	TotalRequests  int64
	FailedRequests int64
	AverageLatency time.Duration
	SimulationTime time.Duration
}

// SimulatedUser tracks one synthetic account: its credentials, the listings
// it owns, and its open conversation sessions keyed by thread ID.
type SimulatedUser struct {
	ID       uuid.UUID
	Name     string
	Email    string
	Token    string
	Listings []uuid.UUID
	Sessions map[uuid.UUID]*client.Session
	Dropped  map[uuid.UUID]bool // threads whose session is currently closed
}

// Simulator drives a running server with synthetic marketplace chatter:
// registered buyers and sellers opening threads, exchanging messages over
// REST, and holding live connections that drop and come back.
type Simulator struct {
	config   SimConfig
	stats    *SimulationStats
	users    []*SimulatedUser
	listings []uuid.UUID
	client   *http.Client
	log      *zap.Logger
	mu       sync.RWMutex
}

func NewSimulator(config SimConfig, logger *zap.Logger) *Simulator {
	return &Simulator{
		config: config,
		stats: &SimulationStats{
			StartTime: time.Now(),
			Latencies: make([]time.Duration, 0),
		},
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}
}

func (s *Simulator) Run(ctx context.Context) error {
	s.log.Info("starting simulation")

	if err := s.initialize(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateMessaging(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.simulateConnectivity(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.collectMetrics(ctx)
	}()

	wg.Wait()
	s.closeAllSessions()
	return nil
}

func (s *Simulator) initialize(ctx context.Context) error {
	s.log.Info("phase 1: registering users", zap.Int("count", s.config.NumUsers))
	if err := s.registerUsers(ctx); err != nil {
		return err
	}

	s.log.Info("phase 2: creating listings", zap.Int("count", s.config.NumListings))
	if err := s.createListings(ctx); err != nil {
		return err
	}

	s.log.Info("phase 3: opening threads")
	if err := s.openThreads(ctx); err != nil {
		return err
	}

	s.log.Info("initialization complete",
		zap.Int("users", len(s.users)), zap.Int("listings", len(s.listings)))
	return nil
}

func (s *Simulator) registerUsers(ctx context.Context) error {
	s.users = make([]*SimulatedUser, 0, s.config.NumUsers)

	for i := 0; i < s.config.NumUsers; i++ {
		user := &SimulatedUser{
			Name:     fmt.Sprintf("sim_user_%d", i),
			Email:    fmt.Sprintf("sim_user_%d@test.com", i),
			Sessions: make(map[uuid.UUID]*client.Session),
			Dropped:  make(map[uuid.UUID]bool),
		}

		var registered models.User
		if err := s.request(ctx, "", http.MethodPost, "/users/register", map[string]string{
			"name":     user.Name,
			"email":    user.Email,
			"password": "testpass123",
		}, &registered); err != nil {
			return fmt.Errorf("register %s: %w", user.Name, err)
		}
		user.ID = registered.ID

		var login struct {
			Token  string `json:"token"`
			UserID string `json:"userId"`
		}
		if err := s.request(ctx, "", http.MethodPost, "/users/login", map[string]string{
			"email":    user.Email,
			"password": "testpass123",
		}, &login); err != nil {
			return fmt.Errorf("login %s: %w", user.Name, err)
		}
		user.Token = login.Token

		s.users = append(s.users, user)
	}
	return nil
}

var categories = []models.ListingCategory{
	models.CategoryTextbooks,
	models.CategoryFurniture,
	models.CategoryElectronics,
	models.CategoryTickets,
	models.CategoryOther,
}

func (s *Simulator) createListings(ctx context.Context) error {
	s.listings = make([]uuid.UUID, 0, s.config.NumListings)

	for i := 0; i < s.config.NumListings; i++ {
		owner := s.users[i%len(s.users)]

		var listing models.Listing
		err := s.request(ctx, owner.Token, http.MethodPost, "/listings", map[string]interface{}{
			"title":       fmt.Sprintf("Listing %d", i),
			"description": "simulated item",
			"price":       float64(5 + rand.Intn(200)),
			"category":    string(categories[rand.Intn(len(categories))]),
		}, &listing)
		if err != nil {
			return fmt.Errorf("create listing %d: %w", i, err)
		}

		owner.Listings = append(owner.Listings, listing.ID)
		s.listings = append(s.listings, listing.ID)
	}
	return nil
}

// openThreads has every user open a thread on a listing they do not own,
// with popularity skewed by a Zipf distribution, then start a live session.
func (s *Simulator) openThreads(ctx context.Context) error {
	zipf := rand.NewZipf(rand.New(rand.NewSource(time.Now().UnixNano())),
		s.config.ZipfS, 1.0, uint64(len(s.listings)-1))

	for _, user := range s.users {
		listingID := s.listings[zipf.Uint64()]
		if s.ownsListing(user, listingID) {
			continue // sellers cannot open threads on themselves
		}

		var thread models.Thread
		err := s.request(ctx, user.Token, http.MethodPost,
			fmt.Sprintf("/threads/%s", listingID), map[string]string{}, &thread)
		if err != nil {
			s.log.Warn("failed to open thread", zap.String("user", user.Name), zap.Error(err))
			continue
		}

		s.stats.mu.Lock()
		s.stats.TotalThreads++
		s.stats.mu.Unlock()

		s.openSession(ctx, user, thread.ID)
	}
	return nil
}

func (s *Simulator) ownsListing(user *SimulatedUser, listingID uuid.UUID) bool {
	for _, id := range user.Listings {
		if id == listingID {
			return true
		}
	}
	return false
}

func (s *Simulator) openSession(ctx context.Context, user *SimulatedUser, threadID uuid.UUID) {
	sess, err := client.Open(ctx, s.config.EngineURL, user.Token, user.ID, threadID, s.log)
	if err != nil {
		s.log.Warn("failed to open session",
			zap.String("user", user.Name), zap.Error(err))
		return
	}
	s.mu.Lock()
	user.Sessions[threadID] = sess
	delete(user.Dropped, threadID)
	s.mu.Unlock()

	s.stats.mu.Lock()
	s.stats.LiveSessions++
	s.stats.mu.Unlock()
}

func (s *Simulator) simulateMessaging(ctx context.Context) {
	perUserInterval := time.Duration(float64(time.Minute) / s.config.MessageFrequency)
	interval := perUserInterval / time.Duration(max(len(s.users), 1))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sendRandomMessage(ctx)
		}
	}
}

func (s *Simulator) sendRandomMessage(ctx context.Context) {
	s.mu.RLock()
	var candidates []*SimulatedUser
	for _, u := range s.users {
		if len(u.Sessions) > 0 {
			candidates = append(candidates, u)
		}
	}
	s.mu.RUnlock()
	if len(candidates) == 0 {
		return
	}

	user := candidates[rand.Intn(len(candidates))]
	s.mu.RLock()
	var sess *client.Session
	for _, v := range user.Sessions {
		sess = v
		break
	}
	s.mu.RUnlock()
	if sess == nil {
		return
	}

	start := time.Now()
	_, err := sess.Send(ctx, fmt.Sprintf("hello from %s at %d", user.Name, time.Now().UnixMilli()))
	s.stats.recordRequest(time.Since(start), err == nil)
	if err == nil {
		s.stats.mu.Lock()
		s.stats.TotalMessages++
		s.stats.mu.Unlock()
	}
}

// simulateConnectivity randomly tears down and reopens live sessions so the
// server sees the churn a real client population produces.
func (s *Simulator) simulateConnectivity(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, user := range s.users {
				s.mu.Lock()
				for threadID, sess := range user.Sessions {
					if rand.Float64() < s.config.DisconnectRate {
						sess.Close()
						delete(user.Sessions, threadID)
						user.Dropped[threadID] = true
						s.stats.mu.Lock()
						s.stats.LiveSessions--
						s.stats.mu.Unlock()
					}
				}
				var reopen []uuid.UUID
				for threadID := range user.Dropped {
					if rand.Float64() < s.config.ReconnectRate {
						reopen = append(reopen, threadID)
					}
				}
				s.mu.Unlock()
				for _, threadID := range reopen {
					s.openSession(ctx, user, threadID)
				}
			}
		}
	}
}

func (s *Simulator) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.stats.mu.RLock()
			s.log.Info("simulation progress",
				zap.Int64("requests", s.stats.TotalRequests),
				zap.Int64("failed", s.stats.FailedRequests),
				zap.Int("messages", s.stats.TotalMessages),
				zap.Int("live_sessions", s.stats.LiveSessions))
			s.stats.mu.RUnlock()
		}
	}
}

func (s *Simulator) closeAllSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		for threadID, sess := range user.Sessions {
			sess.Close()
			delete(user.Sessions, threadID)
		}
	}
}

func (s *Simulator) GetMetrics() Metrics {
	s.stats.mu.RLock()
	defer s.stats.mu.RUnlock()

	var avg time.Duration
	if len(s.stats.Latencies) > 0 {
		var total time.Duration
		for _, l := range s.stats.Latencies {
			total += l
		}
		avg = total / time.Duration(len(s.stats.Latencies))
	}

	return Metrics{
		TotalUsers:     len(s.users),
		TotalThreads:   s.stats.TotalThreads,
		TotalMessages:  s.stats.TotalMessages,
		LiveSessions:   s.stats.LiveSessions,
		TotalRequests:  s.stats.TotalRequests,
		FailedRequests: s.stats.FailedRequests,
		AverageLatency: avg,
		SimulationTime: time.Since(s.stats.StartTime),
	}
}

// request performs one JSON round trip against the server, recording latency
// and outcome in the run stats.
func (s *Simulator) request(ctx context.Context, token, method, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.EngineURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.stats.recordRequest(time.Since(start), false)
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	ok := err == nil && resp.StatusCode < 300
	s.stats.recordRequest(time.Since(start), ok)
	if !ok {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}
