// Package monitor serves live training status over HTTP so a run can be
// watched without touching the training loop: the trainer pushes updates
// through an episode hook and the server answers reads from a snapshot.
package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zeu5/pursuit-rl/gridworld"
	"github.com/zeu5/pursuit-rl/tabular"
	"github.com/zeu5/pursuit-rl/trainer"
)

const recentEpisodes = 20

// AgentSnapshot is one agent's position in the grid snapshot.
type AgentSnapshot struct {
	Name string         `json:"name"`
	Role gridworld.Role `json:"role"`
	X    int            `json:"x"`
	Y    int            `json:"y"`
}

// GridSnapshot is the last observed board layout.
type GridSnapshot struct {
	Size      int               `json:"size"`
	Obstacles []gridworld.Point `json:"obstacles"`
	Agents    []AgentSnapshot   `json:"agents"`
}

// Status is the run-level summary.
type Status struct {
	Run          string  `json:"run"`
	Episode      int     `json:"episode"`
	Episodes     int     `json:"episodes"`
	Epsilon      float64 `json:"epsilon"`
	MeanLength   float64 `json:"mean_length"`
	MeanCaptures float64 `json:"mean_captures"`
}

// Monitor owns the HTTP server and the snapshot it serves.
type Monitor struct {
	server *http.Server

	mu     sync.Mutex
	status Status
	recent []trainer.EpisodeStats
	grid   GridSnapshot
	qstats tabular.Stats
}

// New builds a monitor listening on the given port.
func New(port int, run string, episodes int) *Monitor {
	m := &Monitor{
		status: Status{Run: run, Episodes: episodes},
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/status", m.handleStatus)
	r.GET("/metrics/recent", m.handleRecent)
	r.GET("/qtable", m.handleQTable)
	r.GET("/grid", m.handleGrid)
	m.server = &http.Server{
		Addr:    fmt.Sprintf("localhost:%d", port),
		Handler: r,
	}
	return m
}

// Start serves in the background until Shutdown or context cancellation.
func (m *Monitor) Start(ctx context.Context) {
	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("monitor server: %v\n", err)
		}
	}()
	go func() {
		<-ctx.Done()
		m.Shutdown()
	}()
}

// Shutdown stops the server, allowing in-flight requests to finish.
func (m *Monitor) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.server.Shutdown(ctx)
}

// ObserveEpisode records one finished episode. Safe to call from the
// training loop; it only copies scalars under the lock.
func (m *Monitor) ObserveEpisode(stats trainer.EpisodeStats, meanLength, meanCaptures float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Episode = stats.Episode
	m.status.Epsilon = stats.Epsilon
	m.status.MeanLength = meanLength
	m.status.MeanCaptures = meanCaptures
	m.recent = append(m.recent, stats)
	if len(m.recent) > recentEpisodes {
		m.recent = m.recent[len(m.recent)-recentEpisodes:]
	}
}

// ObserveGrid records the current board layout.
func (m *Monitor) ObserveGrid(env *gridworld.Environment) {
	snapshot := GridSnapshot{
		Size:      env.Size,
		Obstacles: env.Obstacles(),
		Agents:    make([]AgentSnapshot, 0, len(env.Agents)),
	}
	for _, ag := range env.Agents {
		snapshot.Agents = append(snapshot.Agents, AgentSnapshot{
			Name: ag.Name,
			Role: ag.Role,
			X:    ag.Pos.X,
			Y:    ag.Pos.Y,
		})
	}
	m.mu.Lock()
	m.grid = snapshot
	m.mu.Unlock()
}

// ObserveQTable records Q-table summary statistics.
func (m *Monitor) ObserveQTable(q *tabular.QTable) {
	stats := q.Stats()
	m.mu.Lock()
	m.qstats = stats
	m.mu.Unlock()
}

func (m *Monitor) handleStatus(c *gin.Context) {
	m.mu.Lock()
	status := m.status
	m.mu.Unlock()
	c.JSON(http.StatusOK, status)
}

func (m *Monitor) handleRecent(c *gin.Context) {
	m.mu.Lock()
	recent := make([]trainer.EpisodeStats, len(m.recent))
	copy(recent, m.recent)
	m.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"episodes": recent})
}

func (m *Monitor) handleQTable(c *gin.Context) {
	m.mu.Lock()
	stats := m.qstats
	m.mu.Unlock()
	c.JSON(http.StatusOK, stats)
}

func (m *Monitor) handleGrid(c *gin.Context) {
	m.mu.Lock()
	grid := m.grid
	m.mu.Unlock()
	c.JSON(http.StatusOK, grid)
}
