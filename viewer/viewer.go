// Package viewer plays an episode back in the terminal: a policy picks
// actions on a tick, the environment steps, and the board is redrawn.
package viewer

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/zeu5/pursuit-rl/gridworld"
)

// PolicyFunc picks the next joint action for the environment's current
// state. The viewer owns stepping; the policy only chooses.
type PolicyFunc func() (map[string]int, error)

type tickMsg time.Time

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type model struct {
	env      *gridworld.Environment
	policy   PolicyFunc
	interval time.Duration

	episode  int
	step     int
	done     bool
	paused   bool
	captured []string
	rewards  map[string]float64
	err      error
}

// New builds the playback model. interval is the delay between steps.
func New(env *gridworld.Environment, policy PolicyFunc, interval time.Duration) tea.Model {
	env.Reset()
	return model{
		env:      env,
		policy:   policy,
		interval: interval,
		episode:  1,
		rewards:  make(map[string]float64),
	}
}

func (m model) Init() tea.Cmd {
	return tickCmd(m.interval)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "r":
			m.env.Reset()
			m.episode++
			m.step = 0
			m.done = false
			m.captured = nil
			m.rewards = make(map[string]float64)
		}
		return m, nil
	case tickMsg:
		if !m.paused && !m.done && m.err == nil {
			m.advance()
		}
		return m, tickCmd(m.interval)
	}
	return m, nil
}

func (m *model) advance() {
	actions, err := m.policy()
	if err != nil {
		m.err = err
		return
	}
	res, err := m.env.Step(actions)
	if err != nil {
		m.err = err
		return
	}
	m.step++
	for name, r := range res.Rewards {
		m.rewards[name] += r
	}
	if res.Terminated {
		m.done = true
		m.captured = m.env.Captured()
	}
}

func (m model) View() string {
	s := fmt.Sprintf("Episode %d, step %d\n\n", m.episode, m.step)
	s += gridworld.BoardString(m.env)
	s += "\n"
	for _, name := range m.env.AgentNames() {
		s += fmt.Sprintf("%-12s reward %8.1f\n", name, m.rewards[name])
	}
	if m.err != nil {
		s += fmt.Sprintf("\nerror: %v\n", m.err)
	} else if m.done {
		s += fmt.Sprintf("\ncaptured: %v\n", m.captured)
		s += "episode over, press r to restart\n"
	} else if m.paused {
		s += "\npaused\n"
	}
	s += "\nspace pause, r reset, q quit\n"
	return s
}
