package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressBar shows a simple progress bar
type ProgressBar struct {
	total   int
	current int
	width   int
	writer  io.Writer
	label   string
	done    bool
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total int, label string) *ProgressBar {
	return &ProgressBar{
		total:  total,
		width:  40,
		writer: out,
		label:  label,
	}
}

// Update updates the progress bar
func (p *ProgressBar) Update(current int) {
	if p.done {
		return
	}
	p.current = min(current, p.total)
	p.done = p.current >= p.total
	p.render()
}

// Increment increments the progress by 1
func (p *ProgressBar) Increment() {
	p.Update(p.current + 1)
}

func (p *ProgressBar) percent() float64 {
	if p.total <= 0 {
		return 100
	}
	return float64(p.current) / float64(p.total) * 100
}

func (p *ProgressBar) render() {
	if !IsTerminal() {
		// Non-terminal: only the final line, no carriage returns in logs
		if p.current >= p.total {
			fmt.Fprintf(p.writer, "%s: %d/%d (%.1f%%)\n", p.label, p.current, p.total, p.percent())
		}
		return
	}

	filled := p.width
	if p.total > 0 {
		filled = p.width * p.current / p.total
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	fmt.Fprintf(p.writer, "\r%s [%s] %d/%d (%.1f%%)", p.label, bar, p.current, p.total, p.percent())

	if p.current >= p.total {
		fmt.Fprintln(p.writer)
	}
}

// Spinner shows an animated spinner for indeterminate progress
type Spinner struct {
	chars  []string
	index  int
	done   chan struct{}
	label  string
	writer io.Writer
	once   sync.Once
	wg     sync.WaitGroup
}

// NewSpinner creates a new spinner
func NewSpinner(label string) *Spinner {
	return &Spinner{
		chars:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		done:   make(chan struct{}),
		label:  label,
		writer: out,
	}
}

// Start starts the spinner animation
func (s *Spinner) Start() {
	if !IsTerminal() {
		fmt.Fprintf(s.writer, "%s...\n", s.label)
		return
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				fmt.Fprintf(s.writer, "\r%s %s", s.chars[s.index], s.label)
				s.index = (s.index + 1) % len(s.chars)
			}
		}
	}()
}

// Stop stops the spinner. Safe to call more than once.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		if IsTerminal() {
			fmt.Fprint(s.writer, "\r"+strings.Repeat(" ", len(s.label)+10)+"\r")
		}
	})
}
