package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	barWidth     = 40
	redrawPeriod = 100 * time.Millisecond
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var phaseLabels = map[Phase]string{
	PhaseScan:      "Escaneando archivos",
	PhasePartition: "Agrupando por tamaño",
	PhaseHash:      "Calculando hashes",
}

// Console dibuja el avance en una sola línea (normalmente stderr).
// Redibuja como mucho cada redrawPeriod para no saturar la terminal.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	last   time.Time
	frame  int
	active Phase
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) Update(phase Phase, pos, total int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if phase == c.active && now.Sub(c.last) < redrawPeriod && (total < 0 || pos < total) {
		return
	}
	c.active = phase
	c.last = now
	c.draw(render(phase, pos, total, spinnerFrames[c.frame%len(spinnerFrames)]))
	c.frame++
}

func (c *Console) Finish(phase Phase, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draw("✅ " + msg)
	fmt.Fprintln(c.out)
	c.active = ""
}

// eraseLine vuelve al inicio y borra la línea completa (ANSI EL).
const eraseLine = "\r\x1b[K"

// draw sobrescribe la línea anterior.
func (c *Console) draw(line string) {
	fmt.Fprint(c.out, eraseLine+line)
}

func render(phase Phase, pos, total int64, spin string) string {
	label := phaseLabels[phase]
	if label == "" {
		label = string(phase)
	}
	if total < 0 {
		return fmt.Sprintf("%s %s: %s archivos...", spin, label, humanize.Comma(pos))
	}
	if total == 0 {
		return fmt.Sprintf("[%s] 0/0 %s", strings.Repeat("-", barWidth), label)
	}
	filled := int(pos * barWidth / total)
	filled = max(0, min(filled, barWidth))
	pct := pos * 100 / total
	return fmt.Sprintf("[%s%s] %7d/%-7d %3d%% %s",
		strings.Repeat("#", filled), strings.Repeat("-", barWidth-filled),
		pos, total, pct, label)
}
