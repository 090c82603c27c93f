package main

import (
	"fmt"
	"math"

	"github.com/gdamore/tcell/v2"

	"multiverse.game/internal/sim/entity"
	"multiverse.game/internal/sim/world"
	"multiverse.game/internal/sim/worldgen/placement"
)

const (
	minScale = 0.5
	maxScale = 64
)

// Viewer owns a local world and renders it around the observer. Only the
// viewer goroutine touches the world, so it steps it directly.
type Viewer struct {
	screen tcell.Screen
	world  *world.World

	observer placement.Vec2
	// scale is world units per terminal column; rows are twice as tall.
	scale float64
	step  float64

	showBackground bool
	lastDigest     string
	message        string
}

func NewViewer(screen tcell.Screen, w *world.World) *Viewer {
	return &Viewer{
		screen:         screen,
		world:          w,
		scale:          4,
		step:           10,
		showBackground: true,
	}
}

// Tick steps the world once at the current observer position.
func (v *Viewer) Tick() {
	obs := v.observer
	_, v.lastDigest = v.world.StepOnce(&obs)
}

// HandleKey applies one key press. It returns false to quit.
func (v *Viewer) HandleKey(key tcell.Key, r rune) bool {
	switch key {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.observer.Y += v.step
	case tcell.KeyDown:
		v.observer.Y -= v.step
	case tcell.KeyLeft:
		v.observer.X -= v.step
	case tcell.KeyRight:
		v.observer.X += v.step
	case tcell.KeyRune:
		return v.handleRune(r)
	}
	return true
}

func (v *Viewer) handleRune(r rune) bool {
	switch r {
	case 'q':
		return false
	case 'w':
		v.observer.Y += v.step
	case 's':
		v.observer.Y -= v.step
	case 'a':
		v.observer.X -= v.step
	case 'd':
		v.observer.X += v.step
	case '+', '=':
		v.scale = math.Max(minScale, v.scale/2)
	case '-':
		v.scale = math.Min(maxScale, v.scale*2)
	case 'b':
		v.showBackground = !v.showBackground
	case 'h':
		if home, ok := v.world.Session().Home(); ok {
			v.observer = home.Pos
		}
	case '0':
		v.observer = placement.Vec2{}
	case '1', '2', '3':
		lvl := int(r - '0')
		obs := v.observer
		_, v.lastDigest = v.world.StepInput(world.Input{Observer: &obs, LevelsWon: []int{lvl}})
		v.message = fmt.Sprintf("level %d won", lvl)
	case 'r':
		obs := v.observer
		_, v.lastDigest = v.world.StepInput(world.Input{
			Observer: &obs,
			Residues: []world.ResidueInput{{Pos: obs, Radius: 0.5, Layer: placement.Foreground}},
		})
		v.message = fmt.Sprintf("residue dropped at (%.1f,%.1f)", obs.X, obs.Y)
	}
	return true
}

// project maps a world position to a screen cell. Y grows upwards in the
// world and downwards on screen.
func (v *Viewer) project(p placement.Vec2, width, height int) (x, y int) {
	cx, cy := width/2, (height-1)/2
	x = cx + int(math.Round((p.X-v.observer.X)/v.scale))
	y = cy - int(math.Round((p.Y-v.observer.Y)/(2*v.scale)))
	return x, y
}

func glyphOf(e entity.Entity) (rune, tcell.Style) {
	if e.Layer == placement.Background {
		return '·', tcell.StyleDefault.Foreground(tcell.ColorDimGray)
	}
	switch e.Kind {
	case entity.KindHome:
		return '@', tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	case entity.KindResidue:
		return '*', tcell.StyleDefault.Foreground(tcell.ColorOrange)
	}
	switch e.Record.Category {
	case placement.Universe1:
		return 'o', tcell.StyleDefault.Foreground(tcell.ColorGreen)
	case placement.Universe2:
		return 'o', tcell.StyleDefault.Foreground(tcell.ColorBlue)
	case placement.Universe3:
		return 'o', tcell.StyleDefault.Foreground(tcell.ColorPurple)
	default:
		return 'o', tcell.StyleDefault.Foreground(tcell.ColorGray)
	}
}

func (v *Viewer) Draw() {
	v.screen.Clear()
	width, height := v.screen.Size()
	if width <= 0 || height <= 1 {
		v.screen.Show()
		return
	}
	mapH := height - 1

	// Background first so gameplay planets draw over it.
	ents := v.world.Registry().All()
	for _, pass := range []placement.Layer{placement.Background, placement.Foreground} {
		if pass == placement.Background && !v.showBackground {
			continue
		}
		for _, e := range ents {
			if e.Layer != pass {
				continue
			}
			x, y := v.project(e.Record.Pos, width, mapH+1)
			if x < 0 || x >= width || y < 0 || y >= mapH {
				continue
			}
			r, st := glyphOf(e)
			v.screen.SetContent(x, y, r, nil, st)
		}
	}

	ox, oy := v.project(v.observer, width, mapH+1)
	v.screen.SetContent(ox, oy, '+', nil, tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true))

	v.drawStatus(width, height-1)
	v.screen.Show()
}

func (v *Viewer) drawStatus(width, row int) {
	chunk := v.world.Foreground().ObserverChunk()
	var unlocked []string
	for _, c := range v.world.Session().Unlocked().Slice() {
		unlocked = append(unlocked, c.String())
	}
	digest := v.lastDigest
	if len(digest) > 8 {
		digest = digest[:8]
	}
	status := fmt.Sprintf(" tick=%d pos=(%.0f,%.0f) chunk=%s scale=%.1f entities=%d unlocked=%v digest=%s %s",
		v.world.CurrentTick(), v.observer.X, v.observer.Y, chunk, v.scale,
		v.world.Registry().Len(), unlocked, digest, v.message)
	st := tcell.StyleDefault.Reverse(true)
	for x := 0; x < width; x++ {
		r := ' '
		if x < len(status) {
			r = rune(status[x])
		}
		v.screen.SetContent(x, row, r, nil, st)
	}
}
