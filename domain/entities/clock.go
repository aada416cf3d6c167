package entities

import "time"

// Color identifies a chess side.
type Color string

const (
	ColorWhite Color = "white"
	ColorBlack Color = "black"
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == ColorWhite {
		return ColorBlack
	}
	return ColorWhite
}

// ClockPair tracks the remaining time budget for both sides of a match.
// Time only advances for the side on move; remaining budgets never increase
// after creation and clamp at zero. A frozen pair ignores all further ticks.
type ClockPair struct {
	White  time.Duration `db:"white_remaining"`
	Black  time.Duration `db:"black_remaining"`
	Active *Color        `db:"active_color"` // nil when paused or frozen
	Frozen bool          `db:"-"`
}

// NewClockPair creates a clock pair with the given per-side budget, not yet ticking.
func NewClockPair(perSide time.Duration) *ClockPair {
	return &ClockPair{White: perSide, Black: perSide}
}

// Start marks side as the actively-ticking side.
func (c *ClockPair) Start(side Color) {
	if c.Frozen {
		return
	}
	active := side
	c.Active = &active
}

// SwitchActive stops the mover's clock and starts the opponent's. Called
// exactly once per accepted move.
func (c *ClockPair) SwitchActive() {
	if c.Frozen || c.Active == nil {
		return
	}
	other := c.Active.Other()
	c.Active = &other
}

// Tick subtracts the actual elapsed time from the active side's budget.
// Subtracting measured elapsed time rather than a fixed constant keeps the
// clocks honest under coalesced or delayed timer wake-ups. When a budget
// reaches zero it clamps there and the timed-out side is returned.
func (c *ClockPair) Tick(elapsed time.Duration) (Color, bool) {
	if c.Frozen || c.Active == nil || elapsed <= 0 {
		return "", false
	}
	side := *c.Active
	remaining := c.Remaining(side) - elapsed
	if remaining < 0 {
		remaining = 0
	}
	c.setRemaining(side, remaining)
	if remaining == 0 {
		return side, true
	}
	return "", false
}

// Remaining returns the budget left for a side.
func (c *ClockPair) Remaining(side Color) time.Duration {
	if side == ColorWhite {
		return c.White
	}
	return c.Black
}

// Freeze stops both clocks permanently. Ticks against a frozen pair are no-ops.
func (c *ClockPair) Freeze() {
	c.Active = nil
	c.Frozen = true
}

func (c *ClockPair) setRemaining(side Color, d time.Duration) {
	if side == ColorWhite {
		c.White = d
	} else {
		c.Black = d
	}
}
