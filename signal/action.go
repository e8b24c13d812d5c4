// Package signal implements the breakout, impulse-profiling, and LVN-retest
// state machine that turns bars and trades into trading actions.
package signal

// Direction of a trade.
type Direction int

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Long {
		return "LONG"
	}
	return "SHORT"
}

// Action is one decision emitted for a processed bar. It is a closed sum:
// the execution side switches over the concrete types exhaustively.
type Action interface {
	isAction()
}

// Enter opens a new position. Level is the LVN price the entry traded
// against.
type Enter struct {
	Direction Direction
	Price     float64
	Stop      float64
	Target    float64
	Level     float64
	Contracts int
}

// Exit closes the current position.
type Exit struct {
	Direction Direction
	Price     float64
	PnLPoints float64
	Reason    string
}

// UpdateStop moves the protective stop. Only ever emitted while in a
// position, and only in the favorable direction.
type UpdateStop struct {
	NewStop float64
}

// SignalPending marks that a retest signal fired and entry happens on the
// next bar's open.
type SignalPending struct{}

// FlattenAll unconditionally closes everything.
type FlattenAll struct {
	Reason string
}

func (Enter) isAction()         {}
func (Exit) isAction()          {}
func (UpdateStop) isAction()    {}
func (SignalPending) isAction() {}
func (FlattenAll) isAction()    {}
