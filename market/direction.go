package market

// Direction of a directional price move.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "UP"
	}
	return "DOWN"
}
