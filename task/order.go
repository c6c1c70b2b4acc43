package task

import "fmt"

// Order decides how a Collection replays the results of its tasks.
type Order int

const (
	// Unordered relays results as tasks finish.
	Unordered Order = iota
	// Ordered replays results in the order tasks were added.
	Ordered
	// ReverseOrder replays results in the reverse of the order tasks were added.
	ReverseOrder
)

func (o Order) String() string {
	switch o {
	case Unordered:
		return "unordered"
	case Ordered:
		return "ordered"
	case ReverseOrder:
		return "reverse"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder is the inverse of Order.String.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "unordered", "none":
		return Unordered, nil
	case "ordered":
		return Ordered, nil
	case "reverse":
		return ReverseOrder, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownOrder, s)
	}
}

func (o Order) validate() error {
	if o < Unordered || o > ReverseOrder {
		return fmt.Errorf("%w: %v", ErrUnknownOrder, o)
	}
	return nil
}
