package domain

import "fmt"

// Pair names the vault's token pair: the primary asset depositors hold and
// the settlement currency option premiums are paid in.
type Pair struct {
	// Primary base asset symbol.
	Primary string
	// Settlement quote currency symbol.
	Settlement string
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Primary, p.Settlement)
}

// Symbol returns the concatenated exchange symbol representation.
func (p Pair) Symbol() string {
	return fmt.Sprintf("%s%s", p.Primary, p.Settlement)
}
