// Package strategy defines the selection policy applied to the healthy set.
//
// The only policy is round robin: a shared cursor walks the healthy set in
// its stable order and wraps around. If the set shrank since the last call
// and the cursor points past its end, the cursor restarts at the first
// member, so selection never indexes out of bounds.
package strategy
