// Package viz renders simulation outcomes in the terminal.
//
// [Plot] draws the compartment curves and the aligned observations as an
// asciigraph chart. [Live] wraps the same chart in a Bubble Tea program
// that re-solves the model whenever a parameter changes.
//
// # Key Bindings
//
//	Tab      - Select next parameter
//	Up/K     - Increase selected parameter by 5%
//	Down/J   - Decrease selected parameter by 5%
//	M        - Toggle SIR / SEIR
//	O        - Toggle observations
//	T        - Cycle color themes
//	R        - Reset parameters
//	Q        - Quit
package viz
