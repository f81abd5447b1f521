package core_test

import (
	"fmt"

	"github.com/cwbudde/lfnwatch/dsp/core"
)

func ExampleLevelDB() {
	// 1 Pa against the 20 uPa SPL reference.
	fmt.Printf("%.1f\n", core.LevelDB(1, 2e-5, core.DefaultFloorDB))

	// Silence is clamped to the floor.
	fmt.Printf("%.1f\n", core.LevelDB(0, 1, core.DefaultFloorDB))

	// Output:
	// 94.0
	// -120.0
}
