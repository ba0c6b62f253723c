package nserve_test

import (
	"fmt"

	"github.com/muir/nact/nserve"
	"github.com/pkg/errors"
)

type (
	L1 struct{}
	L2 struct{}
)

func NewL1(app *nserve.App) *L1 {
	fmt.Println("L1 created")
	app.On(nserve.Start, func() error {
		app.On(nserve.Stop, func() error {
			fmt.Println("L1 stopped")
			return fmt.Errorf("L1 stop error")
		})
		fmt.Println("L1 started")
		return nil
	})
	return &L1{}
}

func NewL2(app *nserve.App, _ *L1) *L2 {
	fmt.Println("L2 created")
	app.On(nserve.Start, func() error {
		app.On(nserve.Stop, func() error {
			fmt.Println("L2 stopped")
			return fmt.Errorf("L2 stop error")
		})
		fmt.Println("L2 started")
		// Note: L2 start will return error
		return fmt.Errorf("L2 start error")
	})
	app.On(nserve.Shutdown, func() error {
		fmt.Println("L2 shut down")
		return nil
	})
	return &L2{}
}

func ErrorCombiner(e1, e2 error) error {
	return errors.New(e1.Error() + "; " + e2.Error())
}

// Example shows the startup and shutdown of an app with two
// libraries.  A start failure runs the stop hook and then the
// shutdown hook.
func Example() {
	nserve.Start.SetErrorCombiner(ErrorCombiner)
	nserve.Stop.SetErrorCombiner(ErrorCombiner)
	app := nserve.NewApp()
	NewL2(app, NewL1(app))
	err := app.Do(nserve.Start)
	fmt.Println("do start error:", err)
	fmt.Println("shutdown done:", app.Done(nserve.Shutdown))
	// Output: L1 created
	// L2 created
	// L1 started
	// L2 started
	// L2 stopped
	// L1 stopped
	// L2 shut down
	// do start error: L2 start error; L2 stop error; L1 stop error
	// shutdown done: true
}
