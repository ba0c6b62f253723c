package nvelope_test

import (
	"fmt"
	"strings"

	"github.com/muir/nact"
	"github.com/muir/nact/nvelope"
)

func ExampleSetErrorOnPanic() {
	f := func(i int) (err error) {
		defer nvelope.SetErrorOnPanic(&err, nact.NoLogger())
		if i == 0 {
			panic(nact.Text("zero"))
		}
		return fmt.Errorf("got %d", i)
	}
	for _, i := range []int{0, 1} {
		err := f(i)
		r, isResult := nvelope.RecoverInterface(err).(nact.Result)
		fmt.Println(err, isResult, strings.Contains(nvelope.RecoverStack(err), "SetErrorOnPanic"))
		if isResult {
			fmt.Println("recovered", r.Body())
		}
	}
	// Output: panic: &{200 zero text/plain; charset=utf-8 map[]} true true
	// recovered zero
	// got 1 false false
}
