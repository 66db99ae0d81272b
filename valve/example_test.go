package valve_test

import (
	"fmt"

	"github.com/creachadair/mgate"
	"github.com/creachadair/mgate/valve"
)

func Example() {
	open := mgate.NewValue(false)
	words := mgate.NewValue("alpha")

	v := valve.New(words, open, &valve.Options{Closed: true})
	v.Subscribe(mgate.Funcs[string]{
		Next:     func(s string) { fmt.Println(s) },
		Complete: func() { fmt.Println("done") },
	})

	// Values arriving while the valve is closed are held in order.
	words.Set("bravo")
	words.Set("charlie")
	fmt.Println("-- open")
	open.Set(true)

	words.Set("delta")
	fmt.Println("-- close")
	open.Set(false)
	words.Set("echo")
	words.Close()

	// Completion waits until the held values are delivered.
	fmt.Println("-- open")
	open.Set(true)
	// Output:
	// -- open
	// alpha
	// bravo
	// charlie
	// delta
	// -- close
	// -- open
	// echo
	// done
}
