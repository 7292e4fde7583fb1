// Package route encodes request endpoints as 32-bit route ids.
//
// A route combines a 16-bit primary command and a 16-bit sub command:
//
//	r := route.Merge(1, 5) // 65541
//	primary, sub := r.Split()
//
// The package also keeps a process-wide table of diagnostic names that
// only affects String output:
//
//	route.Register(route.Merge(1, 5), "login")
//	fmt.Println(route.Merge(1, 5)) // 1-5-65541(login)
//	route.Clear()
package route
