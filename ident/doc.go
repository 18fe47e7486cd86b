// Package ident implements the hierarchical identifier scheme used for
// every object id and session token in the chat system.
//
// A Uuid is a chain of 32-bit components. The first components identify
// the server that allocated the id, the last component distinguishes the
// object. Uuids are comparable values, so they can be used directly as
// map keys, and a distinguished Null value means "no reference".
//
// Example:
//
//	serverID, err := ident.Parse("1.c0ffee")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	gen := ident.NewRandomGenerator(serverID)
//	id := gen.Make()
//	fmt.Println(id.Root() == serverID) // true
package ident
