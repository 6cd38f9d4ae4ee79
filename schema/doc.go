// Package schema synthesizes concrete event types from interface-style
// descriptions.
//
// A Schema lists accessors: getters bound to constructor positions, optional
// setters, and "extra" properties outside the constructor. A Synthesizer
// realizes a schema once per backend as a *Type with a positional Factory:
//
//	var UserCreated = schema.Define("UserCreated",
//	    schema.Get("getId", schema.TypeOf[string](), schema.At(0)),
//	    schema.Get("getEmail", schema.TypeOf[string](), schema.At(1)),
//	    schema.Set("setEmail", schema.TypeOf[string](), schema.RequireNonNull("")),
//	)
//
//	ev, err := schema.Default().Instantiate(UserCreated, "u-1", "a@example.com")
//	fmt.Println(ev) // UserCreated{id=u-1, email=a@example.com}
//
// Tagged template structs are a shorter way to write the same thing; see Of.
//
// Events built from the same schema are equal when their positional values
// are deeply equal, and equal events have equal hashes.
package schema
