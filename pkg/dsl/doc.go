/*
Package dsl provides a Go DSL for building rails programmatically.

It is an alternative to writing .co files by hand: the builder renders the same
definition language, so programmatic rails go through the same compiler and
validation as files on disk.

Example usage:

	b := dsl.New()

	b.User("express greeting", "hello", "hi")
	b.Bot("express greeting", "Hello! How can I help?")
	b.Bot("inform balance", "Your balance is $balance.")

	b.Flow("greeting").
		User("express greeting").
		Bot("express greeting")

	b.Flow("balance").
		User("ask balance").
		ExecuteInto("balance", "lookup_balance").
		If("$balance > 0", func(f *dsl.FlowBuilder) {
			f.Bot("inform balance")
		}, nil)

	rails, err := b.Build()
*/
package dsl
