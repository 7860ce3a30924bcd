/*
Package railyard is a guarded dialog engine. It sits between a user and a
language model and keeps the conversation on rails: user messages are mapped
to canonical intents, intents select scripted flows, and guards inspect the
input, the retrieved knowledge and the output of every turn.

# Concept

Rails are written in small .co files next to a config.yml. Intents are defined
by example utterances, bot messages by templates, and flows as sequences of
user and bot steps:

	define user express greeting
	  "hello"
	  "hi there"

	define bot express greeting
	  "Hello! How can I help?"

	define flow greeting
	  user express greeting
	  bot express greeting

An utterance that matches no intent above the configured threshold is handled
by the built-in fallback flow. A "bot ..." step asks the language model for the
answer, optionally grounded on a knowledge base.

# Usage

	eng, err := railyard.New("./rails")
	if err != nil {
		log.Fatal(err) // *railyard.ConfigLoadError
	}
	defer eng.Close()

	id, _ := eng.StartSession(ctx)
	reply, err := eng.SubmitUserMessage(ctx, id, "hello")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(reply.Text())
	_ = eng.EndSession(ctx, id)

A rejected turn is not an error: the reply carries a GuardRejection naming the
checkpoint and guard that stopped it. Provider failures and turn timeouts are
reported the same way with the service-unavailable message.

# Rails

  - Input rails run on every user message before matching.
  - Retrieval rails filter knowledge chunks before generation.
  - Output rails run on every bot message before it is sent.

Hosts extend the engine with WithGuard and WithAction, and observe it with
WithLifecycleHooks (see pkg/observability for Prometheus and slog hooks).
*/
package railyard
