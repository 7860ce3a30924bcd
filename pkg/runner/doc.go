/*
Package runner implements the interactive chat loop for a Railyard session.

It acts as the bridge between the session API and the outside world: it reads
user messages through a pluggable IOHandler, submits them as turns and presents
the replies.

# Key Components

  - Runner: the read → submit → present loop.
  - IOHandler: decouples how messages are read and replies shown (text, JSON lines).
  - Sanitizer: size, UTF-8, line ending and control/format character cleanup applied to every message.

# Usage

	r := runner.New(
		runner.WithHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
		runner.WithLogger(logger),
	)

	if err := r.Run(ctx, engine, sessionID); err != nil {
		log.Fatal(err)
	}
*/
package runner
