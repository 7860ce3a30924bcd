/*
Package rails enforces guard checks at the input, retrieval and output checkpoints
of a turn.

Each checkpoint runs its guards in declared order and stops at the first result
that is not a Pass. A Reject ends the turn with an author-defined message; the
reason is only logged. A Revise replaces the subject and re-runs the same
checkpoint once; if the revision does not pass cleanly, the turn is rejected.

Built-in guard kinds are configured in config.yml:

	guards:
	  - name: no_profanity
	    kind: blocklist
	    message: refuse profanity
	    params:
	      words: [darn, heck]

Hosts can add their own guards with Enforcer options or register new kinds.
*/
package rails
