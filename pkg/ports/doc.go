/*
Package ports defines the driven ports (interfaces) for the Railyard engine.

These interfaces decouple the dialog runtime from external implementations, allowing
the engine to work with various language-model providers, vector stores and session backends.

# Key Interfaces

  - Embedder / Completer: language-model services (LangChain, OpenAI, offline).
  - SessionStore: keeps per-session state between turns.
  - DistributedLocker: serialises turns of one session across replicas.
  - VectorIndex / Retriever / DocumentLoader: the knowledge base behind generated answers.
*/
package ports
