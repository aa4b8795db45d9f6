/*
Package ports defines the driven ports (interfaces) for the dispatch core.

These interfaces decouple correlation and coordination logic from external
infrastructure, allowing the same core to run against in-memory, Redis or
NATS backends.

# Key Interfaces

  - Queue / Consumer: the durable job dispatch queue and its worker side.
  - MessageBus: the per-node publish/subscribe response channel transport.
  - KeyValueStore: the shared store recording session ownership.
  - FlowService / SampleStore: narrow views of the flow persistence layer.
  - Executor: the out-of-scope execution engine a worker delegates to.
*/
package ports
