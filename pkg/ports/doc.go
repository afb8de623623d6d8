/*
Package ports defines the driven ports (interfaces) of the Waypoint tour engine.

These interfaces decouple the tour logic from the page it runs against and from
where progress is kept, so the same engine drives a real browser, an in-memory
document in tests, or a terminal preview.

# Key Interfaces

  - Document / Element: query the page, observe DOM and style mutations, click.
  - Navigator: read the current route and request replace-style navigation.
  - DefinitionLoader: load tour definitions (file, Loam, memory).
  - ProgressStore: cache resumable progress per session.
  - CompletionRecorder: persist that a learner finished the tour.
  - DistributedLocker: coordinate session access across replicas.
*/
package ports
