/*
Package domain contains the core models of the Waypoint tour engine.

It defines the tour definition (an ordered list of steps), the runtime
tour state and the lifecycle events emitted while a learner walks through
the tour. This package is kept pure and free of I/O so that definitions can
be validated and state transitions reasoned about without a browser.

# Key Entities

  - Step: one highlight, bound to a target selector on a given route.
  - Definition: the immutable, ordered list of steps of one tour.
  - TourState: the runtime snapshot (current index, running, navigating, phase).
  - Progress: a resumable record of how far a session got.
  - LifecycleHooks: callbacks invoked on step entry, skip, navigation and completion.
*/
package domain
