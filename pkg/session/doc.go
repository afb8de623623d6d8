/*
Package session owns the tour engines of concurrent learners.

A Manager opens one engine per session through a Factory, serializes
operations on the same session with reference-counted locks (optionally backed
by a distributed locker for multi-replica deployments) and tears engines down
when sessions close.
*/
package session
