/*
Package session implements session management for the dialog runtime.

The Manager serialises access to each session (one turn at a time per session ID),
using in-process mutexes and, optionally, a distributed lock shared by replicas.
The Sweeper expires sessions that have been idle for too long.
*/
package session
