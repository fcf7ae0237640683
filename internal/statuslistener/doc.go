// Package statuslistener binds a UDP socket and merges incoming JSON
// status-update datagrams into an Execution's in-memory status. Its lifecycle is bound to the current child: started before
// spawn, stopped after reap; at most one listener runs per supervisor.
package statuslistener
