/*
Package flownet builds and runs networks of processes that communicate
through typed, shaped ports.

A network is declared by creating processes on a Net, giving them input
and output ports, and wiring those ports together. Ports can be connected
directly, fanned out to several inputs, fanned in from several outputs
(with an element-wise reduction applied on arrival), or connected through
virtual reshape and concatenation views. The wired network is then
compiled into a set of runtime channels and executed with one goroutine
per process.

Wiring errors surface at the call site: direction, shape and element-type
compatibility are checked when an edge is inserted, not deferred to
compilation. Compilation itself is atomic; it either produces a complete
Executable or fails without allocating any channel.
*/
package flownet
