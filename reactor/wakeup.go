// Author: momentics <momentics@gmail.com>
//
// Package reactor implements a single-threaded event reactor that
// multiplexes TCP client/listener sockets and local files behind the
// Handler callback surface, with a suspendable per-endpoint read
// coroutine so handler code can read as if synchronously.
//
// wakeupPipe is a self-pipe used solely to unblock the poller on Stop.
// The source never consumed bytes from it; this implementation drains it
// on every readable report to avoid spinning a level-triggered poller
// (see SPEC_FULL.md §9's resolution of that open question). Platform
// implementations live in wakeup_linux.go / wakeup_other.go so that the
// raw fd is read directly rather than through the Go runtime's own
// netpoller-integrated *os.File, which would otherwise double-register
// the same descriptor.
package reactor
