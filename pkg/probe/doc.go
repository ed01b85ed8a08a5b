/*
Package probe executes service checks against box instances.

Each check spec variant (http, icmp, ssh, nix) maps to a Prober that
takes a resolved host and reports (success, message). Probers are the
only place the scheduler performs external I/O; every probe carries a
deadline, 5 seconds by default.
*/
package probe
