/*
Package dns serves the overlay naming scheme.

Every box instance is reachable at "{box}.{team}.{competition}.{tld}".
The server answers A queries for those names from the addresses the
scheduler and sidecars record in the store, and forwards everything
else to an upstream resolver. Scoring probes and team traffic share the
same view of the overlay.
*/
package dns
