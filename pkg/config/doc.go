/*
Package config loads and validates the competition configuration.

A single YAML document (competition.yaml) defines every competition the
process serves: its broker, overlay CIDR, teams, box templates, service
checks and flag challenges. Configuration is immutable after load; reload
is not supported.

Check specs are a tagged variant discriminated by the "type" field:

	checks:
	  - name: web_check
	    interval: 30
	    points: 10
	    spec:
	      type: http
	      url: /login
	      code: 200
	      regex: "Welcome"

Team ids are positional: the first team in the list is team 1, and the
ordering is stable for the lifetime of the competition.
*/
package config
