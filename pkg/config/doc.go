// Package config loads the YAML configuration shared by the command line
// tools.
//
// A file looks like:
//
//	backend: sane
//	log_level: info
//	worker:
//	  enabled: true
//	scan:
//	  feeder_tokens: [adf, feeder, "chargeur"]
//	daemon:
//	  executable: /usr/libexec/unisane-daemon
//	  start_timeout: 10s
//	presets:
//	  - option: resolution
//	    values: [300, 200]
//	  - option: source
//	    values: [feeder, flatbed]
//	maximize_area: true
//	output:
//	  format: png
//	  pattern: "page-%03d"
//
// Every field is optional; Default returns the values used for a missing
// field. Command line flags override file values after loading.
package config
