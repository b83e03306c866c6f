// Package config loads the desired capture state from YAML and applies it
// to a capture session.
//
// Example file:
//
//	device: "0"
//	outputs:
//	  - name: preview
//	    width: 1280
//	    height: 720
//	repeating:
//	  template: preview
//	  fps: 30
//	active: true
//	recovery:
//	  enabled: true
//	  initial: 500ms
//	  max: 30s
//	  max_attempts: 0
//	event_log:
//	  path: /var/log/persistcam/trace.plog
//	journal:
//	  path: /var/lib/persistcam/journal.db
//
// Apply sets all four inputs inside one transaction, so a file change never
// reconfigures the hardware field by field. Watcher re-applies the file
// whenever it is written.
package config
