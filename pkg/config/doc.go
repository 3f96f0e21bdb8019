// Package config loads the datastack configuration file and validates
// documents against CUE schemas.
//
// # Configuration file
//
// The configuration is YAML. Missing keys keep their defaults, environment
// variables (DATASTACK_DATA_DIR, DATASTACK_LOG_LEVEL, DATASTACK_IN_MEMORY)
// override the file, and the result is checked with struct validation and
// the built-in "store" CUE schema:
//
//	data_dir: /home/alice/.config/datastack
//	store:
//	  model: kennel
//	  in_memory: false
//	  recovery:
//	    enabled: true
//	    max_retries: 1
//	telemetry:
//	  log_level: info
//	  log_format: console
//	  metrics:
//	    enabled: false
//	    listen_address: ":9090"
//	  tracing:
//	    exporter: none
//	    sampling_rate: 1
//	transformers:
//	  - name: StringToNumber
//	    file: chip.star
//
// Each transformer names a Starlark script, inline or in a file relative to
// the configuration file.
//
// # Schemas
//
// SchemaRegistry compiles CUE sources and keeps named schemas. Models
// register their document schemas with RegisterDefinition. ExportDocument
// unifies a JSON or CUE document with a schema and returns concrete JSON;
// failures come back as a *DocumentError with one position per problem.
package config
