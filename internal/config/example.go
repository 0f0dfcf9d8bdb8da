package config

import _ "embed"

//go:embed example.yaml
var example []byte

// Example returns the annotated starter config written by `agentprobe init`.
func Example() []byte {
	return append([]byte(nil), example...)
}
