// Package config loads the run configuration of a test cluster and the
// tool configuration of the operator.
//
// A run configuration is a directory holding template.yaml, which declares
// the nodes, their boxes and the products to install, next to the artifacts
// generated for it: per-node role files, node configuration files and the
// docker stack definition. The network settings file is written into the
// same directory after every run.
//
// The tool configuration ([ToolConfig]) holds credentials and paths shared
// by every run and is read from $XDG_CONFIG_HOME/stagehand/config.yaml and
// STAGEHAND_* environment variables. Timing knobs are read from the
// environment by [LoadTimeouts].
package config
